// internal/errors/errors.go
package errors

import "fmt"

// DuplicateDeliveryError is returned when a webhook delivery id has already
// been recorded. The second delivery must never be reprocessed.
type DuplicateDeliveryError struct {
	DeliveryID string
}

func (e *DuplicateDeliveryError) Error() string {
	return fmt.Sprintf("webhook delivery %q already recorded", e.DeliveryID)
}

// ValidationError indicates a structurally invalid payload. These are
// terminal: retrying cannot repair a malformed payload.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid webhook payload: %s", e.Reason)
}

// UserResolutionError indicates that no owning account could be found for
// an event. Terminal as well; the event stays inspectable in the log.
type UserResolutionError struct {
	PusherEmail  string
	GithubRepoID int64
}

func (e *UserResolutionError) Error() string {
	return fmt.Sprintf("cannot process webhook: no user found for %q or repo %d", e.PusherEmail, e.GithubRepoID)
}
