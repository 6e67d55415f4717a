// internal/model/models.go
package model

import "time"

// Webhook event lifecycle statuses.
const (
	EventStatusPending    = "pending"
	EventStatusProcessing = "processing"
	EventStatusCompleted  = "completed"
	EventStatusFailed     = "failed"
)

// Recognized webhook event types. Anything else maps to EventTypeOther.
const (
	EventTypePush        = "push"
	EventTypePullRequest = "pull_request"
	EventTypePing        = "ping"
	EventTypeOther       = "other"
)

// User is the owning account for repositories, commits and sessions.
// Authentication is handled outside this service; we only need a stable
// identity with an email usable for pusher matching.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// WebhookEvent is the durable log entry for one webhook delivery.
type WebhookEvent struct {
	ID                 int64      `json:"id"`
	EventType          string     `json:"event_type"`
	RepositoryFullName string     `json:"repository_full_name"`
	DeliveryID         string     `json:"delivery_id"`
	Payload            []byte     `json:"-"`
	Status             string     `json:"status"`
	ErrorMessage       *string    `json:"error_message,omitempty"`
	UserID             *int64     `json:"user_id,omitempty"`
	Attempts           int32      `json:"attempts"`
	NextAttemptAt      time.Time  `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	ProcessedAt        *time.Time `json:"processed_at,omitempty"`
}

// Repository represents a GitHub repository tracked for a user.
type Repository struct {
	ID                int64      `json:"id"`
	UserID            int64      `json:"user_id"`
	GithubID          int64      `json:"github_id"`
	Name              string     `json:"name"`
	FullName          string     `json:"full_name"`
	Description       string     `json:"description"`
	URL               string     `json:"url"`
	DefaultBranch     string     `json:"default_branch"`
	IsPrivate         bool       `json:"is_private"`
	IsFork            bool       `json:"is_fork"`
	Language          string     `json:"language"`
	StarsCount        int32      `json:"stars_count"`
	ForksCount        int32      `json:"forks_count"`
	IsTrackingEnabled bool       `json:"is_tracking_enabled"`
	LastSyncedAt      *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// FileChange describes one file touched by a commit, as recorded in
// the commit's files_data document.
type FileChange struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Language string `json:"language,omitempty"`
}

// Commit is a single git commit ingested from a push event or sync.
// Immutable after creation except for the session assignment, and the
// line stats which a later sync pass may backfill.
type Commit struct {
	ID           int64        `json:"id"`
	RepositoryID int64        `json:"repository_id"`
	SessionID    *int64       `json:"session_id,omitempty"`
	SHA          string       `json:"sha"`
	Message      string       `json:"message"`
	AuthorName   string       `json:"author_name"`
	AuthorEmail  string       `json:"author_email"`
	CommittedAt  time.Time    `json:"committed_at"`
	Additions    int32        `json:"additions"`
	Deletions    int32        `json:"deletions"`
	ChangedFiles int32        `json:"changed_files"`
	FilesData    []FileChange `json:"files_data"`
	Branch       string       `json:"branch"`
	CreatedAt    time.Time    `json:"created_at"`
}

// CodingSession is a contiguous run of a user's commits with no
// inter-commit gap exceeding the configured threshold.
type CodingSession struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	RepositoryID    *int64     `json:"repository_id,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         time.Time  `json:"ended_at"`
	DurationMinutes int32      `json:"duration_minutes"`
	TotalCommits    int32      `json:"total_commits"`
	TotalAdditions  int32      `json:"total_additions"`
	TotalDeletions  int32      `json:"total_deletions"`
	FilesChanged    int32      `json:"files_changed"`
	PrimaryLanguage string     `json:"primary_language"`
	LanguagesUsed   []string   `json:"languages_used"`
	AISummary       *string    `json:"ai_summary,omitempty"`
	AIGeneratedAt   *time.Time `json:"ai_generated_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
