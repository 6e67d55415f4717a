// internal/webhook/payload.go
package webhook

import "strings"

// PushPayload is the subset of a GitHub push event this service reads.
type PushPayload struct {
	Ref        string            `json:"ref"`
	Repository RepositoryPayload `json:"repository"`
	Pusher     PusherPayload     `json:"pusher"`
	Commits    []CommitPayload   `json:"commits"`
}

type RepositoryPayload struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	Description     string `json:"description"`
	HTMLURL         string `json:"html_url"`
	DefaultBranch   string `json:"default_branch"`
	Private         bool   `json:"private"`
	Fork            bool   `json:"fork"`
	Language        string `json:"language"`
	StargazersCount int32  `json:"stargazers_count"`
	ForksCount      int32  `json:"forks_count"`
}

type PusherPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CommitPayload struct {
	ID        string        `json:"id"`
	Message   string        `json:"message"`
	Timestamp string        `json:"timestamp"`
	Author    AuthorPayload `json:"author"`
	Added     []string      `json:"added"`
	Removed   []string      `json:"removed"`
	Modified  []string      `json:"modified"`
}

type AuthorPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Branch returns the branch the push targeted. Tag pushes and other
// non-branch refs fall back to the repository's default branch, then "main".
func (p *PushPayload) Branch() string {
	if name, ok := strings.CutPrefix(p.Ref, "refs/heads/"); ok && name != "" {
		return name
	}
	if p.Repository.DefaultBranch != "" {
		return p.Repository.DefaultBranch
	}
	return "main"
}
