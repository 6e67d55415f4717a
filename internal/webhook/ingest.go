// internal/webhook/ingest.go
package webhook

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/KhlifiIsmail/devlog-backend/internal/database"
	"github.com/KhlifiIsmail/devlog-backend/internal/model"
)

// CommitIngestor converts raw push-event commit descriptors into Commit
// rows, skipping any sha that already exists anywhere in the store.
type CommitIngestor struct {
	logger *slog.Logger
	now    func() time.Time
}

// Ingest creates commits for the payload descriptors in order and returns
// the number of newly created rows; pre-existing shas do not count.
// Push payloads carry no line-level stats, so additions/deletions stay zero
// until the sync path backfills them.
func (i *CommitIngestor) Ingest(ctx context.Context, q database.Querier, repo model.Repository, commits []CommitPayload, branch string) (int, error) {
	created := 0

	for _, c := range commits {
		if c.ID == "" {
			i.logger.Warn("Commit missing SHA, skipping")
			continue
		}

		exists, err := q.CommitExists(ctx, c.ID)
		if err != nil {
			return created, err
		}
		if exists {
			i.logger.Debug("Commit already exists, skipping", "sha", c.ID)
			continue
		}

		_, err = q.CreateCommit(ctx, database.CreateCommitParams{
			RepositoryID: repo.ID,
			SHA:          c.ID,
			Message:      c.Message,
			AuthorName:   c.Author.Name,
			AuthorEmail:  c.Author.Email,
			CommittedAt:  i.parseTimestamp(c.Timestamp),
			ChangedFiles: int32(len(c.Added) + len(c.Removed) + len(c.Modified)),
			FilesData:    buildFilesData(c),
			Branch:       branch,
		})
		if err != nil {
			// A concurrent delivery may have inserted the same sha between
			// the existence check and the insert.
			if database.IsUniqueViolation(err, "commits_sha_key") {
				i.logger.Debug("Commit created concurrently, skipping", "sha", c.ID)
				continue
			}
			return created, err
		}

		i.logger.Debug("Created commit", "sha", c.ID)
		created++
	}

	i.logger.Info("Ingested commits", "repository", repo.FullName, "created", created)
	return created, nil
}

// parseTimestamp parses an ISO-8601 timestamp from the payload. On failure
// it substitutes the current processing time rather than rejecting the
// whole batch.
func (i *CommitIngestor) parseTimestamp(value string) time.Time {
	if value == "" {
		return i.now()
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", value); err == nil {
		return t.UTC()
	}
	i.logger.Warn("Invalid commit timestamp", "timestamp", value)
	return i.now()
}

func buildFilesData(c CommitPayload) []model.FileChange {
	files := make([]model.FileChange, 0, len(c.Added)+len(c.Removed)+len(c.Modified))
	for _, f := range c.Added {
		files = append(files, model.FileChange{Filename: f, Status: "added", Language: languageForFile(f)})
	}
	for _, f := range c.Removed {
		files = append(files, model.FileChange{Filename: f, Status: "removed", Language: languageForFile(f)})
	}
	for _, f := range c.Modified {
		files = append(files, model.FileChange{Filename: f, Status: "modified", Language: languageForFile(f)})
	}
	return files
}

var extensionLanguages = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".rb":    "Ruby",
	".rs":    "Rust",
	".java":  "Java",
	".kt":    "Kotlin",
	".swift": "Swift",
	".c":     "C",
	".h":     "C",
	".cpp":   "C++",
	".cc":    "C++",
	".cs":    "C#",
	".php":   "PHP",
	".html":  "HTML",
	".css":   "CSS",
	".scss":  "CSS",
	".sql":   "SQL",
	".sh":    "Shell",
	".yml":   "YAML",
	".yaml":  "YAML",
	".json":  "JSON",
	".md":    "Markdown",
}

func languageForFile(filename string) string {
	return extensionLanguages[strings.ToLower(filepath.Ext(filename))]
}
