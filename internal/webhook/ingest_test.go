// internal/webhook/ingest_test.go
package webhook

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/KhlifiIsmail/devlog-backend/internal/model"
)

func TestParseTimestamp(t *testing.T) {
	ingestor := CommitIngestor{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    func() time.Time { return fixedNow },
	}

	t.Run("RFC3339 with offset", func(t *testing.T) {
		got := ingestor.parseTimestamp("2025-06-01T12:30:00+02:00")
		assert.True(t, got.Equal(time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)))
	})

	t.Run("naive timestamp is treated as UTC", func(t *testing.T) {
		got := ingestor.parseTimestamp("2025-06-01T10:30:00")
		assert.Equal(t, time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC), got)
	})

	t.Run("empty falls back to processing time", func(t *testing.T) {
		assert.Equal(t, fixedNow, ingestor.parseTimestamp(""))
	})

	t.Run("garbage falls back to processing time", func(t *testing.T) {
		assert.Equal(t, fixedNow, ingestor.parseTimestamp("last tuesday"))
	})
}

func TestBuildFilesData(t *testing.T) {
	payload := CommitPayload{
		Added:    []string{"internal/api/handler.go"},
		Removed:  []string{"legacy/old.py"},
		Modified: []string{"web/src/App.TSX", "LICENSE"},
	}

	files := buildFilesData(payload)

	assert.Equal(t, []model.FileChange{
		{Filename: "internal/api/handler.go", Status: "added", Language: "Go"},
		{Filename: "legacy/old.py", Status: "removed", Language: "Python"},
		{Filename: "web/src/App.TSX", Status: "modified", Language: "TypeScript"},
		{Filename: "LICENSE", Status: "modified"},
	}, files)
}

func TestPushPayloadBranch(t *testing.T) {
	tests := []struct {
		name    string
		payload PushPayload
		want    string
	}{
		{
			name:    "branch ref",
			payload: PushPayload{Ref: "refs/heads/feature/retry-queue"},
			want:    "feature/retry-queue",
		},
		{
			name: "tag ref falls back to default branch",
			payload: PushPayload{
				Ref:        "refs/tags/v1.2.0",
				Repository: RepositoryPayload{DefaultBranch: "develop"},
			},
			want: "develop",
		},
		{
			name:    "no ref and no default branch",
			payload: PushPayload{},
			want:    "main",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.payload.Branch())
		})
	}
}
