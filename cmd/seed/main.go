// cmd/seed/main.go
//
// Development helper: seeds a user and a batch of synthetic push events so
// the dispatcher and session grouper have realistic data to chew on without
// pointing a real GitHub webhook at the service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KhlifiIsmail/devlog-backend/internal/database"
	"github.com/KhlifiIsmail/devlog-backend/internal/model"
)

var commitSubjects = []string{
	"Fix flaky timestamp parsing in event ingestion",
	"Add index on ungrouped commits",
	"Refactor repository resolver",
	"Handle empty push payloads",
	"Tighten webhook signature validation",
	"Update session stats aggregation",
	"Add language tagging for new file extensions",
	"Improve retry scheduling jitter",
}

var seededFiles = []string{
	"internal/server/handler.go",
	"internal/store/queries.go",
	"web/src/App.tsx",
	"scripts/deploy.py",
	"README.md",
}

func main() {
	if err := run(); err != nil {
		slog.Error("Seed failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		dbURL    = flag.String("db-url", os.Getenv("DB_URL"), "Postgres connection string")
		email    = flag.String("email", "dev@example.com", "seed user email")
		username = flag.String("username", "devuser", "seed user name")
		repos    = flag.Int("repos", 2, "number of repositories to seed")
		pushes   = flag.Int("pushes", 6, "number of push events per repository")
	)
	flag.Parse()

	if *dbURL == "" {
		return errors.New("db-url flag or DB_URL env is required")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, *dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	q := database.New(pool)

	user, err := q.GetUserByEmail(ctx, *email)
	if errors.Is(err, pgx.ErrNoRows) {
		user, err = q.CreateUser(ctx, database.CreateUserParams{Username: *username, Email: *email})
	}
	if err != nil {
		return fmt.Errorf("failed to seed user: %w", err)
	}
	logger.Info("Seed user ready", "user_id", user.ID, "email", user.Email)

	events := 0
	for r := 0; r < *repos; r++ {
		fullName := fmt.Sprintf("%s/seed-repo-%d", user.Username, r+1)
		githubID := rand.Int63n(1_000_000)
		// Spread pushes over the past two days so grouping produces more
		// than one session per repository.
		at := time.Now().Add(-48 * time.Hour)
		for p := 0; p < *pushes; p++ {
			at = at.Add(time.Duration(5+rand.Intn(55)) * time.Minute)
			payload, err := buildPushPayload(user, fullName, githubID, at)
			if err != nil {
				return err
			}
			if _, err := q.CreateWebhookEvent(ctx, database.CreateWebhookEventParams{
				EventType:          model.EventTypePush,
				RepositoryFullName: fullName,
				DeliveryID:         uuid.NewString(),
				Payload:            payload,
			}); err != nil {
				return fmt.Errorf("failed to seed push event: %w", err)
			}
			events++
		}
	}

	logger.Info("Seeding complete", "events", events, "repos", *repos)
	logger.Info("Start the service to let the dispatcher process the seeded events")
	return nil
}

// buildPushPayload assembles a minimal GitHub push payload with one to three
// commits, each with a unique sha.
func buildPushPayload(user model.User, fullName string, githubID int64, at time.Time) ([]byte, error) {
	name := fullName[strings.IndexByte(fullName, '/')+1:]

	commits := make([]map[string]any, 1+rand.Intn(3))
	for i := range commits {
		commitAt := at.Add(time.Duration(i) * time.Minute)
		commits[i] = map[string]any{
			"id":        randomSHA(),
			"message":   commitSubjects[rand.Intn(len(commitSubjects))],
			"timestamp": commitAt.Format(time.RFC3339),
			"author":    map[string]any{"name": user.Username, "email": user.Email},
			"added":     []string{},
			"removed":   []string{},
			"modified":  []string{seededFiles[rand.Intn(len(seededFiles))]},
		}
	}

	return json.Marshal(map[string]any{
		"ref": "refs/heads/main",
		"repository": map[string]any{
			"id":             githubID,
			"name":           name,
			"full_name":      fullName,
			"html_url":       "https://github.com/" + fullName,
			"default_branch": "main",
		},
		"pusher":  map[string]any{"name": user.Username, "email": user.Email},
		"commits": commits,
	})
}

// randomSHA fabricates a 40-char hex string from two UUIDs.
func randomSHA() string {
	hex := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	return hex[:40]
}
