// internal/ai/narrative.go
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/KhlifiIsmail/devlog-backend/internal/model"
)

// ErrNotConfigured is returned when narrative generation is requested but
// no API key is set. Core processing never depends on this client.
var ErrNotConfigured = errors.New("ai: narrative service not configured")

const systemPrompt = `You are a developer productivity assistant. Given a summary of a coding
session (its commits, files and languages), write a short narrative of what
the developer accomplished. Two or three sentences, plain prose, no lists.`

// Client calls an OpenAI-compatible chat-completions endpoint to generate
// session narratives.
type Client struct {
	baseURL    string
	apiKey     string
	chatModel  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a narrative client. An empty apiKey produces a client
// whose calls fail with ErrNotConfigured.
func NewClient(baseURL, apiKey, chatModel string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		chatModel:  chatModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// GenerateSessionNarrative produces a prose summary for a session from its
// member commits. Transient upstream failures are retried briefly.
func (c *Client) GenerateSessionNarrative(ctx context.Context, s model.CodingSession, commits []model.Commit) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: formatSessionPrompt(s, commits)},
		},
		Temperature: 0.7,
		MaxTokens:   300,
	})
	if err != nil {
		return "", err
	}

	var narrative string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("ai: upstream returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("ai: upstream returned %d", resp.StatusCode))
		}

		var parsed chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return backoff.Permanent(err)
		}
		if len(parsed.Choices) == 0 {
			return backoff.Permanent(errors.New("ai: empty completion response"))
		}
		narrative = strings.TrimSpace(parsed.Choices[0].Message.Content)
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}

	c.logger.Info("Generated session narrative", "session_id", s.ID)
	return narrative, nil
}

func formatSessionPrompt(s model.CodingSession, commits []model.Commit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session from %s to %s (%d minutes, %d commits",
		s.StartedAt.Format(time.RFC3339), s.EndedAt.Format(time.RFC3339),
		s.DurationMinutes, s.TotalCommits)
	if s.PrimaryLanguage != "" {
		fmt.Fprintf(&b, ", mostly %s", s.PrimaryLanguage)
	}
	b.WriteString(").\nCommits:\n")
	for _, c := range commits {
		msg := c.Message
		if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
			msg = msg[:idx]
		}
		fmt.Fprintf(&b, "- %s (%d files)\n", msg, c.ChangedFiles)
	}
	return b.String()
}
