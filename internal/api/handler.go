// internal/api/handler.go
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KhlifiIsmail/devlog-backend/internal/ai"
	"github.com/KhlifiIsmail/devlog-backend/internal/database"
	apperrors "github.com/KhlifiIsmail/devlog-backend/internal/errors"
	"github.com/KhlifiIsmail/devlog-backend/internal/model"
	"github.com/KhlifiIsmail/devlog-backend/internal/resync"
	"github.com/KhlifiIsmail/devlog-backend/internal/session"
	"github.com/KhlifiIsmail/devlog-backend/internal/signature"
)

const maxWebhookBody = 1 << 20 // GitHub caps payloads at 25 MB; pushes are far smaller.

// Deps is the container for API dependencies.
type Deps struct {
	DB            database.Querier
	Pool          *pgxpool.Pool
	Grouper       *session.Grouper
	Syncer        *resync.Syncer
	Narrator      *ai.Client
	WebhookSecret string
	Logger        *slog.Logger
}

// Handler serves the HTTP API.
type Handler struct {
	deps Deps
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(deps Deps) http.Handler {
	h := &Handler{deps: deps}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.healthCheck)
	r.Route("/api/v1", func(r chi.Router) {
		// Webhooks authenticate by signature, not by user.
		r.Post("/webhooks/github", h.receiveGitHubWebhook)
		r.Get("/webhooks/events", h.listWebhookEvents)
		r.Get("/webhooks/events/{id}", h.getWebhookEvent)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Get("/repos", h.listRepositories)
			r.Post("/repos/sync", h.syncRepositories)
			r.Post("/repos/{id}/toggle-tracking", h.toggleRepositoryTracking)
			r.Post("/repos/{id}/backfill-stats", h.backfillRepositoryStats)

			r.Get("/commits", h.listCommits)
			r.Get("/commits/{id}", h.getCommit)

			r.Get("/sessions", h.listSessions)
			r.Get("/sessions/{id}", h.getSession)
			r.Post("/sessions/group", h.groupSessions)
			r.Post("/sessions/{id}/generate-narrative", h.generateSessionNarrative)
		})
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// receiveGitHubWebhook handles inbound GitHub webhook deliveries.
// POST /api/v1/webhooks/github
//
// Required headers: X-GitHub-Event, X-Hub-Signature-256 (sha256=<hex>),
// X-GitHub-Delivery (idempotency key). The request is answered as soon as
// the event is durably recorded; processing happens on the dispatcher.
func (h *Handler) receiveGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	eventHeader := r.Header.Get("X-GitHub-Event")
	sigHeader := r.Header.Get("X-Hub-Signature-256")
	deliveryID := r.Header.Get("X-GitHub-Delivery")
	logger := h.deps.Logger.With("event", eventHeader, "delivery_id", deliveryID)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Unreadable request body")
		return
	}

	if !signature.Verify(body, sigHeader, h.deps.WebhookSecret) {
		logger.Warn("Invalid webhook signature")
		respondWithError(w, http.StatusForbidden, "Invalid signature")
		return
	}

	if !json.Valid(body) {
		logger.Error("Invalid JSON payload")
		respondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if eventHeader == model.EventTypePing {
		logger.Info("Ping event received")
		respondWithJSON(w, http.StatusOK, map[string]string{"message": "pong"})
		return
	}

	if deliveryID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing X-GitHub-Delivery header")
		return
	}

	eventType := extractEventType(eventHeader)
	// Non-push events are recorded for the audit trail but never processed.
	// Inserting them already completed keeps dispatcher workers from
	// claiming them in the window a second status update would leave open.
	status := ""
	if eventType != model.EventTypePush {
		status = model.EventStatusCompleted
	}
	event, err := h.deps.DB.CreateWebhookEvent(r.Context(), database.CreateWebhookEventParams{
		EventType:          eventType,
		RepositoryFullName: extractRepositoryFullName(body),
		DeliveryID:         deliveryID,
		Payload:            body,
		Status:             status,
	})
	if err != nil {
		var dup *apperrors.DuplicateDeliveryError
		if errors.As(err, &dup) {
			// Same delivery seen twice: acknowledge the original record
			// and do not process again.
			existing, lookupErr := h.deps.DB.GetWebhookEventByDeliveryID(r.Context(), deliveryID)
			if lookupErr != nil {
				h.deps.Logger.Error("Failed to load duplicate delivery", "error", lookupErr)
				respondWithError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			logger.Info("Duplicate delivery acknowledged", "event_id", existing.ID)
			respondWithJSON(w, http.StatusAccepted, map[string]any{"status": "received", "event_id": existing.ID})
			return
		}
		logger.Error("Failed to record webhook event", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	logger.Info("Created webhook event", "event_id", event.ID)
	respondWithJSON(w, http.StatusAccepted, map[string]any{"status": "received", "event_id": event.ID})
}

// listWebhookEvents returns recent webhook events for debugging.
// GET /api/v1/webhooks/events
func (h *Handler) listWebhookEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.deps.DB.ListWebhookEvents(r.Context(), 50)
	if err != nil {
		h.deps.Logger.Error("Failed to list webhook events", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if events == nil {
		events = []model.WebhookEvent{}
	}
	respondWithJSON(w, http.StatusOK, events)
}

// getWebhookEvent returns one webhook event.
// GET /api/v1/webhooks/events/{id}
func (h *Handler) getWebhookEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid event id")
		return
	}
	event, err := h.deps.DB.GetWebhookEvent(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Webhook event not found")
			return
		}
		h.deps.Logger.Error("Failed to get webhook event", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, event)
}

// listRepositories lists the caller's repositories.
// GET /api/v1/repos
func (h *Handler) listRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := h.deps.DB.ListRepositoriesByUser(r.Context(), currentUserID(r))
	if err != nil {
		h.deps.Logger.Error("Failed to list repositories", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if repos == nil {
		repos = []model.Repository{}
	}
	respondWithJSON(w, http.StatusOK, repos)
}

// syncRepositories refreshes the caller's repositories from GitHub.
// POST /api/v1/repos/sync
func (h *Handler) syncRepositories(w http.ResponseWriter, r *http.Request) {
	if h.deps.Syncer == nil {
		respondWithError(w, http.StatusServiceUnavailable, "GitHub sync is not configured")
		return
	}
	synced, err := h.deps.Syncer.SyncUser(r.Context(), currentUserID(r))
	if err != nil {
		h.deps.Logger.Error("Repository sync failed", "error", err)
		respondWithError(w, http.StatusBadGateway, "Repository sync failed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"synced": synced})
}

// toggleRepositoryTracking flips commit tracking for one repository.
// POST /api/v1/repos/{id}/toggle-tracking
func (h *Handler) toggleRepositoryTracking(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.ownedRepository(w, r)
	if !ok {
		return
	}
	updated, err := h.deps.DB.SetRepositoryTracking(r.Context(), database.SetRepositoryTrackingParams{
		ID:      repo.ID,
		Enabled: !repo.IsTrackingEnabled,
	})
	if err != nil {
		h.deps.Logger.Error("Failed to toggle tracking", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// backfillRepositoryStats fills in commit line stats from the GitHub API.
// POST /api/v1/repos/{id}/backfill-stats
func (h *Handler) backfillRepositoryStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Syncer == nil {
		respondWithError(w, http.StatusServiceUnavailable, "GitHub sync is not configured")
		return
	}
	repo, ok := h.ownedRepository(w, r)
	if !ok {
		return
	}
	updated, err := h.deps.Syncer.BackfillCommitStats(r.Context(), repo.ID)
	if err != nil {
		h.deps.Logger.Error("Commit stats backfill failed", "error", err)
		respondWithError(w, http.StatusBadGateway, "Commit stats backfill failed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

// listCommits lists commits for one of the caller's repositories.
// GET /api/v1/commits?repository_id=N
func (h *Handler) listCommits(w http.ResponseWriter, r *http.Request) {
	repoID, err := strconv.ParseInt(r.URL.Query().Get("repository_id"), 10, 64)
	if err != nil || repoID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid 'repository_id' parameter")
		return
	}
	repo, err := h.deps.DB.GetRepository(r.Context(), repoID)
	if err != nil || repo.UserID != currentUserID(r) {
		respondWithError(w, http.StatusNotFound, "Repository not found")
		return
	}
	commits, err := h.deps.DB.ListCommitsByRepository(r.Context(), repo.ID)
	if err != nil {
		h.deps.Logger.Error("Failed to list commits", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if commits == nil {
		commits = []model.Commit{}
	}
	respondWithJSON(w, http.StatusOK, commits)
}

// getCommit returns one commit.
// GET /api/v1/commits/{id}
func (h *Handler) getCommit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid commit id")
		return
	}
	commit, err := h.deps.DB.GetCommit(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Commit not found")
			return
		}
		h.deps.Logger.Error("Failed to get commit", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	repo, err := h.deps.DB.GetRepository(r.Context(), commit.RepositoryID)
	if err != nil || repo.UserID != currentUserID(r) {
		respondWithError(w, http.StatusNotFound, "Commit not found")
		return
	}
	respondWithJSON(w, http.StatusOK, commit)
}

// listSessions lists the caller's coding sessions, most recent first.
// GET /api/v1/sessions?limit=N
func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	limit := int32(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 200.")
			return
		}
		limit = int32(parsed)
	}
	sessions, err := h.deps.DB.ListCodingSessionsByUser(r.Context(), database.ListCodingSessionsByUserParams{
		UserID: currentUserID(r),
		Limit:  limit,
	})
	if err != nil {
		h.deps.Logger.Error("Failed to list sessions", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if sessions == nil {
		sessions = []model.CodingSession{}
	}
	respondWithJSON(w, http.StatusOK, sessions)
}

// getSession returns one session with its member commits.
// GET /api/v1/sessions/{id}
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	commits, err := h.deps.DB.ListCommitsBySession(r.Context(), s.ID)
	if err != nil {
		h.deps.Logger.Error("Failed to list session commits", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if commits == nil {
		commits = []model.Commit{}
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"session": s, "commits": commits})
}

// groupSessions groups all of the caller's session-less commits.
// POST /api/v1/sessions/group
func (h *Handler) groupSessions(w http.ResponseWriter, r *http.Request) {
	tx, err := h.deps.Pool.Begin(r.Context())
	if err != nil {
		h.deps.Logger.Error("Failed to begin grouping transaction", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer tx.Rollback(r.Context())

	created, err := h.deps.Grouper.GroupUserCommits(r.Context(), database.New(tx), currentUserID(r))
	if err == nil {
		err = tx.Commit(r.Context())
	}
	if err != nil {
		h.deps.Logger.Error("Session grouping failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"sessions_created": created})
}

// generateSessionNarrative generates (or returns the cached) AI narrative
// for a session.
// POST /api/v1/sessions/{id}/generate-narrative
func (h *Handler) generateSessionNarrative(w http.ResponseWriter, r *http.Request) {
	if h.deps.Narrator == nil || !h.deps.Narrator.Configured() {
		respondWithError(w, http.StatusServiceUnavailable, "Narrative generation is not configured")
		return
	}
	s, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	if s.AISummary != nil && r.URL.Query().Get("force") != "true" {
		respondWithJSON(w, http.StatusOK, map[string]any{"narrative": *s.AISummary, "cached": true})
		return
	}

	commits, err := h.deps.DB.ListCommitsBySession(r.Context(), s.ID)
	if err != nil {
		h.deps.Logger.Error("Failed to list session commits", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	narrative, err := h.deps.Narrator.GenerateSessionNarrative(r.Context(), s, commits)
	if err != nil {
		h.deps.Logger.Error("Narrative generation failed", "session_id", s.ID, "error", err)
		respondWithError(w, http.StatusBadGateway, "Narrative generation failed")
		return
	}
	if err := h.deps.DB.SetCodingSessionSummary(r.Context(), database.SetCodingSessionSummaryParams{
		ID:      s.ID,
		Summary: narrative,
	}); err != nil {
		h.deps.Logger.Error("Failed to store narrative", "session_id", s.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"narrative": narrative, "cached": false})
}

func (h *Handler) ownedRepository(w http.ResponseWriter, r *http.Request) (model.Repository, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repository id")
		return model.Repository{}, false
	}
	repo, err := h.deps.DB.GetRepository(r.Context(), id)
	if err != nil || repo.UserID != currentUserID(r) {
		respondWithError(w, http.StatusNotFound, "Repository not found")
		return model.Repository{}, false
	}
	return repo, true
}

func (h *Handler) ownedSession(w http.ResponseWriter, r *http.Request) (model.CodingSession, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid session id")
		return model.CodingSession{}, false
	}
	s, err := h.deps.DB.GetCodingSession(r.Context(), id)
	if err != nil || s.UserID != currentUserID(r) {
		respondWithError(w, http.StatusNotFound, "Session not found")
		return model.CodingSession{}, false
	}
	return s, true
}

// extractEventType maps the GitHub event header to our stored event types.
func extractEventType(header string) string {
	switch header {
	case model.EventTypePush, model.EventTypePullRequest, model.EventTypePing:
		return header
	default:
		return model.EventTypeOther
	}
}

// extractRepositoryFullName pulls repository.full_name out of the raw body
// for indexing; processing re-parses the payload properly later.
func extractRepositoryFullName(body []byte) string {
	var envelope struct {
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Repository.FullName == "" {
		return "unknown"
	}
	return envelope.Repository.FullName
}
