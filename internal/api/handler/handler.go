// Package handler provides HTTP handlers for the webhook endpoint, health
// checks, and the read-only diagnostic endpoints.
package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fiveaside/matchpulse/internal/api/respond"
	"github.com/fiveaside/matchpulse/internal/db"
	"github.com/fiveaside/matchpulse/internal/fixture"
	"github.com/fiveaside/matchpulse/internal/livematch"
	"github.com/fiveaside/matchpulse/internal/match"
	"github.com/fiveaside/matchpulse/internal/notify"
	"github.com/fiveaside/matchpulse/internal/round"
	"github.com/fiveaside/matchpulse/internal/webhook"
)

// maxWebhookBody bounds the webhook request body; live-score rows are small.
const maxWebhookBody = 1 << 20 // 1 MiB

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	pool      *db.Pool
	processor *livematch.Processor
	states    notify.StateStore
	fixtures  *fixture.Resolver
	rounds    round.Store
	logger    *slog.Logger
}

// New creates a Handler with shared dependencies.
func New(pool *db.Pool, processor *livematch.Processor, states notify.StateStore, fixtures *fixture.Resolver, rounds round.Store, logger *slog.Logger) *Handler {
	return &Handler{
		pool:      pool,
		processor: processor,
		states:    states,
		fixtures:  fixtures,
		rounds:    rounds,
		logger:    logger,
	}
}

// Root serves API info at /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "matchpulse",
		"status":  "running",
		"webhook": "/webhooks/live-scores",
	})
}

// HealthCheck returns basic health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.HealthCheck(r.Context()); err != nil {
		respond.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "unhealthy",
			"database": "disconnected",
		})
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"database": "connected",
	})
}

// LiveScoreWebhook handles one change-notification delivery. Delivery is
// at-least-once and possibly concurrent; all outcomes that must not be
// retried answer 200, while 500 signals the sender to redeliver (safe —
// no idempotency claim was committed at those failure points).
func (h *Handler) LiveScoreWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "failed to read body")
		return
	}

	report, err := h.processor.Process(r.Context(), body)
	if errors.Is(err, webhook.ErrIgnored) {
		respond.WriteJSON(w, http.StatusOK, map[string]string{"message": "ignored payload"})
		return
	}
	if err != nil {
		h.logger.Error("Webhook processing failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "PROCESSING_FAILED", err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, report)
}

// GetNotificationState returns the persisted idempotency row for a match.
func (h *Handler) GetNotificationState(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	st, err := h.states.Get(r.Context(), matchID)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "STATE_LOOKUP_FAILED", err.Error())
		return
	}
	if st == nil {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "no notification state for match")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"match_id":    st.MatchID,
		"home_score":  st.HomeScore,
		"away_score":  st.AwayScore,
		"status":      st.Status,
		"signature":   st.Signature,
		"goals":       st.Goals,
		"notified_at": st.NotifiedAt.UTC().Format(time.RFC3339),
	})
}

// GetRoundStatus reports how many of a round's fixtures have finished.
// Accepts ?source=main|test|casual, defaulting to main.
func (h *Handler) GetRoundStatus(w http.ResponseWriter, r *http.Request) {
	roundNumber, err := strconv.Atoi(chi.URLParam(r, "round"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "round must be an integer")
		return
	}
	src, ok := sourceFromQuery(r.URL.Query().Get("source"))
	if !ok {
		respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown fixture source")
		return
	}

	fixtures, err := h.fixtures.ByRound(r.Context(), src, roundNumber)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ROUND_LOOKUP_FAILED", err.Error())
		return
	}

	finished := 0
	if len(fixtures) > 0 {
		ids := make([]string, 0, len(fixtures))
		for _, fx := range fixtures {
			ids = append(ids, fx.MatchID)
		}
		statuses, err := h.rounds.StatusForMatches(r.Context(), ids)
		if err != nil {
			respond.WriteError(w, http.StatusInternalServerError, "ROUND_LOOKUP_FAILED", err.Error())
			return
		}
		for _, fx := range fixtures {
			if st, ok := statuses[fx.MatchID]; ok && match.IsFinished(st.Status) {
				finished++
			}
		}
	}

	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"round":        roundNumber,
		"source":       src.Name,
		"total":        len(fixtures),
		"finished":     finished,
		"all_finished": len(fixtures) > 0 && finished == len(fixtures),
	})
}

func sourceFromQuery(name string) (fixture.Source, bool) {
	if name == "" {
		return fixture.Sources[0], true
	}
	for _, src := range fixture.Sources {
		if src.Name == name {
			return src, true
		}
	}
	return fixture.Source{}, false
}
