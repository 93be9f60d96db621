// Package server exposes the match store and processing pool over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/allanai/rallymetrics/internal/ingest"
	"github.com/allanai/rallymetrics/internal/jobs"
	"github.com/allanai/rallymetrics/internal/logging"
	"github.com/allanai/rallymetrics/internal/metrics"
	"github.com/allanai/rallymetrics/internal/model"
	"github.com/allanai/rallymetrics/internal/storage"
)

// Handler serves the HTTP API.
type Handler struct {
	store   *storage.DB
	pool    *jobs.Pool
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New wires the handler. log may be nil.
func New(store *storage.DB, pool *jobs.Pool, log *slog.Logger, m *metrics.Metrics) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{store: store, pool: pool, log: log, metrics: m}
}

// Router builds the chi router with logging and metrics middleware.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(logging.RequestLogger(h.log))
	r.Use(h.countRequests)

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/matches", func(r chi.Router) {
		r.Get("/", h.listMatches)
		r.Route("/{matchID}", func(r chi.Router) {
			r.Post("/process", h.processMatch)
			r.Get("/", h.getMatch)
			r.Get("/status", h.getStatus)
			r.Get("/statistics", h.getStatistics)
			r.Get("/highlights", h.getHighlights)
			r.Get("/events", h.getEvents)
			r.Get("/momentum", h.getMomentum)
			r.Delete("/", h.deleteMatch)
		})
	})
	return r
}

func (h *Handler) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.metrics.IncHTTP(r.Method, strconv.Itoa(rw.status))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) processMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")

	doc, err := ingest.Parse(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	err = h.pool.Submit(jobs.Job{MatchID: matchID, Doc: doc})
	switch {
	case errors.Is(err, jobs.ErrInFlight):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{
			"matchId": matchID,
			"status":  model.StatusProcessing.String(),
		})
	}
}

func (h *Handler) listMatches(w http.ResponseWriter, r *http.Request) {
	filter := storage.ListFilter{
		Status: r.URL.Query().Get("status"),
		Source: r.URL.Query().Get("source"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		filter.Limit = n
	}

	matches, err := h.store.ListMatches(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	type row struct {
		MatchID      string `json:"matchId"`
		Status       string `json:"status"`
		Source       string `json:"source"`
		ProcessedAt  string `json:"processedAt"`
		Player1Score int    `json:"player1Score"`
		Player2Score int    `json:"player2Score"`
		TotalRallies int    `json:"totalRallies"`
	}
	out := make([]row, 0, len(matches))
	for _, m := range matches {
		out = append(out, row{
			MatchID: m.MatchID, Status: m.Status.String(), Source: m.Source,
			ProcessedAt: m.ProcessedAt, Player1Score: m.Player1Score,
			Player2Score: m.Player2Score, TotalRallies: m.TotalRallies,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) document(w http.ResponseWriter, r *http.Request) *model.MatchDocument {
	matchID := chi.URLParam(r, "matchID")
	doc, err := h.store.GetDocument(matchID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, errors.New("no processed document for match "+matchID))
		return nil
	}
	return doc
}

func (h *Handler) getMatch(w http.ResponseWriter, r *http.Request) {
	if doc := h.document(w, r); doc != nil {
		writeJSON(w, http.StatusOK, doc)
	}
}

func (h *Handler) getStatistics(w http.ResponseWriter, r *http.Request) {
	if doc := h.document(w, r); doc != nil {
		writeJSON(w, http.StatusOK, doc.Statistics)
	}
}

func (h *Handler) getHighlights(w http.ResponseWriter, r *http.Request) {
	if doc := h.document(w, r); doc != nil {
		writeJSON(w, http.StatusOK, doc.Highlights)
	}
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	s, err := h.store.GetSummary(matchID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if s == nil {
		writeError(w, http.StatusNotFound, errors.New("unknown match "+matchID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"matchId":       s.MatchID,
		"status":        s.Status.String(),
		"processing":    h.pool.InFlight(matchID),
		"failureReason": s.FailureReason,
	})
}

func (h *Handler) getEvents(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	minImportance := 0
	if raw := r.URL.Query().Get("min_importance"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("min_importance must be a non-negative integer"))
			return
		}
		minImportance = n
	}
	rows, err := h.store.ListEvents(matchID, minImportance)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) getMomentum(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	samples, err := h.store.GetMomentum(matchID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

func (h *Handler) deleteMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	exists, err := h.store.Exists(matchID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, errors.New("unknown match "+matchID))
		return
	}
	if err := h.store.Delete(matchID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
