package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tanyalayanan/ragcore/corpus"
	"github.com/tanyalayanan/ragcore/pipeline"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type queryRequest struct {
	Question string `json:"question" validate:"required,min=1,max=2000"`
	TopK     int    `json:"top_k" validate:"omitempty,min=1,max=20"`
}

type usageEntry struct {
	TierID         string `json:"tier_id"`
	WindowRequests int    `json:"window_requests"`
	DayRequests    int    `json:"day_requests"`
	DayTokens      int    `json:"day_tokens"`
	DayResetAt     string `json:"day_reset_at"`
}

type reloadResponse struct {
	Chunks int `json:"chunks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"chunks": s.store.Snapshot().Len(),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			respondError(w, http.StatusBadRequest, "invalid_request", "field "+verrs[0].Field()+" failed validation "+verrs[0].Tag())
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	resp, err := s.pipe.Ask(r.Context(), pipeline.Request{Question: req.Question, TopK: req.TopK})
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			respondError(w, http.StatusGatewayTimeout, "timeout", "permintaan melebihi batas waktu, silakan coba lagi")
		case pipeline.IsUnavailable(err):
			respondError(w, http.StatusServiceUnavailable, "generation_unavailable",
				"Mohon maaf, layanan sedang sibuk. Silakan coba beberapa saat lagi.")
		default:
			s.logger.Error("query failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "internal_error", "terjadi kesalahan internal")
		}
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	tiers := s.orch.Tiers()
	out := make([]usageEntry, 0, len(tiers))
	for _, t := range tiers {
		if t.Counter == nil {
			out = append(out, usageEntry{TierID: t.ID})
			continue
		}
		u, err := t.Counter.Usage(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "usage_unavailable", err.Error())
			return
		}
		out = append(out, usageEntry{
			TierID:         t.ID,
			WindowRequests: u.WindowRequests,
			DayRequests:    u.DayRequests,
			DayTokens:      u.DayTokens,
			DayResetAt:     u.DayResetAt.Format(time.RFC3339),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"tiers": out})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := corpus.LoadFile(s.corpusPath)
	if err != nil {
		s.logger.Error("corpus reload failed", zap.String("path", s.corpusPath), zap.Error(err))
		respondError(w, http.StatusUnprocessableEntity, "reload_failed", err.Error())
		return
	}
	s.store.Replace(snap)
	s.logger.Info("corpus reloaded", zap.Int("chunks", snap.Len()))
	respondJSON(w, http.StatusOK, reloadResponse{Chunks: snap.Len()})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: code, Message: message})
}
