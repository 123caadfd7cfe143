package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/portalize/portal-platform/internal/middleware"
	"github.com/portalize/portal-platform/internal/model"
	"github.com/portalize/portal-platform/internal/store"
	"github.com/portalize/portal-platform/pkg/logger"
)

// EventHandler records raw visitor events (views, feedback) that feed
// the analytics rollups.
type EventHandler struct {
	store  store.Store
	logger *logger.Logger
}

// NewEventHandler creates an event handler.
func NewEventHandler(st store.Store, log *logger.Logger) *EventHandler {
	return &EventHandler{store: st, logger: log}
}

type viewRequest struct {
	VisitorID string `json:"visitorId,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

type feedbackRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
}

// View handles POST /portal/{portalId}/view
func (h *EventHandler) View(w http.ResponseWriter, r *http.Request) {
	portalID := chi.URLParam(r, "portalId")
	if portalID == "" {
		writeError(w, http.StatusBadRequest, "missing portal ID")
		return
	}
	if !h.portalExists(w, r, portalID) {
		return
	}

	var req viewRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	event := model.ViewEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		PortalID:  portalID,
		VisitorID: req.VisitorID,
		Referrer:  req.Referrer,
		UserAgent: req.UserAgent,
		CreatedAt: time.Now(),
	}
	if err := h.store.RecordView(r.Context(), event); err != nil {
		h.logger.Error("failed to record view", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Running counter is a side effect: log and swallow on failure.
	if err := h.store.IncrementCounters(r.Context(), portalID, store.CounterDelta{Views: 1}); err != nil {
		h.logger.Warn("failed to increment view counter",
			zap.String("portal_id", portalID), zap.Error(err))
	}

	w.WriteHeader(http.StatusNoContent)
}

// Feedback handles POST /portal/{portalId}/feedback
func (h *EventHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	portalID := chi.URLParam(r, "portalId")
	if portalID == "" {
		writeError(w, http.StatusBadRequest, "missing portal ID")
		return
	}
	if !h.portalExists(w, r, portalID) {
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateRating(req.Rating); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event := model.FeedbackEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		PortalID:  portalID,
		SessionID: req.SessionID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: time.Now(),
	}
	if err := h.store.RecordFeedback(r.Context(), event); err != nil {
		h.logger.Error("failed to record feedback", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (h *EventHandler) portalExists(w http.ResponseWriter, r *http.Request, portalID string) bool {
	_, err := h.store.GetPortal(r.Context(), portalID)
	if err == nil {
		return true
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "portal not found")
	} else {
		h.logger.Error("failed to load portal", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
	return false
}
