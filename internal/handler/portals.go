package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/portalize/portal-platform/internal/middleware"
	"github.com/portalize/portal-platform/internal/model"
	"github.com/portalize/portal-platform/internal/portal"
	"github.com/portalize/portal-platform/pkg/logger"
)

// PortalHandler handles owner portal management endpoints.
type PortalHandler struct {
	orchestrator *portal.Orchestrator
	logger       *logger.Logger
	timeout      time.Duration
}

// NewPortalHandler creates a portal handler.
func NewPortalHandler(orch *portal.Orchestrator, log *logger.Logger, timeout time.Duration) *PortalHandler {
	return &PortalHandler{
		orchestrator: orch,
		logger:       log,
		timeout:      timeout,
	}
}

type createPortalRequest struct {
	DocumentID string             `json:"documentId"`
	Config     model.PortalConfig `json:"config"`
}

// Create handles POST /api/v1/portals
func (h *PortalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPortalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateDocumentID(req.DocumentID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.orchestrator.Generate(ctx, middleware.GetUserID(ctx), req.DocumentID, req.Config)
	if err != nil {
		switch {
		case errors.Is(err, portal.ErrDocumentNotFound):
			writeError(w, http.StatusNotFound, "document not found")
		case errors.Is(err, portal.ErrNotOwner):
			writeError(w, http.StatusForbidden, "not your document")
		default:
			h.logger.Error("failed to create portal", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, p)
}

// Get handles GET /api/v1/portals/{portalId}
func (h *PortalHandler) Get(w http.ResponseWriter, r *http.Request) {
	portalID := chi.URLParam(r, "portalId")
	if err := middleware.ValidatePortalID(portalID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.orchestrator.Status(r.Context(), middleware.GetUserID(r.Context()), portalID)
	if err != nil {
		switch {
		case errors.Is(err, portal.ErrPortalNotFound):
			writeError(w, http.StatusNotFound, "portal not found")
		case errors.Is(err, portal.ErrNotOwner):
			writeError(w, http.StatusForbidden, "not your portal")
		default:
			h.logger.Error("failed to get portal", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, p)
}
