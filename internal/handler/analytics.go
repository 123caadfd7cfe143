package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/portalize/portal-platform/internal/analytics"
	"github.com/portalize/portal-platform/internal/middleware"
	"github.com/portalize/portal-platform/internal/store"
	"github.com/portalize/portal-platform/pkg/logger"
)

// AnalyticsHandler serves portal owners their rollup reports.
type AnalyticsHandler struct {
	service *analytics.Service
	store   store.Store
	logger  *logger.Logger
	timeout time.Duration
}

// NewAnalyticsHandler creates an analytics handler.
func NewAnalyticsHandler(svc *analytics.Service, st store.Store, log *logger.Logger, timeout time.Duration) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: svc,
		store:   st,
		logger:  log,
		timeout: timeout,
	}
}

// Report handles GET /api/v1/portals/{portalId}/analytics?from=&to=&timeframe=
func (h *AnalyticsHandler) Report(w http.ResponseWriter, r *http.Request) {
	portalID := chi.URLParam(r, "portalId")
	if portalID == "" {
		writeError(w, http.StatusBadRequest, "missing portal ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	portal, err := h.store.GetPortal(ctx, portalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "portal not found")
			return
		}
		h.logger.Error("failed to load portal", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if portal.UserID != middleware.GetUserID(ctx) {
		writeError(w, http.StatusForbidden, "not your portal")
		return
	}

	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.service.Report(ctx, portalID, from, to)
	if err != nil {
		h.logger.Error("failed to compute analytics", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// parseRange reads from/to (date or RFC3339) or a timeframe shorthand
// like 7d/30d/90d. Explicit bounds win over the shorthand.
func parseRange(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time

	if tf := r.URL.Query().Get("timeframe"); tf != "" {
		days := 0
		switch tf {
		case "7d":
			days = 7
		case "30d":
			days = 30
		case "90d":
			days = 90
		default:
			return from, to, errors.New("invalid timeframe, expected 7d, 30d or 90d")
		}
		to = time.Now().UTC()
		from = to.AddDate(0, 0, -days)
	}

	if s := r.URL.Query().Get("from"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			return from, to, errors.New("invalid from date")
		}
		from = t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			return from, to, errors.New("invalid to date")
		}
		to = t
	}

	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, errors.New("to must not be before from")
	}
	return from, to, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
