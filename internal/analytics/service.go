package analytics

import (
	"context"
	"time"

	"github.com/portalize/portal-platform/internal/model"
	"github.com/portalize/portal-platform/internal/store"
	"github.com/portalize/portal-platform/pkg/logger"
	"github.com/portalize/portal-platform/pkg/metrics"
)

// defaultWindow is the trailing range used when the caller gives none.
const defaultWindow = 30 * 24 * time.Hour

// Service fetches raw event snapshots and computes the full report.
type Service struct {
	store  store.Store
	logger *logger.Logger
}

// NewService creates an analytics service.
func NewService(st store.Store, log *logger.Logger) *Service {
	return &Service{store: st, logger: log}
}

// Report computes the rollup for one portal over [from, to]. Zero
// bounds default to the trailing 30 days. Reads are snapshots; nothing
// is written back.
func (s *Service) Report(ctx context.Context, portalID string, from, to time.Time) (*model.AnalyticsReport, error) {
	start := time.Now()
	defer func() {
		metrics.AnalyticsQueryDuration.Observe(time.Since(start).Seconds())
	}()

	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-defaultWindow)
	}

	views, err := s.store.ViewsInRange(ctx, portalID, from, to)
	if err != nil {
		return nil, err
	}
	sessions, err := s.store.SessionsInRange(ctx, portalID, from, to)
	if err != nil {
		return nil, err
	}
	feedback, err := s.store.FeedbackInRange(ctx, portalID, from, to)
	if err != nil {
		return nil, err
	}

	in := Inputs{Views: views, Sessions: sessions, Feedback: feedback}

	return &model.AnalyticsReport{
		Overview:   Overview(in),
		Engagement: Engagement(sessions),
		Timeline:   Timeline(in, from, to),
		Feedback:   FeedbackSummary(feedback),
		// Surfaced for API shape compatibility; population is out of
		// scope for this service.
		Geographic:  map[string]int{},
		Technology:  map[string]int{},
		Performance: map[string]any{},
		DateRange:   model.DateRange{From: from, To: to},
	}, nil
}
