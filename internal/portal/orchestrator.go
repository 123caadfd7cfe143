// Package portal drives the asynchronous portal build state machine:
// queued → processing → {completed | failed}, terminal at either end.
package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/portalize/portal-platform/internal/model"
	"github.com/portalize/portal-platform/internal/store"
	"github.com/portalize/portal-platform/pkg/logger"
	"github.com/portalize/portal-platform/pkg/metrics"
)

var (
	ErrDocumentNotFound = errors.New("portal: document not found")
	ErrPortalNotFound   = errors.New("portal: not found")
	ErrNotOwner         = errors.New("portal: not owned by user")
)

// BuildResult is what a successful external build produces.
type BuildResult struct {
	URL string
}

// Builder generates the portal site itself. It is an external
// collaborator; this package only tracks its outcome.
type Builder interface {
	Build(ctx context.Context, p *model.Portal, doc *model.SourceDocument) (*BuildResult, error)
}

// JobQueue decouples build requests from build execution.
type JobQueue interface {
	Publish(ctx context.Context, job BuildJob) error
}

// Orchestrator owns portal build lifecycle transitions. It performs no
// automatic retries: a failed build stays failed with its error record,
// and retrying is a caller decision.
type Orchestrator struct {
	store        store.Store
	queue        JobQueue
	builder      Builder
	logger       *logger.Logger
	buildTimeout time.Duration
}

// NewOrchestrator creates a portal orchestrator.
func NewOrchestrator(st store.Store, queue JobQueue, builder Builder, log *logger.Logger, buildTimeout time.Duration) *Orchestrator {
	if buildTimeout <= 0 {
		buildTimeout = 60 * time.Second
	}
	return &Orchestrator{
		store:        st,
		queue:        queue,
		builder:      builder,
		logger:       log,
		buildTimeout: buildTimeout,
	}
}

// Generate creates a portal for the user's document and enqueues its
// build. The portal is persisted as queued, flipped to processing
// immediately, and returned; the build itself runs asynchronously.
func (o *Orchestrator) Generate(ctx context.Context, userID, documentID string, cfg model.PortalConfig) (*model.Portal, error) {
	doc, err := o.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	if doc.UserID != userID {
		return nil, ErrNotOwner
	}

	now := time.Now()
	p := &model.Portal{
		ID:         uuid.Must(uuid.NewV7()).String(),
		UserID:     userID,
		DocumentID: documentID,
		Status:     model.PortalStatusQueued,
		Config:     cfg,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.store.CreatePortal(ctx, p); err != nil {
		return nil, err
	}

	if err := o.store.UpdatePortalStatus(ctx, p.ID, model.PortalStatusProcessing, "", nil); err != nil {
		return nil, err
	}
	p.Status = model.PortalStatusProcessing

	job := BuildJob{PortalID: p.ID, DocumentID: documentID, EnqueuedAt: now}
	if err := o.queue.Publish(ctx, job); err != nil {
		o.fail(ctx, p.ID, documentID, "ENQUEUE_FAILED", err)
		return nil, fmt.Errorf("failed to enqueue build: %w", err)
	}

	o.logger.Info("portal build enqueued",
		zap.String("portal_id", p.ID),
		zap.String("document_id", documentID),
	)
	return p, nil
}

// Status returns a portal after verifying ownership.
func (o *Orchestrator) Status(ctx context.Context, userID, portalID string) (*model.Portal, error) {
	p, err := o.store.GetPortal(ctx, portalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPortalNotFound
		}
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrNotOwner
	}
	return p, nil
}

// Run consumes build jobs until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, queue *Queue) error {
	return queue.Consume(ctx, o.ProcessJob)
}

// ProcessJob executes one build job and applies its completion through
// the store's atomic update contract. Exported so tests can drive jobs
// without a broker.
func (o *Orchestrator) ProcessJob(ctx context.Context, job BuildJob) {
	p, err := o.store.GetPortal(ctx, job.PortalID)
	if err != nil {
		o.logger.Error("build job for unknown portal",
			zap.String("portal_id", job.PortalID), zap.Error(err))
		return
	}
	// Terminal portals are immutable; a redelivered job must not
	// overwrite their outcome.
	if p.Status.Terminal() {
		return
	}

	doc, err := o.store.GetDocument(ctx, job.DocumentID)
	if err != nil {
		o.fail(ctx, job.PortalID, job.DocumentID, "DOCUMENT_MISSING", err)
		return
	}

	buildCtx, cancel := context.WithTimeout(ctx, o.buildTimeout)
	defer cancel()

	result, err := o.builder.Build(buildCtx, p, doc)
	if err != nil {
		o.fail(ctx, job.PortalID, job.DocumentID, "BUILD_FAILED", err)
		return
	}

	if err := o.store.UpdatePortalStatus(ctx, job.PortalID, model.PortalStatusCompleted, result.URL, nil); err != nil {
		o.logger.Error("failed to mark portal completed",
			zap.String("portal_id", job.PortalID), zap.Error(err))
		return
	}
	if err := o.store.SetDocumentPortal(ctx, job.DocumentID, job.PortalID, result.URL); err != nil {
		o.logger.Warn("failed to back-fill portal URL onto document",
			zap.String("document_id", job.DocumentID), zap.Error(err))
	}

	metrics.PortalBuildsTotal.WithLabelValues("completed").Inc()
	o.logger.Info("portal build completed",
		zap.String("portal_id", job.PortalID),
		zap.String("url", result.URL),
	)
}

// fail persists the build error verbatim and marks the portal failed.
func (o *Orchestrator) fail(ctx context.Context, portalID, documentID, code string, cause error) {
	buildErr := &model.BuildError{
		Code:       code,
		Message:    cause.Error(),
		PortalID:   portalID,
		DocumentID: documentID,
		OccurredAt: time.Now(),
	}
	if err := o.store.UpdatePortalStatus(ctx, portalID, model.PortalStatusFailed, "", buildErr); err != nil {
		o.logger.Error("failed to mark portal failed",
			zap.String("portal_id", portalID), zap.Error(err))
		return
	}
	metrics.PortalBuildsTotal.WithLabelValues("failed").Inc()
	o.logger.Warn("portal build failed",
		zap.String("portal_id", portalID),
		zap.String("code", code),
		zap.Error(cause),
	)
}
