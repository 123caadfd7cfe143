// Package store defines the document store contract the core logic
// depends on. Implementations must provide atomic counter increments and
// atomic message-pair appends; the core never relies on in-process locks
// for cross-request correctness.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/portalize/portal-platform/internal/model"
)

var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when an optimistic update loses a race
	// and retries are exhausted.
	ErrConflict = errors.New("store: conflict")
)

// CounterDelta describes an atomic adjustment to a portal's running
// counters. Zero fields are left untouched.
type CounterDelta struct {
	SessionsStarted int64
	Messages        int64
	Views           int64
}

// Store is the abstract document store the platform persists to.
//
// Range queries use inclusive bounds on both ends and return snapshots;
// mutating the returned values never affects stored state.
type Store interface {
	// Source documents
	PutDocument(ctx context.Context, doc *model.SourceDocument) error
	GetDocument(ctx context.Context, id string) (*model.SourceDocument, error)
	SetDocumentPortal(ctx context.Context, docID, portalID, portalURL string) error

	// Portals
	CreatePortal(ctx context.Context, p *model.Portal) error
	GetPortal(ctx context.Context, id string) (*model.Portal, error)
	UpdatePortalStatus(ctx context.Context, id string, status model.PortalStatus, url string, buildErr *model.BuildError) error

	// Chat sessions
	CreateSession(ctx context.Context, s *model.ChatSession) error
	GetSession(ctx context.Context, id string) (*model.ChatSession, error)
	MarkSessionExpired(ctx context.Context, id string) error
	// AppendExchange atomically appends the user and assistant messages
	// (both or neither), bumps the message count by two and stamps the
	// session's last activity time.
	AppendExchange(ctx context.Context, sessionID string, user, ai model.Message) error
	SessionsInRange(ctx context.Context, portalID string, from, to time.Time) ([]model.ChatSession, error)

	// Analytics
	IncrementCounters(ctx context.Context, portalID string, delta CounterDelta) error
	GetCounters(ctx context.Context, portalID string) (*model.PortalCounters, error)
	RecordView(ctx context.Context, v model.ViewEvent) error
	ViewsInRange(ctx context.Context, portalID string, from, to time.Time) ([]model.ViewEvent, error)
	RecordFeedback(ctx context.Context, f model.FeedbackEvent) error
	FeedbackInRange(ctx context.Context, portalID string, from, to time.Time) ([]model.FeedbackEvent, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

// InRange reports whether t falls within [from, to] inclusive.
func InRange(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}
