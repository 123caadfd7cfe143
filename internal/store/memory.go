package store

import (
	"context"
	"sync"
	"time"

	"github.com/portalize/portal-platform/internal/model"
)

// MemoryStore is an in-memory Store used by tests and local development.
// A single mutex guards every collection; reads return deep copies so
// callers hold snapshots, matching the contract real backends provide.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]*model.SourceDocument
	portals   map[string]*model.Portal
	sessions  map[string]*model.ChatSession
	counters  map[string]*model.PortalCounters
	views     map[string][]model.ViewEvent
	feedback  map[string][]model.FeedbackEvent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]*model.SourceDocument),
		portals:   make(map[string]*model.Portal),
		sessions:  make(map[string]*model.ChatSession),
		counters:  make(map[string]*model.PortalCounters),
		views:     make(map[string][]model.ViewEvent),
		feedback:  make(map[string][]model.FeedbackEvent),
	}
}

// PutDocument stores a source document.
func (m *MemoryStore) PutDocument(ctx context.Context, doc *model.SourceDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	cp.Sections = append([]model.DocumentSection(nil), doc.Sections...)
	m.documents[doc.ID] = &cp
	return nil
}

// GetDocument retrieves a source document by ID.
func (m *MemoryStore) GetDocument(ctx context.Context, id string) (*model.SourceDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	cp.Sections = append([]model.DocumentSection(nil), doc.Sections...)
	return &cp, nil
}

// SetDocumentPortal back-fills portal references onto a source document.
func (m *MemoryStore) SetDocumentPortal(ctx context.Context, docID, portalID, portalURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[docID]
	if !ok {
		return ErrNotFound
	}
	doc.PortalID = portalID
	doc.PortalURL = portalURL
	doc.UpdatedAt = time.Now()
	return nil
}

// CreatePortal stores a new portal.
func (m *MemoryStore) CreatePortal(ctx context.Context, p *model.Portal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.portals[p.ID] = &cp
	return nil
}

// GetPortal retrieves a portal by ID.
func (m *MemoryStore) GetPortal(ctx context.Context, id string) (*model.Portal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.portals[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// UpdatePortalStatus transitions a portal's build status.
func (m *MemoryStore) UpdatePortalStatus(ctx context.Context, id string, status model.PortalStatus, url string, buildErr *model.BuildError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.portals[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	if url != "" {
		p.URL = url
	}
	p.BuildError = buildErr
	p.UpdatedAt = time.Now()
	return nil
}

// CreateSession stores a new chat session.
func (m *MemoryStore) CreateSession(ctx context.Context, s *model.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = copySession(s)
	return nil
}

// GetSession retrieves a chat session by ID.
func (m *MemoryStore) GetSession(ctx context.Context, id string) (*model.ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySession(s), nil
}

// MarkSessionExpired flips a session's status to expired.
func (m *MemoryStore) MarkSessionExpired(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = model.SessionStatusExpired
	return nil
}

// AppendExchange appends a user/assistant message pair atomically.
func (m *MemoryStore) AppendExchange(ctx context.Context, sessionID string, user, ai model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.Messages = append(s.Messages, user, ai)
	s.MessageCount += 2
	last := ai.CreatedAt
	s.LastActivityAt = &last
	return nil
}

// SessionsInRange returns sessions created within [from, to].
func (m *MemoryStore) SessionsInRange(ctx context.Context, portalID string, from, to time.Time) ([]model.ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.ChatSession
	for _, s := range m.sessions {
		if s.PortalID == portalID && InRange(s.CreatedAt, from, to) {
			out = append(out, *copySession(s))
		}
	}
	return out, nil
}

// IncrementCounters atomically adjusts a portal's running counters.
func (m *MemoryStore) IncrementCounters(ctx context.Context, portalID string, delta CounterDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counters[portalID]
	if !ok {
		c = &model.PortalCounters{PortalID: portalID}
		m.counters[portalID] = c
	}
	c.SessionsStarted += delta.SessionsStarted
	c.Messages += delta.Messages
	c.Views += delta.Views
	c.UpdatedAt = time.Now()
	return nil
}

// GetCounters returns a portal's running counters. Missing counters read
// as zero rather than ErrNotFound.
func (m *MemoryStore) GetCounters(ctx context.Context, portalID string) (*model.PortalCounters, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.counters[portalID]
	if !ok {
		return &model.PortalCounters{PortalID: portalID}, nil
	}
	cp := *c
	return &cp, nil
}

// RecordView appends a view event.
func (m *MemoryStore) RecordView(ctx context.Context, v model.ViewEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[v.PortalID] = append(m.views[v.PortalID], v)
	return nil
}

// ViewsInRange returns view events within [from, to].
func (m *MemoryStore) ViewsInRange(ctx context.Context, portalID string, from, to time.Time) ([]model.ViewEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.ViewEvent
	for _, v := range m.views[portalID] {
		if InRange(v.CreatedAt, from, to) {
			out = append(out, v)
		}
	}
	return out, nil
}

// RecordFeedback appends a feedback event.
func (m *MemoryStore) RecordFeedback(ctx context.Context, f model.FeedbackEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback[f.PortalID] = append(m.feedback[f.PortalID], f)
	return nil
}

// FeedbackInRange returns feedback events within [from, to].
func (m *MemoryStore) FeedbackInRange(ctx context.Context, portalID string, from, to time.Time) ([]model.FeedbackEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.FeedbackEvent
	for _, f := range m.feedback[portalID] {
		if InRange(f.CreatedAt, from, to) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// SeedSession replaces a stored session wholesale. Test helper for
// constructing sessions in specific states (expired, near rate limit).
func (m *MemoryStore) SeedSession(s *model.ChatSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = copySession(s)
}

func copySession(s *model.ChatSession) *model.ChatSession {
	cp := *s
	cp.Messages = append([]model.Message(nil), s.Messages...)
	if s.LastActivityAt != nil {
		last := *s.LastActivityAt
		cp.LastActivityAt = &last
	}
	return &cp
}
