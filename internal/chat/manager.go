// Package chat owns the chat session lifecycle: creation against a
// completed portal, absolute expiry, the per-session sliding rate-limit
// window and the atomic user/assistant exchange append.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/portalize/portal-platform/internal/generate"
	"github.com/portalize/portal-platform/internal/model"
	"github.com/portalize/portal-platform/internal/retrieval"
	"github.com/portalize/portal-platform/internal/store"
	"github.com/portalize/portal-platform/pkg/logger"
	"github.com/portalize/portal-platform/pkg/metrics"
)

var (
	ErrPortalNotFound  = errors.New("chat: portal not found")
	ErrPortalNotReady  = errors.New("chat: portal not ready")
	ErrSessionNotFound = errors.New("chat: session not found")
	ErrSessionExpired  = errors.New("chat: session expired")
	ErrRateLimited     = errors.New("chat: rate limited")
	ErrPortalMismatch  = errors.New("chat: session does not belong to portal")
)

const (
	// sessionTTL is the absolute session lifetime from creation.
	sessionTTL = 24 * time.Hour

	// rateWindow and rateLimit bound user messages per session: more
	// than rateLimit sends within the trailing rateWindow are rejected.
	rateWindow = 60 * time.Second
	rateLimit  = 10

	// historyWindow is how many of the most recent prior messages are
	// mapped into the generation transcript.
	historyWindow = 5
)

// Manager drives chat sessions for completed portals.
type Manager struct {
	store      store.Store
	retriever  *retrieval.Engine
	generator  generate.Client
	logger     *logger.Logger
	genTimeout time.Duration
}

// NewManager creates a chat session manager. The generator may be nil,
// in which case every exchange is answered by the fallback template.
func NewManager(st store.Store, retriever *retrieval.Engine, generator generate.Client, log *logger.Logger, genTimeout time.Duration) *Manager {
	if genTimeout <= 0 {
		genTimeout = 60 * time.Second
	}
	return &Manager{
		store:      st,
		retriever:  retriever,
		generator:  generator,
		logger:     log,
		genTimeout: genTimeout,
	}
}

// StartResult is what a newly created session exposes to the client.
type StartResult struct {
	SessionID       string
	WelcomeMessage  string
	RAGEnabled      bool
	AvailableTopics []string
	ExpiresAt       time.Time
}

// Exchange is one completed user/assistant message pair.
type Exchange struct {
	User          model.Message
	AI            model.Message
	SessionStatus model.SessionStatus
}

// StartSession creates a session against a completed portal. Index
// construction for the portal's document is attempted once, best-effort;
// when it fails the session runs with RAG disabled.
func (m *Manager) StartSession(ctx context.Context, portalID string, visitor model.VisitorContext, prefs model.SessionContext) (*StartResult, error) {
	portal, err := m.store.GetPortal(ctx, portalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPortalNotFound
		}
		return nil, err
	}
	if portal.Status != model.PortalStatusCompleted {
		return nil, ErrPortalNotReady
	}

	ragEnabled := true
	if err := m.retriever.EnsureIndex(ctx, portal.DocumentID); err != nil {
		ragEnabled = false
		m.logger.Warn("retrieval unavailable, session falls back to non-RAG responses",
			zap.String("portal_id", portalID),
			zap.String("document_id", portal.DocumentID),
			zap.Error(err),
		)
	}

	now := time.Now()
	session := &model.ChatSession{
		ID:        uuid.Must(uuid.NewV7()).String(),
		PortalID:  portalID,
		VisitorID: visitor.VisitorID,
		Status:    model.SessionStatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
		Messages:  []model.Message{},
		Context:   prefs,
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	// Counter updates are side effects: never fail the start.
	if err := m.store.IncrementCounters(ctx, portalID, store.CounterDelta{SessionsStarted: 1}); err != nil {
		m.logger.Warn("failed to increment session counter",
			zap.String("portal_id", portalID), zap.Error(err))
	}
	metrics.SessionsStartedTotal.Inc()

	ownerName := m.ownerName(ctx, portal.DocumentID)
	topics := m.retriever.Topics(portal.DocumentID)

	m.logger.Info("chat session started",
		zap.String("portal_id", portalID),
		zap.String("session_id", session.ID),
		zap.Bool("rag_enabled", ragEnabled),
	)

	return &StartResult{
		SessionID:       session.ID,
		WelcomeMessage:  generate.Welcome(ownerName, ragEnabled, topics),
		RAGEnabled:      ragEnabled,
		AvailableTopics: topics,
		ExpiresAt:       session.ExpiresAt,
	}, nil
}

// PostMessage records a user message and its generated answer as one
// atomic exchange. Generation failures and timeouts degrade to the
// fallback response; the exchange still completes and persists.
func (m *Manager) PostMessage(ctx context.Context, portalID, sessionID, text string) (*Exchange, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.PortalID != portalID {
		return nil, ErrPortalMismatch
	}

	now := time.Now()
	if session.Expired(now) {
		if session.Status != model.SessionStatusExpired {
			if err := m.store.MarkSessionExpired(ctx, sessionID); err != nil {
				m.logger.Warn("failed to mark session expired",
					zap.String("session_id", sessionID), zap.Error(err))
			}
		}
		return nil, ErrSessionExpired
	}

	// Sliding window over stored user-message timestamps. The rejection
	// is transient: the session stays active and later sends succeed
	// once the window drains.
	if countRecentUserMessages(session.Messages, now.Add(-rateWindow)) >= rateLimit {
		metrics.RateLimitedTotal.Inc()
		return nil, ErrRateLimited
	}

	userMsg := model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Author:    model.AuthorUser,
		Content:   text,
		CreatedAt: now,
	}

	resp := m.respond(ctx, session, text)

	aiMsg := model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Author:    model.AuthorAI,
		Content:   resp.Message,
		CreatedAt: time.Now(),
		Context: &model.MessageContext{
			Sources:    resp.Sources,
			Confidence: resp.Confidence,
			FollowUps:  resp.FollowUps,
		},
	}

	if err := m.store.AppendExchange(ctx, sessionID, userMsg, aiMsg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if err := m.store.IncrementCounters(ctx, portalID, store.CounterDelta{Messages: 2}); err != nil {
		m.logger.Warn("failed to increment message counter",
			zap.String("portal_id", portalID), zap.Error(err))
	}
	metrics.MessagesTotal.WithLabelValues(string(model.AuthorUser)).Inc()
	metrics.MessagesTotal.WithLabelValues(string(model.AuthorAI)).Inc()

	return &Exchange{
		User:          userMsg,
		AI:            aiMsg,
		SessionStatus: model.SessionStatusActive,
	}, nil
}

// respond produces the assistant answer for one user message. It never
// returns an error: every failure path lands on the fallback template.
func (m *Manager) respond(ctx context.Context, session *model.ChatSession, text string) *generate.Response {
	portal, err := m.store.GetPortal(ctx, session.PortalID)
	if err != nil {
		m.logger.Warn("failed to load portal for response",
			zap.String("portal_id", session.PortalID), zap.Error(err))
		metrics.FallbacksTotal.Inc()
		return generate.Fallback("")
	}
	ownerName := m.ownerName(ctx, portal.DocumentID)

	// Engine not ready means no retrieval and no generation call: the
	// deterministic fallback answers without touching the network.
	if m.generator == nil || !m.retriever.Ready(portal.DocumentID) {
		metrics.FallbacksTotal.Inc()
		return generate.Fallback(ownerName)
	}

	req := &generate.Request{
		Query:     text,
		OwnerName: ownerName,
		History:   transcript(session.Messages, historyWindow),
		Language:  session.Context.Language,
		Style:     session.Context.ResponseStyle,
	}

	genCtx, cancel := context.WithTimeout(ctx, m.genTimeout)
	defer cancel()

	result, err := m.retriever.Search(genCtx, portal.DocumentID, text)
	if err != nil {
		m.logger.Warn("retrieval search failed",
			zap.String("portal_id", session.PortalID), zap.Error(err))
		metrics.FallbacksTotal.Inc()
		return generate.Fallback(ownerName)
	}
	req.Chunks = result.Chunks
	req.Confidence = result.Confidence

	resp, err := m.generator.Generate(genCtx, req)
	if err != nil {
		m.logger.Warn("generation failed, using fallback",
			zap.String("session_id", session.ID),
			zap.String("provider", m.generator.Name()),
			zap.Error(err),
		)
		metrics.FallbacksTotal.Inc()
		return generate.Fallback(ownerName)
	}
	return resp
}

func (m *Manager) ownerName(ctx context.Context, documentID string) string {
	doc, err := m.store.GetDocument(ctx, documentID)
	if err != nil {
		return ""
	}
	return doc.OwnerName
}

// countRecentUserMessages counts user-authored messages created after
// the cutoff.
func countRecentUserMessages(messages []model.Message, cutoff time.Time) int {
	n := 0
	for _, msg := range messages {
		if msg.Author == model.AuthorUser && msg.CreatedAt.After(cutoff) {
			n++
		}
	}
	return n
}

// transcript maps the most recent prior messages to role-tagged turns.
func transcript(messages []model.Message, limit int) []generate.Turn {
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	turns := make([]generate.Turn, 0, len(messages))
	for _, msg := range messages {
		role := "user"
		if msg.Author == model.AuthorAI {
			role = "assistant"
		}
		turns = append(turns, generate.Turn{Role: role, Content: msg.Content})
	}
	return turns
}
