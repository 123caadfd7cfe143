package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portalize/portal-platform/internal/chat"
	"github.com/portalize/portal-platform/internal/generate"
	"github.com/portalize/portal-platform/internal/model"
	"github.com/portalize/portal-platform/internal/retrieval"
	"github.com/portalize/portal-platform/internal/store"
	"github.com/portalize/portal-platform/pkg/logger"
)

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// slowGenerator answers after a fixed delay, honoring cancellation.
type slowGenerator struct {
	delay  time.Duration
	answer string
}

func (g *slowGenerator) Generate(ctx context.Context, req *generate.Request) (*generate.Response, error) {
	select {
	case <-time.After(g.delay):
		return &generate.Response{Message: g.answer, Confidence: 0.9}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *slowGenerator) Name() string { return "slow" }

func newChatRouter(t *testing.T) (*chi.Mux, *store.MemoryStore) {
	t.Helper()
	return newChatRouterWith(t, nil, time.Second, time.Second)
}

func newChatRouterWith(t *testing.T, generator generate.Client, startTimeout, messageTimeout time.Duration) (*chi.Mux, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.PutDocument(ctx, &model.SourceDocument{
		ID:        "doc-1",
		UserID:    "owner-1",
		OwnerName: "Ada Lovelace",
		Sections: []model.DocumentSection{
			{Label: "Experience", Text: "analytical engines"},
		},
	}))
	require.NoError(t, st.CreatePortal(ctx, &model.Portal{
		ID:         "portal-1",
		UserID:     "owner-1",
		DocumentID: "doc-1",
		Status:     model.PortalStatusCompleted,
	}))
	require.NoError(t, st.CreatePortal(ctx, &model.Portal{
		ID:         "portal-pending",
		UserID:     "owner-1",
		DocumentID: "doc-1",
		Status:     model.PortalStatusQueued,
	}))

	retriever := retrieval.NewEngine(fixedEmbedder{}, st, logger.NewNop())
	manager := chat.NewManager(st, retriever, generator, logger.NewNop(), messageTimeout)
	h := NewChatHandler(manager, logger.NewNop(), startTimeout, messageTimeout)

	r := chi.NewRouter()
	r.Post("/portal/{portalId}/chat/start", h.Start)
	r.Post("/portal/{portalId}/chat/{sessionId}/message", h.Send)
	return r, st
}

func startSession(t *testing.T, r http.Handler, portalID string, body string) (*httptest.ResponseRecorder, startChatResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/portal/"+portalID+"/chat/start", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var resp startChatResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestChatStart(t *testing.T) {
	r, _ := newChatRouter(t)

	rec, resp := startSession(t, r, "portal-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, resp.SessionID)
	assert.Contains(t, resp.WelcomeMessage, "Ada Lovelace")
	assert.True(t, resp.RAGEnabled)
	assert.Equal(t, []string{"Experience"}, resp.AvailableTopics)
	assert.Nil(t, resp.InitialResponse)

	_, err := time.Parse(time.RFC3339, resp.SessionExpiry)
	assert.NoError(t, err)
}

func TestChatStart_BindsVisitorAndPreferences(t *testing.T) {
	r, st := newChatRouter(t)

	body := `{
		"visitorContext": {"visitorId": "visitor-7", "referrer": "https://linkedin.com", "userAgent": "probe-agent"},
		"preferences": {"language": "French", "responseStyle": "concise"}
	}`
	rec, resp := startSession(t, r, "portal-1", body)
	require.Equal(t, http.StatusOK, rec.Code)

	sess, err := st.GetSession(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "visitor-7", sess.VisitorID)
	assert.Equal(t, "French", sess.Context.Language)
	assert.Equal(t, "concise", sess.Context.ResponseStyle)
}

func TestChatStart_WithInitialMessage(t *testing.T) {
	r, _ := newChatRouter(t)

	rec, resp := startSession(t, r, "portal-1", `{"initialMessage": "tell me about experience"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resp.InitialResponse)
	assert.NotEmpty(t, resp.InitialResponse.Message)
	assert.NotEmpty(t, resp.InitialResponse.MessageID)
}

func TestChatStart_InitialMessageUsesSendBudget(t *testing.T) {
	// Generation outlasts the start budget but fits the send budget: the
	// ride-along message must still get a real answer, not the fallback.
	gen := &slowGenerator{delay: 150 * time.Millisecond, answer: "took a while"}
	r, _ := newChatRouterWith(t, gen, 100*time.Millisecond, 2*time.Second)

	rec, resp := startSession(t, r, "portal-1", `{"initialMessage": "tell me about experience"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resp.InitialResponse)
	assert.Equal(t, "took a while", resp.InitialResponse.Message)
}

func TestChatStart_PortalNotFound(t *testing.T) {
	r, _ := newChatRouter(t)
	rec, _ := startSession(t, r, "missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatStart_PortalNotReady(t *testing.T) {
	r, _ := newChatRouter(t)
	rec, _ := startSession(t, r, "portal-pending", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func sendMessage(t *testing.T, r http.Handler, portalID, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/portal/"+portalID+"/chat/"+sessionID+"/message", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestChatSend(t *testing.T) {
	r, _ := newChatRouter(t)

	rec, started := startSession(t, r, "portal-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = sendMessage(t, r, "portal-1", started.SessionID, `{"message": "what did they build?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.MessageID)
	assert.NotEmpty(t, resp.AIResponse.Message)
	assert.Equal(t, "active", resp.SessionStatus)
}

func TestChatSend_InvalidSessionID(t *testing.T) {
	r, _ := newChatRouter(t)
	rec := sendMessage(t, r, "portal-1", "not-a-uuid", `{"message": "hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatSend_EmptyMessage(t *testing.T) {
	r, _ := newChatRouter(t)

	rec, started := startSession(t, r, "portal-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = sendMessage(t, r, "portal-1", started.SessionID, `{"message": "   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatSend_UnknownSession(t *testing.T) {
	r, _ := newChatRouter(t)
	rec := sendMessage(t, r, "portal-1", "018f3c6e-1111-7000-8000-000000000000", `{"message": "hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatSend_ExpiredSessionGone(t *testing.T) {
	r, st := newChatRouter(t)

	now := time.Now()
	sessionID := "018f3c6e-2222-7000-8000-000000000000"
	st.SeedSession(&model.ChatSession{
		ID:        sessionID,
		PortalID:  "portal-1",
		Status:    model.SessionStatusActive,
		CreatedAt: now.Add(-25 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	})

	rec := sendMessage(t, r, "portal-1", sessionID, `{"message": "hi"}`)
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestChatSend_RateLimited(t *testing.T) {
	r, st := newChatRouter(t)

	now := time.Now()
	var msgs []model.Message
	for i := 0; i < 10; i++ {
		msgs = append(msgs,
			model.Message{Author: model.AuthorUser, CreatedAt: now},
			model.Message{Author: model.AuthorAI, CreatedAt: now},
		)
	}
	sessionID := "018f3c6e-3333-7000-8000-000000000000"
	st.SeedSession(&model.ChatSession{
		ID:        sessionID,
		PortalID:  "portal-1",
		Status:    model.SessionStatusActive,
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(23 * time.Hour),
		Messages:  msgs,
	})

	rec := sendMessage(t, r, "portal-1", sessionID, `{"message": "one more"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestChatSend_PortalMismatch(t *testing.T) {
	r, st := newChatRouter(t)

	now := time.Now()
	sessionID := "018f3c6e-4444-7000-8000-000000000000"
	st.SeedSession(&model.ChatSession{
		ID:        sessionID,
		PortalID:  "portal-1",
		Status:    model.SessionStatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	})

	rec := sendMessage(t, r, "portal-pending", sessionID, `{"message": "hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
