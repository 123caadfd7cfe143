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

	"github.com/portalize/portal-platform/internal/model"
	"github.com/portalize/portal-platform/internal/portal"
	"github.com/portalize/portal-platform/internal/store"
	"github.com/portalize/portal-platform/pkg/logger"
)

type recordingQueue struct {
	jobs []portal.BuildJob
}

func (q *recordingQueue) Publish(ctx context.Context, job portal.BuildJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func newPortalRouter(t *testing.T, userID string) (*chi.Mux, *store.MemoryStore, *recordingQueue) {
	t.Helper()
	st := store.NewMemoryStore()
	require.NoError(t, st.PutDocument(context.Background(), &model.SourceDocument{
		ID:     "doc-1",
		UserID: "owner-1",
		Sections: []model.DocumentSection{
			{Label: "Experience", Text: "analytical engines"},
		},
	}))

	q := &recordingQueue{}
	orch := portal.NewOrchestrator(st, q, portal.NewURLBuilder("https://portals.example.com"), logger.NewNop(), time.Second)
	h := NewPortalHandler(orch, logger.NewNop(), time.Second)

	r := chi.NewRouter()
	r.Use(asUser(userID))
	r.Post("/api/v1/portals", h.Create)
	r.Get("/api/v1/portals/{portalId}", h.Get)
	return r, st, q
}

func TestPortalCreate(t *testing.T) {
	r, st, q := newPortalRouter(t, "owner-1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/portals", bytes.NewBufferString(`{"documentId": "doc-1", "config": {"theme": "light"}}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var p model.Portal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, model.PortalStatusProcessing, p.Status)
	assert.Equal(t, "doc-1", p.DocumentID)
	assert.Equal(t, "light", p.Config.Theme)
	require.Len(t, q.jobs, 1)
	assert.Equal(t, p.ID, q.jobs[0].PortalID)

	stored, err := st.GetPortal(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PortalStatusProcessing, stored.Status)
}

func TestPortalCreate_DocumentNotFound(t *testing.T) {
	r, _, _ := newPortalRouter(t, "owner-1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/portals", bytes.NewBufferString(`{"documentId": "missing"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPortalCreate_NotOwner(t *testing.T) {
	r, _, _ := newPortalRouter(t, "intruder")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/portals", bytes.NewBufferString(`{"documentId": "doc-1"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPortalCreate_MissingDocumentID(t *testing.T) {
	r, _, _ := newPortalRouter(t, "owner-1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/portals", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPortalGet(t *testing.T) {
	r, st, _ := newPortalRouter(t, "owner-1")

	portalID := "018f3c6e-5555-7000-8000-000000000000"
	require.NoError(t, st.CreatePortal(context.Background(), &model.Portal{
		ID:         portalID,
		UserID:     "owner-1",
		DocumentID: "doc-1",
		Status:     model.PortalStatusCompleted,
		URL:        "https://portals.example.com/p/" + portalID,
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/portals/"+portalID, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var p model.Portal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, model.PortalStatusCompleted, p.Status)
	assert.NotEmpty(t, p.URL)
}

func TestPortalGet_InvalidID(t *testing.T) {
	r, _, _ := newPortalRouter(t, "owner-1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/portals/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
