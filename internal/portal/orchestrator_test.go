package portal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portalize/portal-platform/internal/model"
	"github.com/portalize/portal-platform/internal/store"
	"github.com/portalize/portal-platform/pkg/logger"
)

type fakeQueue struct {
	jobs []BuildJob
	err  error
}

func (q *fakeQueue) Publish(ctx context.Context, job BuildJob) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type failingBuilder struct {
	err error
}

func (b *failingBuilder) Build(ctx context.Context, p *model.Portal, doc *model.SourceDocument) (*BuildResult, error) {
	return nil, b.err
}

func newOrchestratorFixture(t *testing.T) (*Orchestrator, *store.MemoryStore, *fakeQueue) {
	t.Helper()
	st := store.NewMemoryStore()
	require.NoError(t, st.PutDocument(context.Background(), &model.SourceDocument{
		ID:        "doc-1",
		UserID:    "owner-1",
		OwnerName: "Ada Lovelace",
		Sections: []model.DocumentSection{
			{Label: "Experience", Text: "analytical engines"},
		},
	}))
	q := &fakeQueue{}
	o := NewOrchestrator(st, q, NewURLBuilder("https://portals.example.com"), logger.NewNop(), time.Second)
	return o, st, q
}

func TestGenerate_EnqueuesProcessingPortal(t *testing.T) {
	o, st, q := newOrchestratorFixture(t)
	ctx := context.Background()

	p, err := o.Generate(ctx, "owner-1", "doc-1", model.PortalConfig{Theme: "light"})
	require.NoError(t, err)
	assert.Equal(t, model.PortalStatusProcessing, p.Status)
	assert.Equal(t, "doc-1", p.DocumentID)

	stored, err := st.GetPortal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PortalStatusProcessing, stored.Status)

	require.Len(t, q.jobs, 1)
	assert.Equal(t, p.ID, q.jobs[0].PortalID)
	assert.Equal(t, "doc-1", q.jobs[0].DocumentID)
}

func TestGenerate_DocumentNotFound(t *testing.T) {
	o, _, _ := newOrchestratorFixture(t)
	_, err := o.Generate(context.Background(), "owner-1", "missing", model.PortalConfig{})
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestGenerate_NotOwner(t *testing.T) {
	o, _, _ := newOrchestratorFixture(t)
	_, err := o.Generate(context.Background(), "intruder", "doc-1", model.PortalConfig{})
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestGenerate_EnqueueFailureMarksFailed(t *testing.T) {
	o, _, q := newOrchestratorFixture(t)
	q.err = errors.New("broker down")

	_, err := o.Generate(context.Background(), "owner-1", "doc-1", model.PortalConfig{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "broker down")
}

func TestProcessJob_Success(t *testing.T) {
	o, st, q := newOrchestratorFixture(t)
	ctx := context.Background()

	p, err := o.Generate(ctx, "owner-1", "doc-1", model.PortalConfig{})
	require.NoError(t, err)

	o.ProcessJob(ctx, q.jobs[0])

	got, err := st.GetPortal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PortalStatusCompleted, got.Status)
	assert.Equal(t, "https://portals.example.com/p/"+p.ID, got.URL)
	assert.Nil(t, got.BuildError)

	doc, err := st.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, doc.PortalID)
	assert.Equal(t, got.URL, doc.PortalURL)
}

func TestProcessJob_BuildFailure(t *testing.T) {
	_, st, _ := newOrchestratorFixture(t)
	ctx := context.Background()
	q := &fakeQueue{}
	o := NewOrchestrator(st, q, &failingBuilder{err: errors.New("render crashed")}, logger.NewNop(), time.Second)

	p, err := o.Generate(ctx, "owner-1", "doc-1", model.PortalConfig{})
	require.NoError(t, err)

	o.ProcessJob(ctx, q.jobs[0])

	got, err := st.GetPortal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PortalStatusFailed, got.Status)
	require.NotNil(t, got.BuildError)
	assert.Equal(t, "BUILD_FAILED", got.BuildError.Code)
	assert.Equal(t, "render crashed", got.BuildError.Message)
	assert.Equal(t, p.ID, got.BuildError.PortalID)
	assert.Equal(t, "doc-1", got.BuildError.DocumentID)
	assert.Empty(t, got.URL)
}

func TestProcessJob_MissingDocument(t *testing.T) {
	o, st, _ := newOrchestratorFixture(t)
	ctx := context.Background()

	require.NoError(t, st.CreatePortal(ctx, &model.Portal{
		ID:         "portal-orphan",
		UserID:     "owner-1",
		DocumentID: "doc-gone",
		Status:     model.PortalStatusProcessing,
	}))

	o.ProcessJob(ctx, BuildJob{PortalID: "portal-orphan", DocumentID: "doc-gone"})

	got, err := st.GetPortal(ctx, "portal-orphan")
	require.NoError(t, err)
	assert.Equal(t, model.PortalStatusFailed, got.Status)
	require.NotNil(t, got.BuildError)
	assert.Equal(t, "DOCUMENT_MISSING", got.BuildError.Code)
}

func TestProcessJob_TerminalPortalUnchangedOnRedelivery(t *testing.T) {
	o, st, q := newOrchestratorFixture(t)
	ctx := context.Background()

	p, err := o.Generate(ctx, "owner-1", "doc-1", model.PortalConfig{})
	require.NoError(t, err)

	job := q.jobs[0]
	o.ProcessJob(ctx, job)

	first, err := st.GetPortal(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, model.PortalStatusCompleted, first.Status)

	// Redelivered job: the terminal outcome must survive untouched.
	o.ProcessJob(ctx, job)

	second, err := st.GetPortal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.URL, second.URL)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
}

func TestStatus_Ownership(t *testing.T) {
	o, _, _ := newOrchestratorFixture(t)
	ctx := context.Background()

	p, err := o.Generate(ctx, "owner-1", "doc-1", model.PortalConfig{})
	require.NoError(t, err)

	got, err := o.Status(ctx, "owner-1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = o.Status(ctx, "intruder", p.ID)
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = o.Status(ctx, "owner-1", "missing")
	assert.ErrorIs(t, err, ErrPortalNotFound)
}

func TestURLBuilder(t *testing.T) {
	b := NewURLBuilder("https://portals.example.com")
	ctx := context.Background()

	res, err := b.Build(ctx, &model.Portal{ID: "p-1"}, &model.SourceDocument{
		ID:       "doc-1",
		Sections: []model.DocumentSection{{Label: "Experience", Text: "x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://portals.example.com/p/p-1", res.URL)

	_, err = b.Build(ctx, &model.Portal{ID: "p-2"}, &model.SourceDocument{ID: "doc-2"})
	assert.Error(t, err)
}
