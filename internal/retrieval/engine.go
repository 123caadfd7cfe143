// Package retrieval builds per-document content indexes and answers
// similarity queries against them.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/portalize/portal-platform/internal/model"
	"github.com/portalize/portal-platform/pkg/logger"
	"github.com/portalize/portal-platform/pkg/metrics"
)

var (
	// ErrIndexNotReady is returned when searching a document that has
	// no built index. Callers fall back to the non-RAG response path.
	ErrIndexNotReady = errors.New("retrieval: index not ready")

	// ErrNoEmbedder is returned when no embedding backend is configured.
	ErrNoEmbedder = errors.New("retrieval: no embedder configured")
)

// DocumentSource provides CV content to index. The document store
// satisfies this.
type DocumentSource interface {
	GetDocument(ctx context.Context, id string) (*model.SourceDocument, error)
}

// maxChunkLen splits long sections so a single chunk stays focused.
const maxChunkLen = 800

// defaultTopK is how many chunks a search returns.
const defaultTopK = 5

type index struct {
	chunks  []model.Chunk
	vectors [][]float32
	topics  []string
}

// Engine answers retrieval queries over per-document chunk indexes.
// Indexes are built once, on demand, and held in memory; search is
// deterministic for a fixed index and query.
type Engine struct {
	embedder Embedder
	docs     DocumentSource
	logger   *logger.Logger
	topK     int

	mu      sync.RWMutex
	indexes map[string]*index
}

// NewEngine creates a retrieval engine. The embedder may be nil, in
// which case every index build fails and callers run without RAG.
func NewEngine(embedder Embedder, docs DocumentSource, log *logger.Logger) *Engine {
	return &Engine{
		embedder: embedder,
		docs:     docs,
		logger:   log,
		topK:     defaultTopK,
		indexes:  make(map[string]*index),
	}
}

// Ready reports whether a built index exists for the document.
func (e *Engine) Ready(documentID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.indexes[documentID]
	return ok
}

// Topics returns the section labels of an indexed document, in document
// order. Empty when the index is not built.
func (e *Engine) Topics(documentID string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx, ok := e.indexes[documentID]
	if !ok {
		return nil
	}
	return append([]string(nil), idx.topics...)
}

// EnsureIndex builds the document's index if it does not exist yet.
// Construction is best-effort: on failure the document simply has no
// index and retrieval stays unavailable for it.
func (e *Engine) EnsureIndex(ctx context.Context, documentID string) error {
	e.mu.RLock()
	_, ok := e.indexes[documentID]
	e.mu.RUnlock()
	if ok {
		return nil
	}

	if e.embedder == nil {
		return ErrNoEmbedder
	}

	doc, err := e.docs.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	chunks := chunkDocument(doc)
	if len(chunks) == 0 {
		return fmt.Errorf("document %s has no indexable content", documentID)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to embed document chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	topics := make([]string, 0, len(doc.Sections))
	seen := make(map[string]bool)
	for _, s := range doc.Sections {
		if s.Label != "" && !seen[s.Label] {
			topics = append(topics, s.Label)
			seen[s.Label] = true
		}
	}

	e.mu.Lock()
	// A concurrent build may have won; keep the first.
	if _, ok := e.indexes[documentID]; !ok {
		e.indexes[documentID] = &index{chunks: chunks, vectors: vectors, topics: topics}
	}
	e.mu.Unlock()

	metrics.IndexBuildsTotal.WithLabelValues("success").Inc()
	e.logger.Info("retrieval index built",
		zap.String("document_id", documentID),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// Search returns the top-k most similar chunks for the query, ordered by
// descending similarity with ties broken by original chunk order.
func (e *Engine) Search(ctx context.Context, documentID, query string) (*model.RetrievalResult, error) {
	e.mu.RLock()
	idx, ok := e.indexes[documentID]
	e.mu.RUnlock()
	if !ok {
		return nil, ErrIndexNotReady
	}

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	qv := vectors[0]

	scored := make([]model.Chunk, len(idx.chunks))
	for i, c := range idx.chunks {
		c.Score = cosineSimilarity(qv, idx.vectors[i])
		scored[i] = c
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})

	k := e.topK
	if k > len(scored) {
		k = len(scored)
	}
	top := scored[:k]

	return &model.RetrievalResult{
		Chunks:     top,
		Confidence: confidence(top),
	}, nil
}

// chunkDocument splits each section into chunks of at most maxChunkLen
// runes, breaking on paragraph boundaries where possible.
func chunkDocument(doc *model.SourceDocument) []model.Chunk {
	var chunks []model.Chunk
	for _, section := range doc.Sections {
		for _, text := range splitSection(section.Text) {
			chunks = append(chunks, model.Chunk{
				Label: section.Label,
				Text:  text,
				Index: len(chunks),
			})
		}
	}
	return chunks
}

func splitSection(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxChunkLen {
		return []string{text}
	}

	var parts []string
	var current strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(para) > maxChunkLen {
			parts = append(parts, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// or 0 when either has zero magnitude.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// confidence aggregates chunk scores into [0, 1] as the clamped mean.
func confidence(chunks []model.Chunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	var sum float64
	for _, c := range chunks {
		sum += c.Score
	}
	mean := sum / float64(len(chunks))
	if mean < 0 {
		return 0
	}
	if mean > 1 {
		return 1
	}
	return mean
}
