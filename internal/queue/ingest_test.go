package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"study-assistant-platform/internal/ai"
	"study-assistant-platform/internal/chunker"
	"study-assistant-platform/internal/database"
	"study-assistant-platform/internal/vectorindex"
	"study-assistant-platform/models"

	"github.com/hibiken/asynq"
)

type memDocs struct {
	mu   sync.Mutex
	docs map[string]*models.Document
}

func (m *memDocs) Get(_ context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDocs) MarkProcessed(_ context.Context, id string, gen int64, pages, chunks int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok || d.Generation != gen {
		return false, nil
	}
	d.Status, d.PageCount, d.ChunkCount, d.ErrorMessage = models.StatusProcessed, pages, chunks, ""
	return true, nil
}

func (m *memDocs) MarkFailed(_ context.Context, id string, gen int64, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok || d.Generation != gen {
		return false, nil
	}
	d.Status, d.ChunkCount, d.ErrorMessage = models.StatusFailed, 0, reason
	return true, nil
}

// reset mimics a reprocess request.
func (m *memDocs) reset(id string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.docs[id]
	d.Generation++
	d.Status = models.StatusUnprocessed
	return d.Generation
}

type memChunks struct {
	byDoc map[string][]models.Chunk
}

func (m *memChunks) ReplaceChunks(_ context.Context, id string, chunks []models.Chunk) error {
	m.byDoc[id] = append([]models.Chunk(nil), chunks...)
	return nil
}

func (m *memChunks) DeleteForDocument(_ context.Context, id string) error {
	delete(m.byDoc, id)
	return nil
}

type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *memLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, ErrLockHeld
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}

type pagesExtractor struct {
	pages []string
	err   error
	// hook runs after extraction, before indexing
	hook func()
}

func (e *pagesExtractor) ExtractPages(context.Context, string) ([]string, error) {
	if e.hook != nil {
		e.hook()
	}
	return e.pages, e.err
}

type lengthEmbedder struct{ err error }

func (e *lengthEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, &ai.EmbeddingServiceError{Model: "len", Err: e.err}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)) + 1, 1}
	}
	return out, nil
}

func (e *lengthEmbedder) Dimension() int { return 2 }
func (e *lengthEmbedder) Model() string  { return "len" }

type fixture struct {
	docs      *memDocs
	chunks    *memChunks
	index     *vectorindex.Store
	embedder  *lengthEmbedder
	extractor *pagesExtractor
	locker    *memLocker
	proc      *TaskProcessor
}

func newFixture(t *testing.T, pages ...string) *fixture {
	t.Helper()
	f := &fixture{
		docs: &memDocs{docs: map[string]*models.Document{
			"doc-1": {ID: "doc-1", UserID: "u1", Status: models.StatusUnprocessed, Generation: 1, FilePath: "/tmp/doc-1.pdf"},
		}},
		chunks:    &memChunks{byDoc: map[string][]models.Chunk{}},
		embedder:  &lengthEmbedder{},
		extractor: &pagesExtractor{pages: pages},
		locker:    &memLocker{held: map[string]bool{}},
	}
	store, err := vectorindex.NewStore(t.TempDir(), f.embedder)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	f.index = store
	ch, err := chunker.New(10, 2)
	if err != nil {
		t.Fatalf("new chunker: %v", err)
	}
	f.proc = NewTaskProcessor(f.docs, f.chunks, f.index, f.extractor, ch, f.locker, nil)
	return f
}

func assertDense(t *testing.T, chunks []models.Chunk) {
	t.Helper()
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
		if len(c.Embedding) != 2 {
			t.Fatalf("chunk %d missing embedding", i)
		}
	}
}

func TestIngestProcessesDocument(t *testing.T) {
	f := newFixture(t, "abcdefghijklmnop", "qrstuvwxyz")
	if err := f.proc.Ingest(context.Background(), IngestPayload{DocumentID: "doc-1", Generation: 1}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	doc, _ := f.docs.Get(context.Background(), "doc-1")
	if doc.Status != models.StatusProcessed {
		t.Fatalf("expected processed, got %s", doc.Status)
	}
	if doc.PageCount != 2 {
		t.Fatalf("expected 2 pages, got %d", doc.PageCount)
	}
	stored := f.chunks.byDoc["doc-1"]
	if len(stored) == 0 || doc.ChunkCount != len(stored) {
		t.Fatalf("chunk count %d does not match stored %d", doc.ChunkCount, len(stored))
	}
	assertDense(t, stored)
	if stored[0].PageNumber != 1 || stored[len(stored)-1].PageNumber != 2 {
		t.Fatalf("unexpected page attribution: first %d last %d", stored[0].PageNumber, stored[len(stored)-1].PageNumber)
	}

	idx, err := f.index.Load("doc-1")
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	if idx.Len() != len(stored) {
		t.Fatalf("index has %d entries, want %d", idx.Len(), len(stored))
	}

	// stored embeddings are the embedder output, not the normalised index vectors
	for _, c := range stored {
		want := []float32{float32(len(c.Content)) + 1, 1}
		if len(c.Embedding) != 2 || c.Embedding[0] != want[0] || c.Embedding[1] != want[1] {
			t.Fatalf("chunk %d embedding %v, want raw %v", c.Index, c.Embedding, want)
		}
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	f := newFixture(t, "some page text here")
	payload := IngestPayload{DocumentID: "doc-1", Generation: 1}
	if err := f.proc.Ingest(context.Background(), payload); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	first := f.chunks.byDoc["doc-1"]

	f.embedder.err = errors.New("must not be called")
	if err := f.proc.Ingest(context.Background(), payload); err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if got := f.chunks.byDoc["doc-1"]; got[0].ID != first[0].ID {
		t.Fatalf("redelivery rewrote chunks")
	}
}

func TestIngestDropsStaleGeneration(t *testing.T) {
	f := newFixture(t, "text")
	f.docs.reset("doc-1")

	if err := f.proc.Ingest(context.Background(), IngestPayload{DocumentID: "doc-1", Generation: 1}); err != nil {
		t.Fatalf("stale job should be dropped quietly, got %v", err)
	}
	doc, _ := f.docs.Get(context.Background(), "doc-1")
	if doc.Status != models.StatusUnprocessed {
		t.Fatalf("stale job changed status to %s", doc.Status)
	}
	if _, ok := f.chunks.byDoc["doc-1"]; ok {
		t.Fatalf("stale job wrote chunks")
	}
}

func TestIngestSupersededDuringRun(t *testing.T) {
	f := newFixture(t, "first generation text")
	f.extractor.hook = func() { f.docs.reset("doc-1") }

	if err := f.proc.Ingest(context.Background(), IngestPayload{DocumentID: "doc-1", Generation: 1}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	doc, _ := f.docs.Get(context.Background(), "doc-1")
	if doc.Status != models.StatusUnprocessed {
		t.Fatalf("superseded job changed status to %s", doc.Status)
	}
	if _, err := f.index.Load("doc-1"); !errors.Is(err, vectorindex.ErrIndexNotFound) {
		t.Fatalf("superseded job left an index behind: %v", err)
	}
	if _, ok := f.chunks.byDoc["doc-1"]; ok {
		t.Fatalf("superseded job left chunks behind")
	}
}

func TestReprocessReplacesChunkSet(t *testing.T) {
	f := newFixture(t, strings.Repeat("a", 40))
	if err := f.proc.Ingest(context.Background(), IngestPayload{DocumentID: "doc-1", Generation: 1}); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if n := len(f.chunks.byDoc["doc-1"]); n != 5 {
		t.Fatalf("expected 5 chunks, got %d", n)
	}

	f.extractor.pages = []string{strings.Repeat("b", 12)}
	gen := f.docs.reset("doc-1")
	if err := f.proc.Ingest(context.Background(), IngestPayload{DocumentID: "doc-1", Generation: gen}); err != nil {
		t.Fatalf("reprocess: %v", err)
	}

	stored := f.chunks.byDoc["doc-1"]
	if len(stored) != 2 {
		t.Fatalf("expected 2 chunks after reprocess, got %d", len(stored))
	}
	assertDense(t, stored)
	for _, c := range stored {
		if strings.Contains(c.Content, "a") {
			t.Fatalf("old content survived reprocess: %q", c.Content)
		}
	}
	idx, err := f.index.Load("doc-1")
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	if idx.Len() != 2 {
		t.Fatalf("index has %d entries, want 2", idx.Len())
	}
}

func TestIngestFailureCleansUp(t *testing.T) {
	f := newFixture(t, "text that will not embed")
	f.embedder.err = errors.New("quota exceeded")

	err := f.proc.Ingest(context.Background(), IngestPayload{DocumentID: "doc-1", Generation: 1})
	var embedErr *ai.EmbeddingServiceError
	if !errors.As(err, &embedErr) {
		t.Fatalf("expected embedding error, got %v", err)
	}
	doc, _ := f.docs.Get(context.Background(), "doc-1")
	if doc.Status != models.StatusFailed || doc.ErrorMessage == "" {
		t.Fatalf("expected failed status with message, got %s %q", doc.Status, doc.ErrorMessage)
	}
	if _, err := f.index.Load("doc-1"); !errors.Is(err, vectorindex.ErrIndexNotFound) {
		t.Fatalf("failed ingestion left an index: %v", err)
	}
}

func TestIngestLockHeld(t *testing.T) {
	f := newFixture(t, "text")
	unlock, err := f.locker.TryLock(context.Background(), "ingest:doc-1", time.Minute)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock(context.Background())

	err = f.proc.Ingest(context.Background(), IngestPayload{DocumentID: "doc-1", Generation: 1})
	if !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("busy lock must stay retryable")
	}
	if IsFailure(err) {
		t.Fatalf("busy lock must not use up a retry")
	}
}

func TestHandleIngestTaskPayloads(t *testing.T) {
	f := newFixture(t, "text")

	err := f.proc.HandleIngestTask(context.Background(), asynq.NewTask(TaskIngestDocument, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for bad payload, got %v", err)
	}

	body, _ := json.Marshal(IngestPayload{DocumentID: "missing", Generation: 1})
	err = f.proc.HandleIngestTask(context.Background(), asynq.NewTask(TaskIngestDocument, body))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for deleted document, got %v", err)
	}
}
