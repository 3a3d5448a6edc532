// Package vectorindex persists one nearest-neighbour index per document.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"study-assistant-platform/internal/ai"
	"study-assistant-platform/internal/logger"
	"study-assistant-platform/models"
	"study-assistant-platform/utils"
)

const fileExt = ".idx"

var validDocumentID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

type Entry struct {
	ChunkID    string    `bson:"chunk_id"`
	ChunkIndex int       `bson:"chunk_index"`
	PageNumber int       `bson:"page_number"`
	Content    string    `bson:"content"`
	Vector     []float32 `bson:"vector"`

	// Raw is the embedder's output before normalisation. It is not
	// persisted, so only indexes returned by Build carry it.
	Raw []float32 `bson:"-"`
}

// Index is the loaded form of an artifact. Entries are ordered by chunk
// index and carry unit-length vectors.
type Index struct {
	DocumentID string    `bson:"document_id"`
	Model      string    `bson:"model"`
	Dimension  int       `bson:"dimension"`
	BuiltAt    time.Time `bson:"built_at"`
	Entries    []Entry   `bson:"entries"`
}

func (idx *Index) Len() int { return len(idx.Entries) }

type Hit struct {
	ChunkID    string
	ChunkIndex int
	PageNumber int
	Content    string
	Score      float64
}

type Store struct {
	root        string
	embedder    ai.Embedder
	compression utils.CompressionAlgorithm
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Store)

func WithCompression(algorithm utils.CompressionAlgorithm) Option {
	return func(s *Store) { s.compression = algorithm }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func NewStore(root string, embedder ai.Embedder, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, errors.New("vectorindex: embedder is required")
	}
	s := &Store{
		root:        root,
		embedder:    embedder,
		compression: utils.CompressionBrotli,
		logger:      logger.Get(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := utils.CodecID(s.compression); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	return s, nil
}

func (s *Store) path(documentID string) string {
	return filepath.Join(s.root, documentID+fileExt)
}

func checkID(documentID string) error {
	if !validDocumentID.MatchString(documentID) {
		return fmt.Errorf("vectorindex: invalid document id %q", documentID)
	}
	return nil
}

// Build embeds every chunk and atomically replaces the document's artifact.
// On any failure the previous artifact, if one exists, is left untouched.
func (s *Store) Build(ctx context.Context, documentID string, chunks []models.Chunk) (*Index, error) {
	if err := checkID(documentID); err != nil {
		return nil, err
	}

	ordered := make([]models.Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	idx := &Index{
		DocumentID: documentID,
		Model:      s.embedder.Model(),
		Dimension:  s.embedder.Dimension(),
		BuiltAt:    s.now().UTC(),
		Entries:    make([]Entry, 0, len(ordered)),
	}

	if len(ordered) > 0 {
		texts := make([]string, len(ordered))
		for i, c := range ordered {
			texts[i] = c.Content
		}
		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(texts) {
			return nil, &ai.EmbeddingServiceError{
				Model: idx.Model,
				Err:   fmt.Errorf("expected %d vectors, got %d", len(texts), len(vectors)),
			}
		}
		for i, c := range ordered {
			if len(vectors[i]) != idx.Dimension {
				return nil, &ai.EmbeddingServiceError{
					Model: idx.Model,
					Err:   fmt.Errorf("vector %d has dimension %d, want %d", i, len(vectors[i]), idx.Dimension),
				}
			}
			idx.Entries = append(idx.Entries, Entry{
				ChunkID:    c.ID,
				ChunkIndex: c.Index,
				PageNumber: c.PageNumber,
				Content:    c.Content,
				Vector:     normalize(vectors[i]),
				Raw:        vectors[i],
			})
		}
	}

	data, err := encode(idx, s.compression)
	if err != nil {
		return nil, err
	}
	if err := s.writeAtomic(documentID, data); err != nil {
		return nil, err
	}

	s.logger.Info("Vector index built",
		"document_id", documentID,
		"entries", len(idx.Entries),
		"bytes", len(data),
		"codec", string(s.compression),
	)
	return idx, nil
}

func (s *Store) writeAtomic(documentID string, data []byte) error {
	tmp, err := os.CreateTemp(s.root, "."+documentID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close index: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(documentID)); err != nil {
		cleanup()
		return fmt.Errorf("failed to publish index: %w", err)
	}

	// persist the rename itself; not every platform supports syncing a directory
	if dir, err := os.Open(s.root); err == nil {
		_ = dir.Sync()
		dir.Close()
	}
	return nil
}

// Load returns ErrIndexNotFound for a missing artifact and *IndexCorruptError
// for one that cannot be read back.
func (s *Store) Load(documentID string) (*Index, error) {
	if err := checkID(documentID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(documentID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, documentID)
		}
		return nil, &IndexCorruptError{DocumentID: documentID, Err: err}
	}

	idx, err := decode(data)
	if err != nil {
		return nil, &IndexCorruptError{DocumentID: documentID, Err: err}
	}
	if idx.DocumentID != documentID {
		return nil, &IndexCorruptError{DocumentID: documentID, Err: fmt.Errorf("artifact belongs to %q", idx.DocumentID)}
	}
	for i, e := range idx.Entries {
		if len(e.Vector) != idx.Dimension {
			return nil, &IndexCorruptError{DocumentID: documentID, Err: fmt.Errorf("entry %d has dimension %d", i, len(e.Vector))}
		}
	}
	return idx, nil
}

// Query ranks entries by cosine similarity, highest first, ties by ascending
// chunk index.
func (s *Store) Query(idx *Index, vector []float32, k int) ([]Hit, error) {
	if idx == nil || k <= 0 || len(idx.Entries) == 0 {
		return nil, nil
	}
	if len(vector) != idx.Dimension {
		return nil, fmt.Errorf("query vector has dimension %d, index %s has %d", len(vector), idx.DocumentID, idx.Dimension)
	}

	q := normalize(vector)
	hits := make([]Hit, len(idx.Entries))
	for i, e := range idx.Entries {
		hits[i] = Hit{
			ChunkID:    e.ChunkID,
			ChunkIndex: e.ChunkIndex,
			PageNumber: e.PageNumber,
			Content:    e.Content,
			Score:      dot(q, e.Vector),
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkIndex < hits[j].ChunkIndex
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes the artifact. A missing artifact is not an error.
func (s *Store) Delete(documentID string) error {
	if err := checkID(documentID); err != nil {
		return err
	}
	if err := os.Remove(s.path(documentID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete index for %s: %w", documentID, err)
	}
	return nil
}

// normalize returns a unit-length copy. A zero vector stays zero.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
