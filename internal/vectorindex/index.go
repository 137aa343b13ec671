// Package vectorindex provides an in-memory nearest-neighbor index over
// embedded text chunks, plus the two-file artifact format used to persist
// it in the blob store.
package vectorindex

import (
	"fmt"
	"math"
	"sort"
)

// Chunk is a contiguous span of source text with positional metadata.
// The embedding vector lives in the index's vector matrix at the same offset.
type Chunk struct {
	ID         string // UUID assigned at ingest time
	Source     string // Source document name, e.g. "spells.md"
	Section    string // Header hierarchy: "# Spells > ## Fireball"
	ChunkIndex int    // Position within the source document (0, 1, 2...)
	Text       string // Chunk text content
}

// ScoredChunk pairs a chunk with its cosine similarity to a query vector.
type ScoredChunk struct {
	Chunk
	Score float32
}

// Index is a read-only nearest-neighbor structure over embedded chunks.
// It is never mutated after construction; build one with a Builder or Load.
type Index struct {
	dimension int
	model     string
	chunks    []Chunk
	vectors   [][]float32
}

// Dimension returns the embedding vector dimension of the index.
func (idx *Index) Dimension() int { return idx.dimension }

// Model returns the name of the embedding model the vectors were produced with.
func (idx *Index) Model() string { return idx.model }

// Len returns the number of chunks in the index.
func (idx *Index) Len() int { return len(idx.chunks) }

// Search returns the top k chunks by cosine similarity to the query vector,
// ordered by descending score. Fewer than k chunks are returned when the
// index is smaller than k.
func (idx *Index) Search(query []float32, k int) ([]ScoredChunk, error) {
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			ErrDimensionMismatch, len(query), idx.dimension)
	}
	if k <= 0 {
		return nil, fmt.Errorf("invalid k: %d", k)
	}

	scored := make([]ScoredChunk, len(idx.chunks))
	for i, chunk := range idx.chunks {
		scored[i] = ScoredChunk{
			Chunk: chunk,
			Score: cosineSimilarity(query, idx.vectors[i]),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// cosineSimilarity computes cosine similarity between two vectors of equal
// length. Returns 0 when either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Builder accumulates chunks and their embeddings into an Index.
type Builder struct {
	dimension int
	model     string
	chunks    []Chunk
	vectors   [][]float32
}

// NewBuilder creates a builder for an index with the given embedding model
// name and vector dimension.
func NewBuilder(model string, dimension int) *Builder {
	return &Builder{
		dimension: dimension,
		model:     model,
	}
}

// Add appends a chunk and its embedding vector to the builder.
func (b *Builder) Add(chunk Chunk, embedding []float32) error {
	if len(embedding) != b.dimension {
		return fmt.Errorf("%w: embedding has %d dimensions, expected %d",
			ErrDimensionMismatch, len(embedding), b.dimension)
	}
	b.chunks = append(b.chunks, chunk)
	b.vectors = append(b.vectors, embedding)
	return nil
}

// Len returns the number of chunks added so far.
func (b *Builder) Len() int { return len(b.chunks) }

// Build produces an immutable Index. At least one chunk must have been added.
func (b *Builder) Build() (*Index, error) {
	if len(b.chunks) == 0 {
		return nil, ErrEmptyIndex
	}
	return &Index{
		dimension: b.dimension,
		model:     b.model,
		chunks:    b.chunks,
		vectors:   b.vectors,
	}, nil
}
