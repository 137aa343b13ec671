// Package retrieval performs nearest-neighbor retrieval of document chunks
// from a loaded vector index for a query.
package retrieval

import (
	"context"
	"fmt"

	"github.com/grimoire-labs/arcane-scribe/internal/vectorindex"
)

// DefaultTopK is the number of chunks retrieved per query.
const DefaultTopK = 4

// Embedder produces the query embedding. The concrete implementation lives
// in the embedding package.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever wraps a loaded index with query embedding and top-k search.
// Retrieval is a pure function of index and query; failures are reported,
// not retried.
type Retriever struct {
	embedder Embedder
	k        int
}

// New creates a retriever. A k of 0 uses DefaultTopK.
func New(embedder Embedder, k int) *Retriever {
	if k <= 0 {
		k = DefaultTopK
	}
	return &Retriever{
		embedder: embedder,
		k:        k,
	}
}

// TopK returns the configured retrieval depth.
func (r *Retriever) TopK() int { return r.k }

// Retrieve embeds queryText and returns the top-k most similar chunks from
// the index.
func (r *Retriever) Retrieve(ctx context.Context, idx *vectorindex.Index, queryText string) ([]vectorindex.ScoredChunk, error) {
	vec, err := r.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := idx.Search(vec, r.k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return chunks, nil
}
