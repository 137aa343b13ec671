package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grimoire-labs/arcane-scribe/internal/blobstore"
	"github.com/grimoire-labs/arcane-scribe/internal/chunk"
	"github.com/grimoire-labs/arcane-scribe/internal/indexcache"
	"github.com/grimoire-labs/arcane-scribe/internal/vectorindex"
)

// stubEmbedder returns a fixed-dimension deterministic vector per text.
type stubEmbedder struct {
	dim     int
	failFor string
}

func (s *stubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if s.failFor != "" && text == s.failFor {
			return nil, errors.New("embedding rejected")
		}
		vec := make([]float32, s.dim)
		for j, r := range text {
			vec[j%s.dim] += float32(r)
		}
		out[i] = vec
	}
	return out, nil
}

func (s *stubEmbedder) Model() string  { return "stub-model" }
func (s *stubEmbedder) Dimension() int { return s.dim }

func newTestPipeline(t *testing.T, embedder Embedder) (*Pipeline, blobstore.Store) {
	t.Helper()
	store, err := blobstore.NewFSStore(t.TempDir())
	require.NoError(t, err)
	return NewPipeline(chunk.NewChunker(chunk.Options{}), embedder, store, nil), store
}

const srdDoc = `# Spells

## Fireball

A bright streak flashes from your pointing finger.

## Magic Missile

You create three glowing darts of magical force.
`

func TestIngest_PublishesLoadableIndex(t *testing.T) {
	p, store := newTestPipeline(t, &stubEmbedder{dim: 8})

	result, err := p.Ingest(context.Background(), "dnd5e_srd", []Document{
		{Name: "spells.md", Content: []byte(srdDoc)},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalDocs)
	assert.Equal(t, 1, result.SuccessfulDocs)
	assert.Empty(t, result.FailedDocs)
	assert.Greater(t, result.TotalChunks, 0)

	// Artifacts must round-trip through the index cache's loader path.
	cache := indexcache.New(store, 1, nil)
	idx, err := cache.GetOrLoad(context.Background(), "dnd5e_srd")
	require.NoError(t, err)
	assert.Equal(t, result.TotalChunks, idx.Len())

	// Source documents are kept alongside the index.
	src, err := store.Get(context.Background(), "dnd5e_srd/source/spells.md")
	require.NoError(t, err)
	assert.Equal(t, srdDoc, string(src))
}

func TestIngest_SkipsFailingDocument(t *testing.T) {
	embedder := &stubEmbedder{dim: 8, failFor: "poison pill"}
	p, _ := newTestPipeline(t, embedder)

	result, err := p.Ingest(context.Background(), "dnd5e_srd", []Document{
		{Name: "good.md", Content: []byte(srdDoc)},
		{Name: "bad.md", Content: []byte("poison pill")},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessfulDocs)
	require.Len(t, result.FailedDocs, 1)
	assert.Equal(t, "bad.md", result.FailedDocs[0].Name)
	assert.Contains(t, result.FailedDocs[0].Reason, "embedding rejected")
}

func TestIngest_AllDocumentsFailing(t *testing.T) {
	embedder := &stubEmbedder{dim: 8, failFor: "poison pill"}
	p, _ := newTestPipeline(t, embedder)

	_, err := p.Ingest(context.Background(), "dnd5e_srd", []Document{
		{Name: "bad.md", Content: []byte("poison pill")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, vectorindex.ErrEmptyIndex)
}

func TestIngest_NoDocuments(t *testing.T) {
	p, _ := newTestPipeline(t, &stubEmbedder{dim: 8})

	_, err := p.Ingest(context.Background(), "dnd5e_srd", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, vectorindex.ErrEmptyIndex)
}
