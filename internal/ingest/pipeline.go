// Package ingest builds the searchable index for a document collection:
// chunk the source documents, embed every chunk, assemble the vector index,
// and publish the serialized artifacts to the blob store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/grimoire-labs/arcane-scribe/internal/blobstore"
	"github.com/grimoire-labs/arcane-scribe/internal/chunk"
	"github.com/grimoire-labs/arcane-scribe/internal/vectorindex"
)

// Document is one source file to ingest.
type Document struct {
	// Name is the basename stored alongside the index, e.g. "spells.md".
	Name    string
	Content []byte
}

// FailedDoc records a document that could not be processed.
type FailedDoc struct {
	Name   string
	Reason string
}

// Result contains statistics about one ingestion run.
type Result struct {
	SRDID          string
	TotalDocs      int
	TotalChunks    int
	SuccessfulDocs int
	FailedDocs     []FailedDoc
	Duration       time.Duration
}

// Embedder generates embeddings for document chunks.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimension() int
}

// Pipeline orchestrates the full ingestion process from raw documents to
// published index artifacts.
type Pipeline struct {
	chunker  *chunk.Chunker
	embedder Embedder
	store    blobstore.Store
	logger   *slog.Logger
}

// NewPipeline creates an ingestion pipeline with the given components.
func NewPipeline(chunker *chunk.Chunker, embedder Embedder, store blobstore.Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Ingest chunks and embeds the given documents, builds the vector index for
// srdID, and uploads the index artifacts plus the source documents. A
// document that fails to chunk or embed is skipped and reported; the run
// fails only if no document survives.
func (p *Pipeline) Ingest(ctx context.Context, srdID string, docs []Document) (*Result, error) {
	start := time.Now()
	result := &Result{SRDID: srdID, TotalDocs: len(docs)}

	p.logger.Info("Starting ingestion", "srd_id", srdID, "docs", len(docs))

	builder := vectorindex.NewBuilder(p.embedder.Model(), p.embedder.Dimension())
	for _, doc := range docs {
		n, err := p.processDocument(ctx, srdID, doc, builder)
		if err != nil {
			p.logger.Warn("Failed to process document", "srd_id", srdID, "doc", doc.Name, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{
				Name:   doc.Name,
				Reason: err.Error(),
			})
			continue // Skip unprocessable docs, continue with others
		}
		result.SuccessfulDocs++
		result.TotalChunks += n
	}

	idx, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	if err := p.publish(ctx, srdID, idx); err != nil {
		return nil, fmt.Errorf("publish index: %w", err)
	}

	result.Duration = time.Since(start)
	p.logger.Info("Ingestion complete",
		"srd_id", srdID,
		"successful", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)

	return result, nil
}

// processDocument chunks and embeds a single document, adding every chunk
// to the index builder. Returns the number of chunks added.
func (p *Pipeline) processDocument(ctx context.Context, srdID string, doc Document, builder *vectorindex.Builder) (int, error) {
	chunks, err := p.chunker.ChunkDocument(doc.Content)
	if err != nil {
		return 0, fmt.Errorf("chunk: %w", err)
	}
	p.logger.Debug("Chunked document", "doc", doc.Name, "chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content // Content already has header path prepended
	}

	embeddings, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embeddings: %w", err)
	}

	for i, c := range chunks {
		indexed := vectorindex.Chunk{
			ID:         uuid.New().String(),
			Source:     doc.Name,
			Section:    c.HeaderPath,
			ChunkIndex: c.Index,
			Text:       c.RawContent, // Store without header prefix
		}
		if err := builder.Add(indexed, embeddings[i]); err != nil {
			return 0, fmt.Errorf("index chunk %d: %w", c.Index, err)
		}
	}

	// Keep the source document next to the index for inspection and re-runs.
	srcKey := path.Join(srdID, "source", doc.Name)
	if err := p.store.Put(ctx, srcKey, doc.Content); err != nil {
		return 0, fmt.Errorf("store source: %w", err)
	}

	p.logger.Info("Ingested document", "doc", doc.Name, "chunks", len(chunks))
	return len(chunks), nil
}

// publish serializes the index into a scratch directory and uploads the
// artifact files under "{srdID}/index/". The scratch directory is removed
// on every path.
func (p *Pipeline) publish(ctx context.Context, srdID string, idx *vectorindex.Index) error {
	dir, err := os.MkdirTemp("", "arcane_index_")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := idx.Save(dir); err != nil {
		return fmt.Errorf("serialize index: %w", err)
	}

	for _, name := range vectorindex.ArtifactFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read artifact %s: %w", name, err)
		}
		key := path.Join(srdID, vectorindex.ArtifactPrefix, name)
		if err := p.store.Put(ctx, key, data); err != nil {
			return fmt.Errorf("upload artifact %s: %w", name, err)
		}
	}

	p.logger.Info("Published index artifacts", "srd_id", srdID, "files", len(vectorindex.ArtifactFiles))
	return nil
}
