// Package query coordinates the full answer path: response cache check,
// index load, retrieval, and the optional generative step with write-back
// caching. Every component failure is converted into a typed Result at this
// boundary; nothing panics or errors past the processor.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/grimoire-labs/arcane-scribe/internal/llm"
	"github.com/grimoire-labs/arcane-scribe/internal/respcache"
	"github.com/grimoire-labs/arcane-scribe/internal/vectorindex"
)

// noResultsAnswer is returned on the retrieval-only path when the index
// yields no chunks for the query.
const noResultsAnswer = "No specific information found to answer your query based on retrieval."

// Request is a single query against one document collection.
// InvokeGenerativeLLM defaults to false: retrieval-only is the cheap, safe
// path and callers opt in to generation explicitly.
type Request struct {
	QueryText            string
	SRDID                string
	InvokeGenerativeLLM  bool
	UseConversationStyle bool
	GenerationConfig     llm.GenerationConfig
}

// IndexProvider yields a loaded vector index for a collection identifier.
type IndexProvider interface {
	GetOrLoad(ctx context.Context, srdID string) (*vectorindex.Index, error)
}

// ChunkRetriever performs top-k retrieval over a loaded index.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, idx *vectorindex.Index, queryText string) ([]vectorindex.ScoredChunk, error)
}

// Generator produces an answer from a question and retrieved context.
type Generator interface {
	Generate(ctx context.Context, question string, contexts []string) (string, error)
}

// ModelConfigurator builds a per-request generator from client-supplied
// generation parameters.
type ModelConfigurator interface {
	Configure(cfg llm.GenerationConfig) (Generator, error)
}

// Processor is the answer orchestrator.
type Processor struct {
	indexes   IndexProvider
	retriever ChunkRetriever
	llm       ModelConfigurator
	cache     respcache.Cache
	logger    *slog.Logger
	now       func() time.Time
}

// NewProcessor wires the orchestrator. cache may be nil, in which case
// response caching is disabled.
func NewProcessor(indexes IndexProvider, retriever ChunkRetriever, configurator ModelConfigurator, cache respcache.Cache, logger *slog.Logger) *Processor {
	if cache == nil {
		cache = respcache.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		indexes:   indexes,
		retriever: retriever,
		llm:       configurator,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

// Answer runs the query through the full state machine:
// cache check → index load → retrieve → retrieval-only return, or
// configure model → generate → cache write → generated return.
func (p *Processor) Answer(ctx context.Context, req Request) Result {
	if p.indexes == nil || p.retriever == nil || (req.InvokeGenerativeLLM && p.llm == nil) {
		p.logger.Error("query components not initialized", "srd_id", req.SRDID)
		return failure(ErrNotReady, "Internal server error: Query processing components not ready.")
	}

	cacheKey := respcache.Key(req.SRDID, req.QueryText, req.InvokeGenerativeLLM)

	// 1. Cache check, generative path only. Any cache failure is a miss.
	if req.InvokeGenerativeLLM {
		if rec, err := p.cache.Lookup(ctx, cacheKey); err == nil {
			p.logger.Info("response cache hit", "srd_id", req.SRDID, "query_hash", cacheKey)
			return answer(rec.Answer, SourceCache)
		} else if !errors.Is(err, respcache.ErrCacheMiss) {
			p.logger.Warn("cache lookup failed, proceeding without cache", "error", err)
		}
	}

	// 2. Load the index through the bounded cache.
	idx, err := p.indexes.GetOrLoad(ctx, req.SRDID)
	if err != nil {
		p.logger.Error("failed to load index", "srd_id", req.SRDID, "error", err)
		return failure(ErrNotFound, fmt.Sprintf("Could not load SRD data for '%s'.", req.SRDID))
	}

	// 3. Retrieve the top-k chunks for the query.
	chunks, err := p.retriever.Retrieve(ctx, idx, req.QueryText)
	if err != nil {
		p.logger.Error("retrieval failed", "srd_id", req.SRDID, "query", req.QueryText, "error", err)
		return failure(ErrInternal, "Failed to prepare for information retrieval.")
	}

	// 4. Retrieval-only path: format chunks, no caching, no model call.
	if !req.InvokeGenerativeLLM {
		return p.retrievalOnlyResult(req, chunks)
	}

	question := req.QueryText
	if req.UseConversationStyle {
		question = fmt.Sprintf("User: %s\nBot:", req.QueryText)
	}

	// 5. Configure the model for this request's generation parameters.
	generator, err := p.llm.Configure(req.GenerationConfig)
	if err != nil {
		p.logger.Error("model configuration failed", "srd_id", req.SRDID, "error", err)
		return failure(ErrInternal, "Generative LLM component could not be configured.")
	}

	// 6. Generate from the retrieved context.
	contexts := make([]string, len(chunks))
	for i, c := range chunks {
		contexts[i] = c.Text
	}

	generated, err := generator.Generate(ctx, question, contexts)
	if err != nil {
		if errors.Is(err, llm.ErrProvider) {
			p.logger.Error("model provider error", "srd_id", req.SRDID, "query", req.QueryText, "error", err)
			return failure(ErrProvider, "Error communicating with the AI model. Please try again.")
		}
		p.logger.Error("generation failed", "srd_id", req.SRDID, "query", req.QueryText, "error", err)
		return failure(ErrInternal, "Failed to generate an answer using the RAG chain.")
	}

	// 7. Best-effort cache write; failures are logged, never escalated.
	p.storeCached(ctx, cacheKey, req, generated, contexts)

	// 8. Generated result.
	return Result{
		Answer:                   generated,
		Source:                   SourceGenerative,
		SourceDocumentsRetrieved: len(chunks),
	}
}

// retrievalOnlyResult formats retrieved chunks into a single human-readable
// answer string.
func (p *Processor) retrievalOnlyResult(req Request, chunks []vectorindex.ScoredChunk) Result {
	if len(chunks) == 0 {
		return answer(noResultsAnswer, SourceRetrievalOnly)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	formatted := fmt.Sprintf("Based on the retrieved SRD content for your query '%s':\n%s",
		req.QueryText, strings.Join(texts, "\n\n---\n\n"))
	return answer(formatted, SourceRetrievalOnly)
}

func (p *Processor) storeCached(ctx context.Context, cacheKey string, req Request, generated string, contexts []string) {
	cfgJSON, err := json.Marshal(req.GenerationConfig)
	if err != nil {
		cfgJSON = []byte("{}")
	}

	rec := &respcache.Record{
		QueryHash:         cacheKey,
		Answer:            generated,
		SRDID:             req.SRDID,
		QueryText:         req.QueryText,
		SourceSummary:     respcache.TruncateSummary(strings.Join(contexts, "; ")),
		Timestamp:         p.now(),
		GenerationConfig:  string(cfgJSON),
		WasConversational: req.UseConversationStyle,
	}
	if err := p.cache.Store(ctx, rec); err != nil {
		p.logger.Warn("failed to cache response", "query_hash", cacheKey, "error", err)
		return
	}
	p.logger.Info("response cached", "query_hash", cacheKey)
}
