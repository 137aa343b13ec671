package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grimoire-labs/arcane-scribe/internal/llm"
	"github.com/grimoire-labs/arcane-scribe/internal/respcache"
	"github.com/grimoire-labs/arcane-scribe/internal/vectorindex"
)

// --- test doubles ---

type fakeIndexProvider struct {
	idx *vectorindex.Index
	err error
}

func (f *fakeIndexProvider) GetOrLoad(ctx context.Context, srdID string) (*vectorindex.Index, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.idx, nil
}

type fakeRetriever struct {
	chunks []vectorindex.ScoredChunk
	err    error
	calls  int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, idx *vectorindex.Index, queryText string) ([]vectorindex.ScoredChunk, error) {
	f.calls++
	return f.chunks, f.err
}

type fakeGenerator struct {
	answer string
	err    error
	calls  int

	lastQuestion string
	lastContexts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, question string, contexts []string) (string, error) {
	f.calls++
	f.lastQuestion = question
	f.lastContexts = contexts
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeConfigurator struct {
	gen     *fakeGenerator
	err     error
	calls   int
	lastCfg llm.GenerationConfig
}

func (f *fakeConfigurator) Configure(cfg llm.GenerationConfig) (Generator, error) {
	f.calls++
	f.lastCfg = cfg
	if f.err != nil {
		return nil, f.err
	}
	return f.gen, nil
}

// spyCache records lookups and stores in memory with TTL semantics.
type spyCache struct {
	records map[string]*respcache.Record
	lookups int
	stores  int
}

func newSpyCache() *spyCache {
	return &spyCache{records: make(map[string]*respcache.Record)}
}

func (c *spyCache) Lookup(ctx context.Context, key string) (*respcache.Record, error) {
	c.lookups++
	rec, ok := c.records[key]
	if !ok || rec.ExpiresAt <= time.Now().Unix() {
		return nil, respcache.ErrCacheMiss
	}
	return rec, nil
}

func (c *spyCache) Store(ctx context.Context, rec *respcache.Record) error {
	c.stores++
	if rec.ExpiresAt == 0 {
		rec.ExpiresAt = time.Now().Add(respcache.DefaultTTL).Unix()
	}
	c.records[rec.QueryHash] = rec
	return nil
}

func twoChunks() []vectorindex.ScoredChunk {
	return []vectorindex.ScoredChunk{
		{Chunk: vectorindex.Chunk{ID: "1", Text: "Fireball: a bright streak flashes..."}, Score: 0.92},
		{Chunk: vectorindex.Chunk{ID: "2", Text: "Evocation spells manipulate magical energy."}, Score: 0.85},
	}
}

func newTestProcessor(retriever *fakeRetriever, cfg *fakeConfigurator, cache respcache.Cache) *Processor {
	return NewProcessor(&fakeIndexProvider{idx: &vectorindex.Index{}}, retriever, cfg, cache, nil)
}

// --- scenarios ---

// Scenario A: retrieval-only query returns joined chunks and never touches
// the cache or the model.
func TestAnswer_RetrievalOnly(t *testing.T) {
	retriever := &fakeRetriever{chunks: twoChunks()}
	gen := &fakeGenerator{answer: "unused"}
	cfg := &fakeConfigurator{gen: gen}
	cache := newSpyCache()

	p := newTestProcessor(retriever, cfg, cache)
	res := p.Answer(context.Background(), Request{
		QueryText: "What is a fireball?",
		SRDID:     "dnd5e_srd",
	})

	require.False(t, res.IsError(), "unexpected error: %s", res.ErrMessage)
	assert.Equal(t, SourceRetrievalOnly, res.Source)
	assert.Contains(t, res.Answer, "Fireball: a bright streak")
	assert.Contains(t, res.Answer, "Evocation spells")
	assert.Contains(t, res.Answer, "What is a fireball?")

	assert.Zero(t, cache.lookups, "retrieval-only must not read the cache")
	assert.Zero(t, cache.stores, "retrieval-only must not write the cache")
	assert.Zero(t, cfg.calls, "retrieval-only must not configure the model")
	assert.Zero(t, gen.calls, "retrieval-only must not invoke the model")
}

func TestAnswer_RetrievalOnly_NoResults(t *testing.T) {
	p := newTestProcessor(&fakeRetriever{}, &fakeConfigurator{gen: &fakeGenerator{}}, newSpyCache())

	res := p.Answer(context.Background(), Request{QueryText: "obscure", SRDID: "dnd5e_srd"})
	require.False(t, res.IsError())
	assert.Equal(t, SourceRetrievalOnly, res.Source)
	assert.Equal(t, noResultsAnswer, res.Answer)
}

// Scenario B: generative query with a cold cache loads, retrieves,
// generates, and writes a cache record with a future TTL.
func TestAnswer_Generative(t *testing.T) {
	retriever := &fakeRetriever{chunks: twoChunks()}
	gen := &fakeGenerator{answer: "A fireball is a 3rd-level evocation spell."}
	cache := newSpyCache()

	p := newTestProcessor(retriever, &fakeConfigurator{gen: gen}, cache)
	res := p.Answer(context.Background(), Request{
		QueryText:           "What is a fireball?",
		SRDID:               "dnd5e_srd",
		InvokeGenerativeLLM: true,
	})

	require.False(t, res.IsError(), "unexpected error: %s", res.ErrMessage)
	assert.Equal(t, SourceGenerative, res.Source)
	assert.Equal(t, gen.answer, res.Answer)
	assert.Equal(t, 2, res.SourceDocumentsRetrieved)
	assert.Equal(t, []string{twoChunks()[0].Text, twoChunks()[1].Text}, gen.lastContexts)

	require.Equal(t, 1, cache.stores, "generative answer must be cached")
	key := respcache.Key("dnd5e_srd", "What is a fireball?", true)
	rec := cache.records[key]
	require.NotNil(t, rec)
	assert.Equal(t, gen.answer, rec.Answer)
	assert.Greater(t, rec.ExpiresAt, time.Now().Unix())
}

// Scenario C: repeating the generative query immediately hits the cache and
// does not invoke the model again.
func TestAnswer_Generative_CacheHit(t *testing.T) {
	retriever := &fakeRetriever{chunks: twoChunks()}
	gen := &fakeGenerator{answer: "A fireball is a 3rd-level evocation spell."}
	cache := newSpyCache()

	p := newTestProcessor(retriever, &fakeConfigurator{gen: gen}, cache)
	req := Request{QueryText: "What is a fireball?", SRDID: "dnd5e_srd", InvokeGenerativeLLM: true}

	first := p.Answer(context.Background(), req)
	require.False(t, first.IsError())
	require.Equal(t, 1, gen.calls)

	second := p.Answer(context.Background(), req)
	require.False(t, second.IsError())
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, 1, gen.calls, "cache hit must not invoke the model")
	assert.Equal(t, 1, retriever.calls, "cache hit skips retrieval")
}

// Scenario D: a nonexistent collection produces the not-found error message.
func TestAnswer_IndexLoadFailure(t *testing.T) {
	p := NewProcessor(
		&fakeIndexProvider{err: errors.New("missing artifact")},
		&fakeRetriever{},
		&fakeConfigurator{gen: &fakeGenerator{}},
		newSpyCache(),
		nil,
	)

	res := p.Answer(context.Background(), Request{QueryText: "anything", SRDID: "no_such_srd"})
	require.True(t, res.IsError())
	assert.Equal(t, ErrNotFound, res.Kind)
	assert.Equal(t, "Could not load SRD data for 'no_such_srd'.", res.ErrMessage)
}

// Scenario E: an out-of-range generation parameter still succeeds; the
// configurator receives the raw config and drops the bad field itself.
func TestAnswer_InvalidGenerationConfigStillSucceeds(t *testing.T) {
	badTemp := 5.0
	gen := &fakeGenerator{answer: "answer"}
	cfg := &fakeConfigurator{gen: gen}

	p := newTestProcessor(&fakeRetriever{chunks: twoChunks()}, cfg, newSpyCache())
	res := p.Answer(context.Background(), Request{
		QueryText:           "What is a fireball?",
		SRDID:               "dnd5e_srd",
		InvokeGenerativeLLM: true,
		GenerationConfig:    llm.GenerationConfig{Temperature: &badTemp},
	})

	require.False(t, res.IsError())
	assert.Equal(t, 1, gen.calls)
	require.NotNil(t, cfg.lastCfg.Temperature)
	assert.Equal(t, 5.0, *cfg.lastCfg.Temperature, "validation happens inside the configurator")
}

func TestAnswer_RetrievalFailure(t *testing.T) {
	p := newTestProcessor(&fakeRetriever{err: errors.New("boom")}, &fakeConfigurator{gen: &fakeGenerator{}}, newSpyCache())

	res := p.Answer(context.Background(), Request{QueryText: "q", SRDID: "dnd5e_srd"})
	require.True(t, res.IsError())
	assert.Equal(t, ErrInternal, res.Kind)
	assert.Equal(t, "Failed to prepare for information retrieval.", res.ErrMessage)
}

func TestAnswer_ConfigurationFailure(t *testing.T) {
	cfg := &fakeConfigurator{err: llm.ErrNotConfigured}
	p := newTestProcessor(&fakeRetriever{chunks: twoChunks()}, cfg, newSpyCache())

	res := p.Answer(context.Background(), Request{QueryText: "q", SRDID: "dnd5e_srd", InvokeGenerativeLLM: true})
	require.True(t, res.IsError())
	assert.Equal(t, ErrInternal, res.Kind)
	assert.Equal(t, "Generative LLM component could not be configured.", res.ErrMessage)
}

func TestAnswer_ProviderError(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("%w: 500", llm.ErrProvider)}
	cache := newSpyCache()
	p := newTestProcessor(&fakeRetriever{chunks: twoChunks()}, &fakeConfigurator{gen: gen}, cache)

	res := p.Answer(context.Background(), Request{QueryText: "q", SRDID: "dnd5e_srd", InvokeGenerativeLLM: true})
	require.True(t, res.IsError())
	assert.Equal(t, ErrProvider, res.Kind)
	assert.Equal(t, "Error communicating with the AI model. Please try again.", res.ErrMessage)
	assert.Zero(t, cache.stores, "failed generations are not cached")
}

func TestAnswer_GenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("parse error")}
	p := newTestProcessor(&fakeRetriever{chunks: twoChunks()}, &fakeConfigurator{gen: gen}, newSpyCache())

	res := p.Answer(context.Background(), Request{QueryText: "q", SRDID: "dnd5e_srd", InvokeGenerativeLLM: true})
	require.True(t, res.IsError())
	assert.Equal(t, ErrInternal, res.Kind)
	assert.Equal(t, "Failed to generate an answer using the RAG chain.", res.ErrMessage)
}

func TestAnswer_ConversationalFraming(t *testing.T) {
	gen := &fakeGenerator{answer: "answer"}
	p := newTestProcessor(&fakeRetriever{chunks: twoChunks()}, &fakeConfigurator{gen: gen}, newSpyCache())

	res := p.Answer(context.Background(), Request{
		QueryText:            "What is a fireball?",
		SRDID:                "dnd5e_srd",
		InvokeGenerativeLLM:  true,
		UseConversationStyle: true,
	})

	require.False(t, res.IsError())
	assert.Equal(t, "User: What is a fireball?\nBot:", gen.lastQuestion)
}

func TestAnswer_NotReady(t *testing.T) {
	p := NewProcessor(nil, nil, nil, nil, nil)
	res := p.Answer(context.Background(), Request{QueryText: "q", SRDID: "dnd5e_srd"})
	require.True(t, res.IsError())
	assert.Equal(t, ErrNotReady, res.Kind)
}

// A failing cache backend must never fail the request in either direction.
type brokenCache struct{}

func (brokenCache) Lookup(ctx context.Context, key string) (*respcache.Record, error) {
	return nil, errors.New("cache backend down")
}
func (brokenCache) Store(ctx context.Context, rec *respcache.Record) error {
	return errors.New("cache backend down")
}

func TestAnswer_CacheFailuresAreNonFatal(t *testing.T) {
	gen := &fakeGenerator{answer: "answer"}
	p := newTestProcessor(&fakeRetriever{chunks: twoChunks()}, &fakeConfigurator{gen: gen}, brokenCache{})

	res := p.Answer(context.Background(), Request{QueryText: "q", SRDID: "dnd5e_srd", InvokeGenerativeLLM: true})
	require.False(t, res.IsError(), "cache failures must not fail the request")
	assert.Equal(t, SourceGenerative, res.Source)
}
