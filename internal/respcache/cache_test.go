package respcache

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *SQLiteCache {
	t.Helper()
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// TestKey_Deterministic verifies identical inputs always produce the same
// key and any differing input produces a different one.
func TestKey_Deterministic(t *testing.T) {
	k1 := Key("dnd5e_srd", "What is a fireball?", true)
	k2 := Key("dnd5e_srd", "What is a fireball?", true)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 32, "MD5 hex digest")

	assert.NotEqual(t, k1, Key("pf2e_srd", "What is a fireball?", true), "srd changes key")
	assert.NotEqual(t, k1, Key("dnd5e_srd", "What is a wizard?", true), "query changes key")
	assert.NotEqual(t, k1, Key("dnd5e_srd", "What is a fireball?", false), "generative flag changes key")
}

func TestLookup_MissOnAbsentKey(t *testing.T) {
	c := newTestCache(t)
	_, err := c.Lookup(context.Background(), Key("dnd5e_srd", "nothing", true))
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestStoreLookup_Roundtrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	key := Key("dnd5e_srd", "What is a fireball?", true)
	rec := &Record{
		QueryHash:         key,
		Answer:            "A fireball is a 3rd-level evocation spell.",
		SRDID:             "dnd5e_srd",
		QueryText:         "What is a fireball?",
		SourceSummary:     "fireball text; evocation rules",
		GenerationConfig:  `{"temperature":0.7}`,
		WasConversational: true,
	}
	require.NoError(t, c.Store(ctx, rec))

	got, err := c.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, rec.Answer, got.Answer)
	assert.Equal(t, rec.SRDID, got.SRDID)
	assert.Equal(t, rec.QueryText, got.QueryText)
	assert.Equal(t, rec.GenerationConfig, got.GenerationConfig)
	assert.True(t, got.WasConversational)
	assert.Greater(t, got.ExpiresAt, time.Now().Unix())
}

// TestLookup_ExpiredIsMiss verifies a record with ttl <= now is never
// returned.
func TestLookup_ExpiredIsMiss(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	key := Key("dnd5e_srd", "expired", true)
	require.NoError(t, c.Store(ctx, &Record{
		QueryHash: key,
		Answer:    "stale",
		SRDID:     "dnd5e_srd",
		QueryText: "expired",
		ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	}))

	_, err := c.Lookup(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

// TestStore_OverwritesExpired verifies a new write replaces an expired
// record under the same key.
func TestStore_OverwritesExpired(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	key := Key("dnd5e_srd", "refresh", true)
	require.NoError(t, c.Store(ctx, &Record{
		QueryHash: key, Answer: "old", SRDID: "dnd5e_srd", QueryText: "refresh",
		ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	}))
	require.NoError(t, c.Store(ctx, &Record{
		QueryHash: key, Answer: "new", SRDID: "dnd5e_srd", QueryText: "refresh",
	}))

	got, err := c.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Answer)
}

func TestStore_TruncatesSummary(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	key := Key("dnd5e_srd", "long summary", true)
	require.NoError(t, c.Store(ctx, &Record{
		QueryHash:     key,
		Answer:        "a",
		SRDID:         "dnd5e_srd",
		QueryText:     "long summary",
		SourceSummary: strings.Repeat("x", 5000),
	}))

	got, err := c.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Len(t, got.SourceSummary, 1000)
}

func TestNop_AlwaysMisses(t *testing.T) {
	var c Cache = Nop{}
	require.NoError(t, c.Store(context.Background(), &Record{QueryHash: "k"}))
	_, err := c.Lookup(context.Background(), "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
