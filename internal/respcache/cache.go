// Package respcache caches generated answers in a durable key-value store
// with per-record expiry. The cache is an optimization, never a correctness
// dependency: every backend failure reads as a miss and every write failure
// is swallowed by the caller.
package respcache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// DefaultTTL is how long a cached answer stays valid.
const DefaultTTL = 3600 * time.Second

// summaryLimit caps the stored source-documents summary.
const summaryLimit = 1000

// ErrCacheMiss is returned by Lookup for a missing, malformed, or expired
// record.
var ErrCacheMiss = errors.New("cache miss")

// Record is a cached answer, keyed by the MD5 query hash.
type Record struct {
	QueryHash         string
	Answer            string
	SRDID             string
	QueryText         string
	SourceSummary     string // truncated to 1000 chars on store
	Timestamp         time.Time
	ExpiresAt         int64 // epoch seconds; ttl <= now reads as a miss
	GenerationConfig  string // serialized config the answer was produced with
	WasConversational bool
}

// Cache is the response cache collaborator interface.
type Cache interface {
	// Lookup returns the record under key, or ErrCacheMiss. Implementations
	// must treat a missing key, a malformed record, and an expired record
	// identically.
	Lookup(ctx context.Context, key string) (*Record, error)

	// Store writes the record, overwriting any existing one under the same
	// key. A zero ExpiresAt is filled with now + the cache's TTL.
	Store(ctx context.Context, rec *Record) error
}

// Key computes the deterministic cache key for a query: the MD5 hex digest
// of the collection id, the query text, and the generative-invocation flag.
// Retrieval-only and generative answers cache under different keys.
func Key(srdID, queryText string, generative bool) string {
	sum := md5.Sum(fmt.Appendf(nil, "%s-%s-%t", srdID, queryText, generative))
	return hex.EncodeToString(sum[:])
}

// TruncateSummary bounds a source-documents summary for storage.
func TruncateSummary(s string) string {
	if len(s) > summaryLimit {
		return s[:summaryLimit]
	}
	return s
}
