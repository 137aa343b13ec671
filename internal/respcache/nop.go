package respcache

import "context"

// Nop is a Cache that never hits and never stores, used when no cache
// backend is configured.
type Nop struct{}

func (Nop) Lookup(ctx context.Context, key string) (*Record, error) {
	return nil, ErrCacheMiss
}

func (Nop) Store(ctx context.Context, rec *Record) error {
	return nil
}
