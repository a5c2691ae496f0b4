// Package prefs is the session-scoped cache of per-document UI
// preferences. Values are fetched lazily on first access, cached for
// the session, and never written back automatically. Concurrent first
// accesses to the same key share one fetch.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Fetcher retrieves one preference value by key. The api client
// satisfies this.
type Fetcher interface {
	GetPreference(ctx context.Context, key string) (json.RawMessage, error)
}

// Store caches preference values for one edit session.
type Store struct {
	fetcher Fetcher
	log     zerolog.Logger

	mu    sync.Mutex
	cache map[string]json.RawMessage
	group singleflight.Group
}

// NewStore creates an empty preference cache over the given fetcher.
func NewStore(fetcher Fetcher, log zerolog.Logger) *Store {
	return &Store{
		fetcher: fetcher,
		log:     log,
		cache:   make(map[string]json.RawMessage),
	}
}

// Get returns the raw preference value for the key, fetching it on
// first access. An empty key (unsaved document) resolves to nil without
// fetching.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, error) {
	if key == "" {
		return nil, nil
	}

	s.mu.Lock()
	if v, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(key, func() (any, error) {
		raw, err := s.fetcher.GetPreference(ctx, key)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[key] = raw
		s.mu.Unlock()
		s.log.Debug().Str("key", key).Msg("preference cached")
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	raw, _ := v.(json.RawMessage)
	return raw, nil
}

// Forget drops a cached key so the next access refetches it.
func (s *Store) Forget(key string) {
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
}

// Get fetches a preference through the store and decodes it into T. A
// missing value yields T's zero value.
func Get[T any](ctx context.Context, s *Store, key string) (T, error) {
	var out T
	raw, err := s.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("prefs: decode %s: %w", key, err)
	}
	return out, nil
}
