package price

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tarancss/cryptowallet/lib/price/types"
	"github.com/tarancss/cryptowallet/lib/store"
)

// DefaultTTL is how long a stored snapshot is considered fresh.
const DefaultTTL = 5 * time.Minute

// Cache holds the last stored snapshot. A snapshot is fresh while less than the cache TTL has passed since it was
// captured.
type Cache interface {
	Get(ctx context.Context) (types.Snapshot, bool)
	Set(ctx context.Context, s types.Snapshot)
	IsFresh(ctx context.Context) bool
}

// CacheOption configures a cache.
type CacheOption func(*clock)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *clock) {
		c.now = now
	}
}

type clock struct {
	ttl time.Duration
	now func() time.Time
}

func newClock(ttl time.Duration, opts []CacheOption) clock {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := clock{ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(&c)
	}

	return c
}

func (c clock) fresh(s types.Snapshot) bool {
	return !s.IsZero() && c.now().Sub(s.CapturedAt) < c.ttl
}

// MemoryCache is a process wide Cache. Concurrent writers race and the last one wins.
type MemoryCache struct {
	clock
	mu   sync.RWMutex
	snap types.Snapshot
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache(ttl time.Duration, opts ...CacheOption) *MemoryCache {
	return &MemoryCache{clock: newClock(ttl, opts)}
}

// Get returns a copy of the stored snapshot.
func (m *MemoryCache) Get(_ context.Context) (types.Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.snap.IsZero() {
		return types.Snapshot{}, false
	}

	s := m.snap
	s.Quotes = s.Quotes.Clone()

	return s, true
}

// Set replaces the stored snapshot.
func (m *MemoryCache) Set(_ context.Context, s types.Snapshot) {
	s.Quotes = s.Quotes.Clone()

	m.mu.Lock()
	m.snap = s
	m.mu.Unlock()
}

// IsFresh reports whether a snapshot is stored and younger than the TTL.
func (m *MemoryCache) IsFresh(_ context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.fresh(m.snap)
}

// StoreCache is a Cache kept in a database so several wallet instances share it. Database failures are logged and
// behave as an empty cache.
type StoreCache struct {
	clock
	db  store.DB
	key string
}

// NewStoreCache returns a Cache persisted under key in db.
func NewStoreCache(db store.DB, key string, ttl time.Duration, opts ...CacheOption) *StoreCache {
	return &StoreCache{clock: newClock(ttl, opts), db: db, key: key}
}

// Get loads the stored snapshot.
func (s *StoreCache) Get(ctx context.Context) (types.Snapshot, bool) {
	snap, err := s.db.LoadQuotes(ctx, s.key)
	if err != nil {
		if !errors.Is(err, store.ErrDataNotFound) {
			log.WithError(err).WithField("key", s.key).Warn("price cache load failed")
		}

		return types.Snapshot{}, false
	}

	return snap, !snap.IsZero()
}

// Set saves snap, overwriting the previous snapshot.
func (s *StoreCache) Set(ctx context.Context, snap types.Snapshot) {
	if err := s.db.SaveQuotes(ctx, s.key, snap); err != nil {
		log.WithError(err).WithField("key", s.key).Warn("price cache save failed")
	}
}

// IsFresh reports whether the stored snapshot is younger than the TTL.
func (s *StoreCache) IsFresh(ctx context.Context) bool {
	snap, ok := s.Get(ctx)

	return ok && s.fresh(snap)
}
