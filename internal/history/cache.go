package history

import (
	"container/list"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/redirscan/internal/model"
)

const (
	// MaxEntries is the default number of URLs kept.
	MaxEntries = 1000

	// TTL is how long an entry survives the sweep.
	TTL = 24 * time.Hour

	// SweepInterval is the period of the expiry sweep.
	SweepInterval = time.Hour
)

// Entry is the stored trace of one URL.
type Entry struct {
	Key      string
	Result   *model.ChainResult
	StoredAt time.Time
}

// Cache maps hash(initialURL) to the latest trace. It is safe for concurrent
// use, but Compare on the same key from two goroutines is last-writer-wins.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is oldest inserted

	maxEntries int
	ttl        time.Duration
	interval   time.Duration
	now        func() time.Time

	stop chan struct{}
	done chan struct{}
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxEntries overrides MaxEntries.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithTTL overrides TTL.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithSweepInterval overrides SweepInterval.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty Cache. The sweep does not run until Start is called.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: MaxEntries,
		ttl:        TTL,
		interval:   SweepInterval,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the cache key of a URL: hex encoded SHA3-256 of the trimmed URL.
func Key(rawURL string) string {
	sum := sha3.Sum256([]byte(strings.TrimSpace(rawURL)))
	return hex.EncodeToString(sum[:])
}

// Compare diffs result against the stored trace of the same initial URL and
// then stores result. The first trace of a URL yields an unchanged diff
// with FirstSeen set. Compare returns nil only for a nil result.
func (c *Cache) Compare(result *model.ChainResult) *model.HistoryDiff {
	if result == nil {
		return nil
	}
	key := Key(result.InitialURL)

	var previous *model.ChainResult
	if e, ok := c.Lookup(key); ok {
		previous = e.Result
	}
	c.Store(key, result)

	if previous == nil {
		return &model.HistoryDiff{FirstSeen: true}
	}
	return Diff(previous, result)
}

// Lookup returns the entry stored under key.
func (c *Cache) Lookup(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *elem.Value.(*Entry), true
}

// Store overwrites the entry under key. The overwritten entry counts as
// newly inserted. The oldest inserted entry is evicted when over capacity.
func (c *Cache) Store(key string, result *model.ChainResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.Remove(elem)
	}
	c.entries[key] = c.order.PushBack(&Entry{Key: key, Result: result, StoredAt: c.now()})

	for len(c.entries) > c.maxEntries {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*Entry).Key)
	}
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes entries stored more than TTL ago and returns how many.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl)
	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		e := elem.Value.(*Entry)
		if e.StoredAt.Before(cutoff) {
			c.order.Remove(elem)
			delete(c.entries, e.Key)
			removed++
		}
		elem = next
	}
	return removed
}

// Start runs Sweep every sweep interval until Stop. Calling Start on a
// running cache does nothing.
func (c *Cache) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}(c.stop, c.done)
}

// Stop ends the sweep and waits for it to exit. It is safe to call Stop on
// a cache that was never started.
func (c *Cache) Stop() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}
