package history

import (
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/redirscan/internal/model"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func chain(initial, final string, hops, status int) *model.ChainResult {
	return &model.ChainResult{
		InitialURL: initial,
		HopCount:   hops,
		Final:      model.FinalDestination{Hop: model.Hop{URL: final, StatusCode: status}},
	}
}

func TestCacheCompare(t *testing.T) {
	t.Parallel()

	t.Run("first trace is unchanged", func(t *testing.T) {
		t.Parallel()

		c := New()
		diff := c.Compare(chain("https://a.example/", "https://b.example/", 1, 200))
		if diff == nil || diff.Changed || !diff.FirstSeen || len(diff.Changes) != 0 {
			t.Errorf("expected first-seen unchanged diff, got %+v", diff)
		}
		if c.Len() != 1 {
			t.Errorf("expected 1 entry, got %d", c.Len())
		}
	})

	t.Run("identical trace is unchanged", func(t *testing.T) {
		t.Parallel()

		c := New()
		c.Compare(chain("https://a.example/", "https://b.example/", 1, 200))
		diff := c.Compare(chain("https://a.example/", "https://b.example/", 1, 200))
		if diff == nil || diff.Changed || diff.FirstSeen || len(diff.Changes) != 0 {
			t.Errorf("expected unchanged diff, got %+v", diff)
		}
	})

	t.Run("all fields changed in fixed order", func(t *testing.T) {
		t.Parallel()

		c := New()
		c.Compare(chain("https://a.example/", "https://b.example/", 1, 200))
		diff := c.Compare(chain("https://a.example/", "https://c.example/", 3, 404))
		if diff == nil || !diff.Changed {
			t.Fatalf("expected a changed diff, got %+v", diff)
		}
		want := []model.Change{
			{Type: model.DiffHopCount, Old: "1", New: "3"},
			{Type: model.DiffFinalDestination, Old: "https://b.example/", New: "https://c.example/"},
			{Type: model.DiffFinalStatus, Old: "200", New: "404"},
		}
		if !slices.Equal(diff.Changes, want) {
			t.Errorf("changes = %+v, want %+v", diff.Changes, want)
		}
	})

	t.Run("compare overwrites the stored entry", func(t *testing.T) {
		t.Parallel()

		c := New()
		c.Compare(chain("https://a.example/", "https://b.example/", 1, 200))
		c.Compare(chain("https://a.example/", "https://c.example/", 2, 200))
		diff := c.Compare(chain("https://a.example/", "https://c.example/", 2, 200))
		if diff == nil || diff.Changed {
			t.Errorf("third trace should compare against the second, got %+v", diff)
		}
	})

	t.Run("nil result", func(t *testing.T) {
		t.Parallel()

		if New().Compare(nil) != nil {
			t.Error("expected nil diff for nil result")
		}
	})
}

func TestCacheEvictsOldestInserted(t *testing.T) {
	t.Parallel()

	c := New(WithMaxEntries(3))
	for i := 0; i < 3; i++ {
		c.Compare(chain(fmt.Sprintf("https://%d.example/", i), "https://x.example/", 0, 200))
	}
	// Re-storing 0 makes 1 the oldest.
	c.Compare(chain("https://0.example/", "https://x.example/", 0, 200))
	c.Compare(chain("https://3.example/", "https://x.example/", 0, 200))

	if c.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", c.Len())
	}
	if _, ok := c.Lookup(Key("https://1.example/")); ok {
		t.Error("oldest inserted entry should be evicted")
	}
	for _, u := range []string{"https://0.example/", "https://2.example/", "https://3.example/"} {
		if _, ok := c.Lookup(Key(u)); !ok {
			t.Errorf("%s should still be cached", u)
		}
	}
}

func TestCacheDefaultCapacity(t *testing.T) {
	t.Parallel()

	c := New()
	for i := 0; i <= MaxEntries; i++ {
		c.Store(Key(fmt.Sprintf("https://%d.example/", i)), nil)
	}
	if c.Len() != MaxEntries {
		t.Errorf("expected %d entries, got %d", MaxEntries, c.Len())
	}
}

func TestCacheSweep(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New(WithClock(clock.Now))

	c.Compare(chain("https://old.example/", "https://x.example/", 0, 200))
	clock.Advance(23 * time.Hour)
	c.Compare(chain("https://new.example/", "https://x.example/", 0, 200))
	clock.Advance(2 * time.Hour)

	if removed := c.Sweep(); removed != 1 {
		t.Errorf("expected 1 removed entry, got %d", removed)
	}
	if _, ok := c.Lookup(Key("https://old.example/")); ok {
		t.Error("entry older than TTL should be removed")
	}
	if _, ok := c.Lookup(Key("https://new.example/")); !ok {
		t.Error("recent entry should survive")
	}
}

func TestCacheStartStop(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New(WithClock(clock.Now), WithSweepInterval(5*time.Millisecond))
	c.Store(Key("https://a.example/"), nil)
	clock.Advance(TTL + time.Minute)

	c.Start()
	c.Start()
	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()
	c.Stop()

	if c.Len() != 0 {
		t.Error("running sweep should remove the expired entry")
	}

	New().Stop()
}

func TestKey(t *testing.T) {
	t.Parallel()

	if Key("https://a.example/") != Key(" https://a.example/ ") {
		t.Error("key should ignore surrounding whitespace")
	}
	if Key("https://a.example/") == Key("https://b.example/") {
		t.Error("different URLs should have different keys")
	}
	if len(Key("x")) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(Key("x")))
	}
}

func TestCacheConcurrentCompare(t *testing.T) {
	t.Parallel()

	c := New(WithMaxEntries(10))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Compare(chain(fmt.Sprintf("https://%d.example/", i%20), "https://x.example/", i%3, 200))
		}(i)
	}
	wg.Wait()
	if c.Len() > 10 {
		t.Errorf("cache exceeded capacity: %d", c.Len())
	}
}
