package pipeline

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/redirscan/internal/model"
)

func newTestFactory(tracer Tracer) func() *Pipeline {
	return func() *Pipeline {
		return NewAnalysis(Components{Tracer: tracer})
	}
}

func TestNewBatchProcessor(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(newTestFactory(&fakeTracer{}))
		if bp.concurrency != DefaultConcurrency {
			t.Errorf("concurrency = %d", bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(newTestFactory(&fakeTracer{}), WithConcurrency(0))
		if bp.concurrency != DefaultConcurrency {
			t.Errorf("concurrency = %d", bp.concurrency)
		}
	})
}

func TestProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("returns results in input order", func(t *testing.T) {
		t.Parallel()

		urls := []string{
			"https://bit.ly/1",
			"https://fail.example/",
			"https://bit.ly/3",
		}
		bp := NewBatchProcessor(newTestFactory(&fakeTracer{}), WithConcurrency(3))
		results, err := bp.ProcessBatch(context.Background(), urls)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != len(urls) {
			t.Fatalf("got %d results", len(results))
		}
		for i, r := range results {
			if r.URL != urls[i] {
				t.Errorf("results[%d].URL = %q, want %q", i, r.URL, urls[i])
			}
		}
		if results[0].Err != nil || results[0].Report == nil || results[0].Report.RiskLevel != model.RiskMedium {
			t.Errorf("unexpected first result %+v", results[0])
		}
		if !errors.Is(results[1].Err, errTraceFailed) || results[1].Report != nil {
			t.Errorf("failed URL should carry the error and no report: %+v", results[1])
		}
		if results[2].Err != nil || results[2].Report == nil {
			t.Errorf("a failed URL must not stop the others: %+v", results[2])
		}
	})

	t.Run("bounds concurrency", func(t *testing.T) {
		t.Parallel()

		var inFlight, maxInFlight atomic.Int32
		tracer := &trackingTracer{inner: &fakeTracer{delay: 20 * time.Millisecond}, inFlight: &inFlight, max: &maxInFlight}
		urls := make([]string, 8)
		for i := range urls {
			urls[i] = "https://bit.ly/x"
		}

		bp := NewBatchProcessor(newTestFactory(tracer), WithConcurrency(2))
		if _, err := bp.ProcessBatch(context.Background(), urls); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := maxInFlight.Load(); got > 2 {
			t.Errorf("max in flight = %d, want <= 2", got)
		}
	})

	t.Run("cancelled batch marks unstarted URLs", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		bp := NewBatchProcessor(newTestFactory(&fakeTracer{}), WithConcurrency(1))
		results, err := bp.ProcessBatch(ctx, []string{"https://bit.ly/1", "https://bit.ly/2"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		for _, r := range results {
			if r.Report != nil || r.Err == nil {
				t.Errorf("unexpected result %+v", r)
			}
		}
	})

	t.Run("renders progress", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		bp := NewBatchProcessor(newTestFactory(&fakeTracer{}), WithProgress(&buf))
		if _, err := bp.ProcessBatch(context.Background(), []string{"https://bit.ly/1", "https://bit.ly/2"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Contains(buf.Bytes(), []byte("Tracing URLs")) {
			t.Errorf("progress output missing description: %q", buf.String())
		}
	})
}

func TestProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen = make(map[int]string)
	)
	urls := []string{"https://bit.ly/1", "https://bit.ly/2", "https://bit.ly/3"}
	bp := NewBatchProcessor(newTestFactory(&fakeTracer{}))
	err := bp.ProcessBatchWithCallback(context.Background(), urls, func(result BatchResult, index int) {
		mu.Lock()
		defer mu.Unlock()
		seen[index] = result.URL
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, u := range urls {
		if seen[i] != u {
			t.Errorf("callback index %d got %q, want %q", i, seen[i], u)
		}
	}
}

// trackingTracer records how many traces run at once.
type trackingTracer struct {
	inner    Tracer
	inFlight *atomic.Int32
	max      *atomic.Int32
}

func (t *trackingTracer) Trace(ctx context.Context, initialURL string) (*model.ChainResult, error) {
	n := t.inFlight.Add(1)
	defer t.inFlight.Add(-1)
	for {
		cur := t.max.Load()
		if n <= cur || t.max.CompareAndSwap(cur, n) {
			break
		}
	}
	return t.inner.Trace(ctx, initialURL)
}
