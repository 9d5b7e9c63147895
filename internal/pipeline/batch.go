package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/redirscan/internal/model"
)

// DefaultConcurrency is the number of URLs analyzed at once.
const DefaultConcurrency = 5

// ErrNotStarted marks URLs that were never analyzed because the batch was cancelled.
var ErrNotStarted = errors.New("analysis not started")

// BatchResult is the outcome of one URL in a batch. Report is nil when Err
// is a fatal analysis error.
type BatchResult struct {
	URL    string
	Report *model.Report
	Err    error
}

// BatchProcessor analyzes many URLs concurrently. Every URL gets a fresh
// pipeline; the only state they share is what the factory hands out, such
// as the history cache.
type BatchProcessor struct {
	pipelineFactory func() *Pipeline
	concurrency     int
	logger          *slog.Logger

	// progress receives a progress bar when non-nil.
	progress io.Writer
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent analyses.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithProgress renders a progress bar to w.
func WithProgress(w io.Writer) BatchOption {
	return func(b *BatchProcessor) {
		b.progress = w
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch analyzes urls and returns one result per URL in input order.
// A failed URL does not stop the others. The error is only set when ctx
// ended before every URL was started.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, urls []string) ([]BatchResult, error) {
	results := make([]BatchResult, len(urls))
	for i, u := range urls {
		results[i] = BatchResult{URL: u, Err: ErrNotStarted}
	}
	err := bp.ProcessBatchWithCallback(ctx, urls, func(result BatchResult, index int) {
		results[index] = result
	})
	return results, err
}

// ProcessBatchWithCallback analyzes urls and calls callback for each finished
// URL from the goroutine that analyzed it.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	urls []string,
	callback func(result BatchResult, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_urls", len(urls),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	bar := bp.newProgressBar(len(urls))
	var barMu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, u := range urls {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			report := model.NewReport(u)
			err := bp.pipelineFactory().Execute(ctx, report)
			result := BatchResult{URL: u, Report: report, Err: err}
			if err != nil {
				result.Report = nil
				bp.logger.Warn("analysis failed", "url", u, "error", err)
			}
			callback(result, i)

			if bar != nil {
				barMu.Lock()
				_ = bar.Add(1)
				barMu.Unlock()
			}
			return nil
		})
	}

	err := g.Wait()
	if bar != nil {
		_ = bar.Finish()
	}

	bp.logger.Info("batch processing complete",
		"total_urls", len(urls),
		"elapsed", time.Since(startTime),
	)
	return err
}

func (bp *BatchProcessor) newProgressBar(total int) *progressbar.ProgressBar {
	if bp.progress == nil || total == 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(bp.progress),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Tracing URLs[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
