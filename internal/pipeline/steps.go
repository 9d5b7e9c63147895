package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/redirscan/internal/enrich"
	"github.com/nao1215/redirscan/internal/heuristics"
	"github.com/nao1215/redirscan/internal/history"
	"github.com/nao1215/redirscan/internal/model"
)

// Step names as recorded in Report.PerformedSteps.
const (
	StepTrace      = "trace"
	StepEnrich     = "enrich"
	StepHeuristics = "heuristics"
	StepHistory    = "history"
	StepAlert      = "alert"
	StepArchive    = "archive"
)

// ErrNotTraced is returned by steps that need a traced chain.
var ErrNotTraced = errors.New("report has no traced chain")

func traced(report *model.Report) bool {
	return report.Chain != nil && report.Chain.Final.URL != ""
}

// Tracer follows the redirect chain of a URL.
type Tracer interface {
	Trace(ctx context.Context, initialURL string) (*model.ChainResult, error)
}

// TraceStep traces report.Chain.InitialURL and replaces the chain with the result.
type TraceStep struct {
	tracer Tracer
	now    func() time.Time
}

// NewTraceStep creates a TraceStep.
func NewTraceStep(tracer Tracer) *TraceStep {
	return &TraceStep{tracer: tracer, now: time.Now}
}

// Name returns the step name.
func (s *TraceStep) Name() string { return StepTrace }

// Do traces the chain. Loop detection and network failures are returned as is.
func (s *TraceStep) Do(ctx context.Context, report *model.Report) error {
	report.AnalyzedAt = s.now().UTC()
	result, err := s.tracer.Trace(ctx, report.Chain.InitialURL)
	if err != nil {
		return err
	}
	report.Chain = result
	return nil
}

// Enricher runs the best-effort enrichments of a chain.
type Enricher interface {
	Enrich(ctx context.Context, chain *model.ChainResult, deep bool) enrich.Result
}

// EnrichStep attaches DNS, certificate and content results.
type EnrichStep struct {
	enricher Enricher
	deep     bool
}

// NewEnrichStep creates an EnrichStep. deep enables certificate and content analysis.
func NewEnrichStep(enricher Enricher, deep bool) *EnrichStep {
	return &EnrichStep{enricher: enricher, deep: deep}
}

// Name returns the step name.
func (s *EnrichStep) Name() string { return StepEnrich }

// Do runs the enrichments. Failed enrichments leave their fields nil.
func (s *EnrichStep) Do(ctx context.Context, report *model.Report) error {
	if !traced(report) {
		return ErrNotTraced
	}
	result := s.enricher.Enrich(ctx, report.Chain, s.deep)
	result.Apply(report.Chain)
	if report.Security == nil {
		report.Security = &model.SecurityAnalysis{}
	}
	report.Security.CertificateInfo = result.Certificate
	report.Security.ContentAnalysis = result.Content
	return nil
}

// HeuristicsStep computes indicators, tracking parameters and the risk score.
type HeuristicsStep struct {
	engine *heuristics.Engine
}

// NewHeuristicsStep creates a HeuristicsStep.
func NewHeuristicsStep(engine *heuristics.Engine) *HeuristicsStep {
	return &HeuristicsStep{engine: engine}
}

// Name returns the step name.
func (s *HeuristicsStep) Name() string { return StepHeuristics }

// Do evaluates the rule table, keeping enrichment results from EnrichStep.
func (s *HeuristicsStep) Do(_ context.Context, report *model.Report) error {
	if !traced(report) {
		return ErrNotTraced
	}
	var (
		cert    *model.CertificateInfo
		content *model.ContentAnalysis
	)
	if report.Security != nil {
		cert = report.Security.CertificateInfo
		content = report.Security.ContentAnalysis
	}
	s.engine.Evaluate(report, cert, content)
	return nil
}

// HistoryStep diffs the chain against the previous analysis of the same URL.
type HistoryStep struct {
	cache *history.Cache
}

// NewHistoryStep creates a HistoryStep.
func NewHistoryStep(cache *history.Cache) *HistoryStep {
	return &HistoryStep{cache: cache}
}

// Name returns the step name.
func (s *HistoryStep) Name() string { return StepHistory }

// Do compares and stores the chain.
func (s *HistoryStep) Do(_ context.Context, report *model.Report) error {
	if !traced(report) {
		return ErrNotTraced
	}
	report.History = s.cache.Compare(report.Chain)
	return nil
}

// Notifier delivers alerts for suspicious reports.
type Notifier interface {
	Notify(ctx context.Context, report *model.Report) error
}

// AlertStep posts a webhook alert when indicators were raised.
type AlertStep struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewAlertStep creates an AlertStep.
func NewAlertStep(notifier Notifier, logger *slog.Logger) *AlertStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertStep{notifier: notifier, logger: logger}
}

// Name returns the step name.
func (s *AlertStep) Name() string { return StepAlert }

// Do sends the alert. Delivery failures are logged and otherwise ignored.
func (s *AlertStep) Do(ctx context.Context, report *model.Report) error {
	if err := s.notifier.Notify(ctx, report); err != nil {
		s.logger.Warn("alert delivery failed", "url", report.Chain.InitialURL, "error", err)
	}
	return nil
}

// Archive stores finished reports.
type Archive interface {
	SaveReport(ctx context.Context, report *model.Report) (int64, error)
}

// ArchiveStep saves the report to the archive.
type ArchiveStep struct {
	archive Archive
	logger  *slog.Logger
}

// NewArchiveStep creates an ArchiveStep.
func NewArchiveStep(archive Archive, logger *slog.Logger) *ArchiveStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveStep{archive: archive, logger: logger}
}

// Name returns the step name.
func (s *ArchiveStep) Name() string { return StepArchive }

// Do saves the report. A failed save is logged; the analysis itself stands.
func (s *ArchiveStep) Do(ctx context.Context, report *model.Report) error {
	id, err := s.archive.SaveReport(ctx, report)
	if err != nil {
		s.logger.Warn("failed to archive report", "url", report.Chain.InitialURL, "error", err)
		return nil
	}
	s.logger.Debug("report archived", "url", report.Chain.InitialURL, "id", id)
	return nil
}
