package pipeline

import (
	"log/slog"

	"github.com/nao1215/redirscan/internal/heuristics"
	"github.com/nao1215/redirscan/internal/history"
)

// Components are the collaborators of a full analysis.
// Notifier and Archive are optional.
type Components struct {
	Tracer   Tracer
	Enricher Enricher
	Engine   *heuristics.Engine
	History  *history.Cache
	Notifier Notifier
	Archive  Archive
	Deep     bool
	Logger   *slog.Logger
}

// NewAnalysis builds the pipeline trace, enrich, heuristics, history and,
// when configured, alert and archive.
func NewAnalysis(c Components) *Pipeline {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	engine := c.Engine
	if engine == nil {
		engine = heuristics.NewEngine()
	}

	p := New(WithLogger(logger))
	p.AddStep(NewTraceStep(c.Tracer))
	if c.Enricher != nil {
		p.AddStep(NewEnrichStep(c.Enricher, c.Deep))
	}
	p.AddStep(NewHeuristicsStep(engine))
	if c.History != nil {
		p.AddStep(NewHistoryStep(c.History))
	}
	if c.Notifier != nil {
		p.AddStep(NewAlertStep(c.Notifier, logger))
	}
	if c.Archive != nil {
		p.AddStep(NewArchiveStep(c.Archive, logger))
	}
	logger.Debug("analysis pipeline built", "steps", p.StepNames())
	return p
}
