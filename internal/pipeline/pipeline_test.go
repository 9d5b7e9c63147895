package pipeline

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/nao1215/redirscan/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, report *model.Report) error
	callCount int
}

func (m *mockStep) Do(ctx context.Context, report *model.Report) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, report)
	}
	return nil
}

func (m *mockStep) Name() string {
	return m.name
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if len(p.StepNames()) != 0 {
			t.Errorf("expected 0 steps, got %v", p.StepNames())
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})
}

func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	for _, name := range []string{"a", "b", "c"} {
		p.AddStep(&mockStep{name: name})
	}

	if !slices.Equal(p.StepNames(), []string{"a", "b", "c"}) {
		t.Errorf("unexpected step names %v", p.StepNames())
	}
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes steps in order and records them", func(t *testing.T) {
		t.Parallel()

		var order []string
		step := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(context.Context, *model.Report) error {
				order = append(order, name)
				return nil
			}}
		}
		p := New()
		for _, name := range []string{"first", "second", "third"} {
			p.AddStep(step(name))
		}

		report := model.NewReport("https://example.com/")
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"first", "second", "third"}
		if !slices.Equal(order, want) || !slices.Equal(report.PerformedSteps, want) {
			t.Errorf("order=%v performed=%v", order, report.PerformedSteps)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		failing := &mockStep{name: "failing", doFunc: func(context.Context, *model.Report) error { return boom }}
		after := &mockStep{name: "after"}
		p := New()
		p.AddStep(failing)
		p.AddStep(after)

		report := model.NewReport("https://example.com/")
		if err := p.Execute(context.Background(), report); !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
		if after.callCount != 0 {
			t.Error("steps after a failure must not run")
		}
		if len(report.PerformedSteps) != 0 {
			t.Errorf("failed step must not be recorded: %v", report.PerformedSteps)
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		step := &mockStep{name: "never"}
		p := New()
		p.AddStep(step)

		if err := p.Execute(ctx, model.NewReport("https://example.com/")); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("step must not run after cancellation")
		}
	})
}
