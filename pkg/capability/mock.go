package capability

import (
	"context"
	"time"

	"github.com/zen-systems/routegate/pkg/schema"
	"github.com/zen-systems/routegate/pkg/signal"
)

// Mock returns scripted enrichments for tests.
type Mock struct {
	MockName  string
	MockLayer schema.AnalysisLayer
	Resumable bool

	// Delay is applied before answering, to exercise latency budgets.
	Delay time.Duration

	// Err, when set, is returned instead of a bundle.
	Err error

	// EnrichFn, when set, overrides the default echo behavior.
	EnrichFn func(ctx context.Context, in Input) (*signal.Bundle, error)

	Calls int
}

func (m *Mock) Name() string {
	if m.MockName == "" {
		return "mock"
	}
	return m.MockName
}

func (m *Mock) Layer() schema.AnalysisLayer { return m.MockLayer }
func (m *Mock) CanResume() bool             { return m.Resumable }

// Enrich replays the scripted behavior, honoring context cancellation
// during the configured delay.
func (m *Mock) Enrich(ctx context.Context, in Input) (*signal.Bundle, error) {
	m.Calls++
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.EnrichFn != nil {
		return m.EnrichFn(ctx, in)
	}

	b := in.Prior.Clone()
	b.Layer = m.MockLayer
	switch m.MockLayer {
	case schema.Layer2:
		b.Classifier = &signal.ClassifierSignals{
			ComplexityScore:     in.Prior.ComplexityEstimate,
			DomainProbabilities: map[string]float64{},
			ReasoningHops:       in.Prior.ReasoningHopsEstimate,
			TaskMultiplicity:    in.Prior.MultiplicityEstimate,
			OutputVolume:        schema.VolumeMedium,
			Confidence:          1.0,
		}
	case schema.Layer3:
		b.Profiler = &signal.ProfilerSignals{Confidence: 1.0}
	}
	return b, nil
}
