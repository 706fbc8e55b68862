// Package capability defines the typed boundary to the external Layer-2
// classifier and Layer-3 profiler scoring capabilities. The core owns the
// contract and the merge discipline; the model internals stay opaque and
// swappable behind the Capability interface.
package capability

import (
	"context"
	"strings"
	"time"

	"github.com/zen-systems/routegate/pkg/schema"
	"github.com/zen-systems/routegate/pkg/signal"
)

// Input is the single contract every capability consumes: the prompt, the
// optional context text and the accumulated bundle from earlier layers.
type Input struct {
	Prompt  string
	Context string
	Prior   *signal.Bundle
	Prefs   signal.Preferences
}

// Capability enriches a bundle with one deeper layer of analysis. The
// returned bundle must be a strict superset of the prior one; callers pass
// a clone so implementations never mutate earlier layers.
type Capability interface {
	// Name returns the backend identifier.
	Name() string

	// Layer returns the analysis layer this capability serves.
	Layer() schema.AnalysisLayer

	// Enrich returns the prior bundle with this layer's additive section
	// attached.
	Enrich(ctx context.Context, in Input) (*signal.Bundle, error)

	// CanResume reports whether the backend can continue generation from a
	// partial response during a handoff.
	CanResume() bool
}

// EnrichWithBudget invokes the capability under a hard latency budget.
// A capability that does not answer in time is treated as failed; the call
// never blocks past the budget even if the backend ignores cancellation.
func EnrichWithBudget(ctx context.Context, c Capability, in Input, budget time.Duration) (*signal.Bundle, error) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type result struct {
		bundle *signal.Bundle
		err    error
	}
	done := make(chan result, 1)
	go func() {
		b, err := c.Enrich(ctx, in)
		done <- result{bundle: b, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, wrapEnrichError(c.Layer(), r.err)
		}
		return r.bundle, nil
	case <-ctx.Done():
		return nil, wrapEnrichError(c.Layer(), ctx.Err())
	}
}

// TruncateTokens bounds the prompt handed to the classifier to its input
// window, by whitespace token.
func TruncateTokens(prompt string, max int) string {
	fields := strings.Fields(prompt)
	if len(fields) <= max {
		return prompt
	}
	return strings.Join(fields[:max], " ")
}
