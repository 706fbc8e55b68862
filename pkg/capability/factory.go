package capability

import (
	"fmt"

	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/schema"
)

// NewClassifier builds the Layer-2 backend named by configuration.
func NewClassifier(cfg *config.Config) (Capability, error) {
	spec := cfg.Analysis.Capabilities.Classifier
	switch spec.Kind {
	case "", "heuristic":
		return NewHeuristicClassifier(cfg.Analysis), nil
	case "openai":
		return NewOpenAIClassifier(cfg.OpenAIAPIKey, spec.Model)
	case "google":
		return NewGoogleCapability(cfg.GoogleAPIKey, spec.Model, schema.Layer2)
	default:
		return nil, fmt.Errorf("unknown classifier kind %q", spec.Kind)
	}
}

// NewProfiler builds the Layer-3 backend named by configuration.
func NewProfiler(cfg *config.Config) (Capability, error) {
	spec := cfg.Analysis.Capabilities.Profiler
	switch spec.Kind {
	case "", "heuristic":
		return NewHeuristicProfiler(cfg.Analysis), nil
	case "anthropic":
		return NewAnthropicProfiler(cfg.AnthropicAPIKey, spec.Model)
	case "google":
		return NewGoogleCapability(cfg.GoogleAPIKey, spec.Model, schema.Layer3)
	default:
		return nil, fmt.Errorf("unknown profiler kind %q", spec.Kind)
	}
}
