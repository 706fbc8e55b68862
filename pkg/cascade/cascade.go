// Package cascade drives the tiered, confidence-gated analysis pipeline:
// Layer 1 heuristics, then the Layer 2 classifier and Layer 3 profiler,
// each invoked only when the previous layer failed to clear the bundle or a
// hard trigger fired.
package cascade

import (
	"context"
	"fmt"
	"time"

	"github.com/zen-systems/routegate/pkg/capability"
	"github.com/zen-systems/routegate/pkg/confidence"
	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/schema"
	"github.com/zen-systems/routegate/pkg/signal"
	"go.uber.org/zap"
)

// State names one position of the escalation state machine.
type State string

const (
	StateLayer1Pending State = "layer1_pending"
	StateLayer1Done    State = "layer1_done"
	StateLayer2Pending State = "layer2_pending"
	StateLayer2Done    State = "layer2_done"
	StateLayer3Pending State = "layer3_pending"
	StateLayer3Done    State = "layer3_done"
	StateStop          State = "stop"
)

// Escalation reasons recorded on transitions.
const (
	ReasonLowConfidence      = "low_confidence"
	ReasonComplianceFlags    = "compliance_flags"
	ReasonPIIDetected        = "pii_detected"
	ReasonTaskMultiplicity   = "task_multiplicity"
	ReasonThoroughPreference = "thorough_preference"
	ReasonCleared            = "confidence_cleared"
	ReasonTerminal           = "layer3_terminal"
	ReasonLayerFailed        = "layer_failed"
)

// Transition records one state change for the audit trail.
type Transition struct {
	From   State  `json:"from"`
	To     State  `json:"to"`
	Reason string `json:"reason"`
}

// LayerFailure records a capability that timed out or was unreachable. The
// layer is treated as non-authoritative; the cascade falls back to the best
// lower layer instead of waiting.
type LayerFailure struct {
	Layer schema.AnalysisLayer   `json:"layer"`
	Kind  capability.FailureKind `json:"kind"`
	Error string                 `json:"error"`
}

// Result is the accumulated outcome of one cascade run. The machine is the
// sole owner of bundle accumulation: earlier bundles are never edited,
// later layers append new ones.
type Result struct {
	Bundles     []*signal.Bundle     `json:"bundles"`
	Final       confidence.Score     `json:"final_confidence"`
	FinalLayer  schema.AnalysisLayer `json:"final_layer"`
	LayersRun   []string             `json:"layers_run"`
	Transitions []Transition         `json:"transitions"`
	Failures    []LayerFailure       `json:"failures,omitempty"`
	ForceReason string               `json:"force_reason,omitempty"`
}

// Authoritative returns the deepest bundle produced.
func (r *Result) Authoritative() *signal.Bundle {
	if len(r.Bundles) == 0 {
		return nil
	}
	return r.Bundles[len(r.Bundles)-1]
}

// Failed reports whether any layer failed during the run.
func (r *Result) Failed() bool {
	return len(r.Failures) > 0
}

// Machine runs the cascade for one request. It holds no cross-request
// state; cancellation simply discards the in-flight accumulation.
type Machine struct {
	extractor  *signal.Extractor
	evaluator  *confidence.Evaluator
	classifier capability.Capability
	profiler   capability.Capability
	cfg        *config.AnalysisConfig
	logger     *zap.Logger
}

// New creates a machine over the loaded tables and capability backends.
func New(cfg *config.AnalysisConfig, classifier, profiler capability.Capability, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		extractor:  signal.NewExtractor(cfg),
		evaluator:  confidence.NewEvaluator(cfg),
		classifier: classifier,
		profiler:   profiler,
		cfg:        cfg,
		logger:     logger,
	}
}

// Evaluator exposes the machine's confidence evaluator.
func (m *Machine) Evaluator() *confidence.Evaluator {
	return m.evaluator
}

// Profiler exposes the Layer-3 backend, used by the handoff manager for
// resume negotiation.
func (m *Machine) Profiler() capability.Capability {
	return m.profiler
}

// Run executes the cascade for one prompt. Layer 1 is synchronous and pure;
// Layers 2 and 3 run under their configured latency budgets. A failed layer
// is recorded and the best confidence-cleared lower layer wins; it is never
// fatal to the run.
func (m *Machine) Run(ctx context.Context, prompt, contextText string, prefs signal.Preferences) (*Result, error) {
	if len(prompt) > m.cfg.Thresholds.MaxPromptBytes {
		return nil, fmt.Errorf("prompt of %d bytes exceeds limit %d", len(prompt), m.cfg.Thresholds.MaxPromptBytes)
	}

	res := &Result{}
	state := StateLayer1Pending

	// Layer 1: pure extraction, no I/O.
	bundle := m.extractor.Extract(prompt, contextText, prefs)
	res.Bundles = append(res.Bundles, bundle)
	res.LayersRun = append(res.LayersRun, schema.Layer1.String())
	state = m.transition(res, state, StateLayer1Done, "")

	score := m.evaluator.Evaluate(bundle)
	res.Final = score
	res.FinalLayer = schema.Layer1

	if reason := m.forceLayer3Reason(bundle, prefs); reason != "" {
		res.ForceReason = reason
		state = m.transition(res, state, StateLayer3Pending, reason)
		return m.runLayer3(ctx, res, state, prompt, contextText, prefs)
	}

	if m.evaluator.Clears(score, bundle) {
		m.transition(res, state, StateStop, ReasonCleared)
		return res, nil
	}

	// Layer 2.
	state = m.transition(res, state, StateLayer2Pending, ReasonLowConfidence)
	in := capability.Input{Prompt: prompt, Context: contextText, Prior: bundle.Clone(), Prefs: prefs}
	enriched, err := capability.EnrichWithBudget(ctx, m.classifier, in, m.budget(schema.Layer2))
	if err != nil {
		m.recordFailure(res, schema.Layer2, err)
		m.transition(res, state, StateStop, ReasonLayerFailed)
		return res, nil
	}

	bundle = enriched
	res.Bundles = append(res.Bundles, bundle)
	res.LayersRun = append(res.LayersRun, schema.Layer2.String())
	state = m.transition(res, state, StateLayer2Done, "")

	score = m.evaluator.Evaluate(bundle)
	res.Final = score
	res.FinalLayer = schema.Layer2

	if reason := m.forceLayer3Reason(bundle, prefs); reason != "" {
		res.ForceReason = reason
		state = m.transition(res, state, StateLayer3Pending, reason)
		return m.runLayer3(ctx, res, state, prompt, contextText, prefs)
	}

	if m.evaluator.Clears(score, bundle) {
		m.transition(res, state, StateStop, ReasonCleared)
		return res, nil
	}

	state = m.transition(res, state, StateLayer3Pending, ReasonLowConfidence)
	return m.runLayer3(ctx, res, state, prompt, contextText, prefs)
}

func (m *Machine) runLayer3(ctx context.Context, res *Result, state State, prompt, contextText string, prefs signal.Preferences) (*Result, error) {
	prior := res.Authoritative()
	in := capability.Input{Prompt: prompt, Context: contextText, Prior: prior.Clone(), Prefs: prefs}
	enriched, err := capability.EnrichWithBudget(ctx, m.profiler, in, m.budget(schema.Layer3))
	if err != nil {
		m.recordFailure(res, schema.Layer3, err)
		m.transition(res, state, StateStop, ReasonLayerFailed)
		return res, nil
	}

	res.Bundles = append(res.Bundles, enriched)
	res.LayersRun = append(res.LayersRun, schema.Layer3.String())
	state = m.transition(res, state, StateLayer3Done, "")

	// Layer 3 is terminal and authoritative regardless of its own
	// confidence.
	res.Final = m.evaluator.Evaluate(enriched)
	res.FinalLayer = schema.Layer3
	m.transition(res, state, StateStop, ReasonTerminal)
	return res, nil
}

// forceLayer3Reason returns the first non-confidence trigger that forces a
// jump straight to Layer 3, or "".
func (m *Machine) forceLayer3Reason(b *signal.Bundle, prefs signal.Preferences) string {
	if b.Layer == schema.Layer3 {
		return ""
	}
	if b.HasCompliance() {
		return ReasonComplianceFlags
	}
	if b.HasPII() {
		return ReasonPIIDetected
	}
	if b.TaskMultiplicity() >= m.cfg.Thresholds.MultiplicityEscalation {
		return ReasonTaskMultiplicity
	}
	if prefs.Quality == schema.QualityThorough {
		return ReasonThoroughPreference
	}
	return ""
}

func (m *Machine) budget(layer schema.AnalysisLayer) time.Duration {
	ms := m.cfg.Budgets.Layer2Ms
	if layer == schema.Layer3 {
		ms = m.cfg.Budgets.Layer3Ms
	}
	return time.Duration(ms) * time.Millisecond
}

func (m *Machine) transition(res *Result, from, to State, reason string) State {
	res.Transitions = append(res.Transitions, Transition{From: from, To: to, Reason: reason})
	return to
}

func (m *Machine) recordFailure(res *Result, layer schema.AnalysisLayer, err error) {
	kind := capability.FailureUnavailable
	if capability.IsTimeout(err) {
		kind = capability.FailureTimeout
	}
	res.Failures = append(res.Failures, LayerFailure{Layer: layer, Kind: kind, Error: err.Error()})
	m.logger.Warn("analysis layer failed",
		zap.Int("layer", int(layer)),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
}
