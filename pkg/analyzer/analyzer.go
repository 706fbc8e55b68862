// Package analyzer is the orchestration facade: it drives the analysis
// cascade, the eligibility tree, decomposition and trust arbitration, and
// assembles the final routing metadata record.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zen-systems/routegate/pkg/arbiter"
	"github.com/zen-systems/routegate/pkg/capability"
	"github.com/zen-systems/routegate/pkg/cascade"
	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/decompose"
	"github.com/zen-systems/routegate/pkg/eligibility"
	"github.com/zen-systems/routegate/pkg/handoff"
	"github.com/zen-systems/routegate/pkg/metadata"
	"github.com/zen-systems/routegate/pkg/schema"
	"github.com/zen-systems/routegate/pkg/signal"
	"github.com/zen-systems/routegate/pkg/telemetry"
	"go.uber.org/zap"
)

// AnalyzerVersion is stamped into every RoutingMetadata record for audit.
const AnalyzerVersion = "1.0.0"

// handoffTTL bounds how long an unconsumed escalation context stays valid.
const handoffTTL = 30 * time.Second

// ErrBlocked is returned when the eligibility policy blocks the request
// outright (egress denied with block_on_egress_denied set).
var ErrBlocked = errors.New("request blocked by eligibility policy")

// Request is one inbound analysis request.
type Request struct {
	ID      string
	Prompt  string
	Context string
	Prefs   signal.Preferences

	// ClientDecision is the untrusted client-side routing proposal, if any.
	ClientDecision *metadata.RoutingDecision

	// Handoff carries the escalation context when this analysis continues
	// an interrupted on-device generation.
	Handoff *handoff.Context
}

// Engine analyzes requests. Concurrent requests are independent; the only
// shared state is the read-only configuration snapshot taken per request.
type Engine struct {
	store      *config.Store
	classifier capability.Capability
	profiler   capability.Capability
	telemetry  telemetry.Provider
	arbiter    *arbiter.Arbiter
	logger     *zap.Logger
}

// New creates an engine over the configuration store and capability
// backends.
func New(store *config.Store, classifier, profiler capability.Capability, tel telemetry.Provider, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tel == nil {
		tel = telemetry.DefaultProvider()
	}
	return &Engine{
		store:      store,
		classifier: classifier,
		profiler:   profiler,
		telemetry:  tel,
		arbiter:    arbiter.New(logger),
		logger:     logger,
	}
}

// HandoffManager returns the per-request escalation handoff manager the
// execution layer uses for mid-generation escalation.
func (e *Engine) HandoffManager(requestID string) *handoff.Manager {
	return handoff.NewManager(requestID, handoffTTL, e.logger)
}

// Profiler exposes the Layer-3 backend for handoff resume negotiation.
func (e *Engine) Profiler() capability.Capability {
	return e.profiler
}

// Analyze runs the full pipeline and returns the terminal routing record.
// Layer failures are recorded in the record, not returned as errors; only
// hard failures (oversized input, blocked requests, assembly defects)
// surface here.
func (e *Engine) Analyze(ctx context.Context, req Request) (*metadata.RoutingMetadata, error) {
	cfg := e.store.Current()

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	// One telemetry snapshot at analysis start; never cached across
	// requests.
	state, err := e.telemetry.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("telemetry snapshot: %w", err)
	}

	machine := cascade.New(cfg, e.classifier, e.profiler, e.logger)
	res, err := machine.Run(ctx, req.Prompt, req.Context, req.Prefs)
	if err != nil {
		return nil, err
	}

	bundle := res.Authoritative()

	// A compliance flag that did not force Layer 3 (absent a recorded
	// layer failure) is a defect, never a recoverable condition.
	if bundle.HasCompliance() && res.FinalLayer != schema.Layer3 && !res.Failed() {
		return nil, fmt.Errorf("compliance flags present but analysis stopped at %s", res.FinalLayer)
	}

	elig := eligibility.Evaluate(state, eligibility.Inputs{
		OfflineMode:         req.Prefs.OfflineMode,
		DataEgressPermitted: req.Prefs.DataEgressPermitted,
		L0DeviceAvailable:   req.Prefs.L0DeviceAvailable,
		ComplianceFlags:     bundle.ComplianceFlags,
		ComplexityScore:     bundle.ComplexityScore(),
		ReasoningHops:       bundle.ReasoningHops(),
	}, cfg.Eligibility, cfg.Thresholds)
	if elig.Blocked {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, elig.Reason)
	}

	dag := e.plan(cfg, req, bundle)

	server := decide(cfg, bundle, elig)
	decision := e.arbiter.Reconcile(req.ClientDecision, server, bundle, elig)

	md, err := metadata.Assemble(metadata.AssembleInput{
		RequestID:       req.ID,
		AnalyzerVersion: AnalyzerVersion,
		Cascade:         res,
		L0State:         state,
		Eligibility:     elig,
		Handoff:         req.Handoff,
		Subtasks:        dag,
		Decision:        decision,
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("analysis complete",
		zap.String("request_id", md.RequestID),
		zap.Strings("layers_run", md.LayersRun),
		zap.Float64("confidence", md.Confidence.Value),
		zap.String("tier", string(md.RecommendedTier())),
		zap.String("expert", md.Decision.Primary.Expert),
		zap.String("override_reason", md.Decision.OverrideReason),
	)
	return md, nil
}

// plan derives the subtask DAG: the profiler's proposal when Layer 3 ran,
// otherwise the heuristic planner when multiplicity was detected. Nil when
// no decomposition applies.
func (e *Engine) plan(cfg *config.AnalysisConfig, req Request, b *signal.Bundle) *decompose.DAG {
	planner := decompose.NewPlanner(cfg, e.logger)

	var dag *decompose.DAG
	if b.Profiler != nil && b.Profiler.Parallelism != nil {
		dag = planner.FromProposal(b.Profiler.Parallelism, req.Prompt, b)
	} else if b.TaskMultiplicity() > 1 {
		dag = planner.Plan(req.Prompt, b)
	}

	if dag != nil && len(dag.Nodes) == 1 && !dag.Degraded {
		return nil
	}
	return dag
}

// decide maps the analysis outcome to the server-side routing decision.
func decide(cfg *config.AnalysisConfig, b *signal.Bundle, elig eligibility.Outcome) metadata.RoutingDecision {
	domain := b.PrimaryDomain()
	tier := selectTier(cfg, b, elig)

	decision := metadata.RoutingDecision{
		Primary: metadata.RoutePath{Tier: tier, Expert: cfg.ExpertFor(domain, tier)},
		Origin:  metadata.OriginServer,
	}

	// A forced-L0 route may not leave the device, so it gets no fallback
	// chain to higher tiers.
	if elig.ForceL0 {
		return decision
	}

	for _, path := range cfg.FallbacksFor(tier) {
		fallbackTier := schema.Tier(path.Tier)
		expert := path.Expert
		if expert == "" {
			expert = cfg.ExpertFor(domain, fallbackTier)
		}
		decision.Fallbacks = append(decision.Fallbacks, metadata.RoutePath{Tier: fallbackTier, Expert: expert})
	}
	return decision
}

func selectTier(cfg *config.AnalysisConfig, b *signal.Bundle, elig eligibility.Outcome) schema.Tier {
	if elig.ForceL0 {
		return schema.TierL0
	}
	if elig.RedactionEscalation {
		return schema.TierL3
	}
	if elig.Eligible {
		return schema.TierL0
	}

	c := b.ComplexityScore()
	th := cfg.Thresholds
	switch {
	case c < th.L2ComplexityFloor:
		return schema.TierL1
	case c < th.L3ComplexityFloor:
		return schema.TierL2
	default:
		return schema.TierL3
	}
}
