package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/zen-systems/routegate/pkg/arbiter"
	"github.com/zen-systems/routegate/pkg/capability"
	"github.com/zen-systems/routegate/pkg/cascade"
	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/metadata"
	"github.com/zen-systems/routegate/pkg/schema"
	"github.com/zen-systems/routegate/pkg/signal"
	"github.com/zen-systems/routegate/pkg/telemetry"
)

func testEngine(t *testing.T, cfg *config.AnalysisConfig, classifier, profiler capability.Capability) *Engine {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultAnalysisConfig()
	}
	if classifier == nil {
		classifier = capability.NewHeuristicClassifier(cfg)
	}
	if profiler == nil {
		profiler = capability.NewHeuristicProfiler(cfg)
	}
	return New(config.NewStore(cfg), classifier, profiler, telemetry.DefaultProvider(), nil)
}

func onDevicePrefs() signal.Preferences {
	return signal.Preferences{L0DeviceAvailable: true, DataEgressPermitted: true}
}

func TestAnalyze_SimpleFactualPromptRoutesOnDevice(t *testing.T) {
	e := testEngine(t, nil, nil, nil)

	md, err := e.Analyze(context.Background(), Request{
		Prompt: "What time is it in Tokyo?",
		Prefs:  onDevicePrefs(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if md.FinalLayer != schema.Layer1 {
		t.Errorf("final layer = %v, want layer1", md.FinalLayer)
	}
	if md.Confidence.Value < 0.85 {
		t.Errorf("confidence = %v, want a clearing score", md.Confidence.Value)
	}
	if !md.Eligibility.Eligible || md.Eligibility.Rule != "simple_request" {
		t.Errorf("eligibility = %+v, want simple_request", md.Eligibility)
	}
	if md.RecommendedTier() != schema.TierL0 {
		t.Errorf("tier = %v, want L0", md.RecommendedTier())
	}
	if md.Decision.Primary.Expert != "ondevice-compact" {
		t.Errorf("expert = %q", md.Decision.Primary.Expert)
	}
	if len(md.Decision.Fallbacks) != 2 {
		t.Errorf("expected the configured L0 fallback chain, got %+v", md.Decision.Fallbacks)
	}
	if md.Subtasks != nil {
		t.Errorf("no decomposition applies, got %+v", md.Subtasks)
	}
	if md.RequestID == "" || md.Hash == "" {
		t.Error("record must carry a request id and hash")
	}
}

func TestAnalyze_ComplianceForcesLayer3AndPinsL0(t *testing.T) {
	e := testEngine(t, nil, nil, nil)

	md, err := e.Analyze(context.Background(), Request{
		Prompt: "My blood pressure today is 140/90, is that normal?",
		Prefs:  onDevicePrefs(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if md.ForceMode != cascade.ReasonComplianceFlags {
		t.Errorf("force reason = %q, want compliance_flags", md.ForceMode)
	}
	if md.FinalLayer != schema.Layer3 {
		t.Fatalf("final layer = %v, want layer3", md.FinalLayer)
	}
	if !md.Eligibility.ForceL0 || md.Eligibility.Rule != "compliance_flags" {
		t.Errorf("eligibility = %+v, want forced L0 on compliance", md.Eligibility)
	}
	if md.RecommendedTier() != schema.TierL0 {
		t.Errorf("tier = %v, want L0", md.RecommendedTier())
	}
	if len(md.Decision.Fallbacks) != 0 {
		t.Errorf("a forced-L0 route gets no off-device fallbacks, got %+v", md.Decision.Fallbacks)
	}

	last := md.Bundles[len(md.Bundles)-1]
	if last.Profiler == nil || last.Profiler.RedactionPlan == nil {
		t.Error("layer3 bundle must carry the redaction plan")
	}
	if last.Profiler != nil && last.Profiler.ComplianceRouting == nil {
		t.Error("layer3 bundle must carry compliance routing")
	}
}

func TestAnalyze_AmbiguousPromptClearsAtLayer2(t *testing.T) {
	e := testEngine(t, nil, nil, nil)

	md, err := e.Analyze(context.Background(), Request{
		Prompt: "Refactor this module for horizontal scalability",
		Prefs:  onDevicePrefs(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if md.FinalLayer != schema.Layer2 {
		t.Fatalf("final layer = %v, want layer2", md.FinalLayer)
	}
	if len(md.LayersRun) != 2 {
		t.Errorf("layers run = %v", md.LayersRun)
	}
	if md.RecommendedTier() != schema.TierL2 {
		t.Errorf("tier = %v, want L2", md.RecommendedTier())
	}
	if md.Decision.Primary.Expert != "architect-standard" {
		t.Errorf("expert = %q, want the domain L2 expert", md.Decision.Primary.Expert)
	}
	if len(md.Decision.Fallbacks) != 1 || md.Decision.Fallbacks[0].Expert != "architect-frontier" {
		t.Errorf("fallbacks = %+v, want the domain L3 expert", md.Decision.Fallbacks)
	}
}

func TestAnalyze_MultiPartRequestPlansSubtasks(t *testing.T) {
	e := testEngine(t, nil, nil, nil)

	prompt := "Prepare the launch:\n- write the announcement\n- draft the changelog\n- deploy the docs site"
	md, err := e.Analyze(context.Background(), Request{Prompt: prompt, Prefs: onDevicePrefs()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if md.ForceMode != cascade.ReasonTaskMultiplicity {
		t.Errorf("force reason = %q, want task_multiplicity", md.ForceMode)
	}
	if md.Subtasks == nil {
		t.Fatal("expected a subtask DAG")
	}
	if len(md.Subtasks.Nodes) < 3 {
		t.Errorf("expected at least 3 subtasks, got %+v", md.Subtasks.Nodes)
	}
	if err := md.Subtasks.Validate(); err != nil {
		t.Errorf("emitted DAG must validate: %v", err)
	}
}

func TestAnalyze_EgressDeniedBlocksWhenPolicySaysSo(t *testing.T) {
	cfg := config.DefaultAnalysisConfig()
	cfg.Eligibility.BlockOnEgressDenied = true
	e := testEngine(t, cfg, nil, nil)

	prefs := onDevicePrefs()
	prefs.DataEgressPermitted = false

	_, err := e.Analyze(context.Background(), Request{Prompt: "anything", Prefs: prefs})
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
}

func TestAnalyze_OfflineModeForcesL0(t *testing.T) {
	e := testEngine(t, nil, nil, nil)

	prefs := onDevicePrefs()
	prefs.OfflineMode = true

	md, err := e.Analyze(context.Background(), Request{
		Prompt: "Refactor this module for horizontal scalability",
		Prefs:  prefs,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !md.Eligibility.ForceL0 || md.RecommendedTier() != schema.TierL0 {
		t.Errorf("offline mode must pin L0, got %+v / %v", md.Eligibility, md.RecommendedTier())
	}
}

func TestAnalyze_ClientProposalReconciled(t *testing.T) {
	e := testEngine(t, nil, nil, nil)

	md, err := e.Analyze(context.Background(), Request{
		Prompt: "Refactor this module for horizontal scalability",
		Prefs:  onDevicePrefs(),
		ClientDecision: &metadata.RoutingDecision{
			Primary: metadata.RoutePath{Tier: schema.TierL1, Expert: "generalist-small"},
			Origin:  metadata.OriginClient,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if md.Decision.Primary.Tier != schema.TierL2 {
		t.Errorf("server decision must win, got %v", md.Decision.Primary.Tier)
	}
	if md.Decision.OverrideReason != arbiter.CauseEligibilityFloor {
		t.Errorf("override = %q, want %q", md.Decision.OverrideReason, arbiter.CauseEligibilityFloor)
	}
}

func TestAnalyze_DegradedRunStillRoutes(t *testing.T) {
	cfg := config.DefaultAnalysisConfig()
	profiler := &capability.Mock{MockLayer: schema.Layer3, Err: errors.New("backend down")}
	e := testEngine(t, cfg, nil, profiler)

	md, err := e.Analyze(context.Background(), Request{
		Prompt: "My blood pressure today is 140/90, is that normal?",
		Prefs:  onDevicePrefs(),
	})
	if err != nil {
		t.Fatalf("a failed layer must still produce a routed record: %v", err)
	}

	if len(md.Failures) != 1 {
		t.Fatalf("expected 1 recorded failure, got %+v", md.Failures)
	}
	if md.FinalLayer != schema.Layer1 {
		t.Errorf("final layer = %v, want the last good layer", md.FinalLayer)
	}
	// Compliance constraints survive the degradation.
	if !md.Eligibility.ForceL0 {
		t.Errorf("compliance must still pin L0, got %+v", md.Eligibility)
	}
}

func TestAnalyze_RecordSurvivesJSONRoundTrip(t *testing.T) {
	e := testEngine(t, nil, nil, nil)

	md, err := e.Analyze(context.Background(), Request{
		Prompt: "Refactor this module for horizontal scalability",
		Prefs:  onDevicePrefs(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := json.Marshal(md)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back metadata.RoutingMetadata
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Hash != md.Hash || back.RequestID != md.RequestID {
		t.Errorf("record identity lost in transit")
	}
	if len(back.Bundles) != len(md.Bundles) {
		t.Errorf("bundles lost in transit: %d vs %d", len(back.Bundles), len(md.Bundles))
	}
}

func TestAnalyze_RequestIDDefaulted(t *testing.T) {
	e := testEngine(t, nil, nil, nil)

	md, err := e.Analyze(context.Background(), Request{Prompt: "hello", Prefs: onDevicePrefs()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.RequestID == "" {
		t.Error("missing request id must be generated")
	}

	md2, err := e.Analyze(context.Background(), Request{ID: "fixed", Prompt: "hello", Prefs: onDevicePrefs()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md2.RequestID != "fixed" {
		t.Errorf("provided request id must be kept, got %q", md2.RequestID)
	}
}

func TestHandoffManager_PerRequest(t *testing.T) {
	e := testEngine(t, nil, nil, nil)

	m := e.HandoffManager("req-9")
	if m == nil {
		t.Fatal("expected a manager")
	}
	if m.Outstanding() {
		t.Error("fresh manager has nothing outstanding")
	}
}
