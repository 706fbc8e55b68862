package capability

import (
	"context"
	"fmt"
	"sort"

	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/schema"
	"github.com/zen-systems/routegate/pkg/signal"
)

// HeuristicClassifier is the default, fully offline Layer-2 backend. It is
// deterministic and allocation-light, which also makes it the reference
// implementation for tests.
type HeuristicClassifier struct {
	cfg *config.AnalysisConfig
}

// NewHeuristicClassifier creates the offline classifier.
func NewHeuristicClassifier(cfg *config.AnalysisConfig) *HeuristicClassifier {
	return &HeuristicClassifier{cfg: cfg}
}

func (c *HeuristicClassifier) Name() string                { return "heuristic" }
func (c *HeuristicClassifier) Layer() schema.AnalysisLayer { return schema.Layer2 }
func (c *HeuristicClassifier) CanResume() bool             { return true }

// Enrich attaches the classifier section derived from the Layer-1 signals.
func (c *HeuristicClassifier) Enrich(_ context.Context, in Input) (*signal.Bundle, error) {
	if in.Prior == nil {
		return nil, fmt.Errorf("classifier requires a prior bundle")
	}

	b := in.Prior.Clone()
	b.Layer = schema.Layer2
	b.Classifier = &signal.ClassifierSignals{
		ComplexityScore:     in.Prior.ComplexityEstimate,
		DomainProbabilities: domainProbabilities(in.Prior.DomainScores),
		PIIClasses:          append([]schema.PIIClass(nil), in.Prior.PIIClasses...),
		ReasoningHops:       in.Prior.ReasoningHopsEstimate,
		TaskMultiplicity:    in.Prior.MultiplicityEstimate,
		OutputVolume:        volumeClass(in.Prior),
		Confidence:          classifierConfidence(in.Prior),
	}
	return b, nil
}

// domainProbabilities converts keyword hit counts into a probability vector.
// The strongest domain gets a resolution bonus so a deterministic winner
// emerges even from tied hit counts.
func domainProbabilities(scores []signal.DomainScore) map[string]float64 {
	if len(scores) == 0 {
		return map[string]float64{}
	}
	probs := make(map[string]float64, len(scores))
	total := 0.0
	for i, ds := range scores {
		w := float64(ds.Hits)
		if i == 0 {
			w += 1.0
		}
		probs[ds.Tag] = w
		total += w
	}
	for tag := range probs {
		probs[tag] /= total
	}
	return probs
}

func volumeClass(b *signal.Bundle) schema.OutputVolumeClass {
	switch {
	case b.ListItemCount >= 5 || b.MultiplicityEstimate >= 5:
		return schema.VolumeVeryLong
	case b.QualityFlag || b.ListItemCount >= 2:
		return schema.VolumeLong
	case b.TokenCount < 16 && b.QuestionCount <= 1:
		return schema.VolumeShort
	default:
		return schema.VolumeMedium
	}
}

func classifierConfidence(b *signal.Bundle) float64 {
	switch len(b.DomainScores) {
	case 0:
		return 0.6
	case 1:
		return 0.9
	default:
		return 0.75
	}
}

// HeuristicProfiler is the default, fully offline Layer-3 backend.
type HeuristicProfiler struct {
	cfg *config.AnalysisConfig
}

// NewHeuristicProfiler creates the offline profiler.
func NewHeuristicProfiler(cfg *config.AnalysisConfig) *HeuristicProfiler {
	return &HeuristicProfiler{cfg: cfg}
}

func (p *HeuristicProfiler) Name() string                { return "heuristic" }
func (p *HeuristicProfiler) Layer() schema.AnalysisLayer { return schema.Layer3 }
func (p *HeuristicProfiler) CanResume() bool             { return false }

var domainToolPlans = map[string][]string{
	"code":         {"repo_search", "code_edit", "test_runner"},
	"architecture": {"repo_search", "diagram"},
	"research":     {"web_search", "citation_check"},
	"math":         {"calculator", "symbolic_solver"},
	"legal":        {"document_search"},
	"medical":      {"document_search"},
	"operations":   {"runbook_search", "shell"},
}

// Enrich attaches the profiler section: tool plan, parallelism proposal,
// sensitivity enums and, for flagged requests, redaction and compliance
// routing.
func (p *HeuristicProfiler) Enrich(_ context.Context, in Input) (*signal.Bundle, error) {
	if in.Prior == nil {
		return nil, fmt.Errorf("profiler requires a prior bundle")
	}

	b := in.Prior.Clone()
	b.Layer = schema.Layer3

	ps := &signal.ProfilerSignals{
		ToolPlan:           toolPlan(in.Prior.DomainTags),
		LatencySensitivity: "normal",
		QualitySensitivity: "normal",
		Confidence:         0.9,
	}
	if in.Prior.Urgency {
		ps.LatencySensitivity = "high"
	}
	if in.Prior.QualityFlag || in.Prefs.Quality == schema.QualityThorough {
		ps.QualitySensitivity = "high"
	}

	if mult := in.Prior.TaskMultiplicity(); mult > 1 {
		ps.Parallelism = parallelismProposal(mult)
	}

	if in.Prior.HasPII() {
		ps.RedactionPlan = &signal.RedactionPlan{
			Classes: append([]schema.PIIClass(nil), in.Prior.PIIClasses...),
			Note:    "strip matched spans before any off-device call",
		}
	}
	if in.Prior.HasCompliance() {
		ps.ComplianceRouting = &signal.ComplianceRouting{
			Flags:        append([]schema.ComplianceFlag(nil), in.Prior.ComplianceFlags...),
			RequiredTier: schema.TierL0,
		}
	}

	ps.LatencyEstimateMs = latencyEstimate(volumeClass(in.Prior))
	ps.CostEstimateUSD = costEstimate(in.Prior.TokenCount, volumeClass(in.Prior))

	b.Profiler = ps
	return b, nil
}

func toolPlan(domains []string) []string {
	var plan []string
	seen := make(map[string]bool)
	for _, d := range domains {
		for _, tool := range domainToolPlans[d] {
			if !seen[tool] {
				seen[tool] = true
				plan = append(plan, tool)
			}
		}
	}
	return plan
}

func parallelismProposal(mult int) *signal.ParallelismPlan {
	if mult > 10 {
		mult = 10
	}
	plan := &signal.ParallelismPlan{MergeStrategy: "concat"}
	for i := 0; i < mult; i++ {
		plan.Subtasks = append(plan.Subtasks, signal.PlannedSubtask{
			ID:          fmt.Sprintf("t%d", i+1),
			Description: fmt.Sprintf("subtask %d of %d", i+1, mult),
			TierHint:    schema.TierL1,
		})
	}
	return plan
}

func latencyEstimate(v schema.OutputVolumeClass) int {
	switch v {
	case schema.VolumeShort:
		return 800
	case schema.VolumeMedium:
		return 2500
	case schema.VolumeLong:
		return 6000
	default:
		return 15000
	}
}

func costEstimate(tokens int, v schema.OutputVolumeClass) float64 {
	out := map[schema.OutputVolumeClass]int{
		schema.VolumeShort:    150,
		schema.VolumeMedium:   600,
		schema.VolumeLong:     2000,
		schema.VolumeVeryLong: 6000,
	}[v]
	return float64(tokens+out) * 0.000012
}

// SortedPIIClasses returns a stable copy, used by backends that rebuild the
// class list from model output.
func SortedPIIClasses(classes []schema.PIIClass) []schema.PIIClass {
	out := append([]schema.PIIClass(nil), classes...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
