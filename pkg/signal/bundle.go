package signal

import "github.com/zen-systems/routegate/pkg/schema"

// PIIRisk grades how strongly the prompt suggests personally identifiable
// information.
type PIIRisk string

const (
	PIIRiskNone     PIIRisk = "none"
	PIIRiskPossible PIIRisk = "possible"
	PIIRiskDetected PIIRisk = "detected"
)

// DomainScore records one matched domain tag and its keyword hit count.
type DomainScore struct {
	Tag  string `json:"tag"`
	Hits int    `json:"hits"`
}

// Bundle is the immutable output of one analysis layer. Later layers never
// edit an earlier bundle; they attach a new bundle whose fields are a strict
// superset (the added Classifier/Profiler sections).
type Bundle struct {
	Layer schema.AnalysisLayer `json:"layer"`

	TokenCount    int     `json:"token_count"`
	CharCount     int     `json:"char_count"`
	SentenceCount int     `json:"sentence_count"`
	QuestionCount int     `json:"question_count"`
	VerbDensity   float64 `json:"verb_density"`
	ListItemCount int     `json:"list_item_count"`

	Urgency     bool `json:"urgency"`
	QualityFlag bool `json:"quality_flag"`

	DomainTags   []string      `json:"domain_tags"`
	DomainScores []DomainScore `json:"domain_scores,omitempty"`

	PIIRisk    PIIRisk           `json:"pii_risk"`
	PIIClasses []schema.PIIClass `json:"pii_classes,omitempty"`

	ComplianceFlags []schema.ComplianceFlag `json:"compliance_flags,omitempty"`

	OfflineMode       bool `json:"offline_mode"`
	L0DeviceAvailable bool `json:"l0_device_available"`

	// Layer-1 heuristic estimates, refined by the classifier when Layer 2
	// runs.
	ComplexityEstimate    float64 `json:"complexity_estimate"`
	ReasoningHopsEstimate int     `json:"reasoning_hops_estimate"`
	MultiplicityEstimate  int     `json:"multiplicity_estimate"`

	// Additive layer-2/3 sections.
	Classifier *ClassifierSignals `json:"classifier,omitempty"`
	Profiler   *ProfilerSignals   `json:"profiler,omitempty"`
}

// ClassifierSignals is the Layer-2 additive section.
type ClassifierSignals struct {
	ComplexityScore     float64                  `json:"complexity_score"`
	DomainProbabilities map[string]float64       `json:"domain_probabilities"`
	PIIClasses          []schema.PIIClass        `json:"pii_classes,omitempty"`
	ReasoningHops       int                      `json:"reasoning_hops"`
	TaskMultiplicity    int                      `json:"task_multiplicity"`
	OutputVolume        schema.OutputVolumeClass `json:"output_volume"`
	Confidence          float64                  `json:"confidence"`
}

// ProfilerSignals is the Layer-3 additive section.
type ProfilerSignals struct {
	ToolPlan           []string           `json:"tool_plan,omitempty"`
	Parallelism        *ParallelismPlan   `json:"parallelism,omitempty"`
	LatencySensitivity string             `json:"latency_sensitivity,omitempty"`
	QualitySensitivity string             `json:"quality_sensitivity,omitempty"`
	RedactionPlan      *RedactionPlan     `json:"redaction_plan,omitempty"`
	ComplianceRouting  *ComplianceRouting `json:"compliance_routing,omitempty"`
	CostEstimateUSD    float64            `json:"cost_estimate_usd"`
	LatencyEstimateMs  int                `json:"latency_estimate_ms"`
	Confidence         float64            `json:"confidence"`
}

// ParallelismPlan is the profiler's decomposition proposal.
type ParallelismPlan struct {
	Subtasks      []PlannedSubtask    `json:"subtasks"`
	Dependencies  map[string][]string `json:"dependencies,omitempty"`
	MergeStrategy string              `json:"merge_strategy"`
}

// PlannedSubtask is one proposed subtask with an independent tier hint.
type PlannedSubtask struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	TierHint    schema.Tier `json:"tier_hint"`
}

// RedactionPlan describes what must be stripped before escalating
// compliance-constrained content off-device.
type RedactionPlan struct {
	Classes []schema.PIIClass `json:"classes"`
	Note    string            `json:"note,omitempty"`
}

// ComplianceRouting pins routing for a compliance-flagged request.
type ComplianceRouting struct {
	Flags        []schema.ComplianceFlag `json:"flags"`
	RequiredTier schema.Tier             `json:"required_tier"`
}

// Clone returns a deep copy. Enrichment works on a clone so the source
// bundle stays immutable.
func (b *Bundle) Clone() *Bundle {
	if b == nil {
		return nil
	}
	out := *b
	out.DomainTags = append([]string(nil), b.DomainTags...)
	out.DomainScores = append([]DomainScore(nil), b.DomainScores...)
	out.PIIClasses = append([]schema.PIIClass(nil), b.PIIClasses...)
	out.ComplianceFlags = append([]schema.ComplianceFlag(nil), b.ComplianceFlags...)
	if b.Classifier != nil {
		cs := *b.Classifier
		cs.DomainProbabilities = copyProbs(b.Classifier.DomainProbabilities)
		cs.PIIClasses = append([]schema.PIIClass(nil), b.Classifier.PIIClasses...)
		out.Classifier = &cs
	}
	if b.Profiler != nil {
		ps := *b.Profiler
		ps.ToolPlan = append([]string(nil), b.Profiler.ToolPlan...)
		if b.Profiler.Parallelism != nil {
			plan := *b.Profiler.Parallelism
			plan.Subtasks = append([]PlannedSubtask(nil), b.Profiler.Parallelism.Subtasks...)
			plan.Dependencies = copyDeps(b.Profiler.Parallelism.Dependencies)
			ps.Parallelism = &plan
		}
		out.Profiler = &ps
	}
	return &out
}

// HasCompliance reports whether any compliance flag is present.
func (b *Bundle) HasCompliance() bool {
	return len(b.ComplianceFlags) > 0
}

// HasPII reports whether any PII signal is present.
func (b *Bundle) HasPII() bool {
	return b.PIIRisk == PIIRiskDetected || len(b.PIIClasses) > 0
}

// ComplexityScore returns the classifier's score when available, otherwise
// the Layer-1 estimate.
func (b *Bundle) ComplexityScore() float64 {
	if b.Classifier != nil {
		return b.Classifier.ComplexityScore
	}
	return b.ComplexityEstimate
}

// ReasoningHops returns the classifier's hop count when available.
func (b *Bundle) ReasoningHops() int {
	if b.Classifier != nil {
		return b.Classifier.ReasoningHops
	}
	return b.ReasoningHopsEstimate
}

// TaskMultiplicity returns the classifier's multiplicity when available.
func (b *Bundle) TaskMultiplicity() int {
	if b.Classifier != nil {
		return b.Classifier.TaskMultiplicity
	}
	return b.MultiplicityEstimate
}

// PrimaryDomain returns the strongest domain tag, or "" when none matched.
func (b *Bundle) PrimaryDomain() string {
	if len(b.DomainTags) == 0 {
		return ""
	}
	return b.DomainTags[0]
}

func copyProbs(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyDeps(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}
