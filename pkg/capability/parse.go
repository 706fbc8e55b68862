package capability

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zen-systems/routegate/pkg/schema"
	"github.com/zen-systems/routegate/pkg/signal"
)

// classifierPayload is the JSON contract LLM-backed classifiers must return.
type classifierPayload struct {
	ComplexityScore     float64            `json:"complexity_score"`
	DomainProbabilities map[string]float64 `json:"domain_probabilities"`
	PIIClasses          []string           `json:"pii_classes"`
	ReasoningHops       int                `json:"reasoning_hops"`
	TaskMultiplicity    int                `json:"task_multiplicity"`
	OutputVolume        string             `json:"output_volume"`
	Confidence          float64            `json:"confidence"`
}

// profilerPayload is the JSON contract LLM-backed profilers must return.
type profilerPayload struct {
	ToolPlan           []string                `json:"tool_plan"`
	Parallelism        *signal.ParallelismPlan `json:"parallelism"`
	LatencySensitivity string                  `json:"latency_sensitivity"`
	QualitySensitivity string                  `json:"quality_sensitivity"`
	RedactionClasses   []string                `json:"redaction_classes"`
	CostEstimateUSD    float64                 `json:"cost_estimate_usd"`
	LatencyEstimateMs  int                     `json:"latency_estimate_ms"`
	Confidence         float64                 `json:"confidence"`
}

// stripFences removes markdown code fences models like to wrap JSON in.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func parseClassifierPayload(layer schema.AnalysisLayer, content string) (*classifierPayload, error) {
	var payload classifierPayload
	if err := json.Unmarshal([]byte(stripFences(content)), &payload); err != nil {
		return nil, &Error{Layer: layer, Kind: FailureInvalid, Err: err}
	}
	if payload.ComplexityScore < 0 || payload.ComplexityScore > 1 {
		return nil, invalidPayload(layer, "complexity_score %v out of [0,1]", payload.ComplexityScore)
	}
	if payload.Confidence < 0 || payload.Confidence > 1 {
		return nil, invalidPayload(layer, "confidence %v out of [0,1]", payload.Confidence)
	}
	if payload.ReasoningHops < 0 || payload.ReasoningHops > 6 {
		return nil, invalidPayload(layer, "reasoning_hops %d out of [0,6]", payload.ReasoningHops)
	}
	if payload.TaskMultiplicity < 1 {
		payload.TaskMultiplicity = 1
	}
	if payload.TaskMultiplicity > 10 {
		return nil, invalidPayload(layer, "task_multiplicity %d out of [1,10]", payload.TaskMultiplicity)
	}
	switch schema.OutputVolumeClass(payload.OutputVolume) {
	case schema.VolumeShort, schema.VolumeMedium, schema.VolumeLong, schema.VolumeVeryLong:
	default:
		payload.OutputVolume = string(schema.VolumeMedium)
	}
	return &payload, nil
}

func parseProfilerPayload(layer schema.AnalysisLayer, content string) (*profilerPayload, error) {
	var payload profilerPayload
	if err := json.Unmarshal([]byte(stripFences(content)), &payload); err != nil {
		return nil, &Error{Layer: layer, Kind: FailureInvalid, Err: err}
	}
	if payload.Confidence < 0 || payload.Confidence > 1 {
		return nil, invalidPayload(layer, "confidence %v out of [0,1]", payload.Confidence)
	}
	return &payload, nil
}

func invalidPayload(layer schema.AnalysisLayer, format string, args ...any) error {
	return &Error{Layer: layer, Kind: FailureInvalid, Err: fmt.Errorf(format, args...)}
}

func (p *classifierPayload) toSignals() *signal.ClassifierSignals {
	classes := make([]schema.PIIClass, 0, len(p.PIIClasses))
	for _, c := range p.PIIClasses {
		classes = append(classes, schema.PIIClass(c))
	}
	return &signal.ClassifierSignals{
		ComplexityScore:     p.ComplexityScore,
		DomainProbabilities: p.DomainProbabilities,
		PIIClasses:          SortedPIIClasses(classes),
		ReasoningHops:       p.ReasoningHops,
		TaskMultiplicity:    p.TaskMultiplicity,
		OutputVolume:        schema.OutputVolumeClass(p.OutputVolume),
		Confidence:          p.Confidence,
	}
}

func (p *profilerPayload) toSignals(prior *signal.Bundle) *signal.ProfilerSignals {
	ps := &signal.ProfilerSignals{
		ToolPlan:           p.ToolPlan,
		Parallelism:        p.Parallelism,
		LatencySensitivity: p.LatencySensitivity,
		QualitySensitivity: p.QualitySensitivity,
		CostEstimateUSD:    p.CostEstimateUSD,
		LatencyEstimateMs:  p.LatencyEstimateMs,
		Confidence:         p.Confidence,
	}
	if len(p.RedactionClasses) > 0 {
		classes := make([]schema.PIIClass, 0, len(p.RedactionClasses))
		for _, c := range p.RedactionClasses {
			classes = append(classes, schema.PIIClass(c))
		}
		ps.RedactionPlan = &signal.RedactionPlan{Classes: SortedPIIClasses(classes)}
	}
	if prior.HasCompliance() {
		ps.ComplianceRouting = &signal.ComplianceRouting{
			Flags:        append([]schema.ComplianceFlag(nil), prior.ComplianceFlags...),
			RequiredTier: schema.TierL0,
		}
	}
	return ps
}

func buildClassifierPrompt(in Input) string {
	var sb strings.Builder
	sb.WriteString("You are a routing classifier. Analyze the request and return ONLY JSON:\n")
	sb.WriteString(`{"complexity_score":0-1,"domain_probabilities":{"domain":0-1},` +
		`"pii_classes":[],"reasoning_hops":0-6,"task_multiplicity":1-10,` +
		`"output_volume":"short|medium|long|very_long","confidence":0-1}`)
	sb.WriteString("\n\nRequest:\n")
	sb.WriteString(TruncateTokens(in.Prompt, 512))
	if len(in.Prior.DomainTags) > 0 {
		sb.WriteString("\n\nHeuristic domain candidates: ")
		sb.WriteString(strings.Join(in.Prior.DomainTags, ", "))
	}
	return sb.String()
}

func buildProfilerPrompt(in Input) string {
	var sb strings.Builder
	sb.WriteString("You are a routing profiler. Plan tools and parallelism for the request and return ONLY JSON:\n")
	sb.WriteString(`{"tool_plan":[],"parallelism":{"subtasks":[{"id":"t1","description":"...","tier_hint":"L1"}],` +
		`"dependencies":{},"merge_strategy":"concat|reduce|vote"},` +
		`"latency_sensitivity":"low|normal|high","quality_sensitivity":"low|normal|high",` +
		`"redaction_classes":[],"cost_estimate_usd":0,"latency_estimate_ms":0,"confidence":0-1}`)
	sb.WriteString("\n\nRequest:\n")
	sb.WriteString(in.Prompt)
	if in.Context != "" {
		sb.WriteString("\n\nContext:\n")
		sb.WriteString(in.Context)
	}
	return sb.String()
}
