package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/zen-systems/routegate/pkg/schema"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfiguration marks malformed pattern or threshold tables.
// Loading must fail on it; the engine never degrades to empty tables.
var ErrInvalidConfiguration = errors.New("invalid configuration")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfiguration}, args...)...)
}

// AnalysisConfig holds every table and threshold the analysis core consumes.
// It is immutable after load; reloads swap the whole value (see Store).
type AnalysisConfig struct {
	Version string `yaml:"version"`

	// Domains maps each domain tag of the fixed taxonomy to its trigger
	// keywords. Matching is word-boundary, case-insensitive.
	Domains map[string][]string `yaml:"domains"`

	// PIIPatterns are regex patterns per PII class.
	PIIPatterns []PIIPattern `yaml:"pii_patterns"`

	// ComplianceRules map keyword hits to compliance flags.
	ComplianceRules []ComplianceRule `yaml:"compliance_rules"`

	UrgencyKeywords []string `yaml:"urgency_keywords"`
	QualityKeywords []string `yaml:"quality_keywords"`
	ImperativeVerbs []string `yaml:"imperative_verbs"`

	// Decomposition marker tables.
	FanOutMarkers    []string `yaml:"fan_out_markers"`
	SequenceMarkers  []string `yaml:"sequence_markers"`
	ConsensusMarkers []string `yaml:"consensus_markers"`

	Thresholds Thresholds `yaml:"thresholds"`
	Penalties  Penalties  `yaml:"penalties"`
	Budgets    Budgets    `yaml:"budgets"`

	Capabilities CapabilitiesConfig `yaml:"capabilities"`
	Eligibility  EligibilityPolicy  `yaml:"eligibility"`

	// Experts maps domain -> tier -> expert identifier.
	Experts map[string]map[string]string `yaml:"experts"`

	// DefaultExperts maps tier -> expert identifier when no domain entry
	// applies.
	DefaultExperts map[string]string `yaml:"default_experts"`

	// Fallbacks maps a tier to its ordered fallback targets.
	Fallbacks map[string][]RoutePath `yaml:"fallbacks"`
}

// PIIPattern is one table-driven PII detector.
type PIIPattern struct {
	Class   string `yaml:"class"`
	Pattern string `yaml:"pattern"`

	re *regexp.Regexp
}

// Regexp returns the compiled pattern. Compile happens during Validate.
func (p *PIIPattern) Regexp() *regexp.Regexp {
	return p.re
}

// ComplianceRule maps trigger keywords to a compliance flag.
type ComplianceRule struct {
	Flag     string   `yaml:"flag"`
	Keywords []string `yaml:"keywords"`
}

// Thresholds holds the numeric routing boundaries. Boundary values are
// configuration, not constants baked into call sites.
type Thresholds struct {
	StopConfidence         float64 `yaml:"stop_confidence"`
	AmbiguousTokenMin      int     `yaml:"ambiguous_token_min"`
	AmbiguousTokenMax      int     `yaml:"ambiguous_token_max"`
	QuestionCountMax       int     `yaml:"question_count_max"`
	MultiplicityEscalation int     `yaml:"multiplicity_escalation"`
	L0ComplexityCeiling    float64 `yaml:"l0_complexity_ceiling"`
	L0MaxReasoningHops     int     `yaml:"l0_max_reasoning_hops"`
	L2ComplexityFloor      float64 `yaml:"l2_complexity_floor"`
	L3ComplexityFloor      float64 `yaml:"l3_complexity_floor"`
	MaxPromptBytes         int     `yaml:"max_prompt_bytes"`
}

// Penalties holds the ordered deduction weights applied by the confidence
// evaluator.
type Penalties struct {
	AmbiguousTokenBand float64 `yaml:"ambiguous_token_band"`
	CompetingDomains   float64 `yaml:"competing_domains"`
	PIISignal          float64 `yaml:"pii_signal"`
	QualityUncertain   float64 `yaml:"quality_uncertain"`
	ManyQuestions      float64 `yaml:"many_questions"`
}

// Budgets holds the per-layer latency budgets in milliseconds. A layer that
// cannot answer within its budget is treated as failed, never waited on.
type Budgets struct {
	Layer2Ms int `yaml:"layer2_ms"`
	Layer3Ms int `yaml:"layer3_ms"`
}

// CapabilitiesConfig selects the concrete classifier/profiler backends.
type CapabilitiesConfig struct {
	Classifier CapabilitySpec `yaml:"classifier"`
	Profiler   CapabilitySpec `yaml:"profiler"`
}

// CapabilitySpec names a capability backend. Kind is one of
// "heuristic", "openai", "anthropic", "google".
type CapabilitySpec struct {
	Kind  string `yaml:"kind"`
	Model string `yaml:"model,omitempty"`
}

// EligibilityPolicy configures the terminal branches of the L0 decision tree.
type EligibilityPolicy struct {
	// BlockOnEgressDenied blocks the request outright when data egress is
	// not permitted; false forces L0 instead.
	BlockOnEgressDenied bool `yaml:"block_on_egress_denied"`

	// ComplianceMode is "force_l0" or "redact_l3".
	ComplianceMode string `yaml:"compliance_mode"`
}

// RoutePath is one tier/expert pair in a fallback chain.
type RoutePath struct {
	Tier   string `yaml:"tier"`
	Expert string `yaml:"expert"`
}

// LoadAnalysisConfig reads and validates an analysis configuration file.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg AnalysisConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, invalidf("parse %s: %v", path, err)
	}

	applyAnalysisDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every table and compiles the PII patterns. Any defect is
// fatal; partially valid tables are never accepted.
func (c *AnalysisConfig) Validate() error {
	if len(c.Domains) == 0 {
		return invalidf("domain table is empty")
	}
	for domain, keywords := range c.Domains {
		if len(keywords) == 0 {
			return invalidf("domain %q has no keywords", domain)
		}
	}

	for i := range c.PIIPatterns {
		p := &c.PIIPatterns[i]
		if p.Class == "" {
			return invalidf("pii pattern %d has no class", i)
		}
		re, err := regexp.Compile("(?i)" + p.Pattern)
		if err != nil {
			return invalidf("pii pattern %q: %v", p.Pattern, err)
		}
		p.re = re
	}

	known := make(map[schema.ComplianceFlag]bool)
	for _, f := range schema.KnownComplianceFlags() {
		known[f] = true
	}
	for _, rule := range c.ComplianceRules {
		if !known[schema.ComplianceFlag(rule.Flag)] {
			return invalidf("unknown compliance flag %q", rule.Flag)
		}
		if len(rule.Keywords) == 0 {
			return invalidf("compliance rule %s has no keywords", rule.Flag)
		}
	}

	t := c.Thresholds
	if t.StopConfidence <= 0 || t.StopConfidence > 1 {
		return invalidf("stop_confidence %v out of (0,1]", t.StopConfidence)
	}
	if t.AmbiguousTokenMin >= t.AmbiguousTokenMax {
		return invalidf("ambiguous token band [%d,%d) is empty", t.AmbiguousTokenMin, t.AmbiguousTokenMax)
	}
	if t.L0ComplexityCeiling <= 0 || t.L0ComplexityCeiling >= 1 {
		return invalidf("l0_complexity_ceiling %v out of (0,1)", t.L0ComplexityCeiling)
	}
	if t.L2ComplexityFloor >= t.L3ComplexityFloor {
		return invalidf("complexity floors are not ordered: l2=%v l3=%v", t.L2ComplexityFloor, t.L3ComplexityFloor)
	}
	if c.Budgets.Layer2Ms <= 0 || c.Budgets.Layer3Ms <= 0 {
		return invalidf("latency budgets must be positive")
	}

	switch c.Eligibility.ComplianceMode {
	case "force_l0", "redact_l3":
	default:
		return invalidf("compliance_mode %q is not force_l0 or redact_l3", c.Eligibility.ComplianceMode)
	}

	for domain, byTier := range c.Experts {
		if _, ok := c.Domains[domain]; !ok {
			return invalidf("expert table references unknown domain %q", domain)
		}
		for tier := range byTier {
			if _, err := schema.ParseTier(tier); err != nil {
				return invalidf("expert table for %q: %v", domain, err)
			}
		}
	}
	for tier := range c.DefaultExperts {
		if _, err := schema.ParseTier(tier); err != nil {
			return invalidf("default expert table: %v", err)
		}
	}
	for tier, chain := range c.Fallbacks {
		if _, err := schema.ParseTier(tier); err != nil {
			return invalidf("fallback table: %v", err)
		}
		for _, path := range chain {
			if _, err := schema.ParseTier(path.Tier); err != nil {
				return invalidf("fallback chain for %s: %v", tier, err)
			}
		}
	}

	return nil
}

// ExpertFor resolves the expert identifier for a domain and tier, falling
// back to the tier default.
func (c *AnalysisConfig) ExpertFor(domain string, tier schema.Tier) string {
	if byTier, ok := c.Experts[domain]; ok {
		if expert, ok := byTier[string(tier)]; ok {
			return expert
		}
	}
	if expert, ok := c.DefaultExperts[string(tier)]; ok {
		return expert
	}
	return "generalist-" + string(tier)
}

// FallbacksFor returns the configured fallback chain for a tier.
func (c *AnalysisConfig) FallbacksFor(tier schema.Tier) []RoutePath {
	return c.Fallbacks[string(tier)]
}

// Layer2Budget and Layer3Budget expose budgets in milliseconds.
func (c *AnalysisConfig) Layer2Budget() int { return c.Budgets.Layer2Ms }
func (c *AnalysisConfig) Layer3Budget() int { return c.Budgets.Layer3Ms }
