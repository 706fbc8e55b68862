package config

// DefaultAnalysisConfig returns the built-in tables and thresholds used when
// no analysis config file is present.
func DefaultAnalysisConfig() *AnalysisConfig {
	cfg := &AnalysisConfig{
		Version: "builtin-v1",
		Domains: map[string][]string{
			"code": {
				"code", "refactor", "implement", "debug", "function",
				"module", "compile", "unit test", "bug",
			},
			"architecture": {
				"architecture", "system design", "scalability", "horizontal",
				"microservice", "latency", "throughput",
			},
			"research": {
				"research", "compare", "look up", "what is", "summarize",
				"survey", "sources",
			},
			"math": {
				"calculate", "equation", "formula", "proof", "derive",
				"integral", "probability",
			},
			"legal": {
				"contract", "legal", "clause", "license", "attorney",
				"liability", "terms of service",
			},
			"medical": {
				"diagnosis", "symptom", "prescription", "patient", "dosage",
				"treatment",
			},
			"creative": {
				"story", "poem", "lyrics", "brainstorm", "slogan", "tagline",
			},
			"operations": {
				"deploy", "rollback", "incident", "outage", "monitor",
				"runbook",
			},
		},
		PIIPatterns: []PIIPattern{
			{Class: "health", Pattern: `blood pressure|heart rate|diagnos\w*|prescri\w*|medical record|blood sugar`},
			{Class: "financial", Pattern: `credit card|card number|\b\d{13,16}\b|iban|routing number`},
			{Class: "identity", Pattern: `\bssn\b|social security|passport number|\b\d{3}-\d{2}-\d{4}\b`},
			{Class: "credential", Pattern: `password|api key|secret key|private key`},
			{Class: "biometric", Pattern: `fingerprint|face id|retina scan|voiceprint`},
		},
		ComplianceRules: []ComplianceRule{
			{Flag: "HIPAA", Keywords: []string{
				"blood pressure", "patient", "diagnosis", "prescription",
				"medical record", "lab result",
			}},
			{Flag: "GDPR", Keywords: []string{
				"personal data", "data subject", "right to be forgotten",
				"data processing agreement",
			}},
			{Flag: "PCI_DSS", Keywords: []string{
				"credit card", "card number", "cvv", "cardholder",
			}},
			{Flag: "LEGAL_PRIVILEGE", Keywords: []string{
				"attorney", "privileged", "legal advice", "work product",
			}},
		},
		UrgencyKeywords: []string{
			"urgent", "asap", "immediately", "right now", "emergency",
		},
		QualityKeywords: []string{
			"production-ready", "robust", "high quality", "maintainable",
			"scalability", "thorough",
		},
		ImperativeVerbs: []string{
			"write", "build", "create", "implement", "refactor", "fix",
			"analyze", "summarize", "translate", "generate", "review",
			"compare", "explain", "list", "draft", "deploy",
		},
		FanOutMarkers: []string{
			"for each", "for every", "for all of", "one per",
		},
		SequenceMarkers: []string{
			"then", "after that", "afterwards", "once done", "finally",
			"before",
		},
		ConsensusMarkers: []string{
			"double-check", "cross-check", "independently verify",
			"second opinion", "consensus",
		},
		Thresholds: Thresholds{
			StopConfidence:         0.85,
			AmbiguousTokenMin:      40,
			AmbiguousTokenMax:      400,
			QuestionCountMax:       3,
			MultiplicityEscalation: 3,
			L0ComplexityCeiling:    0.25,
			L0MaxReasoningHops:     1,
			L2ComplexityFloor:      0.45,
			L3ComplexityFloor:      0.72,
			MaxPromptBytes:         1 << 20,
		},
		Penalties: Penalties{
			AmbiguousTokenBand: 0.15,
			CompetingDomains:   0.15,
			PIISignal:          0.30,
			QualityUncertain:   0.10,
			ManyQuestions:      0.10,
		},
		Budgets: Budgets{
			Layer2Ms: 20,
			Layer3Ms: 80,
		},
		Capabilities: CapabilitiesConfig{
			Classifier: CapabilitySpec{Kind: "heuristic"},
			Profiler:   CapabilitySpec{Kind: "heuristic"},
		},
		Eligibility: EligibilityPolicy{
			BlockOnEgressDenied: false,
			ComplianceMode:      "force_l0",
		},
		Experts: map[string]map[string]string{
			"code": {
				"L1": "code-small",
				"L2": "code-standard",
				"L3": "code-frontier",
			},
			"architecture": {
				"L2": "architect-standard",
				"L3": "architect-frontier",
			},
			"legal": {
				"L3": "legal-frontier",
			},
			"medical": {
				"L3": "clinical-frontier",
			},
			"math": {
				"L2": "reasoning-standard",
				"L3": "reasoning-frontier",
			},
		},
		DefaultExperts: map[string]string{
			"L0": "ondevice-compact",
			"L1": "generalist-small",
			"L2": "generalist-standard",
			"L3": "generalist-frontier",
		},
		Fallbacks: map[string][]RoutePath{
			"L0": {{Tier: "L1"}, {Tier: "L2"}},
			"L1": {{Tier: "L2"}},
			"L2": {{Tier: "L3"}},
			"L3": {{Tier: "L2"}},
		},
	}

	applyAnalysisDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		// The builtin tables are exercised by tests; a defect here is a
		// programming error, not a runtime condition.
		panic(err)
	}
	return cfg
}

func applyAnalysisDefaults(cfg *AnalysisConfig) {
	if cfg == nil {
		return
	}
	t := &cfg.Thresholds
	if t.StopConfidence == 0 {
		t.StopConfidence = 0.85
	}
	if t.AmbiguousTokenMin == 0 && t.AmbiguousTokenMax == 0 {
		t.AmbiguousTokenMin = 40
		t.AmbiguousTokenMax = 400
	}
	if t.QuestionCountMax == 0 {
		t.QuestionCountMax = 3
	}
	if t.MultiplicityEscalation == 0 {
		t.MultiplicityEscalation = 3
	}
	if t.L0ComplexityCeiling == 0 {
		t.L0ComplexityCeiling = 0.25
	}
	if t.L2ComplexityFloor == 0 {
		t.L2ComplexityFloor = 0.45
	}
	if t.L3ComplexityFloor == 0 {
		t.L3ComplexityFloor = 0.72
	}
	if t.MaxPromptBytes == 0 {
		t.MaxPromptBytes = 1 << 20
	}

	p := &cfg.Penalties
	if p.AmbiguousTokenBand == 0 {
		p.AmbiguousTokenBand = 0.15
	}
	if p.CompetingDomains == 0 {
		p.CompetingDomains = 0.15
	}
	if p.PIISignal == 0 {
		p.PIISignal = 0.30
	}
	if p.QualityUncertain == 0 {
		p.QualityUncertain = 0.10
	}
	if p.ManyQuestions == 0 {
		p.ManyQuestions = 0.10
	}

	if cfg.Budgets.Layer2Ms == 0 {
		cfg.Budgets.Layer2Ms = 20
	}
	if cfg.Budgets.Layer3Ms == 0 {
		cfg.Budgets.Layer3Ms = 80
	}

	if cfg.Capabilities.Classifier.Kind == "" {
		cfg.Capabilities.Classifier.Kind = "heuristic"
	}
	if cfg.Capabilities.Profiler.Kind == "" {
		cfg.Capabilities.Profiler.Kind = "heuristic"
	}
	if cfg.Eligibility.ComplianceMode == "" {
		cfg.Eligibility.ComplianceMode = "force_l0"
	}
}
