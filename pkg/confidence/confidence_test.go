package confidence

import (
	"strings"
	"testing"

	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/schema"
	"github.com/zen-systems/routegate/pkg/signal"
)

func TestEvaluate_CleanBundleScoresFull(t *testing.T) {
	e := NewEvaluator(config.DefaultAnalysisConfig())

	s := e.Evaluate(&signal.Bundle{TokenCount: 6, QuestionCount: 1})

	if s.Value != 1.0 {
		t.Fatalf("expected full confidence, got %v (deductions %v)", s.Value, s.Deductions)
	}
	if len(s.Deductions) != 0 {
		t.Errorf("expected no deductions, got %v", s.Deductions)
	}
}

func TestEvaluate_PenaltiesAccumulateInOrder(t *testing.T) {
	e := NewEvaluator(config.DefaultAnalysisConfig())

	b := &signal.Bundle{
		TokenCount:    80, // inside the ambiguous band
		QuestionCount: 5,
		QualityFlag:   true,
		DomainScores: []signal.DomainScore{
			{Tag: "architecture", Hits: 2},
			{Tag: "code", Hits: 2},
		},
	}
	s := e.Evaluate(b)

	wantSignals := []string{
		"ambiguous_token_band",
		"competing_domains",
		"quality_uncertain_complexity",
		"many_questions",
	}
	if len(s.Deductions) != len(wantSignals) {
		t.Fatalf("expected %d deductions, got %v", len(wantSignals), s.Deductions)
	}
	for i, want := range wantSignals {
		if s.Deductions[i].Signal != want {
			t.Errorf("deduction %d = %q, want %q", i, s.Deductions[i].Signal, want)
		}
	}
	// 1.0 - 0.15 - 0.15 - 0.10 - 0.10
	if s.Value < 0.49 || s.Value > 0.51 {
		t.Errorf("expected score 0.50, got %v", s.Value)
	}
}

func TestEvaluate_ClampsAtZero(t *testing.T) {
	cfg := config.DefaultAnalysisConfig()
	cfg.Penalties.PIISignal = 0.9
	cfg.Penalties.CompetingDomains = 0.9
	e := NewEvaluator(cfg)

	b := &signal.Bundle{
		PIIRisk:    signal.PIIRiskDetected,
		PIIClasses: []schema.PIIClass{schema.PIIHealth},
		DomainScores: []signal.DomainScore{
			{Tag: "legal", Hits: 1},
			{Tag: "medical", Hits: 1},
		},
	}
	s := e.Evaluate(b)
	if s.Value != 0 {
		t.Errorf("expected clamp at 0, got %v", s.Value)
	}
}

func TestEvaluate_PIISetsMandatoryEscalate(t *testing.T) {
	e := NewEvaluator(config.DefaultAnalysisConfig())

	s := e.Evaluate(&signal.Bundle{
		PIIRisk:    signal.PIIRiskDetected,
		PIIClasses: []schema.PIIClass{schema.PIIFinancial},
	})
	if !s.MandatoryEscalate {
		t.Fatal("PII must set the mandatory escalate bit")
	}
	if e.Clears(s, &signal.Bundle{}) {
		t.Error("mandatory escalate must veto clearing regardless of score")
	}
}

func TestClears_ComplianceVetoesHighScore(t *testing.T) {
	e := NewEvaluator(config.DefaultAnalysisConfig())

	b := &signal.Bundle{ComplianceFlags: []schema.ComplianceFlag{schema.ComplianceHIPAA}}
	s := e.Evaluate(b)

	if s.Value < 0.85 {
		t.Fatalf("compliance alone must not cost score, got %v", s.Value)
	}
	if e.Clears(s, b) {
		t.Error("compliance flags must veto clearing even at full confidence")
	}
}

func TestClears_ThresholdBoundary(t *testing.T) {
	e := NewEvaluator(config.DefaultAnalysisConfig())
	b := &signal.Bundle{}

	if !e.Clears(Score{Value: 0.85}, b) {
		t.Error("score at the threshold clears")
	}
	if e.Clears(Score{Value: 0.84}, b) {
		t.Error("score under the threshold must not clear")
	}
}

func TestCompetingDomains_ClassifierDissolvesTie(t *testing.T) {
	b := &signal.Bundle{
		DomainScores: []signal.DomainScore{
			{Tag: "architecture", Hits: 2},
			{Tag: "code", Hits: 2},
		},
	}
	if !competingDomains(b) {
		t.Fatal("tied layer-1 hits are a competing-domain signal")
	}

	b.Classifier = &signal.ClassifierSignals{
		DomainProbabilities: map[string]float64{"architecture": 0.6, "code": 0.4},
	}
	if competingDomains(b) {
		t.Error("a clear classifier winner dissolves the competition")
	}

	b.Classifier.DomainProbabilities = map[string]float64{"architecture": 0.52, "code": 0.48}
	if !competingDomains(b) {
		t.Error("near-tied probabilities keep the competition alive")
	}
}

func TestEvaluate_AmbiguousBandUsesConfiguredEdges(t *testing.T) {
	e := NewEvaluator(config.DefaultAnalysisConfig())

	tests := []struct {
		tokens    int
		penalized bool
	}{
		{tokens: 39, penalized: false},
		{tokens: 40, penalized: true},
		{tokens: 399, penalized: true},
		{tokens: 400, penalized: false},
	}
	for _, tt := range tests {
		s := e.Evaluate(&signal.Bundle{TokenCount: tt.tokens})
		got := hasDeduction(s, "ambiguous_token_band")
		if got != tt.penalized {
			t.Errorf("tokens=%d: penalized=%v, want %v", tt.tokens, got, tt.penalized)
		}
	}
}

func hasDeduction(s Score, name string) bool {
	for _, d := range s.Deductions {
		if strings.EqualFold(d.Signal, name) {
			return true
		}
	}
	return false
}
