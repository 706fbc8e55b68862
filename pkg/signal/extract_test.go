package signal

import (
	"testing"

	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/schema"
)

func TestExtract_SimpleFactualPrompt(t *testing.T) {
	e := NewExtractor(config.DefaultAnalysisConfig())

	b := e.Extract("What time is it in Tokyo?", "", Preferences{L0DeviceAvailable: true, DataEgressPermitted: true})

	if b.Layer != schema.Layer1 {
		t.Fatalf("expected layer1 bundle, got %v", b.Layer)
	}
	if b.TokenCount != 6 {
		t.Errorf("expected 6 tokens, got %d", b.TokenCount)
	}
	if b.QuestionCount != 1 {
		t.Errorf("expected 1 question, got %d", b.QuestionCount)
	}
	if len(b.DomainTags) != 0 {
		t.Errorf("expected no domain tags, got %v", b.DomainTags)
	}
	if b.HasPII() || b.HasCompliance() {
		t.Errorf("expected no PII or compliance signals")
	}
	if b.ComplexityEstimate >= 0.25 {
		t.Errorf("simple prompt should land under the L0 ceiling, got %v", b.ComplexityEstimate)
	}
}

func TestExtract_MultiDomainQualityPrompt(t *testing.T) {
	e := NewExtractor(config.DefaultAnalysisConfig())

	b := e.Extract("Refactor this module for horizontal scalability", "", Preferences{})

	if len(b.DomainScores) != 2 {
		t.Fatalf("expected 2 domains, got %v", b.DomainScores)
	}
	// Tied hit counts order lexicographically.
	if b.DomainScores[0].Tag != "architecture" || b.DomainScores[1].Tag != "code" {
		t.Errorf("unexpected domain order: %v", b.DomainScores)
	}
	if b.DomainScores[0].Hits != 2 || b.DomainScores[1].Hits != 2 {
		t.Errorf("expected 2 hits each, got %v", b.DomainScores)
	}
	if !b.QualityFlag {
		t.Error("scalability should raise the quality flag")
	}
	if b.ComplexityEstimate < 0.6 || b.ComplexityEstimate > 0.63 {
		t.Errorf("expected complexity near 0.615, got %v", b.ComplexityEstimate)
	}
}

func TestExtract_PIIAndCompliance(t *testing.T) {
	e := NewExtractor(config.DefaultAnalysisConfig())

	b := e.Extract("My blood pressure today is 140/90, is that normal?", "", Preferences{})

	if !b.HasPII() {
		t.Fatal("expected PII detection")
	}
	if len(b.PIIClasses) != 1 || b.PIIClasses[0] != schema.PIIHealth {
		t.Errorf("expected health PII class, got %v", b.PIIClasses)
	}
	if b.PIIRisk != PIIRiskDetected {
		t.Errorf("expected detected risk, got %v", b.PIIRisk)
	}
	if len(b.ComplianceFlags) != 1 || b.ComplianceFlags[0] != schema.ComplianceHIPAA {
		t.Errorf("expected HIPAA flag, got %v", b.ComplianceFlags)
	}
}

func TestExtract_DegenerateInputs(t *testing.T) {
	e := NewExtractor(config.DefaultAnalysisConfig())

	tests := []struct {
		name   string
		prompt string
	}{
		{name: "empty", prompt: ""},
		{name: "whitespace", prompt: "   \n\t  "},
		{name: "emoji only", prompt: "🚀🔥✨"},
		{name: "no punctuation", prompt: "tell me about goroutines and channels maybe"},
		{name: "non-latin", prompt: "東京の天気を教えてください"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := e.Extract(tt.prompt, "", Preferences{})
			if b == nil {
				t.Fatal("extractor must never return nil")
			}
			if b.ComplexityEstimate < 0 || b.ComplexityEstimate > 1 {
				t.Errorf("complexity %v out of [0,1]", b.ComplexityEstimate)
			}
			if b.VerbDensity < 0 || b.VerbDensity > 1 {
				t.Errorf("verb density %v out of [0,1]", b.VerbDensity)
			}
		})
	}
}

func TestExtract_ListItemsDriveMultiplicity(t *testing.T) {
	e := NewExtractor(config.DefaultAnalysisConfig())

	prompt := "Prepare the launch:\n- write the announcement\n- draft the changelog\n- deploy the docs site"
	b := e.Extract(prompt, "", Preferences{})

	if b.ListItemCount != 3 {
		t.Fatalf("expected 3 list items, got %d", b.ListItemCount)
	}
	if b.MultiplicityEstimate != 4 {
		t.Errorf("expected multiplicity 4 (base 1 + 3 items), got %d", b.MultiplicityEstimate)
	}
}

func TestExtract_NumberedListItems(t *testing.T) {
	e := NewExtractor(config.DefaultAnalysisConfig())

	b := e.Extract("Do this:\n1. first thing\n2) second thing", "", Preferences{})
	if b.ListItemCount != 2 {
		t.Errorf("expected 2 numbered items, got %d", b.ListItemCount)
	}
}

func TestExtract_ContextFeedsDomainsNotCounts(t *testing.T) {
	e := NewExtractor(config.DefaultAnalysisConfig())

	b := e.Extract("And what about the second one?", "We were comparing two microservice architectures.", Preferences{})

	if b.TokenCount != 6 {
		t.Errorf("token count must cover the prompt only, got %d", b.TokenCount)
	}
	found := false
	for _, tag := range b.DomainTags {
		if tag == "architecture" {
			found = true
		}
	}
	if !found {
		t.Errorf("context should contribute domain signals, got %v", b.DomainTags)
	}
}

func TestContainsKeyword_WordBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		keyword string
		want    bool
	}{
		{name: "exact word", text: "please refactor the parser", keyword: "refactor", want: true},
		{name: "phrase", text: "what is a monad", keyword: "what is", want: true},
		{name: "embedded prefix", text: "the encoder is slow", keyword: "code", want: false},
		{name: "embedded suffix", text: "he studies bugs", keyword: "bug", want: false},
		{name: "start of text", text: "deploy it now", keyword: "deploy", want: true},
		{name: "end of text", text: "find the bug", keyword: "bug", want: true},
		{name: "empty keyword", text: "anything", keyword: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := containsKeyword(tt.text, tt.keyword); got != tt.want {
				t.Errorf("containsKeyword(%q, %q) = %v, want %v", tt.text, tt.keyword, got, tt.want)
			}
		})
	}
}

func TestBundle_CloneIsDeep(t *testing.T) {
	e := NewExtractor(config.DefaultAnalysisConfig())
	b := e.Extract("Refactor this module for horizontal scalability", "", Preferences{})

	c := b.Clone()
	c.DomainTags[0] = "mutated"
	c.DomainScores[0].Hits = 99

	if b.DomainTags[0] == "mutated" {
		t.Error("clone shares domain tag storage with the source")
	}
	if b.DomainScores[0].Hits == 99 {
		t.Error("clone shares domain score storage with the source")
	}
}

func TestBundle_AccessorsPreferClassifier(t *testing.T) {
	b := &Bundle{
		ComplexityEstimate:    0.3,
		ReasoningHopsEstimate: 1,
		MultiplicityEstimate:  2,
		Classifier: &ClassifierSignals{
			ComplexityScore:  0.8,
			ReasoningHops:    4,
			TaskMultiplicity: 5,
		},
	}

	if got := b.ComplexityScore(); got != 0.8 {
		t.Errorf("ComplexityScore = %v, want classifier value 0.8", got)
	}
	if got := b.ReasoningHops(); got != 4 {
		t.Errorf("ReasoningHops = %d, want 4", got)
	}
	if got := b.TaskMultiplicity(); got != 5 {
		t.Errorf("TaskMultiplicity = %d, want 5", got)
	}
}
