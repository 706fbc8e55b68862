package signal

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/schema"
)

// Preferences carries the request-level knobs the extractor folds into the
// Layer-1 bundle.
type Preferences struct {
	Quality             schema.QualityPreference
	OfflineMode         bool
	L0DeviceAvailable   bool
	DataEgressPermitted bool
	RequestedTier       schema.Tier
}

// Extractor produces Layer-1 signal bundles. It is a pure function of its
// inputs and the loaded tables: no I/O, no hidden state, bounded time in
// the prompt length.
type Extractor struct {
	cfg *config.AnalysisConfig
}

// NewExtractor creates an extractor over the given tables.
func NewExtractor(cfg *config.AnalysisConfig) *Extractor {
	return &Extractor{cfg: cfg}
}

// Extract analyzes the prompt and optional context text. Empty prompts,
// prompts without sentence punctuation, non-Latin scripts and emoji-only
// input all yield near-zero counts rather than errors.
func (e *Extractor) Extract(prompt, contextText string, prefs Preferences) *Bundle {
	text := prompt
	if contextText != "" {
		text = prompt + "\n" + contextText
	}
	lower := strings.ToLower(text)
	promptLower := strings.ToLower(prompt)

	b := &Bundle{
		Layer:             schema.Layer1,
		TokenCount:        len(strings.Fields(prompt)),
		CharCount:         utf8.RuneCountInString(prompt),
		SentenceCount:     countSentences(prompt),
		QuestionCount:     strings.Count(prompt, "?"),
		ListItemCount:     countListItems(text),
		OfflineMode:       prefs.OfflineMode,
		L0DeviceAvailable: prefs.L0DeviceAvailable,
		PIIRisk:           PIIRiskNone,
	}

	verbs := countKeywordHits(promptLower, e.cfg.ImperativeVerbs)
	if b.TokenCount > 0 {
		b.VerbDensity = float64(verbs) / float64(b.TokenCount)
	}

	b.Urgency = anyKeyword(lower, e.cfg.UrgencyKeywords)
	b.QualityFlag = anyKeyword(lower, e.cfg.QualityKeywords)

	b.DomainScores = e.scoreDomains(lower)
	for _, ds := range b.DomainScores {
		b.DomainTags = append(b.DomainTags, ds.Tag)
	}

	b.PIIClasses = e.matchPII(text)
	if len(b.PIIClasses) > 0 {
		b.PIIRisk = PIIRiskDetected
	}
	b.ComplianceFlags = e.matchCompliance(lower)

	b.ReasoningHopsEstimate = minInt(6, countKeywordHits(lower, e.cfg.SequenceMarkers))
	b.MultiplicityEstimate = 1 + b.ListItemCount + countKeywordHits(lower, e.cfg.FanOutMarkers)
	b.ComplexityEstimate = complexityEstimate(b)

	return b
}

// complexityEstimate is the Layer-1 proxy for classifier complexity: driven
// by domain breadth, quality demands and prompt length.
func complexityEstimate(b *Bundle) float64 {
	score := 0.2
	score += 0.15 * float64(minInt(len(b.DomainTags), 2))
	if b.QualityFlag {
		score += 0.1
	}
	score += minFloat(0.2, float64(b.TokenCount)/400.0)
	score += 0.05 * float64(minInt(b.ReasoningHopsEstimate, 4))
	return clamp01(score)
}

func (e *Extractor) scoreDomains(lower string) []DomainScore {
	var scores []DomainScore
	for tag, keywords := range e.cfg.Domains {
		hits := countKeywordHits(lower, keywords)
		if hits > 0 {
			scores = append(scores, DomainScore{Tag: tag, Hits: hits})
		}
	}
	// Deterministic order: strongest first, lexicographic on ties.
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Hits == scores[j].Hits {
			return scores[i].Tag < scores[j].Tag
		}
		return scores[i].Hits > scores[j].Hits
	})
	return scores
}

func (e *Extractor) matchPII(text string) []schema.PIIClass {
	var classes []schema.PIIClass
	seen := make(map[string]bool)
	for i := range e.cfg.PIIPatterns {
		p := &e.cfg.PIIPatterns[i]
		re := p.Regexp()
		if re == nil || seen[p.Class] {
			continue
		}
		if re.MatchString(text) {
			seen[p.Class] = true
			classes = append(classes, schema.PIIClass(p.Class))
		}
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return classes
}

func (e *Extractor) matchCompliance(lower string) []schema.ComplianceFlag {
	var flags []schema.ComplianceFlag
	seen := make(map[schema.ComplianceFlag]bool)
	for _, rule := range e.cfg.ComplianceRules {
		flag := schema.ComplianceFlag(rule.Flag)
		if seen[flag] {
			continue
		}
		if anyKeyword(lower, rule.Keywords) {
			seen[flag] = true
			flags = append(flags, flag)
		}
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i] < flags[j] })
	return flags
}

func countSentences(text string) int {
	count := 0
	inRun := false
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			if !inRun {
				count++
				inRun = true
			}
		default:
			inRun = false
		}
	}
	return count
}

func countListItems(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			count++
			continue
		}
		if isDigit(trimmed[0]) {
			rest := strings.TrimLeft(trimmed, "0123456789")
			if strings.HasPrefix(rest, ".") || strings.HasPrefix(rest, ")") {
				count++
			}
		}
	}
	return count
}

func countKeywordHits(lower string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if containsKeyword(lower, strings.ToLower(kw)) {
			hits++
		}
	}
	return hits
}

func anyKeyword(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if containsKeyword(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// containsKeyword checks for the keyword as a word or phrase boundary match.
func containsKeyword(text, keyword string) bool {
	if keyword == "" {
		return false
	}
	idx := strings.Index(text, keyword)
	if idx == -1 {
		return false
	}

	if idx > 0 && isWordChar(text[idx-1]) {
		return false
	}
	endIdx := idx + len(keyword)
	if endIdx < len(text) && isWordChar(text[endIdx]) {
		return false
	}
	return true
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
