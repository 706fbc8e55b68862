// Package confidence scores signal bundles and decides whether the cascade
// may stop at the current layer.
package confidence

import (
	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/signal"
)

// Deduction records one applied penalty for explainability.
type Deduction struct {
	Signal  string  `json:"signal"`
	Penalty float64 `json:"penalty"`
}

// Score is a confidence value in [0,1] plus the ordered deductions that
// produced it. The value is always base 1.0 minus penalties, clamped.
type Score struct {
	Value             float64     `json:"value"`
	Deductions        []Deduction `json:"deductions,omitempty"`
	MandatoryEscalate bool        `json:"mandatory_escalate"`
}

// Evaluator applies the ordered penalty rules from configuration.
type Evaluator struct {
	thresholds config.Thresholds
	penalties  config.Penalties
}

// NewEvaluator creates an evaluator over the loaded thresholds.
func NewEvaluator(cfg *config.AnalysisConfig) *Evaluator {
	return &Evaluator{thresholds: cfg.Thresholds, penalties: cfg.Penalties}
}

// Evaluate scores a bundle from any layer. Penalty rules apply in a fixed
// order; compliance flags are not a penalty but a hard stop-condition veto
// (see Clears).
func (e *Evaluator) Evaluate(b *signal.Bundle) Score {
	s := Score{Value: 1.0}

	apply := func(name string, penalty float64) {
		s.Deductions = append(s.Deductions, Deduction{Signal: name, Penalty: penalty})
		s.Value -= penalty
	}

	if b.TokenCount >= e.thresholds.AmbiguousTokenMin && b.TokenCount < e.thresholds.AmbiguousTokenMax {
		apply("ambiguous_token_band", e.penalties.AmbiguousTokenBand)
	}

	if competingDomains(b) {
		apply("competing_domains", e.penalties.CompetingDomains)
	}

	if b.HasPII() {
		apply("pii_signal", e.penalties.PIISignal)
		s.MandatoryEscalate = true
	}

	if b.QualityFlag && b.Classifier == nil {
		// A quality demand without a measured complexity score means the
		// layer cannot tell how hard the request really is.
		apply("quality_uncertain_complexity", e.penalties.QualityUncertain)
	}

	if b.QuestionCount > e.thresholds.QuestionCountMax {
		apply("many_questions", e.penalties.ManyQuestions)
	}

	if s.Value < 0 {
		s.Value = 0
	}
	if s.Value > 1 {
		s.Value = 1
	}
	return s
}

// Clears reports whether the cascade may stop on this bundle: score at or
// above the stop threshold, no compliance flags, no pending
// mandatory-escalate bit. Compliance is a hard override, never outweighed
// by the numeric score.
func (e *Evaluator) Clears(s Score, b *signal.Bundle) bool {
	if b.HasCompliance() {
		return false
	}
	if s.MandatoryEscalate {
		return false
	}
	return s.Value >= e.thresholds.StopConfidence
}

// StopThreshold exposes the configured stop threshold.
func (e *Evaluator) StopThreshold() float64 {
	return e.thresholds.StopConfidence
}

// competingDomains reports whether the bundle still carries an unresolved
// multi-domain signal. Once the classifier has produced a probability
// vector, a clear winner dissolves the competition.
func competingDomains(b *signal.Bundle) bool {
	if b.Classifier != nil && len(b.Classifier.DomainProbabilities) > 0 {
		top, second := topTwo(b.Classifier.DomainProbabilities)
		return top-second < 0.1
	}
	if len(b.DomainScores) < 2 {
		return false
	}
	return b.DomainScores[0].Hits == b.DomainScores[1].Hits
}

func topTwo(probs map[string]float64) (top, second float64) {
	for _, v := range probs {
		if v > top {
			top, second = v, top
		} else if v > second {
			second = v
		}
	}
	return top, second
}
