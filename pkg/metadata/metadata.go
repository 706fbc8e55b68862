// Package metadata defines the routing decision and the terminal,
// immutable RoutingMetadata record handed to the execution layer.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/zen-systems/routegate/pkg/cascade"
	"github.com/zen-systems/routegate/pkg/confidence"
	"github.com/zen-systems/routegate/pkg/decompose"
	"github.com/zen-systems/routegate/pkg/eligibility"
	"github.com/zen-systems/routegate/pkg/handoff"
	"github.com/zen-systems/routegate/pkg/schema"
	"github.com/zen-systems/routegate/pkg/signal"
)

// DecisionOrigin says which side produced a routing decision.
type DecisionOrigin string

const (
	OriginServer DecisionOrigin = "server"
	OriginClient DecisionOrigin = "client"
)

// RoutePath is one tier/expert pair.
type RoutePath struct {
	Tier   schema.Tier `json:"tier"`
	Expert string      `json:"expert"`
}

// RoutingDecision is the primary path plus ordered fallbacks. It is
// immutable once built: corrections produce a new decision with
// OverrideReason populated, never an in-place edit.
type RoutingDecision struct {
	Primary        RoutePath      `json:"primary_path"`
	Fallbacks      []RoutePath    `json:"fallback_paths,omitempty"`
	OverrideReason string         `json:"override_reason,omitempty"`
	Origin         DecisionOrigin `json:"origin"`
}

// Equal compares the routed paths, ignoring origin and override metadata.
func (d RoutingDecision) Equal(other RoutingDecision) bool {
	if d.Primary != other.Primary || len(d.Fallbacks) != len(other.Fallbacks) {
		return false
	}
	for i := range d.Fallbacks {
		if d.Fallbacks[i] != other.Fallbacks[i] {
			return false
		}
	}
	return true
}

// Superseded returns a copy of next carrying the override cause, leaving
// both source decisions untouched.
func Superseded(next RoutingDecision, cause string) RoutingDecision {
	out := next
	out.Fallbacks = append([]RoutePath(nil), next.Fallbacks...)
	out.OverrideReason = cause
	return out
}

// RoutingMetadata is the sole artifact exposed to the execution layer:
// every produced bundle, the final confidence, the device snapshot and
// eligibility verdict, the optional handoff context and subtask DAG, and
// the (possibly arbiter-revised) routing decision.
type RoutingMetadata struct {
	RequestID       string `json:"request_id"`
	AnalyzerVersion string `json:"analyzer_version"`

	Bundles    []*signal.Bundle       `json:"bundles"`
	Confidence confidence.Score       `json:"confidence"`
	LayersRun  []string               `json:"layers_run"`
	FinalLayer schema.AnalysisLayer   `json:"final_layer"`
	Failures   []cascade.LayerFailure `json:"layer_failures,omitempty"`
	ForceMode  string                 `json:"force_reason,omitempty"`

	L0State     eligibility.L0State `json:"l0_state"`
	Eligibility eligibility.Outcome `json:"l0"`

	Handoff  *handoff.Context `json:"escalation_context,omitempty"`
	Subtasks *decompose.DAG   `json:"subtask_dag,omitempty"`

	Decision RoutingDecision `json:"routing_decision"`

	CreatedAt time.Time `json:"created_at"`
	Hash      string    `json:"hash"`
}

// RecommendedTier is shorthand for the primary path's tier.
func (m *RoutingMetadata) RecommendedTier() schema.Tier {
	return m.Decision.Primary.Tier
}

// computeHash fingerprints the record content for the audit trail. The
// hash field itself is excluded.
func (m *RoutingMetadata) computeHash() string {
	clone := *m
	clone.Hash = ""
	data, err := json.Marshal(&clone)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}
