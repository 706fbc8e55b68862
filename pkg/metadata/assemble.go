package metadata

import (
	"fmt"
	"time"

	"github.com/zen-systems/routegate/pkg/cascade"
	"github.com/zen-systems/routegate/pkg/decompose"
	"github.com/zen-systems/routegate/pkg/eligibility"
	"github.com/zen-systems/routegate/pkg/handoff"
)

// AssembleInput collects the upstream outputs for the final merge.
type AssembleInput struct {
	RequestID       string
	AnalyzerVersion string
	Cascade         *cascade.Result
	L0State         eligibility.L0State
	Eligibility     eligibility.Outcome
	Handoff         *handoff.Context
	Subtasks        *decompose.DAG
	Decision        RoutingDecision
}

// Assemble folds the upstream outputs into one immutable RoutingMetadata.
// It fails when a mandatory field is missing; it never fabricates a
// default for one.
func Assemble(in AssembleInput) (*RoutingMetadata, error) {
	if in.RequestID == "" {
		return nil, fmt.Errorf("assemble: request id is mandatory")
	}
	if in.AnalyzerVersion == "" {
		return nil, fmt.Errorf("assemble: analyzer version is mandatory")
	}
	if in.Cascade == nil || len(in.Cascade.Bundles) == 0 {
		return nil, fmt.Errorf("assemble: cascade produced no signal bundles")
	}
	if len(in.Cascade.LayersRun) == 0 {
		return nil, fmt.Errorf("assemble: layers_run is mandatory")
	}
	if in.Eligibility.Rule == "" {
		return nil, fmt.Errorf("assemble: eligibility outcome is mandatory")
	}
	if !in.Decision.Primary.Tier.Valid() {
		return nil, fmt.Errorf("assemble: routing decision has no valid primary tier")
	}
	if in.Decision.Primary.Expert == "" {
		return nil, fmt.Errorf("assemble: routing decision has no expert")
	}

	m := &RoutingMetadata{
		RequestID:       in.RequestID,
		AnalyzerVersion: in.AnalyzerVersion,
		Bundles:         in.Cascade.Bundles,
		Confidence:      in.Cascade.Final,
		LayersRun:       in.Cascade.LayersRun,
		FinalLayer:      in.Cascade.FinalLayer,
		Failures:        in.Cascade.Failures,
		ForceMode:       in.Cascade.ForceReason,
		L0State:         in.L0State,
		Eligibility:     in.Eligibility,
		Handoff:         in.Handoff,
		Subtasks:        in.Subtasks,
		Decision:        in.Decision,
		CreatedAt:       time.Now().UTC(),
	}
	m.Hash = m.computeHash()
	return m, nil
}
