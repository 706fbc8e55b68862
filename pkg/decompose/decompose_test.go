package decompose

import (
	"testing"

	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/schema"
	"github.com/zen-systems/routegate/pkg/signal"
)

func testPlanner() *Planner {
	return NewPlanner(config.DefaultAnalysisConfig(), nil)
}

func TestPlan_ListItemsFanOut(t *testing.T) {
	p := testPlanner()

	prompt := "Prepare the launch:\n- write the announcement\n- draft the changelog\n- deploy the docs site"
	dag := p.Plan(prompt, &signal.Bundle{ComplexityEstimate: 0.3})

	if len(dag.Nodes) != 3 {
		t.Fatalf("expected 3 subtasks, got %+v", dag.Nodes)
	}
	if dag.MergeStrategy != MergeConcat {
		t.Errorf("independent fan-out merges with concat, got %v", dag.MergeStrategy)
	}
	if len(dag.Dependencies) != 0 {
		t.Errorf("fan-out subtasks have no dependencies, got %v", dag.Dependencies)
	}
	if dag.Nodes[0].Description != "write the announcement" {
		t.Errorf("unexpected first subtask: %q", dag.Nodes[0].Description)
	}
	if err := dag.Validate(); err != nil {
		t.Errorf("planned DAG must validate: %v", err)
	}
}

func TestPlan_SequenceMarkersBuildChain(t *testing.T) {
	p := testPlanner()

	dag := p.Plan("Summarize the report then draft a reply", &signal.Bundle{ComplexityEstimate: 0.3})

	if len(dag.Nodes) != 2 {
		t.Fatalf("expected 2 subtasks, got %+v", dag.Nodes)
	}
	if dag.MergeStrategy != MergeReduce {
		t.Errorf("sequential chain merges with reduce, got %v", dag.MergeStrategy)
	}
	deps := dag.Dependencies[dag.Nodes[1].ID]
	if len(deps) != 1 || deps[0] != dag.Nodes[0].ID {
		t.Errorf("second subtask must depend on the first, got %v", dag.Dependencies)
	}
}

func TestPlan_ConsensusMarkersVote(t *testing.T) {
	p := testPlanner()

	dag := p.Plan("Translate this paragraph; independently verify the result with a second opinion; report both", &signal.Bundle{})

	if dag.MergeStrategy != MergeVote {
		t.Errorf("consensus request merges with vote, got %v", dag.MergeStrategy)
	}
}

func TestPlan_SingleClausePrompt(t *testing.T) {
	p := testPlanner()

	dag := p.Plan("Explain how DNS resolution works", &signal.Bundle{})

	if len(dag.Nodes) != 1 {
		t.Fatalf("expected single-node DAG, got %+v", dag.Nodes)
	}
	if dag.Degraded {
		t.Error("a naturally single-clause prompt is not a degraded plan")
	}
}

func TestPlan_TierHintFollowsComplexity(t *testing.T) {
	p := testPlanner()

	low := p.Plan("do a; do b", &signal.Bundle{ComplexityEstimate: 0.2})
	if low.Nodes[0].TierHint != schema.TierL1 {
		t.Errorf("low complexity hints L1, got %v", low.Nodes[0].TierHint)
	}

	high := p.Plan("do a; do b", &signal.Bundle{ComplexityEstimate: 0.6})
	if high.Nodes[0].TierHint != schema.TierL2 {
		t.Errorf("high complexity hints L2, got %v", high.Nodes[0].TierHint)
	}
}

func TestFromProposal_ValidPlan(t *testing.T) {
	p := testPlanner()

	plan := &signal.ParallelismPlan{
		Subtasks: []signal.PlannedSubtask{
			{ID: "a", Description: "gather data", TierHint: schema.TierL1},
			{ID: "b", Description: "analyze data", TierHint: schema.TierL2},
		},
		Dependencies:  map[string][]string{"b": {"a"}},
		MergeStrategy: "reduce",
	}
	dag := p.FromProposal(plan, "gather and analyze", &signal.Bundle{})

	if dag.Degraded {
		t.Fatalf("valid proposal must not degrade: %+v", dag)
	}
	if len(dag.Nodes) != 2 || dag.MergeStrategy != MergeReduce {
		t.Errorf("proposal not carried through: %+v", dag)
	}
}

func TestFromProposal_CycleDegradesToSingleNode(t *testing.T) {
	p := testPlanner()

	plan := &signal.ParallelismPlan{
		Subtasks: []signal.PlannedSubtask{
			{ID: "a", Description: "first"},
			{ID: "b", Description: "second"},
		},
		Dependencies: map[string][]string{"a": {"b"}, "b": {"a"}},
	}
	dag := p.FromProposal(plan, "original prompt", &signal.Bundle{})

	if !dag.Degraded {
		t.Fatal("cyclic proposal must degrade")
	}
	if len(dag.Nodes) != 1 || dag.Nodes[0].Description != "original prompt" {
		t.Errorf("degraded plan is the single-node DAG over the prompt, got %+v", dag.Nodes)
	}
}

func TestFromProposal_DanglingDependencyDegrades(t *testing.T) {
	p := testPlanner()

	plan := &signal.ParallelismPlan{
		Subtasks:     []signal.PlannedSubtask{{ID: "a", Description: "only"}},
		Dependencies: map[string][]string{"a": {"ghost"}},
	}
	dag := p.FromProposal(plan, "prompt", &signal.Bundle{})
	if !dag.Degraded {
		t.Fatal("dangling dependency must degrade")
	}
}

func TestFromProposal_InvalidTierHintReplaced(t *testing.T) {
	p := testPlanner()

	plan := &signal.ParallelismPlan{
		Subtasks: []signal.PlannedSubtask{{ID: "a", Description: "task", TierHint: "L9"}},
	}
	dag := p.FromProposal(plan, "prompt", &signal.Bundle{ComplexityEstimate: 0.6})
	if dag.Nodes[0].TierHint != schema.TierL2 {
		t.Errorf("invalid hint falls back to the planner hint, got %v", dag.Nodes[0].TierHint)
	}
}

func TestValidate_DuplicateIDs(t *testing.T) {
	dag := &DAG{Nodes: []Subtask{{ID: "a"}, {ID: "a"}}}
	if err := dag.Validate(); err == nil {
		t.Fatal("duplicate subtask ids must fail validation")
	}
}

func TestValidate_DiamondIsAcyclic(t *testing.T) {
	dag := &DAG{
		Nodes: []Subtask{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		Dependencies: map[string][]string{
			"b": {"a"},
			"c": {"a"},
			"d": {"b", "c"},
		},
		MergeStrategy: MergeReduce,
	}
	if err := dag.Validate(); err != nil {
		t.Fatalf("diamond dependencies are valid: %v", err)
	}
}
