// Package decompose detects task multiplicity, fan-out and sequential
// dependencies in a request and plans a subtask DAG with a merge strategy.
package decompose

import (
	"fmt"
	"strings"

	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/schema"
	"github.com/zen-systems/routegate/pkg/signal"
	"go.uber.org/zap"
)

// MergeStrategy says how subtask outputs recombine. It is attached once
// per DAG and immutable thereafter.
type MergeStrategy string

const (
	// MergeConcat joins independent fan-out outputs in order.
	MergeConcat MergeStrategy = "concat"
	// MergeReduce synthesizes dependent chain outputs into one result.
	MergeReduce MergeStrategy = "reduce"
	// MergeVote picks the consensus of redundant subtask outputs.
	MergeVote MergeStrategy = "vote"
)

// Subtask is one independently routable unit of the request.
type Subtask struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	TierHint    schema.Tier `json:"tier_hint"`
}

// DAG is the planned decomposition. Dependencies map a node id to its
// prerequisite node ids; the graph is always acyclic.
type DAG struct {
	Nodes         []Subtask           `json:"nodes"`
	Dependencies  map[string][]string `json:"dependencies,omitempty"`
	MergeStrategy MergeStrategy       `json:"merge_strategy"`

	// Degraded is set when extraction produced an invalid graph and the
	// planner fell back to the single-node form.
	Degraded bool `json:"degraded,omitempty"`
}

// SingleNode returns the degenerate one-subtask DAG.
func SingleNode(description string, hint schema.Tier) *DAG {
	return &DAG{
		Nodes:         []Subtask{{ID: "t1", Description: description, TierHint: hint}},
		MergeStrategy: MergeConcat,
	}
}

// Validate checks that every dependency id exists and the graph is acyclic.
func (d *DAG) Validate() error {
	ids := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if ids[n.ID] {
			return fmt.Errorf("duplicate subtask id %q", n.ID)
		}
		ids[n.ID] = true
	}

	indegree := make(map[string]int, len(d.Nodes))
	for node, deps := range d.Dependencies {
		if !ids[node] {
			return fmt.Errorf("dependency entry for unknown subtask %q", node)
		}
		for _, dep := range deps {
			if !ids[dep] {
				return fmt.Errorf("subtask %q depends on unknown subtask %q", node, dep)
			}
			indegree[node]++
		}
	}

	// Kahn's algorithm; anything left over sits on a cycle.
	var ready []string
	for _, n := range d.Nodes {
		if indegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}
	visited := 0
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		visited++
		for node, deps := range d.Dependencies {
			for _, dep := range deps {
				if dep != id {
					continue
				}
				indegree[node]--
				if indegree[node] == 0 {
					ready = append(ready, node)
				}
			}
		}
	}
	if visited != len(d.Nodes) {
		return fmt.Errorf("dependency cycle among %d subtasks", len(d.Nodes)-visited)
	}
	return nil
}

// Planner builds DAGs from prompts and from profiler proposals.
type Planner struct {
	cfg    *config.AnalysisConfig
	logger *zap.Logger
}

// NewPlanner creates a planner over the loaded marker tables.
func NewPlanner(cfg *config.AnalysisConfig, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{cfg: cfg, logger: logger}
}

// Plan extracts a DAG from the prompt. An invalid extraction degrades to
// the single-node DAG rather than emitting a broken graph.
func (p *Planner) Plan(prompt string, b *signal.Bundle) *DAG {
	hint := p.tierHint(b)
	segments := p.segments(prompt)
	if len(segments) <= 1 {
		return SingleNode(prompt, hint)
	}

	lower := strings.ToLower(prompt)
	sequential := anyMarker(lower, p.cfg.SequenceMarkers)
	consensus := anyMarker(lower, p.cfg.ConsensusMarkers)

	dag := &DAG{MergeStrategy: MergeConcat}
	for i, seg := range segments {
		dag.Nodes = append(dag.Nodes, Subtask{
			ID:          fmt.Sprintf("t%d", i+1),
			Description: seg,
			TierHint:    hint,
		})
	}

	switch {
	case consensus:
		dag.MergeStrategy = MergeVote
	case sequential:
		dag.MergeStrategy = MergeReduce
		dag.Dependencies = make(map[string][]string, len(dag.Nodes)-1)
		for i := 1; i < len(dag.Nodes); i++ {
			dag.Dependencies[dag.Nodes[i].ID] = []string{dag.Nodes[i-1].ID}
		}
	}

	return p.checked(dag, prompt, hint)
}

// FromProposal converts a profiler parallelism plan into a validated DAG.
// Proposals with cycles or dangling ids degrade to the single-node DAG.
func (p *Planner) FromProposal(plan *signal.ParallelismPlan, prompt string, b *signal.Bundle) *DAG {
	hint := p.tierHint(b)
	if plan == nil || len(plan.Subtasks) == 0 {
		return SingleNode(prompt, hint)
	}

	dag := &DAG{
		Dependencies:  plan.Dependencies,
		MergeStrategy: parseStrategy(plan.MergeStrategy),
	}
	for _, st := range plan.Subtasks {
		node := Subtask{ID: st.ID, Description: st.Description, TierHint: st.TierHint}
		if !node.TierHint.Valid() {
			node.TierHint = hint
		}
		dag.Nodes = append(dag.Nodes, node)
	}

	return p.checked(dag, prompt, hint)
}

func (p *Planner) checked(dag *DAG, prompt string, hint schema.Tier) *DAG {
	if err := dag.Validate(); err != nil {
		p.logger.Warn("decomposition degraded to single node", zap.Error(err))
		out := SingleNode(prompt, hint)
		out.Degraded = true
		return out
	}
	return dag
}

// segments splits the prompt into candidate subtask descriptions: list
// items first, then sequence-marker clauses, then semicolon-separated
// imperative clauses.
func (p *Planner) segments(prompt string) []string {
	if items := listItems(prompt); len(items) > 1 {
		return items
	}

	lower := strings.ToLower(prompt)
	for _, marker := range p.cfg.SequenceMarkers {
		sep := " " + strings.ToLower(marker) + " "
		if strings.Contains(lower, sep) {
			return splitClauses(prompt, lower, sep)
		}
	}

	if strings.Contains(prompt, ";") {
		var out []string
		for _, part := range strings.Split(prompt, ";") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if len(out) > 1 {
			return out
		}
	}

	return []string{strings.TrimSpace(prompt)}
}

func splitClauses(prompt, lower, sep string) []string {
	var out []string
	rest := prompt
	restLower := lower
	for {
		idx := strings.Index(restLower, sep)
		if idx == -1 {
			break
		}
		if head := strings.TrimSpace(rest[:idx]); head != "" {
			out = append(out, head)
		}
		rest = rest[idx+len(sep):]
		restLower = restLower[idx+len(sep):]
	}
	if tail := strings.TrimSpace(rest); tail != "" {
		out = append(out, tail)
	}
	return out
}

func listItems(prompt string) []string {
	var items []string
	for _, line := range strings.Split(prompt, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			items = append(items, strings.TrimSpace(trimmed[2:]))
		}
	}
	return items
}

func anyMarker(lower string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func parseStrategy(s string) MergeStrategy {
	switch MergeStrategy(s) {
	case MergeConcat, MergeReduce, MergeVote:
		return MergeStrategy(s)
	default:
		return MergeConcat
	}
}

func (p *Planner) tierHint(b *signal.Bundle) schema.Tier {
	if b == nil {
		return schema.TierL1
	}
	if b.ComplexityScore() >= p.cfg.Thresholds.L2ComplexityFloor {
		return schema.TierL2
	}
	return schema.TierL1
}
