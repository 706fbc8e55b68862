// Package arbiter reconciles an advisory client-side routing decision with
// the authoritative server-side one. Client proposals can never weaken a
// compliance- or PII-driven route.
package arbiter

import (
	"github.com/zen-systems/routegate/pkg/eligibility"
	"github.com/zen-systems/routegate/pkg/metadata"
	"github.com/zen-systems/routegate/pkg/signal"
	"go.uber.org/zap"
)

// Machine-readable override cause codes, stamped into override_reason.
const (
	CauseComplianceOverride         = "compliance_override"
	CausePIIUpgrade                 = "pii_upgrade"
	CauseBudgetDowngrade            = "budget_downgrade"
	CauseEligibilityFloor           = "eligibility_floor"
	CauseComplianceViolationAttempt = "compliance_violation_attempt"
)

// Arbiter applies the trust rules in order. It never mutates a decision in
// place; disagreement produces a new superseding record.
type Arbiter struct {
	logger *zap.Logger
}

// New creates an arbiter.
func New(logger *zap.Logger) *Arbiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Arbiter{logger: logger}
}

// Reconcile merges a client proposal into the server decision. When the
// two agree the server decision passes through with a null override
// reason; any changed field carries a cause code.
func (a *Arbiter) Reconcile(client *metadata.RoutingDecision, server metadata.RoutingDecision, b *signal.Bundle, elig eligibility.Outcome) metadata.RoutingDecision {
	server.Origin = metadata.OriginServer

	if client == nil {
		return server
	}

	if client.Equal(server) {
		// Agreement: override_reason stays null.
		return server
	}

	sensitive := b.HasCompliance() || b.HasPII()

	// Rule (a): compliance- or PII-touched fields always take the server
	// value. A client proposing a weaker tier than a compliance-forced
	// route is a violation attempt: rejected loudly, never silently.
	if sensitive || elig.ForceL0 {
		cause := CauseComplianceOverride
		if !b.HasCompliance() && b.HasPII() {
			cause = CausePIIUpgrade
		}
		if elig.ForceL0 && client.Primary.Tier != server.Primary.Tier {
			cause = CauseComplianceViolationAttempt
		}
		a.logger.Warn("client routing proposal overridden",
			zap.String("cause", cause),
			zap.String("client_tier", string(client.Primary.Tier)),
			zap.String("server_tier", string(server.Primary.Tier)),
		)
		return metadata.Superseded(server, cause)
	}

	// Rule (c): the server upgrades a client tier its own analysis found
	// too shallow.
	if client.Primary.Tier.Below(server.Primary.Tier) {
		return metadata.Superseded(server, CauseEligibilityFloor)
	}

	// Rule (b): the server may downgrade a client tier for budget/cost
	// reasons.
	if server.Primary.Tier.Below(client.Primary.Tier) {
		return metadata.Superseded(server, CauseBudgetDowngrade)
	}

	// Same tier, different expert or fallbacks: server wins, with cause.
	return metadata.Superseded(server, CauseEligibilityFloor)
}
