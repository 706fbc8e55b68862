// Package handoff manages the transfer of an in-flight on-device
// generation to a higher tier. The escalation state is an explicit record
// passed between tiers, not implicit continuation state, so it can be
// logged and replayed.
package handoff

import (
	"sync"
	"time"

	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/schema"
	"go.uber.org/zap"
)

// Trigger names the condition that interrupted the on-device generation.
type Trigger string

const (
	TriggerThermalThrottle    Trigger = "thermal_throttle"
	TriggerRAMPressure        Trigger = "ram_pressure"
	TriggerComplexityExceeded Trigger = "complexity_exceeded"
	TriggerUserOverride       Trigger = "user_override"
)

// Context captures everything the receiving tier needs to continue a
// generation. It is created on trigger, consumed exactly once, and
// discarded after consumption or timeout.
type Context struct {
	RequestID         string            `json:"request_id"`
	FromTier          schema.Tier       `json:"from_tier"`
	Trigger           Trigger           `json:"trigger"`
	PartialResponse   string            `json:"partial_response"`
	TokensGenerated   int               `json:"tokens_generated"`
	TargetTier        schema.Tier       `json:"target_tier"`
	ResumeFromPartial bool              `json:"resume_from_partial"`
	Payload           map[string]string `json:"payload,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// Event describes one escalation trigger raised by the generation loop.
type Event struct {
	Trigger         Trigger
	FromTier        schema.Tier
	PartialResponse string
	TokensGenerated int

	// RequestedTier applies only to user_override triggers.
	RequestedTier schema.Tier

	// ComplexityScore feeds target selection for complexity_exceeded.
	ComplexityScore float64

	Payload map[string]string
}

// ResumeCapable is the slice of the capability contract the manager needs
// for resume negotiation with the receiving tier.
type ResumeCapable interface {
	CanResume() bool
}

// Manager guards the at-most-one-outstanding-context rule for a single
// request. Concurrent requests use separate managers and never contend.
type Manager struct {
	mu        sync.Mutex
	requestID string
	pending   *Context
	ttl       time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewManager creates a per-request manager. A zero ttl means contexts
// never expire.
func NewManager(requestID string, ttl time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{requestID: requestID, ttl: ttl, now: time.Now, logger: logger}
}

// Raise packages an EscalationContext for the event and stores it as the
// request's outstanding context. A second trigger before consumption
// replaces the first: last trigger wins, contexts never stack.
func (m *Manager) Raise(ev Event, th config.Thresholds, target ResumeCapable) *Context {
	resume := target != nil && target.CanResume()
	hc := &Context{
		RequestID:         m.requestID,
		FromTier:          ev.FromTier,
		Trigger:           ev.Trigger,
		PartialResponse:   ev.PartialResponse,
		TokensGenerated:   ev.TokensGenerated,
		TargetTier:        TargetTier(ev, th),
		ResumeFromPartial: resume,
		Payload:           ev.Payload,
		CreatedAt:         m.now(),
	}

	m.mu.Lock()
	replaced := m.pending != nil
	m.pending = hc
	m.mu.Unlock()

	if replaced {
		m.logger.Debug("handoff context replaced",
			zap.String("request_id", m.requestID),
			zap.String("trigger", string(ev.Trigger)),
		)
	}
	return hc
}

// Consume hands the outstanding context to the receiving tier, exactly
// once. Expired contexts are discarded instead of delivered.
func (m *Manager) Consume() (*Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hc := m.pending
	if hc == nil {
		return nil, false
	}
	m.pending = nil

	if m.ttl > 0 && m.now().Sub(hc.CreatedAt) > m.ttl {
		m.logger.Warn("handoff context expired before consumption",
			zap.String("request_id", m.requestID),
			zap.String("trigger", string(hc.Trigger)),
		)
		return nil, false
	}
	return hc, true
}

// Outstanding reports whether an unconsumed context exists.
func (m *Manager) Outstanding() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// TargetTier maps a trigger to its default escalation target. Thermal and
// RAM pressure step up one tier to L1; complexity overflow picks L2 or L3
// from the measured complexity; user overrides go wherever the user asked.
func TargetTier(ev Event, th config.Thresholds) schema.Tier {
	switch ev.Trigger {
	case TriggerThermalThrottle, TriggerRAMPressure:
		return schema.TierL1
	case TriggerComplexityExceeded:
		if ev.ComplexityScore >= th.L3ComplexityFloor {
			return schema.TierL3
		}
		return schema.TierL2
	case TriggerUserOverride:
		if ev.RequestedTier.Valid() {
			return ev.RequestedTier
		}
		return schema.TierL1
	default:
		return schema.TierL1
	}
}
