// Package eligibility decides whether a request may run on-device (L0).
// The decision is a pure function of the device snapshot and the
// compliance/offline inputs: identical input always yields the identical
// outcome.
package eligibility

import (
	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/schema"
)

// ThermalState reports the device thermal envelope.
type ThermalState string

const (
	ThermalNominal   ThermalState = "nominal"
	ThermalElevated  ThermalState = "elevated"
	ThermalThrottled ThermalState = "throttled"
)

// ContextSyncState reports whether on-device context matches the server.
type ContextSyncState string

const (
	SyncSynced   ContextSyncState = "synced"
	SyncDirty    ContextSyncState = "dirty"
	SyncConflict ContextSyncState = "conflict"
)

// PowerMode reports the device power profile.
type PowerMode string

const (
	PowerPerformance PowerMode = "performance"
	PowerBalanced    PowerMode = "balanced"
	PowerLow         PowerMode = "low_power"
)

// L0State is the device/context snapshot, captured fresh per request from
// the telemetry collaborator and never cached across requests.
type L0State struct {
	AvailableRAMGB             float64          `json:"available_ram_gb"`
	ModelFits                  bool             `json:"model_fits"`
	ThermalState               ThermalState     `json:"thermal_state"`
	BatteryPct                 int              `json:"battery_pct"`
	PowerMode                  PowerMode        `json:"power_mode"`
	QualityDegradationEstimate float64          `json:"quality_degradation_estimate"`
	QualityFloorMet            bool             `json:"quality_floor_met"`
	ContextSyncState           ContextSyncState `json:"context_sync_state"`
	EscalationReady            bool             `json:"escalation_ready"`
}

// Inputs are the non-device signals the tree consumes.
type Inputs struct {
	OfflineMode         bool
	DataEgressPermitted bool
	L0DeviceAvailable   bool
	ComplianceFlags     []schema.ComplianceFlag
	ComplexityScore     float64
	ReasoningHops       int
}

// Outcome is the eligibility verdict. ForceL0 outcomes are hard
// constraints: the trust arbiter may never relax them downward, and may
// relax them upward only via the compliance-redaction path.
type Outcome struct {
	Eligible            bool   `json:"eligible"`
	ForceL0             bool   `json:"force_l0"`
	Blocked             bool   `json:"blocked"`
	RedactionEscalation bool   `json:"redaction_escalation"`
	Rule                string `json:"rule"`
	Reason              string `json:"reason"`
}

// Evaluate walks the decision tree in fixed order; each matching rule is
// terminal.
func Evaluate(st L0State, in Inputs, policy config.EligibilityPolicy, th config.Thresholds) Outcome {
	if in.OfflineMode {
		return Outcome{Eligible: true, ForceL0: true, Rule: "offline_mode", Reason: "device is offline"}
	}

	if !in.DataEgressPermitted {
		if policy.BlockOnEgressDenied {
			return Outcome{Blocked: true, Rule: "egress_denied", Reason: "data egress not permitted"}
		}
		return Outcome{Eligible: true, ForceL0: true, Rule: "egress_denied", Reason: "data egress not permitted"}
	}

	if len(in.ComplianceFlags) > 0 {
		if policy.ComplianceMode == "redact_l3" {
			return Outcome{
				RedactionEscalation: true,
				Rule:                "compliance_flags",
				Reason:              "compliance flags present; escalate for redaction plan",
			}
		}
		return Outcome{Eligible: true, ForceL0: true, Rule: "compliance_flags", Reason: "compliance flags present"}
	}

	if !in.L0DeviceAvailable {
		return Outcome{Rule: "no_l0_device", Reason: "no on-device model available"}
	}

	if !st.ModelFits || st.ThermalState == ThermalThrottled {
		return Outcome{Rule: "device_capacity", Reason: "model does not fit or device is throttled"}
	}

	if !st.QualityFloorMet {
		return Outcome{Rule: "quality_floor", Reason: "on-device quality below floor"}
	}

	if in.ComplexityScore < th.L0ComplexityCeiling && in.ReasoningHops <= th.L0MaxReasoningHops {
		return Outcome{Eligible: true, Rule: "simple_request", Reason: "within on-device complexity band"}
	}

	return Outcome{Rule: "complexity", Reason: "request exceeds on-device complexity band"}
}
