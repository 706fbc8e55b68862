// Package telemetry is the boundary to the device telemetry collaborator.
// The core asks for one snapshot at analysis start; it never polls.
package telemetry

import (
	"context"

	"github.com/zen-systems/routegate/pkg/eligibility"
)

// Provider supplies a fresh device snapshot on demand.
type Provider interface {
	Snapshot(ctx context.Context) (eligibility.L0State, error)
}

// StaticProvider returns a fixed snapshot, for servers with no device and
// for tests.
type StaticProvider struct {
	State eligibility.L0State
}

// Snapshot returns the configured state.
func (p *StaticProvider) Snapshot(_ context.Context) (eligibility.L0State, error) {
	return p.State, nil
}

// DefaultProvider describes a healthy reference device.
func DefaultProvider() *StaticProvider {
	return &StaticProvider{State: eligibility.L0State{
		AvailableRAMGB:   6.0,
		ModelFits:        true,
		ThermalState:     eligibility.ThermalNominal,
		BatteryPct:       80,
		PowerMode:        eligibility.PowerBalanced,
		QualityFloorMet:  true,
		ContextSyncState: eligibility.SyncSynced,
		EscalationReady:  true,
	}}
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (eligibility.L0State, error)

func (f ProviderFunc) Snapshot(ctx context.Context) (eligibility.L0State, error) {
	return f(ctx)
}
