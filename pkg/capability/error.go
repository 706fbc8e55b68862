package capability

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/zen-systems/routegate/pkg/schema"
)

// FailureKind classifies capability failures for the recovery rules.
type FailureKind string

const (
	// FailureTimeout marks a capability that exceeded its latency budget.
	FailureTimeout FailureKind = "timeout"

	// FailureUnavailable marks a capability that is not loaded or not
	// reachable.
	FailureUnavailable FailureKind = "unavailable"

	// FailureInvalid marks a capability that answered with an unparseable
	// or out-of-range payload.
	FailureInvalid FailureKind = "invalid"
)

// Error wraps capability failures with the layer and failure kind. Both
// timeout and unavailable are recovered by treating the layer as
// non-authoritative; neither is fatal.
type Error struct {
	Layer schema.AnalysisLayer
	Kind  FailureKind
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return "capability error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Layer, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s", e.Layer, e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTimeout reports whether the error is a latency-budget failure.
func IsTimeout(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == FailureTimeout
}

// IsUnavailable reports whether the capability was unreachable.
func IsUnavailable(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == FailureUnavailable
}

// wrapEnrichError normalizes raw enrich errors into *Error.
func wrapEnrichError(layer schema.AnalysisLayer, err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Layer: layer, Kind: FailureTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Layer: layer, Kind: FailureTimeout, Err: err}
	}
	return &Error{Layer: layer, Kind: FailureUnavailable, Err: err}
}
