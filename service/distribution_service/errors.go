package distribution_service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAsset the asset cannot be turned into a contract call
	ErrInvalidAsset = errors.New("asset cannot be dispatched")
	// ErrSubmitFailed the node did not take the transaction; retry next cycle
	ErrSubmitFailed = errors.New("distribution submit failed")
	// ErrReverted the receipt came back with a failure status
	ErrReverted = errors.New("distribution reverted")
	// ErrOutcomeUnknown the receipt wait expired; the tx may still land
	ErrOutcomeUnknown = errors.New("distribution outcome unknown")
)

// DispatchError carries the asset and tx hash of a failed dispatch.
// errors.Is matches both Kind and the underlying cause.
type DispatchError struct {
	Kind    error
	AssetID uint64
	TxHash  string
	Err     error
}

func (e *DispatchError) Error() string {
	msg := fmt.Sprintf("asset %d: %v", e.AssetID, e.Kind)
	if e.TxHash != "" {
		msg += " (tx " + e.TxHash + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DispatchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
