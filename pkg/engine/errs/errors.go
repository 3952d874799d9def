// Package errs defines the typed error taxonomy shared by all engine
// components. Every failed precondition aborts its operation with exactly
// one of these sentinels, wrapped with context via fmt.Errorf and %w.
package errs

import "errors"

var (
	// Registry
	ErrAlreadyExists = errors.New("already exists")

	// Balance ledger
	ErrInvalidAsset        = errors.New("asset is neither base nor quote of this book")
	ErrInsufficientBalance = errors.New("insufficient balance")

	// Order store / matching
	ErrTooManyOrders     = errors.New("order collection at capacity")
	ErrOrderNotFound     = errors.New("order not found")
	ErrSideMismatch      = errors.New("orders are not opposite sides")
	ErrPriceMismatch     = errors.New("taker limit incompatible with execution price")
	ErrInvalidOracleData = errors.New("invalid or stale oracle data")

	// Delegation state machine
	ErrWrongContext         = errors.New("operation not permitted in current execution context")
	ErrTransitionInProgress = errors.New("ownership transition in progress")
	ErrAlreadyDelegated     = errors.New("account already delegated")
	ErrNotYetSettled        = errors.New("accelerated-layer state not yet settled")

	// External collaborators
	ErrTransfer = errors.New("custodial transfer failed")
	ErrProof    = errors.New("commitment proof invalid")
)
