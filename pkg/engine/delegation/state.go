// Package delegation implements the per-account ownership state machine
// that decides which execution context — base or accelerated — currently
// holds write authority over an account's mutable state.
//
// Lifecycle: BaseOwned -> Delegating -> AcceleratedOwned -> Undelegating
// -> BaseOwned. The Undelegating phase holds until the base layer has
// observed and verified the accelerated context's commitment, so a
// withdrawal can never run against balances that predate settlement.
package delegation

import (
	"fmt"

	"github.com/tierdex/tierdex/pkg/engine/errs"
)

type Status int8

const (
	BaseOwned Status = iota
	Delegating
	AcceleratedOwned
	Undelegating
)

func (s Status) String() string {
	switch s {
	case BaseOwned:
		return "base_owned"
	case Delegating:
		return "delegating"
	case AcceleratedOwned:
		return "accelerated_owned"
	case Undelegating:
		return "undelegating"
	default:
		return "unknown"
	}
}

// State is embedded in every delegable account (Trader, Book).
type State struct {
	Status Status `json:"status"`

	// BaseSnapshot is the account state the base layer last owned,
	// captured when delegation began.
	BaseSnapshot []byte `json:"baseSnapshot,omitempty"`

	// FinalSnapshot is the accelerated context's last state, captured at
	// undelegation and applied to the base layer on settlement.
	FinalSnapshot []byte `json:"finalSnapshot,omitempty"`

	// Commitment attests FinalSnapshot. Set while Undelegating, cleared
	// once the base layer has verified and absorbed it.
	Commitment *Commitment `json:"commitment,omitempty"`
}

// BeginDelegate records the base-layer snapshot and marks the handoff in
// flight. Only valid from BaseOwned.
func (st *State) BeginDelegate(snapshot []byte) error {
	if st.Status != BaseOwned {
		return fmt.Errorf("%w: status %s", errs.ErrAlreadyDelegated, st.Status)
	}
	st.Status = Delegating
	st.BaseSnapshot = snapshot
	st.FinalSnapshot = nil
	st.Commitment = nil
	return nil
}

// CompleteDelegate hands write authority to the accelerated context.
func (st *State) CompleteDelegate() error {
	if st.Status != Delegating {
		return fmt.Errorf("%w: status %s", errs.ErrTransitionInProgress, st.Status)
	}
	st.Status = AcceleratedOwned
	return nil
}

// BeginUndelegate captures the accelerated context's final snapshot and
// its commitment, entering the settlement window. Only valid from
// AcceleratedOwned.
func (st *State) BeginUndelegate(finalSnapshot []byte, c *Commitment) error {
	switch st.Status {
	case AcceleratedOwned:
	case Delegating, Undelegating:
		return fmt.Errorf("%w: status %s", errs.ErrTransitionInProgress, st.Status)
	default:
		return fmt.Errorf("%w: account is not delegated", errs.ErrWrongContext)
	}
	if c == nil {
		return fmt.Errorf("%w: missing commitment", errs.ErrProof)
	}
	st.Status = Undelegating
	st.FinalSnapshot = finalSnapshot
	st.Commitment = c
	return nil
}

// Settle verifies the pending commitment and returns ownership to the
// base layer. verify is the base layer's proof check; a failure leaves the
// state untouched in Undelegating.
func (st *State) Settle(verify func(c *Commitment, snapshot []byte) error) error {
	if st.Status != Undelegating {
		return fmt.Errorf("%w: status %s", errs.ErrTransitionInProgress, st.Status)
	}
	if err := verify(st.Commitment, st.FinalSnapshot); err != nil {
		return err
	}
	st.Status = BaseOwned
	st.BaseSnapshot = nil
	st.FinalSnapshot = nil
	st.Commitment = nil
	return nil
}

// CheckDeposit gates base-layer credits. Deposits are allowed whenever the
// base layer owns the account.
func (st *State) CheckDeposit() error {
	return st.checkBase(errs.ErrWrongContext)
}

// CheckWithdraw gates base-layer debits. While a settlement is pending the
// caller gets ErrNotYetSettled, not a generic context error: the funds
// exist, the base layer just has not absorbed them.
func (st *State) CheckWithdraw() error {
	if st.Status == Undelegating {
		return fmt.Errorf("%w: commitment not yet observed", errs.ErrNotYetSettled)
	}
	return st.checkBase(errs.ErrWrongContext)
}

func (st *State) checkBase(notOwned error) error {
	switch st.Status {
	case BaseOwned:
		return nil
	case Delegating, Undelegating:
		return fmt.Errorf("%w: status %s", errs.ErrTransitionInProgress, st.Status)
	default:
		return fmt.Errorf("%w: account is delegated", notOwned)
	}
}

// CheckAccelerated gates trading operations (createOrder, matchOrder,
// cancelOrder), which may only run while the accelerated context owns the
// account.
func (st *State) CheckAccelerated() error {
	switch st.Status {
	case AcceleratedOwned:
		return nil
	case Delegating, Undelegating:
		return fmt.Errorf("%w: status %s", errs.ErrTransitionInProgress, st.Status)
	default:
		return fmt.Errorf("%w: account is base-owned", errs.ErrWrongContext)
	}
}
