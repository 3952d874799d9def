package delegation

import (
	"errors"
	"testing"

	"github.com/tierdex/tierdex/pkg/engine/errs"
)

func TestDelegationLifecycle(t *testing.T) {
	st := &State{}
	if st.Status != BaseOwned {
		t.Fatalf("zero state should be base-owned, got %s", st.Status)
	}

	base := []byte(`{"balance":100}`)
	if err := st.BeginDelegate(base); err != nil {
		t.Fatalf("BeginDelegate: %v", err)
	}
	if st.Status != Delegating {
		t.Fatalf("status = %s, want delegating", st.Status)
	}
	if err := st.CompleteDelegate(); err != nil {
		t.Fatalf("CompleteDelegate: %v", err)
	}
	if st.Status != AcceleratedOwned {
		t.Fatalf("status = %s, want accelerated_owned", st.Status)
	}

	final := []byte(`{"balance":250}`)
	att := NewBLSAttestor([]byte("test-seed"))
	c, err := att.IssueCommitment(final, 1000)
	if err != nil {
		t.Fatalf("IssueCommitment: %v", err)
	}
	if err := st.BeginUndelegate(final, c); err != nil {
		t.Fatalf("BeginUndelegate: %v", err)
	}
	if st.Status != Undelegating {
		t.Fatalf("status = %s, want undelegating", st.Status)
	}

	if err := st.Settle(att.VerifyCommitment); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if st.Status != BaseOwned {
		t.Fatalf("status = %s, want base_owned after settle", st.Status)
	}
	if st.Commitment != nil || st.FinalSnapshot != nil || st.BaseSnapshot != nil {
		t.Fatal("settle should clear snapshots and commitment")
	}
}

func TestBeginDelegateRejectsNonBaseOwned(t *testing.T) {
	for _, status := range []Status{Delegating, AcceleratedOwned, Undelegating} {
		st := &State{Status: status}
		err := st.BeginDelegate(nil)
		if !errors.Is(err, errs.ErrAlreadyDelegated) {
			t.Errorf("status %s: err = %v, want ErrAlreadyDelegated", status, err)
		}
	}
}

func TestBeginUndelegateTransitions(t *testing.T) {
	c := &Commitment{Digest: []byte{1}, Proof: []byte{2}}

	tests := []struct {
		status Status
		want   error
	}{
		{BaseOwned, errs.ErrWrongContext},
		{Delegating, errs.ErrTransitionInProgress},
		{AcceleratedOwned, nil},
		{Undelegating, errs.ErrTransitionInProgress},
	}
	for _, tt := range tests {
		st := &State{Status: tt.status}
		err := st.BeginUndelegate([]byte("final"), c)
		if tt.want == nil {
			if err != nil {
				t.Errorf("status %s: unexpected err %v", tt.status, err)
			}
			continue
		}
		if !errors.Is(err, tt.want) {
			t.Errorf("status %s: err = %v, want %v", tt.status, err, tt.want)
		}
	}
}

func TestBeginUndelegateRequiresCommitment(t *testing.T) {
	st := &State{Status: AcceleratedOwned}
	if err := st.BeginUndelegate([]byte("final"), nil); !errors.Is(err, errs.ErrProof) {
		t.Fatalf("err = %v, want ErrProof", err)
	}
	if st.Status != AcceleratedOwned {
		t.Fatalf("failed undelegate must not change status, got %s", st.Status)
	}
}

func TestSettleFailureLeavesUndelegating(t *testing.T) {
	att := NewBLSAttestor([]byte("attestor-a"))
	final := []byte(`{"balance":42}`)
	c, err := att.IssueCommitment(final, 7)
	if err != nil {
		t.Fatalf("IssueCommitment: %v", err)
	}

	st := &State{Status: AcceleratedOwned}
	if err := st.BeginUndelegate(final, c); err != nil {
		t.Fatalf("BeginUndelegate: %v", err)
	}

	// A different key must not verify.
	other := NewBLSAttestor([]byte("attestor-b"))
	if err := st.Settle(other.VerifyCommitment); !errors.Is(err, errs.ErrProof) {
		t.Fatalf("err = %v, want ErrProof", err)
	}
	if st.Status != Undelegating {
		t.Fatalf("failed settle must stay undelegating, got %s", st.Status)
	}
	if st.Commitment == nil {
		t.Fatal("failed settle must keep the pending commitment")
	}

	// The right key still settles afterwards.
	if err := st.Settle(att.VerifyCommitment); err != nil {
		t.Fatalf("Settle with correct attestor: %v", err)
	}
}

func TestCheckWithdrawDuringSettlementWindow(t *testing.T) {
	att := NewBLSAttestor([]byte("seed"))
	final := []byte("final")
	c, _ := att.IssueCommitment(final, 1)

	st := &State{Status: AcceleratedOwned}
	if err := st.BeginUndelegate(final, c); err != nil {
		t.Fatalf("BeginUndelegate: %v", err)
	}

	if err := st.CheckWithdraw(); !errors.Is(err, errs.ErrNotYetSettled) {
		t.Fatalf("err = %v, want ErrNotYetSettled", err)
	}
	if err := st.CheckDeposit(); !errors.Is(err, errs.ErrTransitionInProgress) {
		t.Fatalf("deposit err = %v, want ErrTransitionInProgress", err)
	}

	if err := st.Settle(att.VerifyCommitment); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if err := st.CheckWithdraw(); err != nil {
		t.Fatalf("withdraw after settle: %v", err)
	}
}

func TestContextChecks(t *testing.T) {
	tests := []struct {
		status      Status
		deposit     error
		withdraw    error
		accelerated error
	}{
		{BaseOwned, nil, nil, errs.ErrWrongContext},
		{Delegating, errs.ErrTransitionInProgress, errs.ErrTransitionInProgress, errs.ErrTransitionInProgress},
		{AcceleratedOwned, errs.ErrWrongContext, errs.ErrWrongContext, nil},
		{Undelegating, errs.ErrTransitionInProgress, errs.ErrNotYetSettled, errs.ErrTransitionInProgress},
	}
	for _, tt := range tests {
		st := &State{Status: tt.status}
		check := func(name string, got, want error) {
			if want == nil && got != nil {
				t.Errorf("%s/%s: unexpected err %v", tt.status, name, got)
			}
			if want != nil && !errors.Is(got, want) {
				t.Errorf("%s/%s: err = %v, want %v", tt.status, name, got, want)
			}
		}
		check("deposit", st.CheckDeposit(), tt.deposit)
		check("withdraw", st.CheckWithdraw(), tt.withdraw)
		check("accelerated", st.CheckAccelerated(), tt.accelerated)
	}
}
