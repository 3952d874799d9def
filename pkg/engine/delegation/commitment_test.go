package delegation

import (
	"errors"
	"testing"

	"github.com/tierdex/tierdex/pkg/engine/errs"
)

func TestCommitmentRoundTrip(t *testing.T) {
	att := NewBLSAttestor([]byte("devnet-seed"))
	snapshot := []byte(`{"baseBalance":10,"quoteBalance":900}`)

	c, err := att.IssueCommitment(snapshot, 1234)
	if err != nil {
		t.Fatalf("IssueCommitment: %v", err)
	}
	if c.IssuedAt != 1234 {
		t.Fatalf("IssuedAt = %d, want 1234", c.IssuedAt)
	}
	if err := att.VerifyCommitment(c, snapshot); err != nil {
		t.Fatalf("VerifyCommitment: %v", err)
	}
}

func TestCommitmentRejectsTamperedSnapshot(t *testing.T) {
	att := NewBLSAttestor([]byte("devnet-seed"))
	c, err := att.IssueCommitment([]byte(`{"baseBalance":10}`), 1)
	if err != nil {
		t.Fatalf("IssueCommitment: %v", err)
	}
	err = att.VerifyCommitment(c, []byte(`{"baseBalance":9999}`))
	if !errors.Is(err, errs.ErrProof) {
		t.Fatalf("err = %v, want ErrProof", err)
	}
}

func TestCommitmentRejectsTamperedProof(t *testing.T) {
	att := NewBLSAttestor([]byte("devnet-seed"))
	snapshot := []byte("snap")
	c, err := att.IssueCommitment(snapshot, 1)
	if err != nil {
		t.Fatalf("IssueCommitment: %v", err)
	}
	c.Proof[0] ^= 0xff
	if err := att.VerifyCommitment(c, snapshot); !errors.Is(err, errs.ErrProof) {
		t.Fatalf("err = %v, want ErrProof", err)
	}
}

func TestVerifierCannotIssue(t *testing.T) {
	signing := NewBLSAttestor([]byte("seed"))
	verifier := NewBLSVerifier(signing.Pubkey())

	if _, err := verifier.IssueCommitment([]byte("snap"), 1); !errors.Is(err, errs.ErrProof) {
		t.Fatalf("err = %v, want ErrProof", err)
	}

	// But it verifies what the signing half issued.
	c, err := signing.IssueCommitment([]byte("snap"), 1)
	if err != nil {
		t.Fatalf("IssueCommitment: %v", err)
	}
	if err := verifier.VerifyCommitment(c, []byte("snap")); err != nil {
		t.Fatalf("VerifyCommitment: %v", err)
	}
}
