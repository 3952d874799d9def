package delegation

import (
	"crypto/subtle"
	"fmt"

	"github.com/tierdex/tierdex/pkg/crypto"
	"github.com/tierdex/tierdex/pkg/engine/errs"
)

// Commitment is the verifiable proof that a final account snapshot came
// out of the accelerated context. The base layer refuses withdrawals until
// it has verified one for every undelegated account.
type Commitment struct {
	Digest   []byte `json:"digest"`   // keccak256 of the final snapshot
	Proof    []byte `json:"proof"`    // BLS signature over Digest
	IssuedAt int64  `json:"issuedAt"` // unix ms
}

// Attestor issues and verifies commitments. The accelerated context holds
// the signing half; the base layer only needs the verifying half.
type Attestor interface {
	IssueCommitment(snapshot []byte, now int64) (*Commitment, error)
	VerifyCommitment(c *Commitment, snapshot []byte) error
}

// BLSAttestor signs snapshot digests with the accelerated context's BLS
// key. Any holder of the public key can verify.
type BLSAttestor struct {
	signer *crypto.BLSSigner
	pub    *crypto.BLSPubKey
}

// NewBLSAttestor builds the signing+verifying attestor from a seed.
func NewBLSAttestor(seed []byte) *BLSAttestor {
	s := crypto.NewBLSSignerFromSeed(seed)
	return &BLSAttestor{signer: s, pub: s.Pubkey()}
}

// NewBLSVerifier builds a verify-only attestor around a public key.
// IssueCommitment fails: the base layer never signs.
func NewBLSVerifier(pub *crypto.BLSPubKey) *BLSAttestor {
	return &BLSAttestor{pub: pub}
}

// Pubkey returns the verifying half, handed to base-layer deployments.
func (a *BLSAttestor) Pubkey() *crypto.BLSPubKey {
	return a.pub
}

func (a *BLSAttestor) IssueCommitment(snapshot []byte, now int64) (*Commitment, error) {
	if a.signer == nil {
		return nil, fmt.Errorf("%w: attestor has no signing key", errs.ErrProof)
	}
	digest := crypto.Keccak256(snapshot)
	return &Commitment{
		Digest:   digest,
		Proof:    a.signer.Sign(digest),
		IssuedAt: now,
	}, nil
}

func (a *BLSAttestor) VerifyCommitment(c *Commitment, snapshot []byte) error {
	if c == nil {
		return fmt.Errorf("%w: no commitment", errs.ErrProof)
	}
	digest := crypto.Keccak256(snapshot)
	if subtle.ConstantTimeCompare(digest, c.Digest) != 1 {
		return fmt.Errorf("%w: digest does not match snapshot", errs.ErrProof)
	}
	if !crypto.BLSVerify(a.pub, c.Proof, c.Digest) {
		return fmt.Errorf("%w: bad signature", errs.ErrProof)
	}
	return nil
}
