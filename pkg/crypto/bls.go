package crypto

import (
	bls "github.com/cloudflare/circl/sign/bls"
)

type scheme = bls.KeyG1SigG2

type BLSPubKey = bls.PublicKey[scheme]
type BLSSignature = []byte

// BLSSigner is the attestation key held by the accelerated execution
// context. Settlement commitments are BLS signatures over snapshot digests
// so the base layer can verify them against the context's public key.
type BLSSigner struct {
	sk *bls.PrivateKey[scheme]
	pk *BLSPubKey
}

// NewBLSSignerFromSeed derives a deterministic key pair from a seed.
// The seed is stretched through Keccak256 to satisfy the 32-byte IKM
// minimum regardless of input length.
func NewBLSSignerFromSeed(seed []byte) *BLSSigner {
	ikm := Keccak256(seed)
	sk, err := bls.KeyGen[scheme](ikm, nil, nil)
	if err != nil {
		// Unreachable with a 32-byte ikm.
		panic(err)
	}
	return &BLSSigner{sk: sk, pk: sk.PublicKey()}
}

func (s *BLSSigner) Pubkey() *BLSPubKey { return s.pk }

func (s *BLSSigner) Sign(msg []byte) []byte {
	return bls.Sign(s.sk, msg)
}

func BLSVerify(pk *BLSPubKey, sigBytes, msg []byte) bool {
	return bls.Verify(pk, msg, bls.Signature(sigBytes))
}

// BLSAggregate combines signatures over the same message. With several
// accelerated contexts attesting the same snapshot, the base layer checks
// one aggregate instead of each signature.
func BLSAggregate(sigBytesList [][]byte) []byte {
	sigs := make([]bls.Signature, 0, len(sigBytesList))
	for _, sb := range sigBytesList {
		if len(sb) == 0 {
			continue
		}
		sigs = append(sigs, bls.Signature(sb))
	}
	agg, err := bls.Aggregate(bls.G1{}, sigs)
	if err != nil {
		return nil
	}
	return agg
}

func BLSVerifyAggregateSameMsg(pks []*BLSPubKey, msg []byte, aggSig []byte) bool {
	msgs := make([][]byte, len(pks))
	for i := range msgs {
		msgs[i] = msg
	}
	return bls.VerifyAggregate(pks, msgs, bls.Signature(aggSig))
}
