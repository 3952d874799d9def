// Package oracle validates out-of-band signed price input before the
// matching engine will act on it. The engine only needs authenticity and
// freshness; the feed's internal aggregation is the publisher's business.
package oracle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tierdex/tierdex/pkg/crypto"
	"github.com/tierdex/tierdex/pkg/engine/errs"
	"github.com/tierdex/tierdex/pkg/util"
)

// QuantizedScale is the decimal scale of quantized oracle values.
const QuantizedScale uint8 = 9

// TemporalNumericValue is a point observation from the feed.
type TemporalNumericValue struct {
	TimestampNs    int64  `json:"timestampNs"`
	QuantizedValue uint64 `json:"quantizedValue"`
}

// Data is the signed payload delivered with a match request: observation,
// publisher merkle root, compute-algorithm hash and a split r/s/v
// signature over the whole thing.
type Data struct {
	Symbol              string               `json:"symbol"`
	FeedID              common.Hash          `json:"feedId"`
	Value               TemporalNumericValue `json:"value"`
	PublisherMerkleRoot [32]byte             `json:"publisherMerkleRoot"`
	ValueComputeAlgHash [32]byte             `json:"valueComputeAlgHash"`
	R                   [32]byte             `json:"r"`
	S                   [32]byte             `json:"s"`
	V                   uint8                `json:"v"`
}

// Price is the validated output handed to the matching engine.
type Price struct {
	Value      uint64
	Scale      uint8
	ObservedAt time.Time
}

// Validator is the external price-validation collaborator as the engine
// sees it.
type Validator interface {
	ValidatePrice(d *Data) (*Price, error)
}

// ECDSAValidator checks the payload signature against a trusted publisher
// address and enforces a staleness bound.
type ECDSAValidator struct {
	publisher common.Address
	maxAge    time.Duration
	clock     util.Clock
}

func NewECDSAValidator(publisher common.Address, maxAge time.Duration, clock util.Clock) *ECDSAValidator {
	return &ECDSAValidator{publisher: publisher, maxAge: maxAge, clock: clock}
}

func (v *ECDSAValidator) ValidatePrice(d *Data) (*Price, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: missing payload", errs.ErrInvalidOracleData)
	}
	if d.Value.QuantizedValue == 0 {
		return nil, fmt.Errorf("%w: zero price", errs.ErrInvalidOracleData)
	}

	sig := crypto.RSVToSignature(bigFromBytes(d.R), bigFromBytes(d.S), d.V)
	if !crypto.VerifySignature(v.publisher, SigningDigest(d), sig) {
		return nil, fmt.Errorf("%w: signature not from trusted publisher", errs.ErrInvalidOracleData)
	}

	observedAt := time.Unix(0, d.Value.TimestampNs)
	age := v.clock.Now().Sub(observedAt)
	if age > v.maxAge {
		return nil, fmt.Errorf("%w: observation is %s old, tolerance %s", errs.ErrInvalidOracleData, age, v.maxAge)
	}

	return &Price{
		Value:      d.Value.QuantizedValue,
		Scale:      QuantizedScale,
		ObservedAt: observedAt,
	}, nil
}

func bigFromBytes(b [32]byte) *big.Int {
	return new(big.Int).SetBytes(b[:])
}

// SigningDigest is the canonical keccak digest the publisher signs:
// length-prefixed symbol, feed id, observation, merkle root, alg hash.
func SigningDigest(d *Data) []byte {
	var buf bytes.Buffer
	var scratch [8]byte

	binary.BigEndian.PutUint32(scratch[:4], uint32(len(d.Symbol)))
	buf.Write(scratch[:4])
	buf.WriteString(d.Symbol)
	buf.Write(d.FeedID[:])
	binary.BigEndian.PutUint64(scratch[:], uint64(d.Value.TimestampNs))
	buf.Write(scratch[:])
	binary.BigEndian.PutUint64(scratch[:], d.Value.QuantizedValue)
	buf.Write(scratch[:])
	buf.Write(d.PublisherMerkleRoot[:])
	buf.Write(d.ValueComputeAlgHash[:])

	return crypto.Keccak256(buf.Bytes())
}

// Sign fills R, S, V with the publisher signature over the payload.
// Used by tests and the sign-price tool; production payloads arrive
// already signed.
func Sign(signer *crypto.Signer, d *Data) error {
	sig, err := signer.Sign(SigningDigest(d))
	if err != nil {
		return fmt.Errorf("failed to sign oracle payload: %w", err)
	}
	copy(d.R[:], sig[:32])
	copy(d.S[:], sig[32:64])
	d.V = sig[64]
	return nil
}
