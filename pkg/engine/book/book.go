// Package book defines the order-matching instance: one base/quote asset
// pair plus the custodial vault totals that back every trader balance.
package book

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tierdex/tierdex/pkg/crypto"
	"github.com/tierdex/tierdex/pkg/engine/delegation"
	"github.com/tierdex/tierdex/pkg/engine/errs"
)

// Book is logically permanent: created once, never destroyed. Identity and
// asset pair are immutable after creation; only vault holdings and the
// delegation state change.
type Book struct {
	ID         string `json:"id"`
	BaseAsset  string `json:"baseAsset"`
	QuoteAsset string `json:"quoteAsset"`

	// Custodial vault token accounts, derived deterministically from the
	// book identity.
	BaseVault  common.Address `json:"baseVault"`
	QuoteVault common.Address `json:"quoteVault"`

	// Logical vault totals. Conservation invariant: per asset, holdings ==
	// sum of trader balances + sum locked in open orders.
	BaseHoldings  int64 `json:"baseHoldings"`
	QuoteHoldings int64 `json:"quoteHoldings"`

	Ownership delegation.State `json:"ownership"`

	CreatedAt int64 `json:"createdAt"` // unix ms
}

func New(id, baseAsset, quoteAsset string, now int64) (*Book, error) {
	if id == "" {
		return nil, fmt.Errorf("book id must not be empty")
	}
	if baseAsset == "" || quoteAsset == "" {
		return nil, fmt.Errorf("base and quote assets must not be empty")
	}
	if baseAsset == quoteAsset {
		return nil, fmt.Errorf("base and quote assets must differ: %s", baseAsset)
	}
	return &Book{
		ID:         id,
		BaseAsset:  baseAsset,
		QuoteAsset: quoteAsset,
		BaseVault:  crypto.DeriveVaultAddress(id, baseAsset),
		QuoteVault: crypto.DeriveVaultAddress(id, quoteAsset),
		CreatedAt:  now,
	}, nil
}

// HasAsset reports whether asset is the book's base or quote asset.
func (b *Book) HasAsset(asset string) bool {
	return asset == b.BaseAsset || asset == b.QuoteAsset
}

// VaultFor returns the custodial vault address for asset.
func (b *Book) VaultFor(asset string) (common.Address, error) {
	switch asset {
	case b.BaseAsset:
		return b.BaseVault, nil
	case b.QuoteAsset:
		return b.QuoteVault, nil
	default:
		return common.Address{}, fmt.Errorf("%w: %s", errs.ErrInvalidAsset, asset)
	}
}

// CreditVault raises the logical vault total for asset.
func (b *Book) CreditVault(asset string, amount int64) error {
	switch asset {
	case b.BaseAsset:
		b.BaseHoldings += amount
	case b.QuoteAsset:
		b.QuoteHoldings += amount
	default:
		return fmt.Errorf("%w: %s", errs.ErrInvalidAsset, asset)
	}
	return nil
}

// DebitVault lowers the logical vault total for asset. A debit below zero
// means conservation was already broken, so it is refused outright.
func (b *Book) DebitVault(asset string, amount int64) error {
	switch asset {
	case b.BaseAsset:
		if b.BaseHoldings < amount {
			return fmt.Errorf("%w: vault holds %d base, need %d", errs.ErrInsufficientBalance, b.BaseHoldings, amount)
		}
		b.BaseHoldings -= amount
	case b.QuoteAsset:
		if b.QuoteHoldings < amount {
			return fmt.Errorf("%w: vault holds %d quote, need %d", errs.ErrInsufficientBalance, b.QuoteHoldings, amount)
		}
		b.QuoteHoldings -= amount
	default:
		return fmt.Errorf("%w: %s", errs.ErrInvalidAsset, asset)
	}
	return nil
}

// Snapshot serializes the book state minus its ownership bookkeeping.
// Delegation commitments are taken over this canonical form.
func (b *Book) Snapshot() ([]byte, error) {
	shadow := *b
	shadow.Ownership = delegation.State{}
	data, err := json.Marshal(&shadow)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot book %s: %w", b.ID, err)
	}
	return data, nil
}
