// Package ledger mutates trader balances and vault totals under the
// conservation invariant: per asset, vault holdings always equal the sum
// of trader balances plus amounts locked in open orders.
package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tierdex/tierdex/pkg/engine/book"
	"github.com/tierdex/tierdex/pkg/engine/errs"
	"github.com/tierdex/tierdex/pkg/engine/trader"
)

// TokenMover is the custodial transfer collaborator. It moves real tokens
// between user-controlled accounts and a book's vault; the ledger only
// cares that a move either fully happens or fails.
type TokenMover interface {
	MoveTokens(asset string, from, to common.Address, amount int64) error
}

type Ledger struct {
	custody TokenMover
}

func New(custody TokenMover) *Ledger {
	return &Ledger{custody: custody}
}

// Deposit moves amount of asset from the trader's external account into
// the book vault and credits the trader. Base-layer only.
func (l *Ledger) Deposit(b *book.Book, t *trader.Trader, asset string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("deposit amount must be positive: %d", amount)
	}
	vault, err := b.VaultFor(asset)
	if err != nil {
		return err
	}
	if err := t.Ownership.CheckDeposit(); err != nil {
		return err
	}
	// The vault totals live on the book account, so its ownership gates
	// the mutation too.
	if err := b.Ownership.CheckDeposit(); err != nil {
		return fmt.Errorf("book: %w", err)
	}

	// External move first: if it fails nothing changed.
	if err := l.custody.MoveTokens(asset, t.Owner, vault, amount); err != nil {
		return fmt.Errorf("%w: deposit of %d %s: %v", errs.ErrTransfer, amount, asset, err)
	}

	// Vault credit and balance credit are one atomic unit; CreditVault
	// cannot fail here because VaultFor already vetted the asset.
	_ = b.CreditVault(asset, amount)
	if asset == b.BaseAsset {
		t.BaseBalance += amount
	} else {
		t.QuoteBalance += amount
	}
	return nil
}

// Withdraw debits the trader and moves amount of asset from the book
// vault to the trader's external account. Base-layer only, and refused
// until any pending settlement has been observed.
func (l *Ledger) Withdraw(b *book.Book, t *trader.Trader, asset string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("withdraw amount must be positive: %d", amount)
	}
	vault, err := b.VaultFor(asset)
	if err != nil {
		return err
	}
	if err := t.Ownership.CheckWithdraw(); err != nil {
		return err
	}
	if err := b.Ownership.CheckWithdraw(); err != nil {
		return fmt.Errorf("book: %w", err)
	}

	balance := t.BaseBalance
	if asset == b.QuoteAsset {
		balance = t.QuoteBalance
	}
	if balance < amount {
		return fmt.Errorf("%w: have %d %s, need %d", errs.ErrInsufficientBalance, balance, asset, amount)
	}

	if err := l.custody.MoveTokens(asset, vault, t.Owner, amount); err != nil {
		return fmt.Errorf("%w: withdrawal of %d %s: %v", errs.ErrTransfer, amount, asset, err)
	}

	if err := b.DebitVault(asset, amount); err != nil {
		// Vault below trader balances means conservation was already
		// broken before this call; surface it loudly.
		return fmt.Errorf("vault underflow on withdraw: %w", err)
	}
	if asset == b.BaseAsset {
		t.BaseBalance -= amount
	} else {
		t.QuoteBalance -= amount
	}
	return nil
}

// CheckConservation verifies the vault invariant for both assets of a
// book against the full set of its traders.
func CheckConservation(b *book.Book, traders []*trader.Trader) error {
	baseTotal, quoteTotal := int64(0), int64(0)
	for _, t := range traders {
		baseTotal += t.BaseBalance + t.LockedBase()
		quoteTotal += t.QuoteBalance + t.LockedQuote()
	}
	if baseTotal != b.BaseHoldings {
		return fmt.Errorf("base conservation broken on book %s: balances+locked=%d, vault=%d", b.ID, baseTotal, b.BaseHoldings)
	}
	if quoteTotal != b.QuoteHoldings {
		return fmt.Errorf("quote conservation broken on book %s: balances+locked=%d, vault=%d", b.ID, quoteTotal, b.QuoteHoldings)
	}
	return nil
}
