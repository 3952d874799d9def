package ledger

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tierdex/tierdex/pkg/custody"
	"github.com/tierdex/tierdex/pkg/engine/book"
	"github.com/tierdex/tierdex/pkg/engine/delegation"
	"github.com/tierdex/tierdex/pkg/engine/errs"
	"github.com/tierdex/tierdex/pkg/engine/trader"
)

var alice = common.HexToAddress("0x0000000000000000000000000000000000000a11")

func setup(t *testing.T) (*Ledger, *custody.Bank, *book.Book, *trader.Trader) {
	t.Helper()
	bank := custody.NewBank()
	b, err := book.New("BTC-USDC", "BTC", "USDC", 0)
	if err != nil {
		t.Fatalf("book.New: %v", err)
	}
	tr := trader.New(b.ID, alice, 0)
	return New(bank), bank, b, tr
}

func TestDepositMovesTokensIntoVault(t *testing.T) {
	l, bank, b, tr := setup(t)
	bank.Mint("USDC", alice, 1000)

	if err := l.Deposit(b, tr, "USDC", 600); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	if tr.QuoteBalance != 600 {
		t.Fatalf("QuoteBalance = %d, want 600", tr.QuoteBalance)
	}
	if b.QuoteHoldings != 600 {
		t.Fatalf("QuoteHoldings = %d, want 600", b.QuoteHoldings)
	}
	if got := bank.Balance("USDC", alice); got != 400 {
		t.Fatalf("external balance = %d, want 400", got)
	}
	if got := bank.Balance("USDC", b.QuoteVault); got != 600 {
		t.Fatalf("vault balance = %d, want 600", got)
	}
	if err := CheckConservation(b, []*trader.Trader{tr}); err != nil {
		t.Fatalf("conservation: %v", err)
	}
}

func TestDepositFailsWithoutExternalFunds(t *testing.T) {
	l, _, b, tr := setup(t)

	err := l.Deposit(b, tr, "USDC", 100)
	if !errors.Is(err, errs.ErrTransfer) {
		t.Fatalf("err = %v, want ErrTransfer", err)
	}
	if tr.QuoteBalance != 0 || b.QuoteHoldings != 0 {
		t.Fatal("failed deposit must not change state")
	}
}

func TestDepositRejectsForeignAsset(t *testing.T) {
	l, bank, b, tr := setup(t)
	bank.Mint("DOGE", alice, 100)

	if err := l.Deposit(b, tr, "DOGE", 50); !errors.Is(err, errs.ErrInvalidAsset) {
		t.Fatalf("err = %v, want ErrInvalidAsset", err)
	}
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	l, _, b, tr := setup(t)
	for _, amount := range []int64{0, -5} {
		if err := l.Deposit(b, tr, "USDC", amount); err == nil {
			t.Errorf("Deposit(%d) should fail", amount)
		}
	}
}

func TestWithdraw(t *testing.T) {
	l, bank, b, tr := setup(t)
	bank.Mint("BTC", alice, 10)
	if err := l.Deposit(b, tr, "BTC", 10); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	if err := l.Withdraw(b, tr, "BTC", 4); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if tr.BaseBalance != 6 || b.BaseHoldings != 6 {
		t.Fatalf("state = balance %d / vault %d, want 6/6", tr.BaseBalance, b.BaseHoldings)
	}
	if got := bank.Balance("BTC", alice); got != 4 {
		t.Fatalf("external balance = %d, want 4", got)
	}

	if err := l.Withdraw(b, tr, "BTC", 100); !errors.Is(err, errs.ErrInsufficientBalance) {
		t.Fatalf("overdraw err = %v, want ErrInsufficientBalance", err)
	}
	for _, amount := range []int64{0, -1} {
		if err := l.Withdraw(b, tr, "BTC", amount); err == nil {
			t.Errorf("Withdraw(%d) should fail", amount)
		}
	}
	if err := CheckConservation(b, []*trader.Trader{tr}); err != nil {
		t.Fatalf("conservation: %v", err)
	}
}

func TestTransfersGatedByOwnership(t *testing.T) {
	l, bank, b, tr := setup(t)
	bank.Mint("USDC", alice, 1000)
	if err := l.Deposit(b, tr, "USDC", 500); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	snap, _ := tr.Snapshot()
	tr.Ownership.BeginDelegate(snap)
	tr.Ownership.CompleteDelegate()

	if err := l.Deposit(b, tr, "USDC", 100); !errors.Is(err, errs.ErrWrongContext) {
		t.Fatalf("deposit while delegated err = %v, want ErrWrongContext", err)
	}
	if err := l.Withdraw(b, tr, "USDC", 100); !errors.Is(err, errs.ErrWrongContext) {
		t.Fatalf("withdraw while delegated err = %v, want ErrWrongContext", err)
	}
	// Neither the external bank nor the vault moved.
	if got := bank.Balance("USDC", alice); got != 500 {
		t.Fatalf("external balance = %d, want 500", got)
	}
	if b.QuoteHoldings != 500 {
		t.Fatalf("QuoteHoldings = %d, want 500", b.QuoteHoldings)
	}
}

func TestTransfersGatedByBookOwnership(t *testing.T) {
	l, bank, b, tr := setup(t)
	bank.Mint("USDC", alice, 1000)
	if err := l.Deposit(b, tr, "USDC", 500); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	// Delegate only the book; the trader remains base-owned.
	snap, _ := b.Snapshot()
	b.Ownership.BeginDelegate(snap)
	b.Ownership.CompleteDelegate()

	if err := l.Deposit(b, tr, "USDC", 100); !errors.Is(err, errs.ErrWrongContext) {
		t.Fatalf("deposit with delegated book err = %v, want ErrWrongContext", err)
	}
	if err := l.Withdraw(b, tr, "USDC", 100); !errors.Is(err, errs.ErrWrongContext) {
		t.Fatalf("withdraw with delegated book err = %v, want ErrWrongContext", err)
	}
	// Vault totals, trader balance and the external bank are untouched.
	if b.QuoteHoldings != 500 {
		t.Fatalf("QuoteHoldings = %d, want 500", b.QuoteHoldings)
	}
	if tr.QuoteBalance != 500 {
		t.Fatalf("QuoteBalance = %d, want 500", tr.QuoteBalance)
	}
	if got := bank.Balance("USDC", alice); got != 500 {
		t.Fatalf("external balance = %d, want 500", got)
	}

	// While the book is settling, withdrawals surface the pending
	// settlement rather than a generic context error.
	final, _ := b.Snapshot()
	c := &delegation.Commitment{Digest: []byte{1}, Proof: []byte{2}}
	if err := b.Ownership.BeginUndelegate(final, c); err != nil {
		t.Fatalf("BeginUndelegate: %v", err)
	}
	if err := l.Withdraw(b, tr, "USDC", 100); !errors.Is(err, errs.ErrNotYetSettled) {
		t.Fatalf("withdraw with undelegating book err = %v, want ErrNotYetSettled", err)
	}
}

func TestCheckConservationCountsLockedFunds(t *testing.T) {
	_, _, b, tr := setup(t)

	// 3 base locked in a sell, 200 quote locked in a buy, 7/300 free.
	tr.BaseBalance = 7
	tr.QuoteBalance = 300
	tr.AppendOrder(trader.Order{Side: trader.Sell, Price: 100, Qty: 3}, 8)
	tr.AppendOrder(trader.Order{Side: trader.Buy, Price: 50, Qty: 4}, 8)
	b.BaseHoldings = 10
	b.QuoteHoldings = 500

	if err := CheckConservation(b, []*trader.Trader{tr}); err != nil {
		t.Fatalf("conservation: %v", err)
	}

	b.BaseHoldings = 11
	if err := CheckConservation(b, []*trader.Trader{tr}); err == nil {
		t.Fatal("mismatched vault total should break conservation")
	}
}
