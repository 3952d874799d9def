package storage

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tierdex/tierdex/pkg/engine/book"
	"github.com/tierdex/tierdex/pkg/engine/trader"
)

var (
	alice = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir() + "/db")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBookRoundTrip(t *testing.T) {
	s := newTestStore(t)

	b, err := book.New("BTC-USDC", "BTC", "USDC", 1000)
	if err != nil {
		t.Fatalf("book.New: %v", err)
	}
	b.BaseHoldings = 7
	if err := s.SaveBook(b); err != nil {
		t.Fatalf("SaveBook: %v", err)
	}

	got, err := s.LoadBook("BTC-USDC")
	if err != nil {
		t.Fatalf("LoadBook: %v", err)
	}
	if got == nil {
		t.Fatal("LoadBook returned nil for existing book")
	}
	if got.ID != b.ID || got.BaseHoldings != 7 || got.BaseVault != b.BaseVault {
		t.Fatalf("loaded book mismatch: %+v", got)
	}

	missing, err := s.LoadBook("nope")
	if err != nil || missing != nil {
		t.Fatalf("missing book = %v, %v; want nil, nil", missing, err)
	}
}

func TestTraderRoundTrip(t *testing.T) {
	s := newTestStore(t)

	tr := trader.New("BTC-USDC", alice, 42)
	tr.QuoteBalance = 900
	tr.AppendOrder(trader.Order{Side: trader.Buy, Price: 100, Qty: 2}, 32)

	if err := s.SaveTrader(tr); err != nil {
		t.Fatalf("SaveTrader: %v", err)
	}

	got, err := s.LoadTrader("BTC-USDC", alice)
	if err != nil {
		t.Fatalf("LoadTrader: %v", err)
	}
	if got == nil {
		t.Fatal("LoadTrader returned nil for existing trader")
	}
	if got.QuoteBalance != 900 || len(got.Orders) != 1 || got.Orders[0].Price != 100 {
		t.Fatalf("loaded trader mismatch: %+v", got)
	}

	missing, err := s.LoadTrader("BTC-USDC", bob)
	if err != nil || missing != nil {
		t.Fatalf("missing trader = %v, %v; want nil, nil", missing, err)
	}
}

func TestLoadBooksAndTradersOf(t *testing.T) {
	s := newTestStore(t)

	b1, _ := book.New("BTC-USDC", "BTC", "USDC", 0)
	b2, _ := book.New("ETH-USDC", "ETH", "USDC", 0)
	s.SaveBook(b1)
	s.SaveBook(b2)

	s.SaveTrader(trader.New("BTC-USDC", alice, 0))
	s.SaveTrader(trader.New("BTC-USDC", bob, 0))
	s.SaveTrader(trader.New("ETH-USDC", alice, 0))

	books, err := s.LoadBooks()
	if err != nil {
		t.Fatalf("LoadBooks: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("LoadBooks = %d entries, want 2", len(books))
	}

	traders, err := s.LoadTradersOf("BTC-USDC")
	if err != nil {
		t.Fatalf("LoadTradersOf: %v", err)
	}
	if len(traders) != 2 {
		t.Fatalf("LoadTradersOf(BTC-USDC) = %d entries, want 2", len(traders))
	}
	for _, tr := range traders {
		if tr.Book != "BTC-USDC" {
			t.Fatalf("trader of wrong book leaked into iteration: %s", tr.Book)
		}
	}
}

func TestBatchCommitsAtomically(t *testing.T) {
	s := newTestStore(t)

	b, _ := book.New("BTC-USDC", "BTC", "USDC", 0)
	b.QuoteHoldings = 500
	tr := trader.New("BTC-USDC", alice, 0)
	tr.QuoteBalance = 500

	batch := s.NewBatch()
	if err := batch.SaveBook(b); err != nil {
		t.Fatalf("batch.SaveBook: %v", err)
	}
	if err := batch.SaveTrader(tr); err != nil {
		t.Fatalf("batch.SaveTrader: %v", err)
	}

	// Nothing visible before commit.
	if got, _ := s.LoadBook("BTC-USDC"); got != nil {
		t.Fatal("book visible before batch commit")
	}

	if err := batch.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	batch.Close()

	gotBook, _ := s.LoadBook("BTC-USDC")
	gotTrader, _ := s.LoadTrader("BTC-USDC", alice)
	if gotBook == nil || gotTrader == nil {
		t.Fatal("batch contents missing after commit")
	}
	if gotBook.QuoteHoldings != 500 || gotTrader.QuoteBalance != 500 {
		t.Fatal("batch contents mismatch after commit")
	}
}

func TestOwnershipPersistence(t *testing.T) {
	s := newTestStore(t)

	tr := trader.New("BTC-USDC", alice, 0)
	snap, _ := tr.Snapshot()
	tr.Ownership.BeginDelegate(snap)
	tr.Ownership.CompleteDelegate()

	if err := s.SaveTrader(tr); err != nil {
		t.Fatalf("SaveTrader: %v", err)
	}
	got, err := s.LoadTrader("BTC-USDC", alice)
	if err != nil {
		t.Fatalf("LoadTrader: %v", err)
	}
	if got.Ownership.Status != tr.Ownership.Status {
		t.Fatalf("ownership status = %s, want %s", got.Ownership.Status, tr.Ownership.Status)
	}
	if string(got.Ownership.BaseSnapshot) != string(snap) {
		t.Fatal("base snapshot not persisted")
	}
}
