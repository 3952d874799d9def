// Package storage is the base layer's durable state: books and traders in
// Pebble, plus the append-only settlement journal. Accelerated-context
// mutations never touch this store until settlement commits them.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tierdex/tierdex/pkg/engine/book"
	"github.com/tierdex/tierdex/pkg/engine/trader"
)

type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path.
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                    pebble.NewCache(128 << 20),
		MemTableSize:             64 << 20,
		MaxConcurrentCompactions: func() int { return 3 },
		L0CompactionThreshold:    2,
		L0StopWritesThreshold:    12,
		LBaseMaxBytes:            64 << 20,
		MaxOpenFiles:             1000,
		BytesPerSync:             512 << 10,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveBook persists a book synchronously.
func (s *Store) SaveBook(b *book.Book) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal book: %w", err)
	}
	if err := s.db.Set(bookKey(b.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save book: %w", err)
	}
	return nil
}

// LoadBook returns nil when the book does not exist.
func (s *Store) LoadBook(id string) (*book.Book, error) {
	data, closer, err := s.db.Get(bookKey(id))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	defer closer.Close()

	var b book.Book
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal book: %w", err)
	}
	return &b, nil
}

// LoadBooks returns every persisted book.
func (s *Store) LoadBooks() ([]*book.Book, error) {
	prefix := []byte("book/")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate books: %w", err)
	}
	defer iter.Close()

	var books []*book.Book
	for iter.First(); iter.Valid(); iter.Next() {
		var b book.Book
		if err := json.Unmarshal(iter.Value(), &b); err != nil {
			continue // skip invalid entries
		}
		books = append(books, &b)
	}
	return books, nil
}

// SaveTrader persists a trader synchronously.
func (s *Store) SaveTrader(t *trader.Trader) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal trader: %w", err)
	}
	if err := s.db.Set(traderKey(t.Book, t.Owner), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save trader: %w", err)
	}
	return nil
}

// LoadTrader returns nil when the trader does not exist.
func (s *Store) LoadTrader(bookID string, owner common.Address) (*trader.Trader, error) {
	data, closer, err := s.db.Get(traderKey(bookID, owner))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trader: %w", err)
	}
	defer closer.Close()

	var t trader.Trader
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trader: %w", err)
	}
	if t.Orders == nil {
		t.Orders = make([]trader.Order, 0)
	}
	return &t, nil
}

// LoadTradersOf returns all traders persisted for a book.
func (s *Store) LoadTradersOf(bookID string) ([]*trader.Trader, error) {
	prefix := traderPrefix(bookID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate traders: %w", err)
	}
	defer iter.Close()

	var traders []*trader.Trader
	for iter.First(); iter.Valid(); iter.Next() {
		var t trader.Trader
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			continue // skip invalid entries
		}
		if t.Orders == nil {
			t.Orders = make([]trader.Order, 0)
		}
		traders = append(traders, &t)
	}
	return traders, nil
}

// Batch groups writes so settlement can land a trader and its book's
// vault totals in one atomic commit.
type Batch struct {
	batch *pebble.Batch
}

func (s *Store) NewBatch() *Batch {
	return &Batch{batch: s.db.NewBatch()}
}

func (b *Batch) SaveBook(bk *book.Book) error {
	data, err := json.Marshal(bk)
	if err != nil {
		return err
	}
	return b.batch.Set(bookKey(bk.ID), data, nil)
}

func (b *Batch) SaveTrader(t *trader.Trader) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return b.batch.Set(traderKey(t.Book, t.Owner), data, nil)
}

func (b *Batch) Commit() error {
	return b.batch.Commit(pebble.Sync)
}

func (b *Batch) Close() error {
	return b.batch.Close()
}
