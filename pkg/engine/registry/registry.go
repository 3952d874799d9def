// Package registry binds book instances and their traders to identities.
package registry

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tierdex/tierdex/pkg/engine/book"
	"github.com/tierdex/tierdex/pkg/engine/errs"
	"github.com/tierdex/tierdex/pkg/engine/trader"
)

// Registry is the in-memory source of truth for live books and traders.
// Whichever execution context currently owns an account mutates it here;
// the base-layer store only absorbs state on base-owned operations and
// settlement.
type Registry struct {
	mu      sync.RWMutex
	books   map[string]*book.Book
	traders map[string]map[common.Address]*trader.Trader // book id -> principal -> trader
}

func New() *Registry {
	return &Registry{
		books:   make(map[string]*book.Book),
		traders: make(map[string]map[common.Address]*trader.Trader),
	}
}

// CreateBook registers a new book instance with empty vaults.
func (r *Registry) CreateBook(id, baseAsset, quoteAsset string, now int64) (*book.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.books[id]; exists {
		return nil, fmt.Errorf("%w: book %s", errs.ErrAlreadyExists, id)
	}

	b, err := book.New(id, baseAsset, quoteAsset, now)
	if err != nil {
		return nil, err
	}

	r.books[id] = b
	r.traders[id] = make(map[common.Address]*trader.Trader)
	return b, nil
}

// CreateTrader registers a principal on a book with zero balances and an
// empty order collection.
func (r *Registry) CreateTrader(bookID string, owner common.Address, now int64) (*trader.Trader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.books[bookID]; !exists {
		return nil, fmt.Errorf("book %s not found", bookID)
	}
	if _, exists := r.traders[bookID][owner]; exists {
		return nil, fmt.Errorf("%w: trader %s on book %s", errs.ErrAlreadyExists, owner.Hex(), bookID)
	}

	t := trader.New(bookID, owner, now)
	r.traders[bookID][owner] = t
	return t, nil
}

// Restore inserts previously persisted state, used on startup recovery.
// Existing entries are overwritten.
func (r *Registry) Restore(b *book.Book, traders []*trader.Trader) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.books[b.ID] = b
	if r.traders[b.ID] == nil {
		r.traders[b.ID] = make(map[common.Address]*trader.Trader)
	}
	for _, t := range traders {
		r.traders[b.ID][t.Owner] = t
	}
}

func (r *Registry) Book(id string) (*book.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, exists := r.books[id]
	if !exists {
		return nil, fmt.Errorf("book %s not found", id)
	}
	return b, nil
}

func (r *Registry) Trader(bookID string, owner common.Address) (*trader.Trader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.traders[bookID][owner]
	if !exists {
		return nil, fmt.Errorf("trader %s not found on book %s", owner.Hex(), bookID)
	}
	return t, nil
}

// TradersOf returns all traders registered on a book.
func (r *Registry) TradersOf(bookID string) []*trader.Trader {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*trader.Trader, 0, len(r.traders[bookID]))
	for _, t := range r.traders[bookID] {
		out = append(out, t)
	}
	return out
}

// ListBooks returns all registered books.
func (r *Registry) ListBooks() []*book.Book {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*book.Book, 0, len(r.books))
	for _, b := range r.books {
		out = append(out, b)
	}
	return out
}

func (r *Registry) Count() (books, traders int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	books = len(r.books)
	for _, m := range r.traders {
		traders += len(m)
	}
	return books, traders
}
