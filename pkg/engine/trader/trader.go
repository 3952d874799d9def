// Package trader holds a participant's balance-and-orders record within
// one book, including the bounded open-order collection.
package trader

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tierdex/tierdex/pkg/engine/delegation"
	"github.com/tierdex/tierdex/pkg/engine/errs"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Order is an open limit order. Quantity is always strictly positive: a
// fully matched order is removed, never left at zero.
type Order struct {
	Side  Side  `json:"side"`
	Price int64 `json:"price"` // quote per base, fixed scale
	Qty   int64 `json:"qty"`   // remaining base units

	// MatchedAt is nil while the order has never filled; set (unix ms)
	// at every partial or full fill.
	MatchedAt *int64 `json:"matchedAt,omitempty"`
}

// LockedAmount is what the order holds out of its owner's balance: base
// quantity for sells, full notional at the limit price for buys. A limit
// buy reserves price x qty so the trade can always settle at or better
// than its quoted price.
func (o *Order) LockedAmount() int64 {
	if o.Side == Sell {
		return o.Qty
	}
	return o.Price * o.Qty
}

// Trader is created once per (book, principal) pair and never deleted.
type Trader struct {
	Owner common.Address `json:"owner"`
	Book  string         `json:"book"`

	BaseBalance  int64 `json:"baseBalance"`
	QuoteBalance int64 `json:"quoteBalance"`

	// Orders keeps insertion order; removal compacts by swap-with-last,
	// so positional identity is only stable between removals.
	Orders []Order `json:"orders"`

	Ownership delegation.State `json:"ownership"`

	CreatedAt int64 `json:"createdAt"` // unix ms
}

func New(bookID string, owner common.Address, now int64) *Trader {
	return &Trader{
		Owner:     owner,
		Book:      bookID,
		Orders:    make([]Order, 0),
		CreatedAt: now,
	}
}

// OrderAt resolves an order by caller-supplied index.
func (t *Trader) OrderAt(index int) (*Order, error) {
	if index < 0 || index >= len(t.Orders) {
		return nil, fmt.Errorf("%w: index %d, %d open orders", errs.ErrOrderNotFound, index, len(t.Orders))
	}
	return &t.Orders[index], nil
}

// AppendOrder adds an order at the end of the collection, respecting the
// configured capacity bound.
func (t *Trader) AppendOrder(o Order, capacity int) error {
	if len(t.Orders) >= capacity {
		return fmt.Errorf("%w: %d open orders, capacity %d", errs.ErrTooManyOrders, len(t.Orders), capacity)
	}
	t.Orders = append(t.Orders, o)
	return nil
}

// RemoveOrder compacts by swap-with-last.
func (t *Trader) RemoveOrder(index int) {
	last := len(t.Orders) - 1
	if index < 0 || index > last {
		return
	}
	t.Orders[index] = t.Orders[last]
	t.Orders = t.Orders[:last]
}

// LockedBase returns base units held by open sell orders.
func (t *Trader) LockedBase() int64 {
	total := int64(0)
	for i := range t.Orders {
		if t.Orders[i].Side == Sell {
			total += t.Orders[i].Qty
		}
	}
	return total
}

// LockedQuote returns quote units held by open buy orders.
func (t *Trader) LockedQuote() int64 {
	total := int64(0)
	for i := range t.Orders {
		if t.Orders[i].Side == Buy {
			total += t.Orders[i].Price * t.Orders[i].Qty
		}
	}
	return total
}

// Validate checks trader invariants.
func (t *Trader) Validate() error {
	if t.BaseBalance < 0 {
		return fmt.Errorf("negative base balance: %d", t.BaseBalance)
	}
	if t.QuoteBalance < 0 {
		return fmt.Errorf("negative quote balance: %d", t.QuoteBalance)
	}
	for i := range t.Orders {
		o := &t.Orders[i]
		if !o.Side.Valid() {
			return fmt.Errorf("order %d: invalid side %q", i, o.Side)
		}
		if o.Price <= 0 {
			return fmt.Errorf("order %d: non-positive price %d", i, o.Price)
		}
		if o.Qty <= 0 {
			return fmt.Errorf("order %d: non-positive quantity %d", i, o.Qty)
		}
	}
	return nil
}

// Snapshot serializes the trader state minus its ownership bookkeeping.
// Delegation commitments are taken over this canonical form.
func (t *Trader) Snapshot() ([]byte, error) {
	shadow := *t
	shadow.Ownership = delegation.State{}
	data, err := json.Marshal(&shadow)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot trader %s: %w", t.Owner.Hex(), err)
	}
	return data, nil
}
