// Package match pairs a maker and a taker order and settles the fill
// against both traders' balances. Order resolution is by caller-supplied
// index, so matching is deterministic given the book state: the engine is
// index-stable, not time-priority-searching.
package match

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tierdex/tierdex/pkg/engine/errs"
	"github.com/tierdex/tierdex/pkg/engine/trader"
)

// Fill describes one executed match.
type Fill struct {
	Book       string         `json:"book"`
	Maker      common.Address `json:"maker"`
	Taker      common.Address `json:"taker"`
	MakerIndex int            `json:"makerIndex"`
	TakerIndex int            `json:"takerIndex"`
	Price      int64          `json:"price"` // execution price: the maker's limit
	Qty        int64          `json:"qty"`
	Timestamp  int64          `json:"timestamp"` // unix ms

	MakerRemoved bool `json:"makerRemoved"` // maker order fully filled
	TakerRemoved bool `json:"takerRemoved"`
}

// Execute runs steps 2-7 of the match: resolve both orders, check sides
// and price compatibility, move balances, reduce quantities, and remove
// filled orders. Every validation happens before the first mutation, so a
// failed call leaves both traders untouched.
//
// Execution follows price-time priority convention: the resting maker's
// limit sets the price, quantity is the smaller remainder. When the taker
// is the buyer and bid above the maker's ask, the difference between the
// notional locked at the taker's limit and the notional actually spent is
// released back to the buyer, keeping vault conservation exact.
func Execute(maker, taker *trader.Trader, makerIndex, takerIndex int, now int64) (*Fill, error) {
	makerOrder, err := maker.OrderAt(makerIndex)
	if err != nil {
		return nil, fmt.Errorf("maker: %w", err)
	}
	takerOrder, err := taker.OrderAt(takerIndex)
	if err != nil {
		return nil, fmt.Errorf("taker: %w", err)
	}
	if maker.Owner == taker.Owner && makerIndex == takerIndex {
		return nil, fmt.Errorf("%w: maker and taker are the same order", errs.ErrOrderNotFound)
	}

	if makerOrder.Side == takerOrder.Side {
		return nil, fmt.Errorf("%w: both orders are %s", errs.ErrSideMismatch, makerOrder.Side)
	}

	price := makerOrder.Price
	qty := makerOrder.Qty
	if takerOrder.Qty < qty {
		qty = takerOrder.Qty
	}

	if takerOrder.Side == trader.Buy {
		if takerOrder.Price < price {
			return nil, fmt.Errorf("%w: taker bid %d below execution price %d", errs.ErrPriceMismatch, takerOrder.Price, price)
		}
	} else {
		if takerOrder.Price > price {
			return nil, fmt.Errorf("%w: taker ask %d above execution price %d", errs.ErrPriceMismatch, takerOrder.Price, price)
		}
	}

	// Validation done; mutations from here on cannot fail.

	buyer, seller := maker, taker
	buyerOrder := makerOrder
	if takerOrder.Side == trader.Buy {
		buyer, seller = taker, maker
		buyerOrder = takerOrder
	}

	seller.QuoteBalance += qty * price
	buyer.BaseBalance += qty
	if buyerOrder == takerOrder && buyerOrder.Price > price {
		// Price improvement: unlock the taker-buyer's surplus notional.
		buyer.QuoteBalance += (buyerOrder.Price - price) * qty
	}

	makerOrder.Qty -= qty
	takerOrder.Qty -= qty
	makerOrder.MatchedAt = &now
	takerOrder.MatchedAt = &now

	fill := &Fill{
		Book:         maker.Book,
		Maker:        maker.Owner,
		Taker:        taker.Owner,
		MakerIndex:   makerIndex,
		TakerIndex:   takerIndex,
		Price:        price,
		Qty:          qty,
		Timestamp:    now,
		MakerRemoved: makerOrder.Qty == 0,
		TakerRemoved: takerOrder.Qty == 0,
	}

	// Remove filled orders, higher index first so swap-with-last cannot
	// disturb the lower index when both live in the same collection.
	if maker.Owner == taker.Owner {
		first, second := makerIndex, takerIndex
		firstRemoved, secondRemoved := fill.MakerRemoved, fill.TakerRemoved
		if second > first {
			first, second = second, first
			firstRemoved, secondRemoved = secondRemoved, firstRemoved
		}
		if firstRemoved {
			maker.RemoveOrder(first)
		}
		if secondRemoved {
			maker.RemoveOrder(second)
		}
		return fill, nil
	}

	if fill.MakerRemoved {
		maker.RemoveOrder(makerIndex)
	}
	if fill.TakerRemoved {
		taker.RemoveOrder(takerIndex)
	}
	return fill, nil
}
