package engine

// Event types fanned out to subscribers.
const (
	EventBookCreated    = "book_created"
	EventTraderCreated  = "trader_created"
	EventDeposit        = "deposit"
	EventWithdraw       = "withdraw"
	EventDelegated      = "delegated"
	EventUndelegating   = "undelegating"
	EventSettled        = "settled"
	EventOrderCreated   = "order_created"
	EventOrderCancelled = "order_cancelled"
	EventFill           = "fill"
)

// Event is one observable engine state change.
type Event struct {
	Type      string `json:"type"`
	Book      string `json:"book,omitempty"`
	Trader    string `json:"trader,omitempty"`
	Timestamp int64  `json:"timestamp"` // unix ms
	Payload   any    `json:"payload,omitempty"`
}

type transferPayload struct {
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
}

type orderPayload struct {
	Index int    `json:"index"`
	Side  string `json:"side,omitempty"`
	Price int64  `json:"price,omitempty"`
	Qty   int64  `json:"qty,omitempty"`
}
