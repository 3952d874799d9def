package api

import (
	"github.com/tierdex/tierdex/pkg/engine/oracle"
)

// ==============================
// Request types
// ==============================

type CreateBookRequest struct {
	ID         string `json:"id"`
	BaseAsset  string `json:"baseAsset"`
	QuoteAsset string `json:"quoteAsset"`
}

type CreateTraderRequest struct {
	Owner string `json:"owner"` // 0x address
}

type TransferRequest struct {
	Book   string `json:"book"`
	Owner  string `json:"owner"`
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
}

// DelegateRequest targets a trader account, or the book account itself
// when Owner is empty.
type DelegateRequest struct {
	Book  string `json:"book"`
	Owner string `json:"owner,omitempty"`
}

type CreateOrderRequest struct {
	Book  string `json:"book"`
	Owner string `json:"owner"`
	Side  string `json:"side"` // "buy" or "sell"
	Price int64  `json:"price"`
	Qty   int64  `json:"qty"`
}

type CancelOrderRequest struct {
	Book  string `json:"book"`
	Owner string `json:"owner"`
	Index int    `json:"index"`
}

type MatchOrderRequest struct {
	Book       string      `json:"book"`
	Maker      string      `json:"maker"`
	Taker      string      `json:"taker"`
	MakerIndex int         `json:"makerIndex"`
	TakerIndex int         `json:"takerIndex"`
	Oracle     oracle.Data `json:"oracle"`
}

// ==============================
// Response types
// ==============================

type BookInfo struct {
	ID            string `json:"id"`
	BaseAsset     string `json:"baseAsset"`
	QuoteAsset    string `json:"quoteAsset"`
	BaseVault     string `json:"baseVault"`
	QuoteVault    string `json:"quoteVault"`
	BaseHoldings  int64  `json:"baseHoldings"`
	QuoteHoldings int64  `json:"quoteHoldings"`
	Ownership     string `json:"ownership"`
}

type OrderInfo struct {
	Index     int    `json:"index"`
	Side      string `json:"side"`
	Price     int64  `json:"price"`
	Qty       int64  `json:"qty"`
	MatchedAt *int64 `json:"matchedAt,omitempty"`
}

type TraderInfo struct {
	Owner        string      `json:"owner"`
	Book         string      `json:"book"`
	BaseBalance  int64       `json:"baseBalance"`
	QuoteBalance int64       `json:"quoteBalance"`
	Ownership    string      `json:"ownership"`
	Orders       []OrderInfo `json:"orders"`
}

type OrderCreatedResponse struct {
	Index int `json:"index"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// WSSubscribeRequest is the client -> server subscription control frame.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}
