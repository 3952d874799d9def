// Package api exposes the engine's operation surface over REST and
// streams engine events over WebSocket. The engine itself is transport
// agnostic; this is one possible binding.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/tierdex/tierdex/pkg/engine"
	"github.com/tierdex/tierdex/pkg/engine/book"
	"github.com/tierdex/tierdex/pkg/engine/errs"
	"github.com/tierdex/tierdex/pkg/engine/trader"
)

// Server handles REST API and WebSocket connections.
type Server struct {
	eng    *engine.Engine
	router *mux.Router
	hub    *Hub
}

func NewServer(eng *engine.Engine) *Server {
	s := &Server{
		eng:    eng,
		router: mux.NewRouter(),
		hub:    NewHub(),
	}

	// Engine events flow into the hub keyed by event type.
	eng.SetEventSink(func(ev engine.Event) {
		s.hub.BroadcastToChannel(ev.Type, ev)
	})

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Registry
	api.HandleFunc("/books", s.handleCreateBook).Methods("POST")
	api.HandleFunc("/books", s.handleListBooks).Methods("GET")
	api.HandleFunc("/books/{id}", s.handleGetBook).Methods("GET")
	api.HandleFunc("/books/{id}/traders", s.handleCreateTrader).Methods("POST")
	api.HandleFunc("/books/{id}/traders/{address}", s.handleGetTrader).Methods("GET")

	// Balance ledger (base layer)
	api.HandleFunc("/deposit", s.handleDeposit).Methods("POST")
	api.HandleFunc("/withdraw", s.handleWithdraw).Methods("POST")

	// Delegation
	api.HandleFunc("/delegate", s.handleDelegate).Methods("POST")
	api.HandleFunc("/undelegate", s.handleUndelegate).Methods("POST")
	api.HandleFunc("/settle", s.handleSettle).Methods("POST")

	// Trading (accelerated layer)
	api.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/match", s.handleMatchOrder).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the WebSocket hub and serves HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// Handlers
// ==============================

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	b, err := s.eng.CreateBook(req.ID, req.BaseAsset, req.QuoteAsset)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, bookInfo(b))
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books := s.eng.ListBooks()
	out := make([]BookInfo, len(books))
	for i, b := range books {
		out[i] = bookInfo(b)
	}
	respondJSON(w, out)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	b, err := s.eng.Book(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, err)
		return
	}
	respondJSON(w, bookInfo(b))
}

func (s *Server) handleCreateTrader(w http.ResponseWriter, r *http.Request) {
	var req CreateTraderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	t, err := s.eng.CreateTrader(mux.Vars(r)["id"], common.HexToAddress(req.Owner))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, traderInfo(t))
}

func (s *Server) handleGetTrader(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	t, err := s.eng.Trader(vars["id"], common.HexToAddress(vars["address"]))
	if err != nil {
		respondError(w, http.StatusNotFound, err)
		return
	}
	respondJSON(w, traderInfo(t))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.eng.Deposit(req.Book, common.HexToAddress(req.Owner), req.Asset, req.Amount); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.eng.Withdraw(req.Book, common.HexToAddress(req.Owner), req.Asset, req.Amount); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleDelegate(w http.ResponseWriter, r *http.Request) {
	s.handleDelegationOp(w, r, s.eng.DelegateTrader, s.eng.DelegateBook)
}

func (s *Server) handleUndelegate(w http.ResponseWriter, r *http.Request) {
	s.handleDelegationOp(w, r, s.eng.UndelegateTrader, s.eng.UndelegateBook)
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	s.handleDelegationOp(w, r, s.eng.SettleTrader, s.eng.SettleBook)
}

func (s *Server) handleDelegationOp(
	w http.ResponseWriter,
	r *http.Request,
	traderOp func(string, common.Address) error,
	bookOp func(string) error,
) {
	var req DelegateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	var err error
	if req.Owner == "" {
		err = bookOp(req.Book)
	} else {
		err = traderOp(req.Book, common.HexToAddress(req.Owner))
	}
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	index, err := s.eng.CreateOrder(req.Book, common.HexToAddress(req.Owner), trader.Side(req.Side), req.Price, req.Qty)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, OrderCreatedResponse{Index: index})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.eng.CancelOrder(req.Book, common.HexToAddress(req.Owner), req.Index); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleMatchOrder(w http.ResponseWriter, r *http.Request) {
	var req MatchOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	fill, err := s.eng.MatchOrder(req.Book, &req.Oracle,
		common.HexToAddress(req.Maker), common.HexToAddress(req.Taker),
		req.MakerIndex, req.TakerIndex)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, fill)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, StatusResponse{Status: "ok"})
}

// ==============================
// Helpers
// ==============================

func bookInfo(b *book.Book) BookInfo {
	return BookInfo{
		ID:            b.ID,
		BaseAsset:     b.BaseAsset,
		QuoteAsset:    b.QuoteAsset,
		BaseVault:     b.BaseVault.Hex(),
		QuoteVault:    b.QuoteVault.Hex(),
		BaseHoldings:  b.BaseHoldings,
		QuoteHoldings: b.QuoteHoldings,
		Ownership:     b.Ownership.Status.String(),
	}
}

func traderInfo(t *trader.Trader) TraderInfo {
	orders := make([]OrderInfo, len(t.Orders))
	for i := range t.Orders {
		o := &t.Orders[i]
		orders[i] = OrderInfo{
			Index:     i,
			Side:      string(o.Side),
			Price:     o.Price,
			Qty:       o.Qty,
			MatchedAt: o.MatchedAt,
		}
	}
	return TraderInfo{
		Owner:        t.Owner.Hex(),
		Book:         t.Book,
		BaseBalance:  t.BaseBalance,
		QuoteBalance: t.QuoteBalance,
		Ownership:    t.Ownership.Status.String(),
		Orders:       orders,
	}
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func respondError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
}

// respondEngineError maps the engine's typed errors onto HTTP codes.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrAlreadyExists),
		errors.Is(err, errs.ErrAlreadyDelegated),
		errors.Is(err, errs.ErrWrongContext),
		errors.Is(err, errs.ErrTransitionInProgress),
		errors.Is(err, errs.ErrNotYetSettled):
		respondError(w, http.StatusConflict, err)
	case errors.Is(err, errs.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, err)
	case errors.Is(err, errs.ErrInsufficientBalance),
		errors.Is(err, errs.ErrTooManyOrders),
		errors.Is(err, errs.ErrTransfer):
		respondError(w, http.StatusUnprocessableEntity, err)
	default:
		respondError(w, http.StatusBadRequest, err)
	}
}
