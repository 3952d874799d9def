// Package engine is the operation surface of the two-tier exchange: base
// layer registry/ledger operations, accelerated-layer trading operations,
// and the delegation handoff between the two.
package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/tierdex/tierdex/pkg/engine/book"
	"github.com/tierdex/tierdex/pkg/engine/delegation"
	"github.com/tierdex/tierdex/pkg/engine/errs"
	"github.com/tierdex/tierdex/pkg/engine/ledger"
	"github.com/tierdex/tierdex/pkg/engine/match"
	"github.com/tierdex/tierdex/pkg/engine/oracle"
	"github.com/tierdex/tierdex/pkg/engine/registry"
	"github.com/tierdex/tierdex/pkg/engine/trader"
	"github.com/tierdex/tierdex/pkg/storage"
	"github.com/tierdex/tierdex/pkg/util"
)

type Config struct {
	// MaxOpenOrders bounds every trader's open-order collection.
	MaxOpenOrders int
}

// Deps are the engine's collaborators. Store and Custody are required;
// the rest default to no-ops or real implementations.
type Deps struct {
	Store    *storage.Store
	WAL      storage.WAL
	Custody  ledger.TokenMover
	Oracle   oracle.Validator
	Attestor delegation.Attestor
	Clock    util.Clock
	Logger   *zap.Logger
}

// Engine serializes all account-mutating operations: each either commits
// fully or fails with a typed error, with no partial state visible.
type Engine struct {
	mu sync.RWMutex

	cfg      Config
	reg      *registry.Registry
	led      *ledger.Ledger
	store    *storage.Store
	wal      storage.WAL
	oracle   oracle.Validator
	attestor delegation.Attestor
	clock    util.Clock
	log      *zap.Logger

	sink func(Event)
}

func New(cfg Config, deps Deps) *Engine {
	if cfg.MaxOpenOrders <= 0 {
		cfg.MaxOpenOrders = 32
	}
	if deps.WAL == nil {
		deps.WAL = storage.NewNopWAL()
	}
	if deps.Clock == nil {
		deps.Clock = util.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		reg:      registry.New(),
		led:      ledger.New(deps.Custody),
		store:    deps.Store,
		wal:      deps.WAL,
		oracle:   deps.Oracle,
		attestor: deps.Attestor,
		clock:    deps.Clock,
		log:      deps.Logger,
	}
}

// SetEventSink installs the listener that receives engine events (the API
// hub fans them out to websocket clients).
func (e *Engine) SetEventSink(fn func(Event)) {
	e.mu.Lock()
	e.sink = fn
	e.mu.Unlock()
}

// Recover loads the base layer's persisted books and traders into the
// live registry. Called once at startup.
func (e *Engine) Recover() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	books, err := e.store.LoadBooks()
	if err != nil {
		return fmt.Errorf("recover books: %w", err)
	}
	for _, b := range books {
		traders, err := e.store.LoadTradersOf(b.ID)
		if err != nil {
			return fmt.Errorf("recover traders of %s: %w", b.ID, err)
		}
		e.reg.Restore(b, traders)
	}
	nb, nt := e.reg.Count()
	e.log.Info("state recovered", zap.Int("books", nb), zap.Int("traders", nt))
	return nil
}

func (e *Engine) now() int64 {
	return e.clock.Now().UnixMilli()
}

// ---------------------------------------------------------------------
// Registry operations (base layer)
// ---------------------------------------------------------------------

func (e *Engine) CreateBook(id, baseAsset, quoteAsset string) (*book.Book, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.reg.CreateBook(id, baseAsset, quoteAsset, e.now())
	if err != nil {
		return nil, err
	}
	if err := e.store.SaveBook(b); err != nil {
		return nil, err
	}

	e.log.Info("book created",
		zap.String("book", b.ID),
		zap.String("base", b.BaseAsset),
		zap.String("quote", b.QuoteAsset))
	e.emit(Event{Type: EventBookCreated, Book: b.ID, Timestamp: e.now()})
	return b, nil
}

func (e *Engine) CreateTrader(bookID string, owner common.Address) (*trader.Trader, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.reg.CreateTrader(bookID, owner, e.now())
	if err != nil {
		return nil, err
	}
	if err := e.store.SaveTrader(t); err != nil {
		return nil, err
	}

	e.log.Info("trader created", zap.String("book", bookID), zap.String("owner", owner.Hex()))
	e.emit(Event{Type: EventTraderCreated, Book: bookID, Trader: owner.Hex(), Timestamp: e.now()})
	return t, nil
}

// ---------------------------------------------------------------------
// Balance ledger operations (base layer)
// ---------------------------------------------------------------------

func (e *Engine) Deposit(bookID string, owner common.Address, asset string, amount int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, t, err := e.resolve(bookID, owner)
	if err != nil {
		return err
	}
	if err := e.led.Deposit(b, t, asset, amount); err != nil {
		return err
	}
	if err := e.persistPair(b, t); err != nil {
		return err
	}

	e.log.Info("deposit",
		zap.String("book", bookID),
		zap.String("owner", owner.Hex()),
		zap.String("asset", asset),
		zap.Int64("amount", amount))
	e.emit(Event{Type: EventDeposit, Book: bookID, Trader: owner.Hex(), Timestamp: e.now(),
		Payload: transferPayload{Asset: asset, Amount: amount}})
	return nil
}

func (e *Engine) Withdraw(bookID string, owner common.Address, asset string, amount int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, t, err := e.resolve(bookID, owner)
	if err != nil {
		return err
	}
	if err := e.led.Withdraw(b, t, asset, amount); err != nil {
		return err
	}
	if err := e.persistPair(b, t); err != nil {
		return err
	}

	e.log.Info("withdraw",
		zap.String("book", bookID),
		zap.String("owner", owner.Hex()),
		zap.String("asset", asset),
		zap.Int64("amount", amount))
	e.emit(Event{Type: EventWithdraw, Book: bookID, Trader: owner.Hex(), Timestamp: e.now(),
		Payload: transferPayload{Asset: asset, Amount: amount}})
	return nil
}

// ---------------------------------------------------------------------
// Delegation operations
// ---------------------------------------------------------------------

// DelegateTrader hands write authority over a trader account to the
// accelerated context. The base-layer snapshot is persisted under the
// in-flight Delegating status before authority flips, so a crash in the
// gap is observable rather than silent.
func (e *Engine) DelegateTrader(bookID string, owner common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, t, err := e.resolve(bookID, owner)
	if err != nil {
		return err
	}
	snapshot, err := t.Snapshot()
	if err != nil {
		return err
	}
	if err := t.Ownership.BeginDelegate(snapshot); err != nil {
		return err
	}
	if err := e.store.SaveTrader(t); err != nil {
		return err
	}
	if err := t.Ownership.CompleteDelegate(); err != nil {
		return err
	}
	if err := e.store.SaveTrader(t); err != nil {
		return err
	}

	e.log.Info("trader delegated", zap.String("book", bookID), zap.String("owner", owner.Hex()))
	e.emit(Event{Type: EventDelegated, Book: bookID, Trader: owner.Hex(), Timestamp: e.now()})
	return nil
}

// DelegateBook hands the book account (its vault totals) to the
// accelerated context. Matching requires this in addition to both trader
// delegations.
func (e *Engine) DelegateBook(bookID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.reg.Book(bookID)
	if err != nil {
		return err
	}
	snapshot, err := b.Snapshot()
	if err != nil {
		return err
	}
	if err := b.Ownership.BeginDelegate(snapshot); err != nil {
		return err
	}
	if err := e.store.SaveBook(b); err != nil {
		return err
	}
	if err := b.Ownership.CompleteDelegate(); err != nil {
		return err
	}
	if err := e.store.SaveBook(b); err != nil {
		return err
	}

	e.log.Info("book delegated", zap.String("book", bookID))
	e.emit(Event{Type: EventDelegated, Book: bookID, Timestamp: e.now()})
	return nil
}

// UndelegateTrader captures the accelerated context's final trader state
// and its commitment, then parks the account in Undelegating. The base
// store keeps its pre-delegation balances; only the ownership record is
// updated until SettleTrader observes the commitment.
func (e *Engine) UndelegateTrader(bookID string, owner common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, t, err := e.resolve(bookID, owner)
	if err != nil {
		return err
	}
	final, err := t.Snapshot()
	if err != nil {
		return err
	}
	c, err := e.attestor.IssueCommitment(final, e.now())
	if err != nil {
		return err
	}
	if err := t.Ownership.BeginUndelegate(final, c); err != nil {
		return err
	}
	if err := e.persistTraderOwnership(t); err != nil {
		return err
	}
	e.journalCommitment("undelegate_trader", bookID, owner.Hex(), c)

	e.log.Info("trader undelegating", zap.String("book", bookID), zap.String("owner", owner.Hex()))
	e.emit(Event{Type: EventUndelegating, Book: bookID, Trader: owner.Hex(), Timestamp: e.now()})
	return nil
}

// UndelegateBook mirrors UndelegateTrader for the book account.
func (e *Engine) UndelegateBook(bookID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.reg.Book(bookID)
	if err != nil {
		return err
	}
	final, err := b.Snapshot()
	if err != nil {
		return err
	}
	c, err := e.attestor.IssueCommitment(final, e.now())
	if err != nil {
		return err
	}
	if err := b.Ownership.BeginUndelegate(final, c); err != nil {
		return err
	}
	if err := e.persistBookOwnership(b); err != nil {
		return err
	}
	e.journalCommitment("undelegate_book", bookID, "", c)

	e.log.Info("book undelegating", zap.String("book", bookID))
	e.emit(Event{Type: EventUndelegating, Book: bookID, Timestamp: e.now()})
	return nil
}

// SettleTrader is the base layer observing and accepting the pending
// commitment: the proof is verified, the final snapshot becomes the
// durable base state, and ownership returns to the base layer. Until this
// runs, withdrawals fail NotYetSettled.
func (e *Engine) SettleTrader(bookID string, owner common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, t, err := e.resolve(bookID, owner)
	if err != nil {
		return err
	}
	c := t.Ownership.Commitment
	if err := t.Ownership.Settle(e.attestor.VerifyCommitment); err != nil {
		return err
	}
	if err := e.store.SaveTrader(t); err != nil {
		return err
	}
	e.journalCommitment("settle_trader", bookID, owner.Hex(), c)

	e.log.Info("trader settled", zap.String("book", bookID), zap.String("owner", owner.Hex()))
	e.emit(Event{Type: EventSettled, Book: bookID, Trader: owner.Hex(), Timestamp: e.now()})
	return nil
}

// SettleBook mirrors SettleTrader for the book account.
func (e *Engine) SettleBook(bookID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.reg.Book(bookID)
	if err != nil {
		return err
	}
	c := b.Ownership.Commitment
	if err := b.Ownership.Settle(e.attestor.VerifyCommitment); err != nil {
		return err
	}
	if err := e.store.SaveBook(b); err != nil {
		return err
	}
	e.journalCommitment("settle_book", bookID, "", c)

	e.log.Info("book settled", zap.String("book", bookID))
	e.emit(Event{Type: EventSettled, Book: bookID, Timestamp: e.now()})
	return nil
}

// ---------------------------------------------------------------------
// Trading operations (accelerated layer)
// ---------------------------------------------------------------------

// CreateOrder locks the order's funds and appends it to the trader's
// collection. The lock is base quantity for sells and full notional
// price x qty for buys. Accelerated context only; nothing is persisted to
// the base store until settlement.
func (e *Engine) CreateOrder(bookID string, owner common.Address, side trader.Side, price, qty int64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, t, err := e.resolve(bookID, owner)
	if err != nil {
		return 0, err
	}
	if err := b.Ownership.CheckAccelerated(); err != nil {
		return 0, fmt.Errorf("book: %w", err)
	}
	if err := t.Ownership.CheckAccelerated(); err != nil {
		return 0, err
	}
	if !side.Valid() {
		return 0, fmt.Errorf("invalid side %q", side)
	}
	if price <= 0 {
		return 0, fmt.Errorf("price must be positive: %d", price)
	}
	if qty <= 0 {
		return 0, fmt.Errorf("quantity must be positive: %d", qty)
	}
	// A buy locks price x qty; an overflowing product would wrap negative
	// and mint quote balance on the debit below.
	if side == trader.Buy && qty > math.MaxInt64/price {
		return 0, fmt.Errorf("order notional %d x %d overflows", price, qty)
	}
	if len(t.Orders) >= e.cfg.MaxOpenOrders {
		return 0, fmt.Errorf("%w: %d open orders, capacity %d", errs.ErrTooManyOrders, len(t.Orders), e.cfg.MaxOpenOrders)
	}

	o := trader.Order{Side: side, Price: price, Qty: qty}
	locked := o.LockedAmount()
	if side == trader.Sell {
		if t.BaseBalance < locked {
			return 0, fmt.Errorf("%w: have %d base, need %d", errs.ErrInsufficientBalance, t.BaseBalance, locked)
		}
		t.BaseBalance -= locked
	} else {
		if t.QuoteBalance < locked {
			return 0, fmt.Errorf("%w: have %d quote, need %d", errs.ErrInsufficientBalance, t.QuoteBalance, locked)
		}
		t.QuoteBalance -= locked
	}
	if err := t.AppendOrder(o, e.cfg.MaxOpenOrders); err != nil {
		return 0, err // unreachable, capacity checked above
	}
	index := len(t.Orders) - 1

	e.log.Info("order created",
		zap.String("book", bookID),
		zap.String("owner", owner.Hex()),
		zap.String("side", string(side)),
		zap.Int64("price", price),
		zap.Int64("qty", qty),
		zap.Int("index", index))
	e.emit(Event{Type: EventOrderCreated, Book: bookID, Trader: owner.Hex(), Timestamp: e.now(),
		Payload: orderPayload{Index: index, Side: string(side), Price: price, Qty: qty}})
	return index, nil
}

// CancelOrder releases an open order's locked funds and removes it
// (swap-with-last). Accelerated context only.
func (e *Engine) CancelOrder(bookID string, owner common.Address, index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, t, err := e.resolve(bookID, owner)
	if err != nil {
		return err
	}
	if err := b.Ownership.CheckAccelerated(); err != nil {
		return fmt.Errorf("book: %w", err)
	}
	if err := t.Ownership.CheckAccelerated(); err != nil {
		return err
	}
	o, err := t.OrderAt(index)
	if err != nil {
		return err
	}

	if o.Side == trader.Sell {
		t.BaseBalance += o.LockedAmount()
	} else {
		t.QuoteBalance += o.LockedAmount()
	}
	t.RemoveOrder(index)

	e.log.Info("order cancelled",
		zap.String("book", bookID),
		zap.String("owner", owner.Hex()),
		zap.Int("index", index))
	e.emit(Event{Type: EventOrderCancelled, Book: bookID, Trader: owner.Hex(), Timestamp: e.now(),
		Payload: orderPayload{Index: index}})
	return nil
}

// MatchOrder validates the oracle input, then executes the maker/taker
// pair as one atomic unit. The fill timestamp is the oracle observation
// time.
func (e *Engine) MatchOrder(bookID string, data *oracle.Data, maker, taker common.Address, makerIndex, takerIndex int) (*match.Fill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	price, err := e.oracle.ValidatePrice(data)
	if err != nil {
		return nil, err
	}

	b, err := e.reg.Book(bookID)
	if err != nil {
		return nil, err
	}
	if err := b.Ownership.CheckAccelerated(); err != nil {
		return nil, fmt.Errorf("book: %w", err)
	}
	makerT, err := e.reg.Trader(bookID, maker)
	if err != nil {
		return nil, err
	}
	takerT, err := e.reg.Trader(bookID, taker)
	if err != nil {
		return nil, err
	}
	if err := makerT.Ownership.CheckAccelerated(); err != nil {
		return nil, fmt.Errorf("maker: %w", err)
	}
	if err := takerT.Ownership.CheckAccelerated(); err != nil {
		return nil, fmt.Errorf("taker: %w", err)
	}

	fill, err := match.Execute(makerT, takerT, makerIndex, takerIndex, price.ObservedAt.UnixMilli())
	if err != nil {
		return nil, err
	}

	e.log.Info("orders matched",
		zap.String("book", bookID),
		zap.String("maker", maker.Hex()),
		zap.String("taker", taker.Hex()),
		zap.Int64("price", fill.Price),
		zap.Int64("qty", fill.Qty))
	e.emit(Event{Type: EventFill, Book: bookID, Timestamp: e.now(), Payload: fill})
	return fill, nil
}

// ---------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------

func (e *Engine) Book(bookID string) (*book.Book, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reg.Book(bookID)
}

func (e *Engine) Trader(bookID string, owner common.Address) (*trader.Trader, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reg.Trader(bookID, owner)
}

func (e *Engine) ListBooks() []*book.Book {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reg.ListBooks()
}

// CheckConservation verifies the vault invariant for a book across all
// its traders.
func (e *Engine) CheckConservation(bookID string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	b, err := e.reg.Book(bookID)
	if err != nil {
		return err
	}
	return ledger.CheckConservation(b, e.reg.TradersOf(bookID))
}

// ---------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------

func (e *Engine) resolve(bookID string, owner common.Address) (*book.Book, *trader.Trader, error) {
	b, err := e.reg.Book(bookID)
	if err != nil {
		return nil, nil, err
	}
	t, err := e.reg.Trader(bookID, owner)
	if err != nil {
		return nil, nil, err
	}
	return b, t, nil
}

// persistPair lands a trader and its book's vault totals in one batch.
func (e *Engine) persistPair(b *book.Book, t *trader.Trader) error {
	batch := e.store.NewBatch()
	defer batch.Close()
	if err := batch.SaveBook(b); err != nil {
		return err
	}
	if err := batch.SaveTrader(t); err != nil {
		return err
	}
	return batch.Commit()
}

// persistTraderOwnership updates only the delegation record of the stored
// trader. While an account is undelegating, the base store must keep its
// pre-delegation balances; the final snapshot lands on settlement.
func (e *Engine) persistTraderOwnership(t *trader.Trader) error {
	stored, err := e.store.LoadTrader(t.Book, t.Owner)
	if err != nil {
		return err
	}
	if stored == nil {
		stored = t
	}
	stored.Ownership = t.Ownership
	return e.store.SaveTrader(stored)
}

func (e *Engine) persistBookOwnership(b *book.Book) error {
	stored, err := e.store.LoadBook(b.ID)
	if err != nil {
		return err
	}
	if stored == nil {
		stored = b
	}
	stored.Ownership = b.Ownership
	return e.store.SaveBook(stored)
}

type commitmentRecord struct {
	Op        string                 `json:"op"`
	Book      string                 `json:"book"`
	Trader    string                 `json:"trader,omitempty"`
	Commit    *delegation.Commitment `json:"commitment"`
	Timestamp int64                  `json:"timestamp"`
}

func (e *Engine) journalCommitment(op, bookID, owner string, c *delegation.Commitment) {
	rec := commitmentRecord{Op: op, Book: bookID, Trader: owner, Commit: c, Timestamp: e.now()}
	line, err := json.Marshal(rec)
	if err != nil {
		e.log.Warn("failed to journal commitment", zap.Error(err))
		return
	}
	e.wal.Append(string(line))
}

func (e *Engine) emit(ev Event) {
	if e.sink != nil {
		e.sink(ev)
	}
}
