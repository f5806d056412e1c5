package exchange

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/uhyunpark/yesno/pkg/app/core"
	"github.com/uhyunpark/yesno/pkg/app/core/ledger"
	"github.com/uhyunpark/yesno/pkg/app/core/market"
	"github.com/uhyunpark/yesno/pkg/app/core/orderbook"
	"github.com/uhyunpark/yesno/pkg/util"
)

// ErrStopped is returned by Submit once the command loop has exited
var ErrStopped = errors.New("engine stopped")

type response struct {
	res *Result
	err error
}

type request struct {
	cmd   Command
	query func() // read-only work executed on the loop goroutine
	resp  chan response
}

// Engine owns the ledger and every order book. All state changes and reads run
// on the single goroutine started by Run, one command at a time.
type Engine struct {
	ledger   *ledger.Ledger
	markets  *market.Registry
	notifier Notifier
	clock    util.Clock
	Logger   *zap.SugaredLogger

	tradeSeq uint64 // last Trade.Seq handed out, survives Reset

	cmds chan request
	done chan struct{}
}

// New builds an engine with empty state. notifier and clock may be nil.
func New(buffer int, notifier Notifier, clock util.Clock, logger *zap.SugaredLogger) *Engine {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		ledger:   ledger.New(),
		markets:  market.NewRegistry(),
		notifier: notifier,
		clock:    clock,
		Logger:   logger,
		cmds:     make(chan request, buffer),
		done:     make(chan struct{}),
	}
}

// Run processes commands until ctx is cancelled
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)

	for {
		select {
		case req := <-e.cmds:
			if req.query != nil {
				req.query()
				req.resp <- response{}
				continue
			}

			res, err := e.apply(req.cmd)
			if req.resp != nil {
				req.resp <- response{res: res, err: err}
			} else if err != nil {
				e.Logger.Warnw("command_rejected", "cmd", req.cmd.String(), "err", err)
			}

		case <-ctx.Done():
			return
		}
	}
}

// Submit enqueues cmd and waits for its result. ctx only bounds the wait for
// a queue slot: once enqueued the command will be applied, so Submit reports
// its outcome rather than a cancellation.
func (e *Engine) Submit(ctx context.Context, cmd Command) (*Result, error) {
	req := request{cmd: cmd, resp: make(chan response, 1)}
	if err := e.enqueue(ctx, req); err != nil {
		return nil, err
	}
	select {
	case r := <-req.resp:
		return r.res, r.err
	case <-e.done:
		return nil, ErrStopped
	}
}

// Enqueue hands cmd to the loop without waiting. Rejections are logged.
func (e *Engine) Enqueue(ctx context.Context, cmd Command) error {
	return e.enqueue(ctx, request{cmd: cmd})
}

func (e *Engine) enqueue(ctx context.Context, req request) error {
	select {
	case e.cmds <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrStopped
	}
}

// query runs fn on the loop goroutine so it never observes a half-applied
// command. It returns only after fn has finished, so callers may read what fn
// wrote.
func (e *Engine) query(ctx context.Context, fn func()) error {
	req := request{query: fn, resp: make(chan response, 1)}
	if err := e.enqueue(ctx, req); err != nil {
		return err
	}
	select {
	case <-req.resp:
		return nil
	case <-e.done:
		return ErrStopped
	}
}

// ==============================
// Command handlers (loop goroutine only)
// ==============================

func (e *Engine) apply(cmd Command) (*Result, error) {
	switch cmd.Type {
	case CmdOrder:
		o, err := cmd.Order()
		if err != nil {
			return nil, err
		}
		return e.placeOrder(o)

	case CmdCreateUser:
		if err := e.ledger.CreateUser(cmd.UserID); err != nil {
			return nil, err
		}
		e.Logger.Infow("user_created", "user", cmd.UserID)
		return &Result{}, nil

	case CmdCreateSymbol:
		m, err := e.markets.Create(cmd.Symbol, e.clock.Now())
		if err != nil {
			return nil, err
		}
		e.Logger.Infow("symbol_created", "symbol", cmd.Symbol)
		e.publish(m.Book, nil)
		return &Result{}, nil

	case CmdOnramp:
		if err := e.ledger.Deposit(cmd.UserID, cmd.Amount); err != nil {
			return nil, err
		}
		return &Result{}, nil

	case CmdMint:
		return e.mint(cmd.UserID, cmd.Symbol, cmd.Quantity)

	case CmdReset:
		e.ledger.Reset()
		e.markets.Reset()
		e.Logger.Infow("state_reset")
		return &Result{}, nil

	default:
		return nil, fmt.Errorf("unknown command type %q", cmd.Type)
	}
}

// placeOrder matches o against the opposing side of its book and rests any
// remainder. The command is applied entirely or not at all: ledger writes share
// one Tx and matched levels are copies installed only after the Tx commits.
func (e *Engine) placeOrder(o core.Order) (*Result, error) {
	book, err := e.markets.Book(o.Symbol)
	if err != nil {
		return nil, err
	}
	if !e.ledger.HasUser(o.UserID) {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownAccount, o.UserID)
	}

	now := e.clock.Now().UnixMilli()
	tx := e.ledger.Begin()
	defer tx.Rollback()

	t := taker{userID: o.UserID, symbol: o.Symbol, outcome: o.Outcome, intent: o.Intent.Taker()}
	remaining, trades, changes, err := match(tx, book, t, o.Price, o.Quantity, now)
	if err != nil {
		return nil, err
	}

	var rest *placement
	if remaining > 0 {
		p, err := admit(tx, o, remaining)
		if err != nil {
			return nil, err
		}
		rest = &p
	}

	tx.Commit()
	for _, c := range changes {
		book.ReplaceLevel(c.outcome, c.price, c.level)
	}
	for i := range trades {
		e.tradeSeq++
		trades[i].Seq = e.tradeSeq
	}

	res := &Result{Filled: o.Quantity - remaining, Resting: remaining, Trades: trades}
	if rest != nil {
		book.Insert(rest.outcome, rest.price, rest.order)
		res.OrderID = rest.order.ID
	}

	e.Logger.Infow("order_applied",
		"user", o.UserID, "symbol", o.Symbol, "stock_type", o.Outcome, "type", o.Intent,
		"price", o.Price, "quantity", o.Quantity, "filled", res.Filled, "resting", res.Resting)

	e.publish(book, trades)
	return res, nil
}

// mint swaps quantity*10 points of currency for one yes and one no contract each
func (e *Engine) mint(user, symbol string, quantity int64) (*Result, error) {
	if !core.ValidQuantity(quantity) {
		return nil, fmt.Errorf("%w: %d not in [1,%d]", core.ErrInvalidQuantity, quantity, core.MaxQuantity)
	}
	if !e.markets.Exists(symbol) {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownSymbol, symbol)
	}

	tx := e.ledger.Begin()
	defer tx.Rollback()

	if err := tx.SettleCurrencyDebit(user, core.TotalPrice.Cost(quantity)); err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	for _, outcome := range core.Outcomes {
		if err := tx.CreditContracts(user, symbol, outcome, quantity); err != nil {
			return nil, fmt.Errorf("mint: %w", err)
		}
	}
	tx.Commit()

	e.Logger.Infow("minted", "user", user, "symbol", symbol, "quantity", quantity)
	return &Result{}, nil
}

// publish snapshots book synchronously and hands it to the notifier
func (e *Engine) publish(book *orderbook.OrderBook, trades []Trade) {
	e.notifier.Publish(Event{
		Book:   BookUpdate{Snapshot: book.Snapshot(), Timestamp: e.clock.Now().UnixMilli()},
		Trades: trades,
	})
}

// ==============================
// Queries
// ==============================

// Snapshot returns the current book of symbol
func (e *Engine) Snapshot(ctx context.Context, symbol string) (orderbook.Snapshot, error) {
	var (
		snap orderbook.Snapshot
		qerr error
	)
	err := e.query(ctx, func() {
		book, err := e.markets.Book(symbol)
		if err != nil {
			qerr = err
			return
		}
		snap = book.Snapshot()
	})
	if err != nil {
		return orderbook.Snapshot{}, err
	}
	return snap, qerr
}

// Snapshots returns the books of every symbol, sorted by symbol
func (e *Engine) Snapshots(ctx context.Context) ([]orderbook.Snapshot, error) {
	var snaps []orderbook.Snapshot
	err := e.query(ctx, func() {
		for _, s := range e.markets.Symbols() {
			if book, err := e.markets.Book(s); err == nil {
				snaps = append(snaps, book.Snapshot())
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// CurrencyBalances returns the currency account of user, or of everyone when user is empty
func (e *Engine) CurrencyBalances(ctx context.Context, user string) (map[string]ledger.CurrencyAccount, error) {
	var (
		out  map[string]ledger.CurrencyAccount
		qerr error
	)
	err := e.query(ctx, func() {
		if user == "" {
			out = e.ledger.AllCurrency()
			return
		}
		acc, ok := e.ledger.Currency(user)
		if !ok {
			qerr = fmt.Errorf("%w: %s", core.ErrUnknownAccount, user)
			return
		}
		out = map[string]ledger.CurrencyAccount{user: acc}
	})
	if err != nil {
		return nil, err
	}
	return out, qerr
}

// ContractBalances returns the holdings of user, or of everyone when user is empty
func (e *Engine) ContractBalances(ctx context.Context, user string) (map[string]ledger.Holdings, error) {
	var (
		out  map[string]ledger.Holdings
		qerr error
	)
	err := e.query(ctx, func() {
		if user == "" {
			out = e.ledger.AllHoldings()
			return
		}
		h, ok := e.ledger.Holdings(user)
		if !ok {
			qerr = fmt.Errorf("%w: %s", core.ErrUnknownAccount, user)
			return
		}
		out = map[string]ledger.Holdings{user: h}
	})
	if err != nil {
		return nil, err
	}
	return out, qerr
}
