package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/uhyunpark/yesno/pkg/app/exchange"
)

// TradeJournal keeps every fill in pebble, indexed by symbol and by user.
// It is an audit trail for queries only; engine state is never rebuilt from it.
type TradeJournal struct {
	db *pebble.DB
}

// OpenTradeJournal opens (or creates) the journal at path.
// An empty path keeps the journal in memory.
func OpenTradeJournal(path string) (*TradeJournal, error) {
	opts := &pebble.Options{}
	if path == "" {
		opts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open trade journal: %w", err)
	}
	return &TradeJournal{db: db}, nil
}

func (j *TradeJournal) Close() error { return j.db.Close() }

// Record writes trades in one batch
func (j *TradeJournal) Record(trades []exchange.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	b := j.db.NewBatch()
	defer b.Close()

	for _, tr := range trades {
		data, err := json.Marshal(tr)
		if err != nil {
			return fmt.Errorf("failed to marshal trade: %w", err)
		}
		if err := b.Set(tradeKey(tr), data, nil); err != nil {
			return fmt.Errorf("failed to stage trade: %w", err)
		}
		if err := b.Set(userTradeKey(tr.TakerID, tr), data, nil); err != nil {
			return fmt.Errorf("failed to stage trade: %w", err)
		}
		if tr.MakerID != tr.TakerID {
			if err := b.Set(userTradeKey(tr.MakerID, tr), data, nil); err != nil {
				return fmt.Errorf("failed to stage trade: %w", err)
			}
		}
	}

	if err := b.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("failed to save trades: %w", err)
	}
	return nil
}

// HandleEvent journals the trades carried by an engine event
func (j *TradeJournal) HandleEvent(_ context.Context, ev exchange.Event) error {
	return j.Record(ev.Trades)
}

// RecentTrades loads the most recent limit trades of a symbol, newest first
func (j *TradeJournal) RecentTrades(symbol string, limit int) ([]exchange.Trade, error) {
	return j.scanBackwards(tradePrefix(symbol), limit)
}

// UserTrades loads the most recent limit trades a user took part in, newest first
func (j *TradeJournal) UserTrades(user string, limit int) ([]exchange.Trade, error) {
	return j.scanBackwards(userTradePrefix(user), limit)
}

func (j *TradeJournal) scanBackwards(prefix []byte, limit int) ([]exchange.Trade, error) {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	trades := make([]exchange.Trade, 0)
	for iter.Last(); iter.Valid() && len(trades) < limit; iter.Prev() {
		var tr exchange.Trade
		if err := json.Unmarshal(iter.Value(), &tr); err != nil {
			continue // skip entries written by an incompatible version
		}
		trades = append(trades, tr)
	}
	return trades, iter.Error()
}

var _ exchange.Sink = (*TradeJournal)(nil)
