package exchange

import (
	"github.com/uhyunpark/yesno/pkg/app/core"
	"github.com/uhyunpark/yesno/pkg/app/core/ledger"
	"github.com/uhyunpark/yesno/pkg/app/core/orderbook"
)

// taker is an incoming order while it is being matched
type taker struct {
	userID  string
	symbol  string
	outcome core.Outcome
	intent  core.Intent // buy or sell
}

// matchLevel consumes lv from the head in arrival order until required is filled
// or the queue runs out, and returns the unfilled remainder.
//
// A head order larger than the remainder is reduced and stays at the head.
// A head order that fits is consumed and popped. lv must be a private copy:
// on error it is left half-consumed and the caller discards it.
func matchLevel(tx *ledger.Tx, t taker, bookOutcome core.Outcome, bookPrice core.Price,
	lv *orderbook.PriceLevel, required int64, now int64) (int64, []Trade, error) {

	remaining := required
	var trades []Trade

	for remaining > 0 {
		head, ok := lv.Head()
		if !ok {
			break
		}

		qty := head.Quantity
		if qty > remaining {
			qty = remaining
		}

		trade, err := settle(tx, fill{
			symbol:       t.symbol,
			bookOutcome:  bookOutcome,
			bookPrice:    bookPrice,
			quantity:     qty,
			takerID:      t.userID,
			takerIntent:  t.intent,
			takerOutcome: t.outcome,
			maker:        head,
		}, now)
		if err != nil {
			return remaining, nil, err
		}
		trades = append(trades, trade)

		if head.Quantity > remaining {
			lv.ReduceHead(remaining)
		} else {
			lv.PopHead()
		}
		remaining -= qty
	}

	return remaining, trades, nil
}

// levelChange is a matched copy of a price level waiting to replace the original
type levelChange struct {
	outcome core.Outcome
	price   core.Price
	level   *orderbook.PriceLevel
}

// match walks the opposing side of book from the best price up to the taker's
// limit. The book itself is not modified; the consumed levels are returned so
// the caller can install them once the whole command has succeeded.
func match(tx *ledger.Tx, book *orderbook.OrderBook, t taker, limit core.Price,
	quantity int64, now int64) (int64, []Trade, []levelChange, error) {

	side, worst := core.Opposing(t.outcome, t.intent, limit)

	remaining := quantity
	var (
		trades  []Trade
		changes []levelChange
	)

	for _, price := range book.Prices(side) {
		if remaining == 0 || price > worst {
			break
		}
		lv, ok := book.Level(side, price)
		if !ok {
			continue
		}

		left, filled, err := matchLevel(tx, t, side, price, lv, remaining, now)
		if err != nil {
			return quantity, nil, nil, err
		}
		trades = append(trades, filled...)
		changes = append(changes, levelChange{outcome: side, price: price, level: lv})
		remaining = left
	}

	return remaining, trades, changes, nil
}
