package exchange

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/uhyunpark/yesno/pkg/app/core"
	"github.com/uhyunpark/yesno/pkg/app/core/ledger"
	"github.com/uhyunpark/yesno/pkg/app/core/orderbook"
)

// fill describes one match between the taker and the resting order at the head
// of (bookOutcome, bookPrice)
type fill struct {
	symbol       string
	bookOutcome  core.Outcome
	bookPrice    core.Price
	quantity     int64
	takerID      string
	takerIntent  core.Intent // buy or sell
	takerOutcome core.Outcome
	maker        *orderbook.RestingOrder
}

// takerPrice is the fill price in terms of the taker's outcome. A buyer pays the
// ask it lifted; a seller receives the complement of the ask on the other side.
func (f fill) takerPrice() core.Price {
	if f.takerIntent == core.IntentBuy {
		return f.bookPrice
	}
	return f.bookPrice.Complement()
}

// settle moves currency and contracts for both sides of one fill. All ledger
// writes go through tx so a failure anywhere in the command can be rolled back.
func settle(tx *ledger.Tx, f fill, now int64) (Trade, error) {
	q := f.quantity
	trade := Trade{
		ID:           uuid.NewString(),
		Symbol:       f.symbol,
		Outcome:      f.takerOutcome,
		Price:        f.takerPrice(),
		Quantity:     q,
		TakerID:      f.takerID,
		TakerIntent:  f.takerIntent,
		MakerID:      f.maker.UserID,
		MakerOrderID: f.maker.ID,
		MakerIntent:  f.maker.Intent,
		Timestamp:    now,
	}

	// Maker. A resting buy is a pseudo ask for the complementary contract: it locked
	// the complement of the book price and receives flip(bookOutcome).
	switch f.maker.Intent {
	case core.IntentBuy:
		trade.MakerOutcome = f.bookOutcome.Flip()
		trade.MakerPrice = f.bookPrice.Complement()
		if err := tx.ReleaseCurrency(f.maker.UserID, trade.MakerPrice.Cost(q)); err != nil {
			return Trade{}, fmt.Errorf("settle maker %s: %w", f.maker.ID, err)
		}
		if err := tx.CreditContracts(f.maker.UserID, f.symbol, trade.MakerOutcome, q); err != nil {
			return Trade{}, fmt.Errorf("settle maker %s: %w", f.maker.ID, err)
		}
	case core.IntentExit:
		trade.MakerOutcome = f.bookOutcome
		trade.MakerPrice = f.bookPrice
		if err := tx.SettleCurrencyCredit(f.maker.UserID, f.bookPrice.Cost(q)); err != nil {
			return Trade{}, fmt.Errorf("settle maker %s: %w", f.maker.ID, err)
		}
		if err := tx.ReleaseLockedContracts(f.maker.UserID, f.symbol, f.bookOutcome, q); err != nil {
			return Trade{}, fmt.Errorf("settle maker %s: %w", f.maker.ID, err)
		}
	default:
		return Trade{}, fmt.Errorf("%w: resting order %s has intent %q", core.ErrInvalidIntent, f.maker.ID, f.maker.Intent)
	}

	// Taker
	switch f.takerIntent {
	case core.IntentBuy:
		if err := tx.SettleCurrencyDebit(f.takerID, trade.Price.Cost(q)); err != nil {
			return Trade{}, fmt.Errorf("settle taker: %w", err)
		}
		if err := tx.CreditContracts(f.takerID, f.symbol, f.takerOutcome, q); err != nil {
			return Trade{}, fmt.Errorf("settle taker: %w", err)
		}
	case core.IntentSell:
		if err := tx.SettleCurrencyCredit(f.takerID, trade.Price.Cost(q)); err != nil {
			return Trade{}, fmt.Errorf("settle taker: %w", err)
		}
		if err := tx.DebitContracts(f.takerID, f.symbol, f.takerOutcome, q); err != nil {
			return Trade{}, fmt.Errorf("settle taker: %w", err)
		}
	default:
		return Trade{}, fmt.Errorf("%w: taker intent %q", core.ErrInvalidIntent, f.takerIntent)
	}

	return trade, nil
}
