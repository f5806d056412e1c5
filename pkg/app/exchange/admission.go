package exchange

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/uhyunpark/yesno/pkg/app/core"
	"github.com/uhyunpark/yesno/pkg/app/core/ledger"
	"github.com/uhyunpark/yesno/pkg/app/core/orderbook"
)

// placement is a resting order ready to be inserted at (outcome, price)
type placement struct {
	outcome core.Outcome
	price   core.Price
	order   *orderbook.RestingOrder
}

// admit reserves what a resting order of qty needs and prepares its sell-shaped
// entry. A buy locks qty*p of currency and rests as an ask for the complementary
// contract at 10-p. A sale locks qty contracts and rests as an exit at p.
func admit(tx *ledger.Tx, o core.Order, qty int64) (placement, error) {
	intent := o.Intent.Resting()

	switch intent {
	case core.IntentBuy:
		if err := tx.LockCurrency(o.UserID, o.Price.Cost(qty)); err != nil {
			return placement{}, fmt.Errorf("admit buy: %w", err)
		}
	case core.IntentExit:
		if err := tx.LockContracts(o.UserID, o.Symbol, o.Outcome, qty); err != nil {
			return placement{}, fmt.Errorf("admit exit: %w", err)
		}
	default:
		return placement{}, fmt.Errorf("%w: %q", core.ErrInvalidIntent, o.Intent)
	}

	outcome, price := core.Transform(o.Outcome, intent, o.Price)
	return placement{
		outcome: outcome,
		price:   price,
		order: &orderbook.RestingOrder{
			ID:       uuid.NewString(),
			UserID:   o.UserID,
			Quantity: qty,
			Intent:   intent,
		},
	}, nil
}
