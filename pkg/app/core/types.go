package core

import (
	"fmt"
	"strings"
)

// Prices are implied-probability deciles. A yes contract at p and a no contract
// at TotalPrice-p together always cost TotalPrice.
const (
	MinPrice   Price = 1
	MaxPrice   Price = 9
	TotalPrice Price = 10

	// PaisePerPoint converts one price point into minor currency units.
	PaisePerPoint int64 = 100
)

// Size limits. TotalPrice.Cost(MaxQuantity) is 1e12 paise, so order, lock and
// mint arithmetic cannot wrap.
const (
	MaxQuantity int64 = 1_000_000_000
	MaxAmount   int64 = 1_000_000_000_000_000 // one deposit, in paise
)

// ValidQuantity reports whether q is a positive quantity within MaxQuantity
func ValidQuantity(q int64) bool {
	return q > 0 && q <= MaxQuantity
}

// ValidName reports whether s can be used as a user id or symbol.
// ':' separates key segments in the trade journal.
func ValidName(s string) bool {
	return strings.TrimSpace(s) != "" && !strings.ContainsRune(s, ':')
}

// Price is an integer in [MinPrice, MaxPrice]
type Price int64

// Valid reports whether p lies inside the tradable range
func (p Price) Valid() bool {
	return p >= MinPrice && p <= MaxPrice
}

// Complement returns the price of the opposite outcome (10 - p)
func (p Price) Complement() Price {
	return TotalPrice - p
}

// Cost returns the minor-unit amount for qty contracts at this price
func (p Price) Cost(qty int64) int64 {
	return qty * int64(p) * PaisePerPoint
}

// Outcome is one of the two complementary sides of a binary contract
type Outcome string

const (
	Yes Outcome = "yes"
	No  Outcome = "no"
)

// Outcomes lists both sides in display order
var Outcomes = [2]Outcome{Yes, No}

func (o Outcome) Valid() bool {
	return o == Yes || o == No
}

// Flip returns the complementary outcome
func (o Outcome) Flip() Outcome {
	if o == Yes {
		return No
	}
	return Yes
}

// ParseOutcome accepts "yes"/"no" in any case
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToLower(strings.TrimSpace(s)))
	if !o.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
	}
	return o, nil
}

// Intent is what an order command wants to do with its contracts
type Intent string

const (
	// IntentBuy acquires contracts of the stated outcome, paying currency
	IntentBuy Intent = "buy"
	// IntentSell is the taker form of an exit: it consumes resting buyers immediately
	IntentSell Intent = "sell"
	// IntentExit releases owned contracts in exchange for currency
	IntentExit Intent = "exit"
)

// Resting normalizes an intent to the form stored in the book (buy or exit)
func (i Intent) Resting() Intent {
	if i == IntentSell {
		return IntentExit
	}
	return i
}

// Taker normalizes an intent to its matching form (buy or sell)
func (i Intent) Taker() Intent {
	if i == IntentExit {
		return IntentSell
	}
	return i
}

func (i Intent) Valid() bool {
	return i == IntentBuy || i == IntentSell || i == IntentExit
}

// ParseIntent accepts buy, sell and exit in any case
func ParseIntent(s string) (Intent, error) {
	i := Intent(strings.ToLower(strings.TrimSpace(s)))
	if !i.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidIntent, s)
	}
	return i, nil
}

// Transform maps a command onto the sell-shaped side of the book.
//
// A buy of outcome o at p is stored (and matched) as a sell of flip(o) at 10-p.
// Exits and sells are genuine sales and keep their outcome and price.
func Transform(outcome Outcome, intent Intent, price Price) (Outcome, Price) {
	if intent == IntentBuy {
		return outcome.Flip(), price.Complement()
	}
	return outcome, price
}

// Opposing returns the book side an incoming order consumes and the highest
// resting price it accepts there. It is the mirror of where the order itself
// would rest: a buy of o at p takes asks of o up to p, a sale of o at p takes
// asks of flip(o) up to 10-p.
func Opposing(outcome Outcome, intent Intent, price Price) (Outcome, Price) {
	o, p := Transform(outcome, intent, price)
	return o.Flip(), p.Complement()
}

// Order is a validated order command
type Order struct {
	UserID   string
	Symbol   string
	Outcome  Outcome
	Intent   Intent
	Price    Price
	Quantity int64
}

// Validate checks the static fields of an order command
func (o *Order) Validate() error {
	if strings.TrimSpace(o.UserID) == "" {
		return fmt.Errorf("%w: empty user id", ErrUnknownAccount)
	}
	if strings.TrimSpace(o.Symbol) == "" {
		return fmt.Errorf("%w: empty symbol", ErrUnknownSymbol)
	}
	if !o.Outcome.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, o.Outcome)
	}
	if !o.Intent.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidIntent, o.Intent)
	}
	if !o.Price.Valid() {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidPrice, o.Price, MinPrice, MaxPrice)
	}
	if !ValidQuantity(o.Quantity) {
		return fmt.Errorf("%w: %d not in [1,%d]", ErrInvalidQuantity, o.Quantity, MaxQuantity)
	}
	return nil
}
