package exchange

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/uhyunpark/yesno/pkg/app/core"
	"github.com/uhyunpark/yesno/pkg/util"
)

var propertyUsers = []string{"alice", "bob", "carol"}

const (
	propertyCash = 50_000
	propertyMint = 20
)

// newPropertyEngine funds every user and gives each a complete set of contracts
func newPropertyEngine(t *rapid.T) *Engine {
	e := New(1, nil, util.NewFixedClock(time.Unix(0, 0)), nil)
	if _, err := e.apply(Command{Type: CmdCreateSymbol, Symbol: "Eth"}); err != nil {
		t.Fatalf("create symbol: %v", err)
	}
	for _, u := range propertyUsers {
		for _, cmd := range []Command{
			{Type: CmdCreateUser, UserID: u},
			{Type: CmdOnramp, UserID: u, Amount: propertyCash},
			{Type: CmdMint, UserID: u, Symbol: "Eth", Quantity: propertyMint},
		} {
			if _, err := e.apply(cmd); err != nil {
				t.Fatalf("%s: %v", cmd, err)
			}
		}
	}
	return e
}

func drawOrder(t *rapid.T, i int) Command {
	return Command{
		Type:     CmdOrder,
		UserID:   rapid.SampledFrom(propertyUsers).Draw(t, fmt.Sprintf("user-%d", i)),
		Symbol:   "Eth",
		Outcome:  rapid.SampledFrom(core.Outcomes[:]).Draw(t, fmt.Sprintf("outcome-%d", i)),
		Intent:   rapid.SampledFrom([]core.Intent{core.IntentBuy, core.IntentSell, core.IntentExit}).Draw(t, fmt.Sprintf("intent-%d", i)),
		Price:    core.Price(rapid.Int64Range(1, 9).Draw(t, fmt.Sprintf("price-%d", i))),
		Quantity: rapid.Int64Range(1, 15).Draw(t, fmt.Sprintf("qty-%d", i)),
	}
}

// checkInvariants verifies the book and ledger agree after any sequence of commands
func checkInvariants(t *rapid.T, e *Engine) {
	book, err := e.markets.Book("Eth")
	if err != nil {
		t.Fatal(err)
	}
	if !book.Validate() {
		t.Fatal("a price level total differs from the sum of its orders")
	}

	// Locks held by resting orders
	lockedCash := make(map[string]int64)
	lockedContracts := make(map[string]map[core.Outcome]int64)
	for _, u := range propertyUsers {
		lockedContracts[u] = make(map[core.Outcome]int64)
	}
	for _, side := range core.Outcomes {
		for _, price := range book.Prices(side) {
			lv, _ := book.Level(side, price)
			for _, o := range lv.Orders {
				switch o.Intent {
				case core.IntentBuy:
					lockedCash[o.UserID] += price.Complement().Cost(o.Quantity)
				case core.IntentExit:
					lockedContracts[o.UserID][side] += o.Quantity
				default:
					t.Fatalf("resting order %s has intent %s", o.ID, o.Intent)
				}
			}
		}
	}

	var totalCash int64
	perOutcome := make(map[core.Outcome]int64)
	for _, u := range propertyUsers {
		c, _ := e.ledger.Currency(u)
		if c.Available < 0 || c.Locked < 0 {
			t.Fatalf("%s negative currency %+v", u, c)
		}
		if c.Locked != lockedCash[u] {
			t.Fatalf("%s locked currency %d, resting buys need %d", u, c.Locked, lockedCash[u])
		}
		totalCash += c.Available + c.Locked

		for _, outcome := range core.Outcomes {
			h, _ := e.ledger.Contracts(u, "Eth", outcome)
			if h.Quantity < 0 || h.Locked < 0 {
				t.Fatalf("%s negative %s contracts %+v", u, outcome, h)
			}
			if h.Locked != lockedContracts[u][outcome] {
				t.Fatalf("%s locked %s = %d, resting exits hold %d", u, outcome, h.Locked, lockedContracts[u][outcome])
			}
			perOutcome[outcome] += h.Quantity + h.Locked
		}
	}

	// Matching only ever moves contracts between users or mints and burns complete sets
	if perOutcome[core.Yes] != perOutcome[core.No] {
		t.Fatalf("yes supply %d != no supply %d", perOutcome[core.Yes], perOutcome[core.No])
	}
	deposits := int64(len(propertyUsers)) * propertyCash
	if got := totalCash + core.TotalPrice.Cost(perOutcome[core.Yes]); got != deposits {
		t.Fatalf("cash %d + set value %d != deposits %d", totalCash, core.TotalPrice.Cost(perOutcome[core.Yes]), deposits)
	}
}

func TestPropertyLedgerAndBookStayConsistent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := newPropertyEngine(t)
		n := rapid.IntRange(1, 40).Draw(t, "commands")

		for i := 0; i < n; i++ {
			cmd := drawOrder(t, i)

			beforeCash := e.ledger.AllCurrency()
			beforeHoldings := e.ledger.AllHoldings()
			book, _ := e.markets.Book("Eth")
			beforeBook := book.Snapshot()

			res, err := e.apply(cmd)
			if err != nil {
				if !reflect.DeepEqual(beforeCash, e.ledger.AllCurrency()) ||
					!reflect.DeepEqual(beforeHoldings, e.ledger.AllHoldings()) ||
					!reflect.DeepEqual(beforeBook, book.Snapshot()) {
					t.Fatalf("rejected %s (%v) left partial state", cmd, err)
				}
				continue
			}
			if res.Filled+res.Resting != cmd.Quantity {
				t.Fatalf("%s: filled %d + resting %d != %d", cmd, res.Filled, res.Resting, cmd.Quantity)
			}
			for _, tr := range res.Trades {
				if tr.MakerOutcome == tr.Outcome && tr.MakerPrice != tr.Price {
					t.Fatalf("transfer at two prices: %+v", tr)
				}
				if tr.MakerOutcome != tr.Outcome && tr.MakerPrice+tr.Price != core.TotalPrice {
					t.Fatalf("complementary fill does not sum to %d: %+v", core.TotalPrice, tr)
				}
				if cmd.Intent == core.IntentBuy && tr.Price > cmd.Price {
					t.Fatalf("buyer paid %d above limit %d", tr.Price, cmd.Price)
				}
				if cmd.Intent != core.IntentBuy && tr.Price < cmd.Price {
					t.Fatalf("seller received %d below limit %d", tr.Price, cmd.Price)
				}
			}
			checkInvariants(t, e)
		}
	})
}

func TestPropertyExitFillConservesCurrency(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := newPropertyEngine(t)
		price := core.Price(rapid.Int64Range(1, 9).Draw(t, "price"))
		makerQty := rapid.Int64Range(1, propertyMint).Draw(t, "makerQty")
		takerQty := rapid.Int64Range(1, propertyMint).Draw(t, "takerQty")
		outcome := rapid.SampledFrom(core.Outcomes[:]).Draw(t, "outcome")

		if _, err := e.apply(Command{Type: CmdOrder, UserID: "alice", Symbol: "Eth", Outcome: outcome,
			Intent: core.IntentExit, Price: price, Quantity: makerQty}); err != nil {
			t.Fatal(err)
		}

		before := e.ledger.AllCurrency()
		res, err := e.apply(Command{Type: CmdOrder, UserID: "bob", Symbol: "Eth", Outcome: outcome,
			Intent: core.IntentBuy, Price: price, Quantity: takerQty})
		if err != nil {
			t.Fatal(err)
		}
		after := e.ledger.AllCurrency()

		filled := min(makerQty, takerQty)
		if res.Filled != filled {
			t.Fatalf("filled %d, want %d", res.Filled, filled)
		}
		makerDelta := after["alice"].Available - before["alice"].Available
		takerDelta := (after["bob"].Available + after["bob"].Locked) - (before["bob"].Available + before["bob"].Locked)
		if makerDelta != price.Cost(filled) || makerDelta+takerDelta != 0 {
			t.Fatalf("maker %+d taker %+d for %d@%d", makerDelta, takerDelta, filled, price)
		}
	})
}
