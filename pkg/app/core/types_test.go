package core

import (
	"errors"
	"math"
	"testing"
)

func TestTransform(t *testing.T) {
	tests := []struct {
		outcome   Outcome
		intent    Intent
		price     Price
		wantOut   Outcome
		wantPrice Price
	}{
		{Yes, IntentBuy, 6, No, 4},
		{No, IntentBuy, 3, Yes, 7},
		{Yes, IntentExit, 6, Yes, 6},
		{No, IntentSell, 2, No, 2},
	}

	for _, tt := range tests {
		o, p := Transform(tt.outcome, tt.intent, tt.price)
		if o != tt.wantOut || p != tt.wantPrice {
			t.Errorf("Transform(%s,%s,%d) = (%s,%d), want (%s,%d)",
				tt.outcome, tt.intent, tt.price, o, p, tt.wantOut, tt.wantPrice)
		}
	}
}

func TestOpposingMirrorsTransform(t *testing.T) {
	for _, outcome := range Outcomes {
		for _, intent := range []Intent{IntentBuy, IntentSell, IntentExit} {
			for p := MinPrice; p <= MaxPrice; p++ {
				ro, rp := Transform(outcome, intent, p)
				oo, op := Opposing(outcome, intent, p)
				if oo != ro.Flip() || op+rp != TotalPrice {
					t.Fatalf("%s %s @%d: rests at (%s,%d) but crosses (%s,%d)", intent, outcome, p, ro, rp, oo, op)
				}
			}
		}
	}

	if o, p := Opposing(Yes, IntentBuy, 6); o != Yes || p != 6 {
		t.Fatalf("buy yes@6 should take yes asks up to 6, got (%s,%d)", o, p)
	}
	if o, p := Opposing(Yes, IntentSell, 6); o != No || p != 4 {
		t.Fatalf("sell yes@6 should take no asks up to 4, got (%s,%d)", o, p)
	}
}

func TestIntentForms(t *testing.T) {
	if IntentSell.Resting() != IntentExit || IntentBuy.Resting() != IntentBuy {
		t.Fatal("resting form")
	}
	if IntentExit.Taker() != IntentSell || IntentBuy.Taker() != IntentBuy {
		t.Fatal("taker form")
	}
}

func TestParse(t *testing.T) {
	if o, err := ParseOutcome(" YES "); err != nil || o != Yes {
		t.Fatalf("ParseOutcome: %v %v", o, err)
	}
	if _, err := ParseOutcome("maybe"); !errors.Is(err, ErrInvalidOutcome) {
		t.Fatalf("expected ErrInvalidOutcome, got %v", err)
	}
	if _, err := ParseIntent("hold"); !errors.Is(err, ErrInvalidIntent) {
		t.Fatalf("expected ErrInvalidIntent, got %v", err)
	}
}

func TestOrderValidate(t *testing.T) {
	valid := Order{UserID: "u1", Symbol: "Eth", Outcome: Yes, Intent: IntentBuy, Price: 5, Quantity: 1}

	tests := []struct {
		name   string
		mutate func(o *Order)
		want   error
	}{
		{"ok", func(o *Order) {}, nil},
		{"zero quantity", func(o *Order) { o.Quantity = 0 }, ErrInvalidQuantity},
		{"max quantity", func(o *Order) { o.Quantity = MaxQuantity }, nil},
		{"above max quantity", func(o *Order) { o.Quantity = MaxQuantity + 1 }, ErrInvalidQuantity},
		{"cost wraps int64", func(o *Order) { o.Price = 1; o.Quantity = 184467440737095517 }, ErrInvalidQuantity},
		{"price too low", func(o *Order) { o.Price = 0 }, ErrInvalidPrice},
		{"price too high", func(o *Order) { o.Price = 10 }, ErrInvalidPrice},
		{"bad outcome", func(o *Order) { o.Outcome = "maybe" }, ErrInvalidOutcome},
		{"bad intent", func(o *Order) { o.Intent = "hold" }, ErrInvalidIntent},
		{"no user", func(o *Order) { o.UserID = "" }, ErrUnknownAccount},
		{"no symbol", func(o *Order) { o.Symbol = "" }, ErrUnknownSymbol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid
			tt.mutate(&o)
			err := o.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCostAtMaxQuantityFits(t *testing.T) {
	got := TotalPrice.Cost(MaxQuantity)
	if got <= 0 || got/MaxQuantity != int64(TotalPrice)*PaisePerPoint {
		t.Fatalf("TotalPrice.Cost(MaxQuantity) = %d", got)
	}
	if MaxAmount > math.MaxInt64/2 {
		t.Fatalf("MaxAmount %d leaves no headroom", MaxAmount)
	}
}

func TestValidName(t *testing.T) {
	for name, want := range map[string]bool{
		"Eth":    true,
		"user_1": true,
		"":       false,
		"  ":     false,
		"Eth:X":  false,
		":":      false,
	} {
		if got := ValidName(name); got != want {
			t.Errorf("ValidName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestPriceCost(t *testing.T) {
	if got := Price(6).Cost(4); got != 2400 {
		t.Fatalf("cost = %d, want 2400", got)
	}
	if Price(3).Complement() != 7 {
		t.Fatal("complement")
	}
}
