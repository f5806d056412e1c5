package loadgen

import (
	"context"
	"testing"
	"time"

	"github.com/uhyunpark/yesno/pkg/app/exchange"
)

func TestGeneratorProducesValidOrders(t *testing.T) {
	gen := NewGenerator(5, []string{"Eth", "Btc"}, 42)
	for i, cmd := range gen.Batch(200) {
		if _, err := cmd.Order(); err != nil {
			t.Fatalf("order %d (%s) invalid: %v", i, cmd, err)
		}
	}
	stats := gen.Stats(time.Second)
	if stats.TotalOrders != 200 || stats.Buys+stats.Sells != 200 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestGeneratorIsSeeded(t *testing.T) {
	a := NewGenerator(10, []string{"Eth"}, 7).Batch(20)
	b := NewGenerator(10, []string{"Eth"}, 7).Batch(20)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("order %d differs: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestRunDrivesEngine(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := exchange.New(256, nil, nil, nil)
	go e.Run(ctx)

	cfg := DefaultConfig()
	cfg.NumTraders = 4
	cfg.Interval = time.Millisecond
	cfg.Seed = 1

	runCtx, stop := context.WithTimeout(ctx, 100*time.Millisecond)
	defer stop()
	if err := Run(runCtx, e, cfg, nil); err != nil {
		t.Fatal(err)
	}

	balances, err := e.CurrencyBalances(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(balances) != cfg.NumTraders {
		t.Fatalf("%d funded traders, want %d", len(balances), cfg.NumTraders)
	}

	// Cash plus the value of every complete set never changes
	var cash int64
	for _, acc := range balances {
		if acc.Available < 0 || acc.Locked < 0 {
			t.Fatalf("negative balance %+v", acc)
		}
		cash += acc.Available + acc.Locked
	}
	holdings, err := e.ContractBalances(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	var yes, no int64
	for _, h := range holdings {
		yes += h["Eth"]["yes"].Quantity + h["Eth"]["yes"].Locked
		no += h["Eth"]["no"].Quantity + h["Eth"]["no"].Locked
	}
	if yes != no {
		t.Fatalf("yes supply %d != no supply %d", yes, no)
	}
	if got, want := cash+yes*1000, int64(cfg.NumTraders)*cfg.Deposit; got != want {
		t.Fatalf("cash + sets = %d, want %d", got, want)
	}

	// Bootstrapping again keeps existing users and symbols
	if err := Bootstrap(ctx, e, NewGenerator(cfg.NumTraders, cfg.Symbols, 1), Config{Symbols: cfg.Symbols, Deposit: 1}); err != nil {
		t.Fatal(err)
	}
}
