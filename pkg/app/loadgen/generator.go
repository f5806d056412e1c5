package loadgen

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/uhyunpark/yesno/pkg/app/core"
	"github.com/uhyunpark/yesno/pkg/app/exchange"
)

// Generator creates random order commands for load testing
type Generator struct {
	traders []string // simulated user ids
	symbols []string // markets to trade
	rng     *rand.Rand

	orders int
	buys   int
}

// NewGenerator creates traders trader_1..trader_n. seed 0 picks a time-based seed.
func NewGenerator(numTraders int, symbols []string, seed int64) *Generator {
	traders := make([]string, numTraders)
	for i := range traders {
		traders[i] = fmt.Sprintf("trader_%d", i+1)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		traders: traders,
		symbols: symbols,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Traders returns the simulated user ids
func (g *Generator) Traders() []string { return g.traders }

// Order creates a random order command
func (g *Generator) Order() exchange.Command {
	trader := g.traders[g.rng.Intn(len(g.traders))]
	symbol := g.symbols[g.rng.Intn(len(g.symbols))]

	outcome := core.Yes
	if g.rng.Intn(2) == 1 {
		outcome = core.No
	}

	// 60% buys. Sellers only succeed while they still hold minted contracts.
	intent := core.IntentSell
	if g.rng.Intn(100) < 60 {
		intent = core.IntentBuy
		g.buys++
	}

	// Prices cluster around the middle of the 1..9 range
	price := core.Price(3 + g.rng.Intn(5))
	qty := int64(g.rng.Intn(10) + 1)

	g.orders++
	return exchange.Command{
		Type:     exchange.CmdOrder,
		UserID:   trader,
		Symbol:   symbol,
		Outcome:  outcome,
		Intent:   intent,
		Price:    price,
		Quantity: qty,
	}
}

// Batch creates count random orders
func (g *Generator) Batch(count int) []exchange.Command {
	batch := make([]exchange.Command, count)
	for i := range batch {
		batch[i] = g.Order()
	}
	return batch
}

type Stats struct {
	TotalOrders  int
	Buys         int
	Sells        int
	OrdersPerSec float64
}

// Stats returns generation statistics for the elapsed run time
func (g *Generator) Stats(elapsed time.Duration) Stats {
	seconds := elapsed.Seconds()
	if seconds == 0 {
		seconds = 1
	}
	return Stats{
		TotalOrders:  g.orders,
		Buys:         g.buys,
		Sells:        g.orders - g.buys,
		OrdersPerSec: float64(g.orders) / seconds,
	}
}
