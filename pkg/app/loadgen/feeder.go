// Package loadgen drives an engine with simulated traders.
package loadgen

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/yesno/pkg/app/core"
	"github.com/uhyunpark/yesno/pkg/app/exchange"
)

// Target is the engine surface the feeder drives
type Target interface {
	Submit(ctx context.Context, cmd exchange.Command) (*exchange.Result, error)
	Enqueue(ctx context.Context, cmd exchange.Command) error
}

// Config controls order generation rate
type Config struct {
	BatchSize  int           // orders per batch
	Interval   time.Duration // how often to send a batch
	NumTraders int
	Symbols    []string
	Deposit    int64 // paise credited to each trader
	MintSets   int64 // complete sets minted per trader and symbol so sells can fill
	Seed       int64
}

// DefaultConfig returns modest load: 100 orders/sec across 50 traders
func DefaultConfig() Config {
	return Config{
		BatchSize:  10,
		Interval:   100 * time.Millisecond,
		NumTraders: 50,
		Symbols:    []string{"Eth"},
		Deposit:    10_000_000,
		MintSets:   500,
	}
}

// HighLoadConfig returns config for stress testing, 1000 orders/sec
func HighLoadConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 100
	cfg.NumTraders = 200
	return cfg
}

// Bootstrap creates the symbols and funds every trader. Users and symbols that
// already exist are kept.
func Bootstrap(ctx context.Context, t Target, gen *Generator, cfg Config) error {
	var cmds []exchange.Command
	for _, s := range cfg.Symbols {
		cmds = append(cmds, exchange.Command{Type: exchange.CmdCreateSymbol, Symbol: s})
	}
	for _, trader := range gen.Traders() {
		cmds = append(cmds,
			exchange.Command{Type: exchange.CmdCreateUser, UserID: trader},
			exchange.Command{Type: exchange.CmdOnramp, UserID: trader, Amount: cfg.Deposit},
		)
		if cfg.MintSets > 0 {
			for _, s := range cfg.Symbols {
				cmds = append(cmds, exchange.Command{Type: exchange.CmdMint, UserID: trader, Symbol: s, Quantity: cfg.MintSets})
			}
		}
	}

	for _, cmd := range cmds {
		_, err := t.Submit(ctx, cmd)
		if err != nil && !errors.Is(err, core.ErrUserExists) && !errors.Is(err, core.ErrSymbolExists) {
			return err
		}
	}
	return nil
}

// Run bootstraps the traders then enqueues a batch every interval until ctx is
// cancelled. Rejected orders (e.g. a trader out of funds) are only logged by
// the engine.
func Run(ctx context.Context, t Target, cfg Config, logger *zap.SugaredLogger) error {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = DefaultConfig().Symbols
	}

	gen := NewGenerator(cfg.NumTraders, cfg.Symbols, cfg.Seed)
	if err := Bootstrap(ctx, t, gen, cfg); err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	start := time.Now()
	lastLog := start
	logger.Infow("loadgen_started", "batch", cfg.BatchSize, "interval", cfg.Interval, "traders", cfg.NumTraders)

	for {
		select {
		case <-ctx.Done():
			stats := gen.Stats(time.Since(start))
			logger.Infow("loadgen_stopped", "orders", stats.TotalOrders, "rate", stats.OrdersPerSec)
			return nil

		case <-ticker.C:
			for _, cmd := range gen.Batch(cfg.BatchSize) {
				if err := t.Enqueue(ctx, cmd); err != nil {
					if ctx.Err() != nil || errors.Is(err, exchange.ErrStopped) {
						return nil
					}
					return err
				}
			}

			if time.Since(lastLog) >= 10*time.Second {
				stats := gen.Stats(time.Since(start))
				logger.Infow("loadgen_stats", "orders", stats.TotalOrders, "buys", stats.Buys,
					"sells", stats.Sells, "rate", stats.OrdersPerSec)
				lastLog = time.Now()
			}
		}
	}
}
