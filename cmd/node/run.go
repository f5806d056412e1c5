package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/yesno/params"
	"github.com/uhyunpark/yesno/pkg/api"
	"github.com/uhyunpark/yesno/pkg/app/core"
	"github.com/uhyunpark/yesno/pkg/app/exchange"
	"github.com/uhyunpark/yesno/pkg/app/loadgen"
	"github.com/uhyunpark/yesno/pkg/queue"
	"github.com/uhyunpark/yesno/pkg/storage"
)

// node collects the long-running parts of one process
type node struct {
	cfg    params.Config
	logger *zap.SugaredLogger

	tasks   []func(ctx context.Context) error
	closers []func() error
	server  *api.Server
}

func (n *node) goRun(task func(ctx context.Context) error) {
	n.tasks = append(n.tasks, task)
}

func (n *node) onClose(fn func() error) {
	n.closers = append(n.closers, fn)
}

func run(cfg params.Config, sugar *zap.SugaredLogger) error {
	n := &node{cfg: cfg, logger: sugar}
	defer n.close()

	var err error
	switch cfg.Mode {
	case params.ModeAll:
		err = n.buildEngine(true)
	case params.ModeEngine:
		if err = requireKafka(cfg, sugar); err == nil {
			err = n.buildEngine(false)
		}
	case params.ModeGateway:
		if err = requireKafka(cfg, sugar); err == nil {
			n.buildGateway()
		}
	case params.ModeStream:
		if err = requireKafka(cfg, sugar); err == nil {
			n.buildStream()
		}
	default:
		err = fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return n.serve(ctx)
}

// buildEngine wires the matching loop. With a websocket hub the process also
// serves the feed itself; with Kafka it consumes the orders topic and
// publishes every snapshot.
func (n *node) buildEngine(withHub bool) error {
	journal, err := storage.OpenTradeJournal(n.cfg.Storage.TradeDBPath)
	if err != nil {
		return fmt.Errorf("open trade journal: %w", err)
	}
	n.onClose(journal.Close)

	sinks := []exchange.Sink{journal}

	var hub *api.Hub
	if withHub {
		hub = api.NewHub(n.logger)
		n.goRun(func(ctx context.Context) error { hub.Run(ctx); return nil })
		sinks = append(sinks, hub)
	}

	if n.cfg.Kafka.Enabled() {
		pub, err := queue.DialSnapshotPublisher(n.cfg.Kafka.Brokers, n.cfg.Kafka.SnapshotTopic)
		if err != nil {
			return fmt.Errorf("snapshot publisher: %w", err)
		}
		n.onClose(pub.Close)
		sinks = append(sinks, pub)
	}

	dispatcher := exchange.NewDispatcher(n.cfg.Engine.EventBuffer, n.logger, sinks...)
	n.goRun(func(ctx context.Context) error { dispatcher.Run(ctx); return nil })

	engine := exchange.New(n.cfg.Engine.CommandBuffer, dispatcher, nil, n.logger)
	n.goRun(func(ctx context.Context) error {
		go n.seed(ctx, engine)
		engine.Run(ctx)
		return nil
	})

	if n.cfg.Engine.LoadGen {
		lcfg := loadgen.DefaultConfig()
		if n.cfg.Engine.LoadGenMode == "high" {
			lcfg = loadgen.HighLoadConfig()
		}
		if len(n.cfg.Engine.SeedSymbols) > 0 {
			lcfg.Symbols = n.cfg.Engine.SeedSymbols
		}
		n.logger.Infow("loadgen_enabled", "mode", n.cfg.Engine.LoadGenMode, "symbols", lcfg.Symbols)
		n.goRun(func(ctx context.Context) error { return loadgen.Run(ctx, engine, lcfg, n.logger) })
	}

	if n.cfg.Kafka.Enabled() {
		reader := queue.NewCommandReader(n.cfg.Kafka.Brokers, n.cfg.Kafka.OrdersTopic, n.cfg.Kafka.Group, n.logger)
		n.goRun(func(ctx context.Context) error { return reader.Run(ctx, engine) })
	}

	n.server = api.NewServer(api.Config{
		Commands:    engine,
		Reader:      engine,
		Trades:      journal,
		Hub:         hub,
		Logger:      n.logger,
		CORSOrigins: n.cfg.API.CORSOrigins,
	})
	return nil
}

func (n *node) buildGateway() {
	writer := queue.NewCommandWriter(n.cfg.Kafka.Brokers, n.cfg.Kafka.OrdersTopic)
	n.onClose(writer.Close)

	n.server = api.NewServer(api.Config{
		Commands:    writer,
		Logger:      n.logger,
		CORSOrigins: n.cfg.API.CORSOrigins,
	})
}

func (n *node) buildStream() {
	hub := api.NewHub(n.logger)
	n.goRun(func(ctx context.Context) error { hub.Run(ctx); return nil })

	reader := queue.NewSnapshotReader(n.cfg.Kafka.Brokers, n.cfg.Kafka.SnapshotTopic, n.logger)
	n.goRun(func(ctx context.Context) error { return reader.Run(ctx, hub) })

	n.server = api.NewServer(api.Config{
		Hub:         hub,
		Logger:      n.logger,
		CORSOrigins: n.cfg.API.CORSOrigins,
	})
}

// seed creates the configured symbols once the loop is running
func (n *node) seed(ctx context.Context, engine *exchange.Engine) {
	for _, symbol := range n.cfg.Engine.SeedSymbols {
		_, err := engine.Submit(ctx, exchange.Command{Type: exchange.CmdCreateSymbol, Symbol: symbol})
		switch {
		case err == nil:
		case errors.Is(err, core.ErrSymbolExists):
		default:
			n.logger.Warnw("seed_symbol_failed", "symbol", symbol, "err", err)
		}
	}
}

// serve runs every task plus the HTTP server until ctx is cancelled or one of
// them fails, then waits for the tasks to return
func (n *node) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, len(n.tasks)+1)
	for _, task := range n.tasks {
		task := task
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- task(ctx)
		}()
	}
	go func() { errs <- n.server.Start(n.cfg.API.Addr) }()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errs:
		if err != nil {
			n.logger.Errorw("node_task_failed", "err", err)
		}
	}
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if serr := n.server.Shutdown(shutdownCtx); serr != nil {
		n.logger.Warnw("api_shutdown_failed", "err", serr)
	}
	// sinks must drain before the journal and producers close
	wg.Wait()
	n.logger.Infow("node_stopped", "mode", n.cfg.Mode)
	return err
}

func (n *node) close() {
	for i := len(n.closers) - 1; i >= 0; i-- {
		if err := n.closers[i](); err != nil {
			n.logger.Warnw("close_failed", "err", err)
		}
	}
}
