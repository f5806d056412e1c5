package exchange

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/uhyunpark/yesno/pkg/app/core/orderbook"
)

func update(symbol string) Event {
	return Event{Book: BookUpdate{Snapshot: orderbook.Snapshot{Symbol: symbol}}}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	var got []string
	sink := SinkFunc(func(_ context.Context, ev Event) error {
		got = append(got, ev.Book.Symbol)
		return nil
	})
	d := NewDispatcher(2, nil, sink)

	// nothing is draining yet, so the third publish must not block
	d.Publish(update("a"))
	d.Publish(update("b"))
	d.Publish(update("c"))

	if d.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", d.Dropped())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx) // flushes queued events before returning

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("delivered %v, want [a b]", got)
	}
}

func TestDispatcherDeliversInOrderToEverySink(t *testing.T) {
	first := make(chan string, 8)
	second := make(chan string, 8)
	failing := SinkFunc(func(context.Context, Event) error { return errors.New("broker down") })

	d := NewDispatcher(8, nil,
		SinkFunc(func(_ context.Context, ev Event) error { first <- ev.Book.Symbol; return nil }),
		failing,
		SinkFunc(func(_ context.Context, ev Event) error { second <- ev.Book.Symbol; return nil }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	for _, s := range []string{"Eth", "Btc", "Eth"} {
		d.Publish(update(s))
	}

	for _, ch := range []chan string{first, second} {
		for _, want := range []string{"Eth", "Btc", "Eth"} {
			select {
			case got := <-ch:
				if got != want {
					t.Fatalf("got %s, want %s", got, want)
				}
			case <-time.After(time.Second):
				t.Fatal("event not delivered")
			}
		}
	}

	cancel()
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestEngineFeedsDispatcher(t *testing.T) {
	delivered := make(chan Event, 4)
	d := NewDispatcher(4, nil, SinkFunc(func(_ context.Context, ev Event) error {
		delivered <- ev
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	e := New(4, d, nil, nil)
	if _, err := e.apply(Command{Type: CmdCreateSymbol, Symbol: "Eth"}); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-delivered:
		if ev.Book.Symbol != "Eth" || ev.Book.Timestamp == 0 {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("snapshot not delivered")
	}
}

func withTrades(symbol string, ids ...string) Event {
	ev := update(symbol)
	for _, id := range ids {
		ev.Trades = append(ev.Trades, Trade{ID: id, Symbol: symbol})
	}
	return ev
}

func TestDispatcherKeepsTradesOfDroppedEvents(t *testing.T) {
	var (
		books  []string
		trades []string
	)
	sink := SinkFunc(func(_ context.Context, ev Event) error {
		if ev.HasBook() {
			books = append(books, ev.Book.Symbol)
		}
		for _, tr := range ev.Trades {
			trades = append(trades, tr.ID)
		}
		return nil
	})
	d := NewDispatcher(1, nil, sink)

	d.Publish(withTrades("Eth", "t1"))
	d.Publish(withTrades("Eth", "t2", "t3"))
	d.Publish(withTrades("Btc", "t4"))
	d.Publish(update("Sol"))

	if d.Dropped() != 3 {
		t.Fatalf("dropped = %d, want 3", d.Dropped())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	if len(books) != 1 || books[0] != "Eth" {
		t.Fatalf("snapshots delivered %v, want [Eth]", books)
	}
	want := []string{"t1", "t2", "t3", "t4"}
	if len(trades) != len(want) {
		t.Fatalf("trades delivered %v, want %v", trades, want)
	}
	for i := range want {
		if trades[i] != want[i] {
			t.Fatalf("trades delivered %v, want %v", trades, want)
		}
	}
}

func TestDispatcherReplaysBacklogWhileRunning(t *testing.T) {
	release := make(chan struct{})
	seen := make(chan string, 16)
	var first sync.Once
	d := NewDispatcher(1, nil, SinkFunc(func(_ context.Context, ev Event) error {
		first.Do(func() { <-release })
		for _, tr := range ev.Trades {
			seen <- tr.ID
		}
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Publish(withTrades("Eth", "t1"))
	// wait for the sink to hold t1 so the buffer is empty again
	for len(d.events) != 0 {
		time.Sleep(time.Millisecond)
	}
	d.Publish(withTrades("Eth", "t2"))
	d.Publish(withTrades("Eth", "t3"))
	d.Publish(withTrades("Eth", "t4"))
	close(release)

	got := map[string]bool{}
	for len(got) < 4 {
		select {
		case id := <-seen:
			got[id] = true
		case <-time.After(time.Second):
			t.Fatalf("trades delivered %v, want t1..t4", got)
		}
	}
	if d.Dropped() == 0 {
		t.Fatal("expected the buffer to overflow")
	}
}
