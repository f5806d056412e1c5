package orderbook

import (
	"testing"

	"github.com/uhyunpark/yesno/pkg/app/core"
)

func resting(id, user string, qty int64) *RestingOrder {
	return &RestingOrder{ID: id, UserID: user, Quantity: qty, Intent: core.IntentBuy}
}

func TestInsertKeepsFIFOAndTotal(t *testing.T) {
	ob := NewOrderBook("Eth")
	ob.Insert(core.No, 4, resting("a", "u1", 3))
	ob.Insert(core.No, 4, resting("b", "u2", 5))

	lv, ok := ob.Level(core.No, 4)
	if !ok {
		t.Fatal("level missing")
	}
	if lv.Total != 8 {
		t.Fatalf("total = %d, want 8", lv.Total)
	}
	head, _ := lv.Head()
	if head.ID != "a" {
		t.Fatalf("head = %s, want a", head.ID)
	}
	if !ob.Validate() {
		t.Fatal("book inconsistent")
	}
}

func TestLevelReturnsPrivateCopy(t *testing.T) {
	ob := NewOrderBook("Eth")
	ob.Insert(core.Yes, 6, resting("a", "u1", 10))

	lv, _ := ob.Level(core.Yes, 6)
	lv.ReduceHead(4)

	if got := ob.Depth(core.Yes, 6); got != 10 {
		t.Fatalf("book depth = %d after mutating a copy, want 10", got)
	}

	ob.ReplaceLevel(core.Yes, 6, lv)
	if got := ob.Depth(core.Yes, 6); got != 6 {
		t.Fatalf("book depth = %d after replace, want 6", got)
	}
}

func TestHeadPolicy(t *testing.T) {
	lv := &PriceLevel{}
	lv.Push(resting("a", "u1", 5))
	lv.Push(resting("b", "u2", 2))

	lv.ReduceHead(3)
	head, _ := lv.Head()
	if head.ID != "a" || head.Quantity != 2 || lv.Total != 4 {
		t.Fatalf("partial fill moved head: %+v total=%d", head, lv.Total)
	}

	popped := lv.PopHead()
	if popped.ID != "a" || lv.Total != 2 || lv.Len() != 1 {
		t.Fatalf("pop: %+v total=%d len=%d", popped, lv.Total, lv.Len())
	}
	if !lv.Consistent() {
		t.Fatal("total drifted")
	}
}

func TestEmptyLevelIsRemoved(t *testing.T) {
	ob := NewOrderBook("Eth")
	ob.Insert(core.Yes, 2, resting("a", "u1", 1))
	ob.Insert(core.Yes, 5, resting("b", "u1", 1))

	lv, _ := ob.Level(core.Yes, 2)
	lv.PopHead()
	ob.ReplaceLevel(core.Yes, 2, lv)

	if _, ok := ob.Level(core.Yes, 2); ok {
		t.Fatal("empty level still present")
	}
	if best, _ := ob.BestPrice(core.Yes); best != 5 {
		t.Fatalf("best = %d, want 5", best)
	}
	if !ob.Validate() {
		t.Fatal("price index out of sync")
	}
}

func TestPricesAscending(t *testing.T) {
	ob := NewOrderBook("Eth")
	for _, p := range []core.Price{7, 3, 9, 1, 5} {
		ob.Insert(core.No, p, resting("x", "u1", 1))
	}
	ob.Insert(core.No, 3, resting("y", "u1", 1))

	got := ob.Prices(core.No)
	want := []core.Price{1, 3, 5, 7, 9}
	if len(got) != len(want) {
		t.Fatalf("prices = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("prices = %v, want %v", got, want)
		}
	}
	if _, ok := ob.BestPrice(core.Yes); ok {
		t.Fatal("empty side reported a best price")
	}
}

func TestSnapshot(t *testing.T) {
	ob := NewOrderBook("Eth")
	ob.Insert(core.Yes, 6, resting("a", "u1", 4))
	ob.Insert(core.Yes, 6, resting("b", "u2", 1))
	ob.Insert(core.No, 4, resting("c", "u3", 2))

	snap := ob.Snapshot()
	if snap.Symbol != "Eth" {
		t.Fatalf("symbol = %s", snap.Symbol)
	}
	if len(snap.Yes) != 1 || snap.Yes[0] != (LevelView{Price: 6, Quantity: 5, Orders: 2}) {
		t.Fatalf("yes side = %+v", snap.Yes)
	}
	if len(snap.Side(core.No)) != 1 || snap.No[0].Quantity != 2 {
		t.Fatalf("no side = %+v", snap.No)
	}
}
