package orderbook

import (
	"container/heap"

	"github.com/uhyunpark/yesno/pkg/app/core"
)

// PriceHeap implements heap.Interface for resting prices (lowest price on top).
// Every side of the book is an ask ladder, so only a min heap is needed.
type PriceHeap []core.Price

func (h PriceHeap) Len() int           { return len(h) }
func (h PriceHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h PriceHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *PriceHeap) Push(x interface{}) {
	*h = append(*h, x.(core.Price))
}

func (h *PriceHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Peek returns the lowest price without removing it
func (h PriceHeap) Peek() (core.Price, bool) {
	if len(h) == 0 {
		return 0, false
	}
	return h[0], true
}

// remove drops price from the heap if present
func (h *PriceHeap) remove(price core.Price) {
	for i, p := range *h {
		if p == price {
			heap.Remove(h, i)
			return
		}
	}
}

// ascending returns the prices in order without disturbing the heap
func (h PriceHeap) ascending() []core.Price {
	cp := make(PriceHeap, len(h))
	copy(cp, h)
	out := make([]core.Price, 0, len(h))
	for cp.Len() > 0 {
		out = append(out, heap.Pop(&cp).(core.Price))
	}
	return out
}
