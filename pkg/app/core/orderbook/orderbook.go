package orderbook

import (
	"container/heap"
	"sync"

	"github.com/uhyunpark/yesno/pkg/app/core"
)

// LevelView is the aggregate of one price level as published to subscribers
type LevelView struct {
	Price    core.Price `json:"price"`
	Quantity int64      `json:"quantity"`
	Orders   int        `json:"orders"`
}

// Snapshot is the full depth of one symbol, both outcomes, best (lowest) price first
type Snapshot struct {
	Symbol string      `json:"symbol"`
	Yes    []LevelView `json:"yes"`
	No     []LevelView `json:"no"`
}

// Side returns the levels of one outcome
func (s Snapshot) Side(o core.Outcome) []LevelView {
	if o == core.Yes {
		return s.Yes
	}
	return s.No
}

// OrderBook stores the sell-shaped resting orders of one symbol.
//
// Buy commands never appear directly: admission stores them as sells of the
// complementary outcome at the complementary price, so each outcome has one
// ladder of asks and matching only ever consumes from the lowest price.
type OrderBook struct {
	mu     sync.RWMutex // writers are serialized by the engine; RLock guards snapshot readers
	symbol string
	levels map[core.Outcome]map[core.Price]*PriceLevel
	prices map[core.Outcome]*PriceHeap // non-empty prices per outcome
}

func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		levels: map[core.Outcome]map[core.Price]*PriceLevel{
			core.Yes: make(map[core.Price]*PriceLevel),
			core.No:  make(map[core.Price]*PriceLevel),
		},
		prices: map[core.Outcome]*PriceHeap{
			core.Yes: {},
			core.No:  {},
		},
	}
}

// Symbol returns the market this book belongs to
func (ob *OrderBook) Symbol() string { return ob.symbol }

// Insert queues o at the back of (outcome, price), creating the level lazily
func (ob *OrderBook) Insert(outcome core.Outcome, price core.Price, o *RestingOrder) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	side := ob.levels[outcome]
	lv, ok := side[price]
	if !ok {
		lv = &PriceLevel{}
		side[price] = lv
		heap.Push(ob.prices[outcome], price)
	}
	lv.Push(o)
}

// Level returns a private copy of the level at (outcome, price)
func (ob *OrderBook) Level(outcome core.Outcome, price core.Price) (*PriceLevel, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	lv, ok := ob.levels[outcome][price]
	if !ok || lv.Empty() {
		return nil, false
	}
	return lv.Clone(), true
}

// ReplaceLevel installs lv at (outcome, price). An empty level is removed.
func (ob *OrderBook) ReplaceLevel(outcome core.Outcome, price core.Price, lv *PriceLevel) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	_, existed := ob.levels[outcome][price]
	if lv == nil || lv.Empty() {
		if existed {
			delete(ob.levels[outcome], price)
			ob.prices[outcome].remove(price)
		}
		return
	}
	if !existed {
		heap.Push(ob.prices[outcome], price)
	}
	ob.levels[outcome][price] = lv
}

// Prices returns the non-empty prices of an outcome in ascending order (best first)
func (ob *OrderBook) Prices(outcome core.Outcome) []core.Price {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	return ob.prices[outcome].ascending()
}

// BestPrice returns the lowest resting price of an outcome
func (ob *OrderBook) BestPrice(outcome core.Outcome) (core.Price, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	return ob.prices[outcome].Peek()
}

// Depth returns the aggregate quantity resting at (outcome, price)
func (ob *OrderBook) Depth(outcome core.Outcome, price core.Price) int64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	if lv, ok := ob.levels[outcome][price]; ok {
		return lv.Total
	}
	return 0
}

// Snapshot returns the aggregated depth of both outcomes
func (ob *OrderBook) Snapshot() Snapshot {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	return Snapshot{
		Symbol: ob.symbol,
		Yes:    ob.viewLocked(core.Yes),
		No:     ob.viewLocked(core.No),
	}
}

func (ob *OrderBook) viewLocked(outcome core.Outcome) []LevelView {
	prices := ob.prices[outcome].ascending()
	views := make([]LevelView, 0, len(prices))
	for _, price := range prices {
		lv := ob.levels[outcome][price]
		views = append(views, LevelView{Price: price, Quantity: lv.Total, Orders: lv.Len()})
	}
	return views
}

// Validate checks that every level is non-empty, indexed, and totals the sum of its orders
func (ob *OrderBook) Validate() bool {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	for outcome, side := range ob.levels {
		if len(side) != ob.prices[outcome].Len() {
			return false
		}
		for _, lv := range side {
			if lv.Empty() || !lv.Consistent() {
				return false
			}
		}
	}
	return true
}
