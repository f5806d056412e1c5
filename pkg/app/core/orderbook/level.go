package orderbook

import "github.com/uhyunpark/yesno/pkg/app/core"

// RestingOrder is a sell-shaped entry waiting in a price level
type RestingOrder struct {
	ID       string      `json:"id"`
	UserID   string      `json:"userId"`
	Quantity int64       `json:"quantity"`
	Intent   core.Intent `json:"type"` // buy (pseudo sell) or exit
}

// PriceLevel is the FIFO queue of resting orders at one price.
// Total always equals the sum of the queued quantities.
type PriceLevel struct {
	Total  int64           `json:"total"`
	Orders []*RestingOrder `json:"orders"` // oldest first
}

// Push appends an order at the back of the queue
func (lv *PriceLevel) Push(o *RestingOrder) {
	lv.Orders = append(lv.Orders, o)
	lv.Total += o.Quantity
}

// Head returns the oldest order without removing it
func (lv *PriceLevel) Head() (*RestingOrder, bool) {
	if len(lv.Orders) == 0 {
		return nil, false
	}
	return lv.Orders[0], true
}

// ReduceHead takes qty from the head order, which stays at the front.
// qty must be smaller than the head's quantity.
func (lv *PriceLevel) ReduceHead(qty int64) {
	lv.Orders[0].Quantity -= qty
	lv.Total -= qty
}

// PopHead removes the head order entirely and returns it
func (lv *PriceLevel) PopHead() *RestingOrder {
	head := lv.Orders[0]
	lv.Total -= head.Quantity
	lv.Orders[0] = nil
	lv.Orders = lv.Orders[1:]
	return head
}

// Len returns the number of queued orders
func (lv *PriceLevel) Len() int { return len(lv.Orders) }

// Empty reports whether no order is queued
func (lv *PriceLevel) Empty() bool { return len(lv.Orders) == 0 }

// Clone deep-copies the level so it can be mutated without touching the book
func (lv *PriceLevel) Clone() *PriceLevel {
	cp := &PriceLevel{
		Total:  lv.Total,
		Orders: make([]*RestingOrder, len(lv.Orders)),
	}
	for i, o := range lv.Orders {
		oc := *o
		cp.Orders[i] = &oc
	}
	return cp
}

// sum recomputes the queued quantity (used to check Total)
func (lv *PriceLevel) sum() int64 {
	var total int64
	for _, o := range lv.Orders {
		total += o.Quantity
	}
	return total
}

// Consistent reports whether Total matches the queued orders
func (lv *PriceLevel) Consistent() bool {
	return lv.Total == lv.sum()
}
