package exchange

import (
	"fmt"

	"github.com/uhyunpark/yesno/pkg/app/core"
)

type CommandType string

const (
	CmdOrder        CommandType = "order"
	CmdCreateUser   CommandType = "create_user"
	CmdCreateSymbol CommandType = "create_symbol"
	CmdOnramp       CommandType = "onramp"
	CmdMint         CommandType = "mint"
	CmdReset        CommandType = "reset"
)

// Command is one unit of work for the engine. It is also the message carried
// on the orders topic, so the field names follow the public wire format.
type Command struct {
	Type     CommandType  `json:"type"`
	UserID   string       `json:"userId,omitempty"`
	Symbol   string       `json:"symbol,omitempty"`
	Outcome  core.Outcome `json:"stockType,omitempty"`
	Intent   core.Intent  `json:"orderType,omitempty"`
	Price    core.Price   `json:"price,omitempty"`
	Quantity int64        `json:"quantity,omitempty"`
	Amount   int64        `json:"amount,omitempty"` // onramp, in paise
}

// Order converts an order command into its validated core form
func (c Command) Order() (core.Order, error) {
	o := core.Order{
		UserID:   c.UserID,
		Symbol:   c.Symbol,
		Outcome:  c.Outcome,
		Intent:   c.Intent,
		Price:    c.Price,
		Quantity: c.Quantity,
	}
	if err := o.Validate(); err != nil {
		return core.Order{}, err
	}
	return o, nil
}

func (c Command) String() string {
	switch c.Type {
	case CmdOrder:
		return fmt.Sprintf("order %s %s %s %s@%d x%d", c.UserID, c.Intent, c.Symbol, c.Outcome, c.Price, c.Quantity)
	case CmdOnramp:
		return fmt.Sprintf("onramp %s %d", c.UserID, c.Amount)
	case CmdMint:
		return fmt.Sprintf("mint %s %s x%d", c.UserID, c.Symbol, c.Quantity)
	default:
		return fmt.Sprintf("%s %s%s", c.Type, c.UserID, c.Symbol)
	}
}

// Result reports what a command did
type Result struct {
	OrderID string  `json:"orderId,omitempty"` // id of the resting remainder, if any
	Filled  int64   `json:"filled"`
	Resting int64   `json:"resting"`
	Trades  []Trade `json:"trades,omitempty"`
}

// Trade is one fill between an incoming order and a resting order.
//
// Price is in terms of the taker's outcome. MakerOutcome and MakerPrice are what
// the maker bought or sold: the same contract at the same price for a transfer,
// or the complementary contract at the complementary price when the fill mints
// or burns a complete set.
type Trade struct {
	ID           string       `json:"id"`
	Symbol       string       `json:"symbol"`
	Outcome      core.Outcome `json:"stockType"`
	Price        core.Price   `json:"price"`
	Quantity     int64        `json:"quantity"`
	TakerID      string       `json:"takerId"`
	TakerIntent  core.Intent  `json:"takerType"`
	MakerID      string       `json:"makerId"`
	MakerOrderID string       `json:"makerOrderId"`
	MakerIntent  core.Intent  `json:"makerType"`
	MakerOutcome core.Outcome `json:"makerStockType"`
	MakerPrice   core.Price   `json:"makerPrice"`
	Timestamp    int64        `json:"timestamp"` // unix millis
	Seq          uint64       `json:"seq"`       // engine-wide fill order, ties broken within one millisecond
}
