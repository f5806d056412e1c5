package api

import (
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/yesno/pkg/app/core"
	"github.com/uhyunpark/yesno/pkg/app/core/ledger"
)

// API request and response types for REST endpoints and WebSocket messages

// ==============================
// REST Request Types
// ==============================

// OrderRequest is the body of POST /order/buy and /order/sell
type OrderRequest struct {
	UserID   string       `json:"userId"`
	Symbol   string       `json:"stockSymbol"`
	Quantity int64        `json:"quantity"`
	Price    core.Price   `json:"price"`
	Outcome  core.Outcome `json:"stockType"`
}

// OnrampRequest credits currency; Amount is in paise
type OnrampRequest struct {
	UserID string `json:"userId"`
	Amount int64  `json:"amount"`
}

// MintRequest buys complete yes/no sets at the fixed total price
type MintRequest struct {
	UserID   string `json:"userId"`
	Symbol   string `json:"stockSymbol"`
	Quantity int64  `json:"quantity"`
}

// ==============================
// REST Response Types
// ==============================

// CurrencyBalance is a currency account with rupee strings for display
type CurrencyBalance struct {
	Balance    int64  `json:"balance"` // paise
	Locked     int64  `json:"locked"`  // paise
	BalanceINR string `json:"balanceInr"`
	LockedINR  string `json:"lockedInr"`
}

func newCurrencyBalance(acc ledger.CurrencyAccount) CurrencyBalance {
	return CurrencyBalance{
		Balance:    acc.Available,
		Locked:     acc.Locked,
		BalanceINR: paiseToINR(acc.Available),
		LockedINR:  paiseToINR(acc.Locked),
	}
}

// paiseToINR renders minor units as a two-decimal rupee string
func paiseToINR(paise int64) string {
	return decimal.New(paise, -2).StringFixed(2)
}

// CommandResponse acknowledges a command
type CommandResponse struct {
	Message string  `json:"message"`
	OrderID string  `json:"orderId,omitempty"`
	Filled  int64   `json:"filled,omitempty"`
	Resting int64   `json:"resting,omitempty"`
	Trades  []Trade `json:"trades,omitempty"`
}

// Trade is a fill with its notional in rupees
type Trade struct {
	ID          string       `json:"id"`
	Symbol      string       `json:"symbol"`
	Outcome     core.Outcome `json:"stockType"`
	Price       core.Price   `json:"price"`
	Quantity    int64        `json:"quantity"`
	NotionalINR string       `json:"notionalInr"`
	TakerID     string       `json:"takerId"`
	TakerType   core.Intent  `json:"takerType"`
	MakerID     string       `json:"makerId"`
	MakerType   core.Intent  `json:"makerType"`
	Timestamp   int64        `json:"timestamp"` // Unix milliseconds
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSRequest is a subscription message from a client
type WSRequest struct {
	Type        string `json:"type"` // SUBSCRIBE or UNSUBSCRIBE
	OrderbookID string `json:"orderbookId"`
}

// WSAck confirms a subscription change or reports a bad request
type WSAck struct {
	Type        string `json:"type"` // SUBSCRIBED, UNSUBSCRIBED or ERROR
	OrderbookID string `json:"orderbookId,omitempty"`
	Message     string `json:"message,omitempty"`
}
