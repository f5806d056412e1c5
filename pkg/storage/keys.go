package storage

import (
	"fmt"

	"github.com/uhyunpark/yesno/pkg/app/exchange"
)

// Key schema of the trade journal:
//
//   trade:<symbol>:<timestamp>:<seq>:<id>  → Trade (JSON)
//   utrade:<user>:<timestamp>:<seq>:<id>   → Trade (JSON), written for taker and maker
//
// Timestamps and sequence numbers are zero-padded so lexical order is fill
// order. Symbols and user ids never contain ':', so one prefix cannot match
// another name's keys.

const (
	prefixTrade     = "trade:"
	prefixUserTrade = "utrade:"
)

// tradeKey returns the key of a trade in the symbol index
// Format: "trade:{symbol}:{timestamp}:{seq}:{id}"
func tradeKey(tr exchange.Trade) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%020d:%s", prefixTrade, tr.Symbol, tr.Timestamp, tr.Seq, tr.ID))
}

// tradePrefix returns the prefix for all trades of a symbol
// Format: "trade:{symbol}:"
func tradePrefix(symbol string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixTrade, symbol))
}

// userTradeKey returns the key of a trade in a user's history
// Format: "utrade:{user}:{timestamp}:{seq}:{id}"
func userTradeKey(user string, tr exchange.Trade) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%020d:%s", prefixUserTrade, user, tr.Timestamp, tr.Seq, tr.ID))
}

// userTradePrefix returns the prefix for all trades of a user
// Format: "utrade:{user}:"
func userTradePrefix(user string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixUserTrade, user))
}

// keyUpperBound returns the smallest key greater than every key with prefix
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // no upper bound
}
