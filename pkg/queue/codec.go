// Package queue carries engine commands and order book snapshots over Kafka.
//
// The orders topic feeds commands from REST gateways to the single engine
// process. The snapshot topic fans books from the engine out to websocket
// stream servers. Both carry plain JSON.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/uhyunpark/yesno/pkg/app/exchange"
)

var errEmptyType = errors.New("command has no type")

// CommandKey is the partition key of every command. A command can depend on
// an earlier one through its user or its symbol, so the single engine must
// consume them in one total order, which Kafka only keeps within a partition.
const CommandKey = "engine"

// EncodeCommand returns the partition key and payload for cmd
func EncodeCommand(cmd exchange.Command) (key, value []byte, err error) {
	if cmd.Type == "" {
		return nil, nil, errEmptyType
	}
	value, err = json.Marshal(cmd)
	if err != nil {
		return nil, nil, err
	}
	return []byte(CommandKey), value, nil
}

// DecodeCommand parses an orders topic payload
func DecodeCommand(value []byte) (exchange.Command, error) {
	var cmd exchange.Command
	if err := json.Unmarshal(value, &cmd); err != nil {
		return exchange.Command{}, fmt.Errorf("decode command: %w", err)
	}
	if cmd.Type == "" {
		return exchange.Command{}, errEmptyType
	}
	return cmd, nil
}

// EncodeSnapshot keys a book update by its symbol. The value is exactly what
// websocket subscribers receive.
func EncodeSnapshot(update exchange.BookUpdate) (key, value []byte, err error) {
	value, err = json.Marshal(update)
	if err != nil {
		return nil, nil, err
	}
	return []byte(update.Symbol), value, nil
}
