package market

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/uhyunpark/yesno/pkg/app/core"
	"github.com/uhyunpark/yesno/pkg/app/core/orderbook"
)

// Market is one binary contract and its book
type Market struct {
	Symbol    string
	Book      *orderbook.OrderBook
	CreatedAt time.Time
}

// Registry manages every market in a thread-safe manner
type Registry struct {
	mu      sync.RWMutex
	markets map[string]*Market // symbol -> market
}

// NewRegistry creates an empty market registry
func NewRegistry() *Registry {
	return &Registry{
		markets: make(map[string]*Market),
	}
}

// Create registers a new market with empty yes and no books.
// Returns ErrSymbolExists if the symbol is taken.
func (r *Registry) Create(symbol string, now time.Time) (*Market, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, fmt.Errorf("%w: empty symbol", core.ErrUnknownSymbol)
	}
	if !core.ValidName(symbol) {
		return nil, fmt.Errorf("%w: symbol %q", core.ErrInvalidName, symbol)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.markets[symbol]; exists {
		return nil, fmt.Errorf("%w: %s", core.ErrSymbolExists, symbol)
	}

	m := &Market{
		Symbol:    symbol,
		Book:      orderbook.NewOrderBook(symbol),
		CreatedAt: now,
	}
	r.markets[symbol] = m
	return m, nil
}

// Get retrieves a market by symbol
func (r *Registry) Get(symbol string) (*Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.markets[symbol]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownSymbol, symbol)
	}
	return m, nil
}

// Book is shorthand for Get(symbol).Book
func (r *Registry) Book(symbol string) (*orderbook.OrderBook, error) {
	m, err := r.Get(symbol)
	if err != nil {
		return nil, err
	}
	return m.Book, nil
}

// Symbols returns every registered symbol, sorted
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	symbols := make([]string, 0, len(r.markets))
	for s := range r.markets {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// Count returns the total number of registered markets
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}

// Exists checks if a market is registered
func (r *Registry) Exists(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.markets[symbol]
	return exists
}

// Reset drops every market and its book
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markets = make(map[string]*Market)
}
