package ledger

import (
	"fmt"
	"math"
	"sync"

	"github.com/uhyunpark/yesno/pkg/app/core"
)

// CurrencyAccount tracks a user's cash in minor units (paise)
type CurrencyAccount struct {
	Available int64 `json:"balance"`
	Locked    int64 `json:"locked"`
}

// ContractAccount tracks a user's holding of one (symbol, outcome)
type ContractAccount struct {
	Quantity int64 `json:"quantity"` // owned and tradable
	Locked   int64 `json:"locked"`   // reserved by resting exit orders
}

// Holdings groups contract accounts by symbol and outcome
type Holdings map[string]map[core.Outcome]ContractAccount

// Ledger owns every currency and contract account in the process.
//
// Currency accounts must be provisioned with CreateUser before use. Contract
// accounts appear on first credit and are never removed, so zero balances persist.
// Mutations made through a Tx can be rolled back as one unit.
type Ledger struct {
	mu        sync.RWMutex
	currency  map[string]*CurrencyAccount                          // user -> cash
	contracts map[string]map[string]map[core.Outcome]*ContractAccount // user -> symbol -> outcome
}

// New creates an empty ledger
func New() *Ledger {
	return &Ledger{
		currency:  make(map[string]*CurrencyAccount),
		contracts: make(map[string]map[string]map[core.Outcome]*ContractAccount),
	}
}

// CreateUser provisions a zero-balance currency account
func (l *Ledger) CreateUser(user string) error {
	if user == "" {
		return fmt.Errorf("%w: empty user id", core.ErrUnknownAccount)
	}
	if !core.ValidName(user) {
		return fmt.Errorf("%w: user id %q", core.ErrInvalidName, user)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.currency[user]; exists {
		return fmt.Errorf("%w: %s", core.ErrUserExists, user)
	}
	l.currency[user] = &CurrencyAccount{}
	l.contracts[user] = make(map[string]map[core.Outcome]*ContractAccount)
	return nil
}

// HasUser reports whether a currency account exists for user
func (l *Ledger) HasUser(user string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.currency[user]
	return ok
}

// Deposit credits available currency from outside the market (onramp)
func (l *Ledger) Deposit(user string, amount int64) error {
	if amount <= 0 || amount > core.MaxAmount {
		return fmt.Errorf("%w: deposit amount %d not in [1,%d]", core.ErrInvalidQuantity, amount, core.MaxAmount)
	}
	return l.settleCurrencyCredit(nil, user, amount)
}

// Reset drops every account
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currency = make(map[string]*CurrencyAccount)
	l.contracts = make(map[string]map[string]map[core.Outcome]*ContractAccount)
}

// ==============================
// Mutations
// ==============================

// LockCurrency moves amount from available to locked
func (l *Ledger) LockCurrency(user string, amount int64) error {
	return l.lockCurrency(nil, user, amount)
}

// ReleaseCurrency consumes amount of locked currency (a filled reservation)
func (l *Ledger) ReleaseCurrency(user string, amount int64) error {
	return l.releaseCurrency(nil, user, amount)
}

// SettleCurrencyCredit adds sale proceeds to available
func (l *Ledger) SettleCurrencyCredit(user string, amount int64) error {
	return l.settleCurrencyCredit(nil, user, amount)
}

// SettleCurrencyDebit takes an immediate payment from available
func (l *Ledger) SettleCurrencyDebit(user string, amount int64) error {
	return l.settleCurrencyDebit(nil, user, amount)
}

// LockContracts moves qty owned contracts into locked
func (l *Ledger) LockContracts(user, symbol string, outcome core.Outcome, qty int64) error {
	return l.lockContracts(nil, user, symbol, outcome, qty)
}

// ReleaseLockedContracts consumes qty locked contracts (a filled exit)
func (l *Ledger) ReleaseLockedContracts(user, symbol string, outcome core.Outcome, qty int64) error {
	return l.releaseLockedContracts(nil, user, symbol, outcome, qty)
}

// CreditContracts adds qty owned contracts, creating the record if needed
func (l *Ledger) CreditContracts(user, symbol string, outcome core.Outcome, qty int64) error {
	return l.creditContracts(nil, user, symbol, outcome, qty)
}

// DebitContracts removes qty owned contracts (a taker sale)
func (l *Ledger) DebitContracts(user, symbol string, outcome core.Outcome, qty int64) error {
	return l.debitContracts(nil, user, symbol, outcome, qty)
}

func (l *Ledger) lockCurrency(tx *Tx, user string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: lock amount must be positive: %d", core.ErrInvalidQuantity, amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.currencyLocked(user)
	if err != nil {
		return err
	}
	if acc.Available < amount {
		return fmt.Errorf("%w: %s has %d available, needs %d", core.ErrInsufficientFunds, user, acc.Available, amount)
	}

	tx.saveCurrency(user, acc)
	acc.Available -= amount
	acc.Locked += amount
	return nil
}

func (l *Ledger) releaseCurrency(tx *Tx, user string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: release amount must be positive: %d", core.ErrInvalidQuantity, amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.currencyLocked(user)
	if err != nil {
		return err
	}
	if acc.Locked < amount {
		return fmt.Errorf("%w: %s has %d locked, release %d", core.ErrInsufficientFunds, user, acc.Locked, amount)
	}

	tx.saveCurrency(user, acc)
	acc.Locked -= amount
	return nil
}

func (l *Ledger) settleCurrencyCredit(tx *Tx, user string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: credit amount must be positive: %d", core.ErrInvalidQuantity, amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.currencyLocked(user)
	if err != nil {
		return err
	}

	if amount > math.MaxInt64-acc.Available-acc.Locked {
		return fmt.Errorf("%w: %s balance would overflow", core.ErrInvalidQuantity, user)
	}

	tx.saveCurrency(user, acc)
	acc.Available += amount
	return nil
}

func (l *Ledger) settleCurrencyDebit(tx *Tx, user string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: debit amount must be positive: %d", core.ErrInvalidQuantity, amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.currencyLocked(user)
	if err != nil {
		return err
	}
	if acc.Available < amount {
		return fmt.Errorf("%w: %s has %d available, needs %d", core.ErrInsufficientFunds, user, acc.Available, amount)
	}

	tx.saveCurrency(user, acc)
	acc.Available -= amount
	return nil
}

func (l *Ledger) lockContracts(tx *Tx, user, symbol string, outcome core.Outcome, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: lock quantity must be positive: %d", core.ErrInvalidQuantity, qty)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.contractLocked(user, symbol, outcome)
	if err != nil {
		return err
	}
	if acc.Quantity < qty {
		return fmt.Errorf("%w: %s owns %d %s %s, needs %d", core.ErrInsufficientContracts, user, acc.Quantity, symbol, outcome, qty)
	}

	tx.saveContract(user, symbol, outcome, acc)
	acc.Quantity -= qty
	acc.Locked += qty
	return nil
}

func (l *Ledger) releaseLockedContracts(tx *Tx, user, symbol string, outcome core.Outcome, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: release quantity must be positive: %d", core.ErrInvalidQuantity, qty)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.contractLocked(user, symbol, outcome)
	if err != nil {
		return err
	}
	if acc.Locked < qty {
		return fmt.Errorf("%w: %s has %d locked %s %s, release %d", core.ErrInsufficientContracts, user, acc.Locked, symbol, outcome, qty)
	}

	tx.saveContract(user, symbol, outcome, acc)
	acc.Locked -= qty
	return nil
}

func (l *Ledger) creditContracts(tx *Tx, user, symbol string, outcome core.Outcome, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: credit quantity must be positive: %d", core.ErrInvalidQuantity, qty)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.currency[user]; !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownAccount, user)
	}

	bySymbol := l.contracts[user]
	byOutcome, ok := bySymbol[symbol]
	if !ok {
		byOutcome = make(map[core.Outcome]*ContractAccount)
		bySymbol[symbol] = byOutcome
	}
	acc, ok := byOutcome[outcome]
	if ok && qty > math.MaxInt64-acc.Quantity-acc.Locked {
		return fmt.Errorf("%w: %s %s holding would overflow", core.ErrInvalidQuantity, user, outcome)
	}
	if !ok {
		tx.saveMissingContract(user, symbol, outcome)
		acc = &ContractAccount{}
		byOutcome[outcome] = acc
	} else {
		tx.saveContract(user, symbol, outcome, acc)
	}

	acc.Quantity += qty
	return nil
}

func (l *Ledger) debitContracts(tx *Tx, user, symbol string, outcome core.Outcome, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: debit quantity must be positive: %d", core.ErrInvalidQuantity, qty)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.contractLocked(user, symbol, outcome)
	if err != nil {
		return err
	}
	if acc.Quantity < qty {
		return fmt.Errorf("%w: %s owns %d %s %s, needs %d", core.ErrInsufficientContracts, user, acc.Quantity, symbol, outcome, qty)
	}

	tx.saveContract(user, symbol, outcome, acc)
	acc.Quantity -= qty
	return nil
}

// currencyLocked looks up a currency account (assumes lock is held)
func (l *Ledger) currencyLocked(user string) (*CurrencyAccount, error) {
	acc, ok := l.currency[user]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownAccount, user)
	}
	return acc, nil
}

// contractLocked looks up an existing contract account (assumes lock is held)
func (l *Ledger) contractLocked(user, symbol string, outcome core.Outcome) (*ContractAccount, error) {
	acc, ok := l.contracts[user][symbol][outcome]
	if !ok {
		return nil, fmt.Errorf("%w: no %s %s contracts for %s", core.ErrUnknownAccount, symbol, outcome, user)
	}
	return acc, nil
}

// ==============================
// Queries (value copies)
// ==============================

// Currency returns a copy of a user's currency account
func (l *Ledger) Currency(user string) (CurrencyAccount, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acc, ok := l.currency[user]
	if !ok {
		return CurrencyAccount{}, false
	}
	return *acc, true
}

// Contracts returns a copy of one contract account
func (l *Ledger) Contracts(user, symbol string, outcome core.Outcome) (ContractAccount, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acc, ok := l.contracts[user][symbol][outcome]
	if !ok {
		return ContractAccount{}, false
	}
	return *acc, true
}

// Holdings returns a copy of all contract accounts of a user
func (l *Ledger) Holdings(user string) (Holdings, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.currency[user]; !ok {
		return nil, false
	}
	return copyHoldings(l.contracts[user]), true
}

// AllCurrency returns a copy of every currency account keyed by user
func (l *Ledger) AllCurrency() map[string]CurrencyAccount {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]CurrencyAccount, len(l.currency))
	for user, acc := range l.currency {
		out[user] = *acc
	}
	return out
}

// AllHoldings returns a copy of every contract account keyed by user
func (l *Ledger) AllHoldings() map[string]Holdings {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]Holdings, len(l.contracts))
	for user, bySymbol := range l.contracts {
		out[user] = copyHoldings(bySymbol)
	}
	return out
}

func copyHoldings(bySymbol map[string]map[core.Outcome]*ContractAccount) Holdings {
	out := make(Holdings, len(bySymbol))
	for symbol, byOutcome := range bySymbol {
		m := make(map[core.Outcome]ContractAccount, len(byOutcome))
		for outcome, acc := range byOutcome {
			m[outcome] = *acc
		}
		out[symbol] = m
	}
	return out
}
