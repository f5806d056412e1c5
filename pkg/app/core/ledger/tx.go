package ledger

import "github.com/uhyunpark/yesno/pkg/app/core"

// undo is the previous value of one record touched inside a Tx
type undo struct {
	user     string
	symbol   string
	outcome  core.Outcome
	contract bool
	existed  bool
	cash     CurrencyAccount
	holding  ContractAccount
}

// Tx journals ledger mutations so a whole command can be undone.
//
// The ledger is mutated in place; Rollback restores every touched record to the
// value it had before its first change, newest first. A Tx is not safe for use by
// more than one goroutine and only one Tx should be open at a time.
type Tx struct {
	l    *Ledger
	log  []undo
	done bool
}

// Begin opens a journaled unit of work
func (l *Ledger) Begin() *Tx {
	return &Tx{l: l}
}

func (tx *Tx) LockCurrency(user string, amount int64) error {
	return tx.l.lockCurrency(tx, user, amount)
}

func (tx *Tx) ReleaseCurrency(user string, amount int64) error {
	return tx.l.releaseCurrency(tx, user, amount)
}

func (tx *Tx) SettleCurrencyCredit(user string, amount int64) error {
	return tx.l.settleCurrencyCredit(tx, user, amount)
}

func (tx *Tx) SettleCurrencyDebit(user string, amount int64) error {
	return tx.l.settleCurrencyDebit(tx, user, amount)
}

func (tx *Tx) LockContracts(user, symbol string, outcome core.Outcome, qty int64) error {
	return tx.l.lockContracts(tx, user, symbol, outcome, qty)
}

func (tx *Tx) ReleaseLockedContracts(user, symbol string, outcome core.Outcome, qty int64) error {
	return tx.l.releaseLockedContracts(tx, user, symbol, outcome, qty)
}

func (tx *Tx) CreditContracts(user, symbol string, outcome core.Outcome, qty int64) error {
	return tx.l.creditContracts(tx, user, symbol, outcome, qty)
}

func (tx *Tx) DebitContracts(user, symbol string, outcome core.Outcome, qty int64) error {
	return tx.l.debitContracts(tx, user, symbol, outcome, qty)
}

// Commit keeps every mutation and discards the journal
func (tx *Tx) Commit() {
	tx.log = nil
	tx.done = true
}

// Rollback restores every record touched by the Tx. No-op after Commit.
func (tx *Tx) Rollback() {
	if tx.done {
		return
	}
	tx.done = true

	l := tx.l
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(tx.log) - 1; i >= 0; i-- {
		u := tx.log[i]
		if !u.contract {
			if acc, ok := l.currency[u.user]; ok {
				*acc = u.cash
			}
			continue
		}

		byOutcome := l.contracts[u.user][u.symbol]
		if byOutcome == nil {
			continue
		}
		if !u.existed {
			delete(byOutcome, u.outcome)
			if len(byOutcome) == 0 {
				delete(l.contracts[u.user], u.symbol)
			}
			continue
		}
		if acc, ok := byOutcome[u.outcome]; ok {
			*acc = u.holding
		}
	}
	tx.log = nil
}

// Len returns the number of journaled mutations
func (tx *Tx) Len() int {
	return len(tx.log)
}

// The save helpers run with the ledger lock held and tolerate a nil Tx so that
// direct Ledger calls share the same code path.

func (tx *Tx) saveCurrency(user string, acc *CurrencyAccount) {
	if tx == nil {
		return
	}
	tx.log = append(tx.log, undo{user: user, cash: *acc})
}

func (tx *Tx) saveContract(user, symbol string, outcome core.Outcome, acc *ContractAccount) {
	if tx == nil {
		return
	}
	tx.log = append(tx.log, undo{
		user:     user,
		symbol:   symbol,
		outcome:  outcome,
		contract: true,
		existed:  true,
		holding:  *acc,
	})
}

func (tx *Tx) saveMissingContract(user, symbol string, outcome core.Outcome) {
	if tx == nil {
		return
	}
	tx.log = append(tx.log, undo{user: user, symbol: symbol, outcome: outcome, contract: true})
}
