package state

import (
	"sort"
	"sync"
)

// Tx is a staged set of ledger changes. Reads observe the writes made
// earlier in the same transaction.
type Tx interface {
	Balance(account string) uint64
	ClaimBalance(claim, account string) uint64
	ClaimSupply(claim string) uint64
	Transfer(from, to string, amount uint64) error
	Credit(account string, amount uint64) error
	Mint(claim, account string, units uint64) error
	Burn(claim, account string, units uint64) error
}

// Ledger tracks currency balances and claim-token holdings for every
// account. All mutations go through Atomic.
type Ledger struct {
	mu       sync.RWMutex
	balances map[string]uint64            // account -> currency base units
	claims   map[string]map[string]uint64 // claim -> account -> units
	supply   map[string]uint64            // claim -> units outstanding
	version  uint64
}

// NewLedger creates a ledger seeded with the given currency balances.
func NewLedger(initial map[string]uint64) *Ledger {
	balances := make(map[string]uint64)
	for k, v := range initial {
		balances[k] = v
	}
	return &Ledger{
		balances: balances,
		claims:   make(map[string]map[string]uint64),
		supply:   make(map[string]uint64),
	}
}

// Atomic runs fn against a staged view of the ledger. The staged changes
// are applied only if fn returns nil; otherwise nothing is written.
func (l *Ledger) Atomic(fn func(Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := &tx{
		ledger:   l,
		balances: make(map[string]uint64),
		claims:   make(map[string]map[string]uint64),
		supply:   make(map[string]uint64),
	}
	if err := fn(t); err != nil {
		return err
	}
	if !t.dirty {
		return nil
	}
	t.commit()
	l.version++
	return nil
}

// Balance returns the committed currency balance of account.
func (l *Ledger) Balance(account string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account]
}

// ClaimBalance returns the committed holding of claim for account.
func (l *Ledger) ClaimBalance(claim, account string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.claims[claim][account]
}

// ClaimSupply returns the committed total of claim across all holders.
func (l *Ledger) ClaimSupply(claim string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply[claim]
}

// Holdings returns every non-zero claim held by account.
func (l *Ledger) Holdings(account string) map[string]uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]uint64)
	for claim, holders := range l.claims {
		if v := holders[account]; v > 0 {
			result[claim] = v
		}
	}
	return result
}

// Holders returns the accounts with a non-zero holding of claim, sorted.
func (l *Ledger) Holders(claim string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var accounts []string
	for account, v := range l.claims[claim] {
		if v > 0 {
			accounts = append(accounts, account)
		}
	}
	sort.Strings(accounts)
	return accounts
}

// Version returns the number of committed transactions that changed state.
func (l *Ledger) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

type tx struct {
	ledger   *Ledger
	balances map[string]uint64
	claims   map[string]map[string]uint64
	supply   map[string]uint64
	dirty    bool
}

func (t *tx) Balance(account string) uint64 {
	if v, ok := t.balances[account]; ok {
		return v
	}
	return t.ledger.balances[account]
}

func (t *tx) ClaimBalance(claim, account string) uint64 {
	if v, ok := t.claims[claim][account]; ok {
		return v
	}
	return t.ledger.claims[claim][account]
}

func (t *tx) ClaimSupply(claim string) uint64 {
	if v, ok := t.supply[claim]; ok {
		return v
	}
	return t.ledger.supply[claim]
}

// Transfer moves currency from one account to another.
func (t *tx) Transfer(from, to string, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	fromBal := t.Balance(from)
	if fromBal < amount {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	toBal := t.Balance(to)
	if toBal+amount < toBal {
		return ErrBalanceOverflow
	}
	t.balances[from] = fromBal - amount
	t.balances[to] = toBal + amount
	t.dirty = true
	return nil
}

// Credit creates currency in account.
func (t *tx) Credit(account string, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	bal := t.Balance(account)
	if bal+amount < bal {
		return ErrBalanceOverflow
	}
	t.balances[account] = bal + amount
	t.dirty = true
	return nil
}

// Mint issues units of claim to account.
func (t *tx) Mint(claim, account string, units uint64) error {
	if units == 0 {
		return ErrZeroAmount
	}
	held, supply := t.ClaimBalance(claim, account), t.ClaimSupply(claim)
	if supply+units < supply {
		return ErrBalanceOverflow
	}
	t.setClaim(claim, account, held+units)
	t.supply[claim] = supply + units
	return nil
}

// Burn retires units of claim held by account.
func (t *tx) Burn(claim, account string, units uint64) error {
	if units == 0 {
		return ErrZeroAmount
	}
	held := t.ClaimBalance(claim, account)
	if held < units {
		return ErrInsufficientClaims
	}
	t.setClaim(claim, account, held-units)
	t.supply[claim] = t.ClaimSupply(claim) - units
	return nil
}

func (t *tx) setClaim(claim, account string, v uint64) {
	holders, ok := t.claims[claim]
	if !ok {
		holders = make(map[string]uint64)
		t.claims[claim] = holders
	}
	holders[account] = v
	t.dirty = true
}

// commit applies the staged changes; caller holds the ledger lock.
func (t *tx) commit() {
	l := t.ledger
	for account, v := range t.balances {
		l.balances[account] = v
	}
	for claim, holders := range t.claims {
		dst, ok := l.claims[claim]
		if !ok {
			dst = make(map[string]uint64)
			l.claims[claim] = dst
		}
		for account, v := range holders {
			if v == 0 {
				delete(dst, account)
				continue
			}
			dst[account] = v
		}
	}
	for claim, v := range t.supply {
		l.supply[claim] = v
	}
}

// LedgerError is a ledger precondition failure.
type LedgerError string

func (e LedgerError) Error() string {
	return string(e)
}

const (
	ErrInsufficientBalance LedgerError = "insufficient balance"
	ErrInsufficientClaims  LedgerError = "insufficient claim units"
	ErrZeroAmount          LedgerError = "amount must be positive"
	ErrBalanceOverflow     LedgerError = "balance overflow"
)
