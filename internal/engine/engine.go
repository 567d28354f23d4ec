// Package engine orchestrates market operations. Each operation validates
// against a copy of the market, prices through the amm package, books every
// currency and claim movement in one ledger transaction and only then
// commits the new market state. A failure at any step leaves both the market
// and the ledger untouched.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"amm-backend/internal/market"
	"amm-backend/internal/state"
)

// Custody holds currency and claim balances.
type Custody interface {
	Atomic(fn func(state.Tx) error) error
	Balance(account string) uint64
	ClaimBalance(claim, account string) uint64
}

// Authorizer decides whether caller acts as the expected identity.
type Authorizer interface {
	SignerMatches(caller, expected string) bool
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Options tunes engine behaviour. Zero values disable the corresponding
// limit.
type Options struct {
	CurrencyScale      uint64 // applied to markets created without one
	ClaimDecimals      uint8
	MinTrade           uint64 // currency base units
	MaxTrade           uint64
	ResolveAfterExpiry bool
	HistorySize        int
}

// Engine runs market operations against a market manager and a custody
// ledger.
type Engine struct {
	markets *market.Manager
	custody Custody
	auth    Authorizer
	clock   Clock
	opts    Options
	fills   *FillHistory

	claimedMu sync.Mutex
	claimed   map[string]map[string]bool // market -> account -> claimed

	listenersMu sync.RWMutex
	listeners   []func(Event)
}

// New creates an engine. A nil clock means the system clock.
func New(markets *market.Manager, custody Custody, auth Authorizer, clock Clock, opts Options) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 1000
	}
	return &Engine{
		markets: markets,
		custody: custody,
		auth:    auth,
		clock:   clock,
		opts:    opts,
		fills:   NewFillHistory(opts.HistorySize),
		claimed: make(map[string]map[string]bool),
	}
}

// Markets returns the underlying market manager.
func (e *Engine) Markets() *market.Manager {
	return e.markets
}

// Market returns a copy of the market with the given id.
func (e *Engine) Market(id string) (*market.Market, error) {
	m, ok := e.markets.Get(id)
	if !ok {
		return nil, market.ErrMarketNotFound
	}
	return m, nil
}

// Fills returns up to n of the most recent fills on a market.
func (e *Engine) Fills(marketID string, n int) []*FillRecord {
	return e.fills.Recent(marketID, n)
}

// Subscribe registers fn to receive every event the engine emits. fn runs
// synchronously after the operation committed and must not block.
func (e *Engine) Subscribe(fn func(Event)) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) emit(typ EventType, marketID, account string, data interface{}) {
	ev := newEvent(typ, marketID, account, data, e.clock.Now())
	e.listenersMu.RLock()
	defer e.listenersMu.RUnlock()
	for _, fn := range e.listeners {
		fn(ev)
	}
}

// MarketDeactivated publishes a market that was closed outside the engine,
// such as by the lifecycle sweep.
func (e *Engine) MarketDeactivated(m *market.Market) {
	e.emit(EventMarketUpdated, m.ID, "", m)
}

func (e *Engine) isSigner(caller string) market.SignerCheck {
	return func(expected string) bool {
		return e.auth != nil && e.auth.SignerMatches(caller, expected)
	}
}

// Claim and account identifiers in the ledger.

// VaultAccount is the ledger account holding a market's currency.
func VaultAccount(marketID string) string {
	return "vault:" + marketID
}

// OutcomeClaim is the ledger claim id for one side of a market.
func OutcomeClaim(marketID string, side market.Outcome) string {
	return marketID + ":" + string(side)
}

// LPClaim is the ledger claim id for a market's liquidity units.
func LPClaim(marketID string) string {
	return marketID + ":LP"
}

// ledgerErr maps ledger precondition failures onto market errors while
// keeping the ledger error in the chain.
func ledgerErr(err error) error {
	switch {
	case errors.Is(err, state.ErrInsufficientBalance):
		return fmt.Errorf("%w: %w", market.ErrInsufficientFunds, err)
	case errors.Is(err, state.ErrInsufficientClaims):
		return fmt.Errorf("%w: %w", market.ErrInsufficientTokens, err)
	case errors.Is(err, state.ErrBalanceOverflow):
		return fmt.Errorf("%w: %w", market.ErrOverflow, err)
	case errors.Is(err, state.ErrZeroAmount):
		return fmt.Errorf("%w: %w", market.ErrAmountTooSmall, err)
	}
	return err
}
