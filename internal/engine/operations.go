package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"amm-backend/internal/amm"
	"amm-backend/internal/market"
	"amm-backend/internal/state"
)

// CreateMarket validates req and registers a new market. The currency scale
// and claim decimals fall back to the engine defaults when unset.
func (e *Engine) CreateMarket(req market.CreateMarketRequest) (*market.Market, error) {
	if req.CurrencyScale == 0 {
		req.CurrencyScale = e.opts.CurrencyScale
	}
	if req.ClaimDecimals == nil {
		decimals := e.opts.ClaimDecimals
		req.ClaimDecimals = &decimals
	}

	m, err := market.New(req, e.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("create market: %w", err)
	}
	e.markets.Add(m)

	log.WithFields(log.Fields{
		"market": m.ID,
		"curve":  m.Curve,
		"end":    m.EndTime,
	}).Info("market created")
	e.emit(EventMarketCreated, m.ID, m.Creator, m)
	return m, nil
}

// LiquidityResult reports a committed deposit or withdrawal.
type LiquidityResult struct {
	Market  *market.Market `json:"market"`
	Amount  uint64         `json:"amount"`
	LPUnits uint64         `json:"lp_units"`
}

// Deposit moves amount base units from provider into the market vault and
// mints LP units to the provider.
func (e *Engine) Deposit(marketID, provider string, amount uint64) (*LiquidityResult, error) {
	var minted uint64
	m, err := e.markets.Update(marketID, func(m *market.Market) error {
		var err error
		if minted, err = m.Deposit(amount); err != nil {
			return err
		}
		return ledgerErr(e.custody.Atomic(func(tx state.Tx) error {
			if err := tx.Transfer(provider, VaultAccount(m.ID), amount); err != nil {
				return err
			}
			return tx.Mint(LPClaim(m.ID), provider, minted)
		}))
	})
	if err != nil {
		return nil, fmt.Errorf("deposit %s: %w", marketID, err)
	}

	e.emit(EventLiquidity, m.ID, provider, LiquidityChange{
		Provider:       provider,
		Deposit:        true,
		Amount:         amount,
		LPUnits:        minted,
		TotalLiquidity: m.TotalLiquidity,
		TotalLpSupply:  m.TotalLpSupply,
	})
	return &LiquidityResult{Market: m, Amount: amount, LPUnits: minted}, nil
}

// Withdraw burns lpUnits held by provider and returns their share of the
// deposited liquidity from the vault.
func (e *Engine) Withdraw(marketID, provider string, lpUnits uint64) (*LiquidityResult, error) {
	var amount uint64
	m, err := e.markets.Update(marketID, func(m *market.Market) error {
		if held := e.custody.ClaimBalance(LPClaim(m.ID), provider); held < lpUnits {
			return market.ErrInsufficientTokens
		}
		var err error
		if amount, err = m.Withdraw(lpUnits); err != nil {
			return err
		}
		return ledgerErr(e.custody.Atomic(func(tx state.Tx) error {
			if err := tx.Burn(LPClaim(m.ID), provider, lpUnits); err != nil {
				return err
			}
			if amount == 0 {
				return nil
			}
			return tx.Transfer(VaultAccount(m.ID), provider, amount)
		}))
	})
	if err != nil {
		return nil, fmt.Errorf("withdraw %s: %w", marketID, err)
	}

	e.emit(EventLiquidity, m.ID, provider, LiquidityChange{
		Provider:       provider,
		Amount:         amount,
		LPUnits:        lpUnits,
		TotalLiquidity: m.TotalLiquidity,
		TotalLpSupply:  m.TotalLpSupply,
	})
	return &LiquidityResult{Market: m, Amount: amount, LPUnits: lpUnits}, nil
}

// Quote is a priced but uncommitted buy.
type Quote struct {
	MarketID      string          `json:"market_id"`
	Fill          amm.Fill        `json:"fill"`
	PriceYes      decimal.Decimal `json:"price_yes"`
	PriceYesAfter decimal.Decimal `json:"price_yes_after"`
}

// Quote prices a buy without committing it. intent follows amm.Buy: base
// currency units for the constant product curve, whole claim units for LMSR.
func (e *Engine) Quote(marketID string, side market.Outcome, intent uint64) (*Quote, error) {
	m, err := e.Market(marketID)
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", marketID, err)
	}
	f, err := e.price(m, side, intent)
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", marketID, err)
	}

	before, err := amm.PriceYes(m.Curve, amm.StateOf(m))
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", marketID, err)
	}
	if err := amm.Apply(m, f); err != nil {
		return nil, fmt.Errorf("quote %s: %w", marketID, err)
	}
	after, err := amm.PriceYes(m.Curve, amm.StateOf(m))
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", marketID, err)
	}
	return &Quote{MarketID: m.ID, Fill: f, PriceYes: before, PriceYesAfter: after}, nil
}

// price checks the trading gates and the trade limits and prices the buy.
func (e *Engine) price(m *market.Market, side market.Outcome, intent uint64) (amm.Fill, error) {
	if err := m.CanTrade(); err != nil {
		return amm.Fill{}, err
	}
	if m.Expired(e.clock.Now()) {
		return amm.Fill{}, market.ErrMarketExpired
	}
	f, err := amm.Buy(m.Curve, amm.StateOf(m), side, intent)
	if err != nil {
		return amm.Fill{}, err
	}
	if f.CurrencyOwed < e.opts.MinTrade {
		return amm.Fill{}, market.ErrAmountTooSmall
	}
	if e.opts.MaxTrade > 0 && f.CurrencyOwed > e.opts.MaxTrade {
		return amm.Fill{}, market.ErrAmountTooLarge
	}
	return f, nil
}

// Buy prices and commits a purchase of side for trader. The trader pays the
// fill's currency into the vault and receives the issued claim units.
func (e *Engine) Buy(marketID, trader string, side market.Outcome, intent uint64) (*FillRecord, error) {
	var fill amm.Fill
	m, err := e.markets.Update(marketID, func(m *market.Market) error {
		var err error
		if fill, err = e.price(m, side, intent); err != nil {
			return err
		}
		if err := amm.Apply(m, fill); err != nil {
			return err
		}
		return ledgerErr(e.custody.Atomic(func(tx state.Tx) error {
			if err := tx.Transfer(trader, VaultAccount(m.ID), fill.CurrencyOwed); err != nil {
				return err
			}
			return tx.Mint(OutcomeClaim(m.ID, side), trader, fill.TokensIssued)
		}))
	})
	if err != nil {
		return nil, fmt.Errorf("buy %s: %w", marketID, err)
	}

	rec := NewFillRecord(m, trader, fill, e.clock.Now())
	e.fills.Add(rec)
	e.emit(EventFill, m.ID, trader, rec)
	return rec, nil
}

// Resolve settles a market on outcome. Only the market's oracle authority
// may resolve.
func (e *Engine) Resolve(marketID, caller string, outcome market.Outcome) (*market.Market, error) {
	now := e.clock.Now()
	m, err := e.markets.Update(marketID, func(m *market.Market) error {
		if err := m.Resolve(e.isSigner(caller), outcome, now); err != nil {
			return err
		}
		if e.opts.ResolveAfterExpiry && !m.Expired(now) {
			return market.ErrMarketNotExpired
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", marketID, err)
	}

	log.WithFields(log.Fields{
		"market":  m.ID,
		"outcome": outcome,
		"vault":   e.custody.Balance(VaultAccount(m.ID)),
	}).Info("market resolved")
	e.emit(EventResolved, m.ID, caller, m)
	return m, nil
}

// ClaimResult reports a committed payout.
type ClaimResult struct {
	Market *market.Market `json:"market"`
	Units  uint64         `json:"units"`
	Payout uint64         `json:"payout"`
}

// Claim pays claimant their pro-rata share of the vault for every winning
// claim unit they hold, and burns those units.
func (e *Engine) Claim(marketID, claimant string) (*ClaimResult, error) {
	var units, payout uint64
	m, err := e.markets.Update(marketID, func(m *market.Market) error {
		if !m.Resolved || m.WinningOutcome == nil {
			return market.ErrMarketNotResolved
		}
		winning := *m.WinningOutcome
		claim := OutcomeClaim(m.ID, winning)
		vault := VaultAccount(m.ID)

		err := ledgerErr(e.custody.Atomic(func(tx state.Tx) error {
			units = tx.ClaimBalance(claim, claimant)
			if units == 0 {
				if e.hasClaimed(m.ID, claimant) {
					return market.ErrAlreadyClaimed
				}
				return market.ErrNoWinnings
			}
			var err error
			if payout, err = m.Payout(winning, units, tx.Balance(vault)); err != nil {
				return err
			}
			if err := m.Redeem(units); err != nil {
				return err
			}
			if err := tx.Burn(claim, claimant, units); err != nil {
				return err
			}
			if payout == 0 {
				return nil
			}
			return tx.Transfer(vault, claimant, payout)
		}))
		if err != nil {
			return err
		}
		// Marked under the market lock so a concurrent claim sees it.
		e.markClaimed(m.ID, claimant)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", marketID, err)
	}

	e.emit(EventClaim, m.ID, claimant, ClaimPayout{Claimant: claimant, Units: units, Payout: payout})
	return &ClaimResult{Market: m, Units: units, Payout: payout}, nil
}

// SetActive pauses or resumes trading. Only the market creator may do so,
// and a resolved or expired market cannot be resumed.
func (e *Engine) SetActive(marketID, caller string, active bool) (*market.Market, error) {
	now := e.clock.Now()
	m, err := e.markets.Update(marketID, func(m *market.Market) error {
		if !e.isSigner(caller)(m.Creator) {
			return market.ErrUnauthorized
		}
		if m.Resolved {
			return market.ErrMarketResolved
		}
		if active && m.Expired(now) {
			return market.ErrMarketExpired
		}
		m.IsActive = active
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set active %s: %w", marketID, err)
	}

	log.WithFields(log.Fields{"market": m.ID, "active": active}).Info("market trading toggled")
	e.emit(EventMarketUpdated, m.ID, caller, m)
	return m, nil
}

// Faucet credits amount base units to account. It exists for test
// deployments without an external funding source.
func (e *Engine) Faucet(account string, amount uint64) (uint64, error) {
	err := ledgerErr(e.custody.Atomic(func(tx state.Tx) error {
		return tx.Credit(account, amount)
	}))
	if err != nil {
		return 0, fmt.Errorf("faucet: %w", err)
	}
	return e.custody.Balance(account), nil
}

func (e *Engine) hasClaimed(marketID, account string) bool {
	e.claimedMu.Lock()
	defer e.claimedMu.Unlock()
	return e.claimed[marketID][account]
}

func (e *Engine) markClaimed(marketID, account string) {
	e.claimedMu.Lock()
	defer e.claimedMu.Unlock()
	if e.claimed[marketID] == nil {
		e.claimed[marketID] = make(map[string]bool)
	}
	e.claimed[marketID][account] = true
}
