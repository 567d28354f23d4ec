package market

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxQuestionLen bounds the market question in bytes.
const MaxQuestionLen = 100

// MaxClaimDecimals bounds claim precision so 10^decimals fits in a uint64
// with room for whole-unit multiples.
const MaxClaimDecimals = 18

// Outcome represents the possible outcomes of a binary market
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// ParseOutcome accepts YES/NO in any case.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES":
		return OutcomeYes, nil
	case "NO":
		return OutcomeNo, nil
	default:
		return "", ErrInvalidOutcome
	}
}

// Curve tags the pricing strategy chosen at market creation.
type Curve string

const (
	CurveConstantProduct Curve = "constant_product"
	CurveLMSR            Curve = "lmsr"
)

func (c Curve) Valid() bool {
	return c == CurveConstantProduct || c == CurveLMSR
}

// Market is the aggregate root for one binary prediction market. It holds
// the pool reserves, claim-issuance counters and settlement state.
type Market struct {
	ID              string    `json:"id"`
	Question        string    `json:"question"`
	Creator         string    `json:"creator"`
	OracleAuthority string    `json:"oracle_authority"`
	Curve           Curve     `json:"curve"`
	LiquidityParam  uint64    `json:"liquidity_param,omitempty"` // LMSR b, whole units
	CurrencyScale   uint64    `json:"currency_scale"`            // base units per whole currency unit
	ClaimDecimals   uint8     `json:"claim_decimals"`
	FeeBps          uint32    `json:"fee_bps"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`

	IsActive       bool       `json:"is_active"`
	Resolved       bool       `json:"resolved"`
	WinningOutcome *Outcome   `json:"winning_outcome,omitempty"` // nil until resolved
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`

	YesPool        uint64 `json:"yes_pool"`
	NoPool         uint64 `json:"no_pool"`
	TotalLiquidity uint64 `json:"total_liquidity"`
	TotalLpSupply  uint64 `json:"total_lp_supply"`
	YesTokens      uint64 `json:"yes_tokens"` // outstanding YES claim units
	NoTokens       uint64 `json:"no_tokens"`  // outstanding NO claim units
	FeesCollected  uint64 `json:"fees_collected"`

	Version uint64 `json:"version"`
}

// Clone returns a deep copy of the market.
func (m *Market) Clone() *Market {
	c := *m
	if m.WinningOutcome != nil {
		o := *m.WinningOutcome
		c.WinningOutcome = &o
	}
	if m.ResolvedAt != nil {
		t := *m.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

// Tokens returns the outstanding claim units for one side.
func (m *Market) Tokens(side Outcome) uint64 {
	if side == OutcomeYes {
		return m.YesTokens
	}
	return m.NoTokens
}

func (m *Market) setTokens(side Outcome, v uint64) {
	if side == OutcomeYes {
		m.YesTokens = v
	} else {
		m.NoTokens = v
	}
}

// CanTrade reports whether buys are currently permitted, ignoring expiry.
func (m *Market) CanTrade() error {
	switch {
	case m.Resolved:
		return ErrMarketResolved
	case !m.IsActive:
		return ErrMarketNotActive
	case m.TotalLiquidity == 0:
		return ErrNoLiquidity
	}
	return nil
}

// Expired reports whether now is at or past the end time.
func (m *Market) Expired(now time.Time) bool {
	return !now.Before(m.EndTime)
}

// CreateMarketRequest is the request to create a new market
type CreateMarketRequest struct {
	Question        string
	Creator         string
	OracleAuthority string // defaults to Creator
	EndTime         time.Time
	FeeBps          uint32
	Curve           Curve
	LiquidityParam  uint64
	CurrencyScale   uint64
	ClaimDecimals   *uint8 // nil means zero
}

// New validates req and builds a fresh market stamped at now.
func New(req CreateMarketRequest, now time.Time) (*Market, error) {
	if req.Question == "" || len(req.Question) > MaxQuestionLen {
		return nil, ErrInvalidQuestion
	}
	if !req.EndTime.After(now) {
		return nil, ErrInvalidDuration
	}
	if req.FeeBps > 10_000 {
		return nil, ErrInvalidFee
	}
	if !req.Curve.Valid() {
		return nil, ErrInvalidCurve
	}
	if req.Curve == CurveLMSR && req.LiquidityParam == 0 {
		return nil, ErrInvalidCurve
	}
	if req.CurrencyScale == 0 {
		return nil, ErrInvalidCalculation
	}
	var decimals uint8
	if req.ClaimDecimals != nil {
		decimals = *req.ClaimDecimals
	}
	if decimals > MaxClaimDecimals {
		return nil, ErrOverflow
	}
	if req.Creator == "" {
		return nil, ErrUnauthorized
	}

	oracle := req.OracleAuthority
	if oracle == "" {
		oracle = req.Creator
	}

	return &Market{
		ID:              uuid.New().String(),
		Question:        req.Question,
		Creator:         req.Creator,
		OracleAuthority: oracle,
		Curve:           req.Curve,
		LiquidityParam:  req.LiquidityParam,
		CurrencyScale:   req.CurrencyScale,
		ClaimDecimals:   decimals,
		FeeBps:          req.FeeBps,
		StartTime:       now,
		EndTime:         req.EndTime,
		IsActive:        true,
	}, nil
}

type entry struct {
	mu     sync.Mutex
	market *Market
}

// Manager holds all markets and serializes mutations per market. Distinct
// markets can be updated concurrently.
type Manager struct {
	mu      sync.RWMutex
	markets map[string]*entry
}

// NewManager creates a new market manager
func NewManager() *Manager {
	return &Manager{
		markets: make(map[string]*entry),
	}
}

// Add registers a freshly created market.
func (m *Manager) Add(market *Market) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets[market.ID] = &entry{market: market.Clone()}
}

// Get returns a copy of the market with the given id.
func (m *Manager) Get(id string) (*Market, bool) {
	m.mu.RLock()
	e, ok := m.markets[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.market.Clone(), true
}

// List returns copies of all markets ordered by start time.
func (m *Manager) List() []*Market {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.markets))
	for _, e := range m.markets {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	markets := make([]*Market, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		markets = append(markets, e.market.Clone())
		e.mu.Unlock()
	}
	sort.Slice(markets, func(i, j int) bool {
		if markets[i].StartTime.Equal(markets[j].StartTime) {
			return markets[i].ID < markets[j].ID
		}
		return markets[i].StartTime.Before(markets[j].StartTime)
	})
	return markets
}

// Update runs fn against a copy of the market while holding that market's
// lock. The copy replaces the stored market only if fn returns nil, so a
// failing fn leaves no trace. The committed copy is returned.
func (m *Manager) Update(id string, fn func(*Market) error) (*Market, error) {
	m.mu.RLock()
	e, ok := m.markets[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrMarketNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.market.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Version++
	e.market = next
	return next.Clone(), nil
}
