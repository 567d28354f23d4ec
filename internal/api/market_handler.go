package api

import (
	"net/http"
	"strconv"
	"time"

	"amm-backend/internal/market"
)

// CreateMarketRequest is the request to create a new market
type CreateMarketRequest struct {
	Question        string  `json:"question" validate:"required,max=100"`
	OracleAuthority string  `json:"oracle_authority,omitempty"`                  // defaults to the caller
	EndTime         string  `json:"end_time,omitempty"`                          // RFC3339
	DurationSeconds int64   `json:"duration_seconds,omitempty" validate:"gte=0"` // used when end_time is empty
	Curve           string  `json:"curve,omitempty" validate:"omitempty,oneof=constant_product lmsr"`
	FeeBps          *uint32 `json:"fee_bps,omitempty" validate:"omitempty,max=10000"`
	LiquidityParam  uint64  `json:"liquidity_param,omitempty"`
	ClaimDecimals   *uint8  `json:"claim_decimals,omitempty" validate:"omitempty,max=18"`
}

// handleCreateMarket handles POST /api/market
func (s *Server) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	caller, ok := s.readSigned(w, r, &req)
	if !ok {
		return
	}

	defaults := s.cfg.Defaults
	endTime := time.Now().UTC().Add(defaults.Duration)
	switch {
	case req.EndTime != "":
		t, err := time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end_time format, use RFC3339")
			return
		}
		endTime = t
	case req.DurationSeconds != 0:
		endTime = time.Now().UTC().Add(time.Duration(req.DurationSeconds) * time.Second)
	}

	curve := market.Curve(req.Curve)
	if req.Curve == "" {
		curve = market.Curve(defaults.Curve)
	}
	fee := defaults.FeeBps
	if req.FeeBps != nil {
		fee = *req.FeeBps
	}
	decimals := defaults.ClaimDecimals
	if req.ClaimDecimals != nil {
		decimals = *req.ClaimDecimals
	}
	b := req.LiquidityParam
	if b == 0 && curve == market.CurveLMSR {
		b = defaults.LMSRB
	}

	mkt, err := s.engine.CreateMarket(market.CreateMarketRequest{
		Question:        sanitizeText(req.Question),
		Creator:         caller,
		OracleAuthority: req.OracleAuthority,
		EndTime:         endTime,
		FeeBps:          fee,
		Curve:           curve,
		LiquidityParam:  b,
		CurrencyScale:   defaults.CurrencyScale,
		ClaimDecimals:   &decimals,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, mkt)
}

// handleListMarkets handles GET /api/markets
func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Markets().List())
}

// handleGetMarket handles GET /api/market/{id}
func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	mkt, err := s.engine.Market(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mkt)
}

// SetActiveRequest pauses or resumes trading
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// handleSetActive handles POST /api/market/{id}/active
func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	caller, ok := s.readSigned(w, r, &req)
	if !ok {
		return
	}

	mkt, err := s.engine.SetActive(r.PathValue("id"), caller, req.Active)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mkt)
}

// ResolveMarketRequest is the request to resolve a market
type ResolveMarketRequest struct {
	Outcome string `json:"outcome" validate:"required"` // "YES" or "NO"
}

// handleResolveMarket handles POST /api/market/{id}/resolve
func (s *Server) handleResolveMarket(w http.ResponseWriter, r *http.Request) {
	var req ResolveMarketRequest
	caller, ok := s.readSigned(w, r, &req)
	if !ok {
		return
	}

	outcome, err := market.ParseOutcome(req.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, "outcome must be 'YES' or 'NO'")
		return
	}

	mkt, err := s.engine.Resolve(r.PathValue("id"), caller, outcome)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mkt)
}

// handleListEvents handles GET /api/market/{id}/events
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("id")
	if _, err := s.engine.Market(marketID); err != nil {
		writeEngineError(w, err)
		return
	}

	records, err := s.journal.List(r.Context(), marketID, queryLimit(r, 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func queryLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return def
}
