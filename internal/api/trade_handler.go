package api

import (
	"net/http"
	"strconv"

	"amm-backend/internal/fixedpoint"
	"amm-backend/internal/market"
)

// BuyRequest is the request body for a buy. Amount is in whole units: the
// currency to spend on a constant product market, the claims to acquire on
// an LMSR market.
type BuyRequest struct {
	Side   string `json:"side" validate:"required"` // "YES" or "NO"
	Amount uint64 `json:"amount" validate:"gt=0"`
}

// buyIntent converts a whole-unit request amount into the intent the
// market's curve expects.
func buyIntent(m *market.Market, amount uint64) (uint64, error) {
	if m.Curve == market.CurveLMSR {
		return amount, nil
	}
	return fixedpoint.ToBaseUnits(amount, m.CurrencyScale)
}

// handleQuote handles GET /api/market/{id}/quote?side=YES&amount=10
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	mkt, err := s.engine.Market(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	side, err := market.ParseOutcome(r.URL.Query().Get("side"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "side must be 'YES' or 'NO'")
		return
	}
	amount, err := strconv.ParseUint(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount must be a positive integer")
		return
	}
	intent, err := buyIntent(mkt, amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	quote, err := s.engine.Quote(mkt.ID, side, intent)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// handleBuy handles POST /api/market/{id}/buy
func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	caller, ok := s.readSigned(w, r, &req)
	if !ok {
		return
	}

	side, err := market.ParseOutcome(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, "side must be 'YES' or 'NO'")
		return
	}
	mkt, err := s.engine.Market(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	intent, err := buyIntent(mkt, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	fill, err := s.engine.Buy(mkt.ID, caller, side, intent)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fill)
}

// handleGetFills handles GET /api/market/{id}/fills
func (s *Server) handleGetFills(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("id")
	if _, err := s.engine.Market(marketID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Fills(marketID, queryLimit(r, 100)))
}
