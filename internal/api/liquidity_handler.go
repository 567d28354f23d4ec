package api

import (
	"net/http"

	"amm-backend/internal/fixedpoint"
)

// LiquidityRequest carries a whole-unit amount: currency for a deposit, LP
// units for a withdrawal.
type LiquidityRequest struct {
	Amount uint64 `json:"amount" validate:"gt=0"`
}

// handleDeposit handles POST /api/market/{id}/liquidity
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req LiquidityRequest
	caller, ok := s.readSigned(w, r, &req)
	if !ok {
		return
	}

	mkt, err := s.engine.Market(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	amount, err := fixedpoint.ToBaseUnits(req.Amount, mkt.CurrencyScale)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	res, err := s.engine.Deposit(mkt.ID, caller, amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleWithdraw handles POST /api/market/{id}/liquidity/withdraw
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req LiquidityRequest
	caller, ok := s.readSigned(w, r, &req)
	if !ok {
		return
	}

	mkt, err := s.engine.Market(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	// LP units are minted 1:1 with deposited base units.
	units, err := fixedpoint.ToBaseUnits(req.Amount, mkt.CurrencyScale)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	res, err := s.engine.Withdraw(mkt.ID, caller, units)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
