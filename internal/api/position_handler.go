package api

import (
	"net/http"

	"amm-backend/internal/engine"
	"amm-backend/internal/fixedpoint"
	"amm-backend/internal/identity"
)

// handleGetPosition handles GET /api/position/{address}
func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("address")
	if addr, err := identity.NormalizeAddress(account); err == nil {
		account = addr
	}

	response := map[string]interface{}{
		"address": account,
		"balance": s.engine.Balance(account),
	}

	// If market_id specified, get position for that market
	if marketID := r.URL.Query().Get("market_id"); marketID != "" {
		pos, err := s.engine.Position(account, marketID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		response["positions"] = []*engine.Position{pos}
	} else {
		response["positions"] = s.engine.Positions(account)
	}

	writeJSON(w, http.StatusOK, response)
}

// ClaimRequest has no fields; the body only carries the signature payload.
type ClaimRequest struct{}

// handleClaim handles POST /api/market/{id}/claim
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	caller, ok := s.readSigned(w, r, &req)
	if !ok {
		return
	}

	res, err := s.engine.Claim(r.PathValue("id"), caller)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleFaucet handles POST /api/faucet
func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.EnableFaucet {
		writeError(w, http.StatusNotFound, "faucet disabled")
		return
	}

	var req struct{}
	caller, ok := s.readSigned(w, r, &req)
	if !ok {
		return
	}

	amount, err := fixedpoint.ToBaseUnits(s.cfg.FaucetAmount, s.cfg.Defaults.CurrencyScale)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	balance, err := s.engine.Faucet(caller, amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address":  caller,
		"credited": amount,
		"balance":  balance,
	})
}
