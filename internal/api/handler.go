package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"amm-backend/internal/config"
	"amm-backend/internal/engine"
	"amm-backend/internal/market"
	"amm-backend/internal/store"
)

// Server holds all dependencies for the HTTP server
type Server struct {
	cfg      *config.Config
	engine   *engine.Engine
	journal  store.Journal
	wsHub    *Hub
	limiters *limiterSet
	nonces   *nonceGuard
	now      func() time.Time
}

// NewServer creates a new API server and subscribes its websocket hub to
// engine events.
func NewServer(cfg *config.Config, eng *engine.Engine, journal store.Journal) *Server {
	s := &Server{
		cfg:      cfg,
		engine:   eng,
		journal:  journal,
		wsHub:    NewHub(),
		limiters: newLimiterSet(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		nonces:   newNonceGuard(cfg.SignatureMaxAge),
		now:      time.Now,
	}
	eng.Subscribe(func(ev engine.Event) {
		s.wsHub.Broadcast(Message{
			Type:     string(ev.Type),
			MarketID: ev.MarketID,
			Data:     ev,
		})
	})
	return s
}

// Hub returns the websocket hub; its Run loop must be started by the caller.
func (s *Server) Hub() *Hub {
	return s.wsHub
}

// RegisterRoutes registers all HTTP routes
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /api/health", s.handleHealth)

	// Market endpoints
	mux.HandleFunc("POST /api/market", s.handleCreateMarket)
	mux.HandleFunc("GET /api/markets", s.handleListMarkets)
	mux.HandleFunc("GET /api/market/{id}", s.handleGetMarket)
	mux.HandleFunc("POST /api/market/{id}/active", s.handleSetActive)
	mux.HandleFunc("POST /api/market/{id}/resolve", s.handleResolveMarket)
	mux.HandleFunc("GET /api/market/{id}/events", s.handleListEvents)

	// Liquidity endpoints
	mux.HandleFunc("POST /api/market/{id}/liquidity", s.handleDeposit)
	mux.HandleFunc("POST /api/market/{id}/liquidity/withdraw", s.handleWithdraw)

	// Trading endpoints
	mux.HandleFunc("GET /api/market/{id}/quote", s.handleQuote)
	mux.HandleFunc("POST /api/market/{id}/buy", s.handleBuy)
	mux.HandleFunc("GET /api/market/{id}/fills", s.handleGetFills)

	// Settlement and accounts
	mux.HandleFunc("POST /api/market/{id}/claim", s.handleClaim)
	mux.HandleFunc("GET /api/position/{address}", s.handleGetPosition)
	mux.HandleFunc("POST /api/faucet", s.handleFaucet)

	// WebSocket endpoint
	mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// Handler returns the routed handler wrapped in logging, rate limiting and
// CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", headerSigner, headerSignature, headerTimestamp, headerNonce},
	})
	return c.Handler(s.logRequests(s.rateLimit(mux)))
}

// handleHealth is the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"markets":    len(s.engine.Markets().List()),
		"ws_clients": s.wsHub.ClientCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeEngineError maps an engine error onto a status code and returns its
// message verbatim.
func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, errStatus(err), err.Error())
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, market.ErrMarketNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrUnauthorized),
		errors.Is(err, market.ErrOracleNotMatched):
		return http.StatusForbidden
	case errors.Is(err, market.ErrAlreadyResolved),
		errors.Is(err, market.ErrAlreadyClaimed),
		errors.Is(err, market.ErrMarketResolved),
		errors.Is(err, market.ErrMarketNotActive),
		errors.Is(err, market.ErrMarketExpired),
		errors.Is(err, market.ErrMarketNotExpired),
		errors.Is(err, market.ErrMarketNotResolved):
		return http.StatusConflict
	case errors.Is(err, market.ErrOverflow),
		errors.Is(err, market.ErrUnderflow),
		errors.Is(err, market.ErrDivisionByZero),
		errors.Is(err, market.ErrInvalidCalculation):
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Debug("request")
	})
}

// rateLimit throttles mutating requests per client IP.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && !s.limiters.get(clientIP(r)).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type limiterSet struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &limiterSet{limit: limit, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (l *limiterSet) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
