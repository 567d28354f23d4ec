package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"amm-backend/internal/identity"
)

const (
	headerSigner    = "X-Signer-Address"
	headerSignature = "X-Signature"
	headerTimestamp = "X-Signature-Timestamp"
	headerNonce     = "X-Signature-Nonce"

	maxBodyBytes = 1 << 20
	maxNonceLen  = 128

	defaultSignatureMaxAge = 5 * time.Minute
)

var (
	errMissingSigner = errors.New("missing " + headerSigner + " header")
	errStaleRequest  = errors.New("request timestamp outside the accepted window")
	errReplayed      = errors.New("request nonce already used")
)

// SigningMessage is the message a client signs with EIP-191 for a mutating
// request: method and path, the unix timestamp and nonce headers, then the
// raw body.
func SigningMessage(method, path, timestamp, nonce string, body []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s\n%s\n%s\n", method, path, timestamp, nonce)
	b.Write(body)
	return b.Bytes()
}

// nonceGuard remembers (signer, nonce) pairs until their timestamp leaves
// the accepted window.
type nonceGuard struct {
	maxAge time.Duration
	seen   *cache.Cache
}

func newNonceGuard(maxAge time.Duration) *nonceGuard {
	if maxAge <= 0 {
		maxAge = defaultSignatureMaxAge
	}
	return &nonceGuard{maxAge: maxAge, seen: cache.New(maxAge, 2*maxAge)}
}

// fresh reports whether a request stamped at is inside the window at now.
func (g *nonceGuard) fresh(at, now time.Time) bool {
	skew := now.Sub(at)
	return skew <= g.maxAge && skew >= -g.maxAge
}

// use records the nonce for signer and reports whether it was unused.
func (g *nonceGuard) use(signer, nonce string, at, now time.Time) bool {
	// Kept until the timestamp itself would be rejected as stale.
	ttl := at.Add(g.maxAge).Sub(now)
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	return g.seen.Add(signer+"|"+nonce, struct{}{}, ttl) == nil
}

// readSigned reads the request body, authenticates the caller against it
// and decodes it into v. An empty body decodes as {}.
func (s *Server) readSigned(w http.ResponseWriter, r *http.Request, v interface{}) (string, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return "", false
	}

	caller, err := s.authenticate(r, body)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return "", false
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	if err := validateRequest(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return caller, true
}

// authenticate returns the caller identity. With signatures required the
// X-Signature header must be an EIP-191 signature of SigningMessage by the
// address in X-Signer-Address, stamped inside the accepted window with a
// nonce the signer has not used before. Otherwise the header is trusted as
// given.
func (s *Server) authenticate(r *http.Request, body []byte) (string, error) {
	claimed := strings.TrimSpace(r.Header.Get(headerSigner))
	if claimed == "" {
		return "", errMissingSigner
	}
	if !s.cfg.RequireSignatures {
		if addr, err := identity.NormalizeAddress(claimed); err == nil {
			return addr, nil
		}
		return claimed, nil
	}

	sig := r.Header.Get(headerSignature)
	if sig == "" {
		return "", fmt.Errorf("missing %s header", headerSignature)
	}
	timestamp := r.Header.Get(headerTimestamp)
	sec, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid %s header", headerTimestamp)
	}
	nonce := r.Header.Get(headerNonce)
	if nonce == "" || len(nonce) > maxNonceLen {
		return "", fmt.Errorf("invalid %s header", headerNonce)
	}

	now := s.now()
	at := time.Unix(sec, 0)
	if !s.nonces.fresh(at, now) {
		return "", errStaleRequest
	}

	caller, err := identity.Authenticate(SigningMessage(r.Method, r.URL.Path, timestamp, nonce, body), claimed, sig)
	if err != nil {
		return "", err
	}
	if !s.nonces.use(caller, nonce, at, now) {
		return "", errReplayed
	}
	return caller, nil
}
