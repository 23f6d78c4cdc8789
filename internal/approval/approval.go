// Package approval tracks human-in-the-loop approval tokens: every previewed
// query receives one, and execution requires presenting it. Tokens are
// single-use, fingerprinted to the exact query text, and expire after a
// fixed TTL.
package approval

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultTokenExpiry matches the reference implementation's 5 minute window.
const DefaultTokenExpiry = 5 * time.Minute

type record struct {
	queryHash   string
	issuedAt    time.Time
	queryPreview string
}

// Tracker issues and verifies approval tokens. Zero value is not usable;
// construct with New.
type Tracker struct {
	mu      sync.Mutex
	expiry  time.Duration
	tokens  map[string]record
	nowFunc func() time.Time
}

// New constructs a Tracker with the given token TTL. A zero ttl selects
// DefaultTokenExpiry.
func New(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTokenExpiry
	}
	return &Tracker{
		expiry:  ttl,
		tokens:  make(map[string]record),
		nowFunc: time.Now,
	}
}

// fingerprint normalizes whitespace and case so token reuse is robust to
// formatting differences that don't change query semantics.
func fingerprint(query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// GenerateToken issues a new single-use token bound to query. It also sweeps
// expired tokens so the map never grows unbounded under steady load.
func (t *Tracker) GenerateToken(query string) (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate approval token: %w", err)
	}
	token := hex.EncodeToString(raw)

	preview := query
	if len(preview) > 100 {
		preview = preview[:100]
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanupExpiredLocked()
	t.tokens[token] = record{
		queryHash:    fingerprint(query),
		issuedAt:     t.nowFunc(),
		queryPreview: preview,
	}
	return token, nil
}

// Verify checks that token was issued for query, is unexpired, and has not
// already been consumed. On success the token is deleted (single-use).
func (t *Tracker) Verify(query, token string) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanupExpiredLocked()

	if token == "" {
		return false, "Approval token is missing"
	}

	rec, ok := t.tokens[token]
	if !ok {
		return false, "Approval token not found or already used"
	}
	if t.nowFunc().Sub(rec.issuedAt) > t.expiry {
		delete(t.tokens, token)
		return false, "Approval token has expired"
	}
	if rec.queryHash != fingerprint(query) {
		return false, "Approval token does not match the submitted query"
	}
	delete(t.tokens, token)
	return true, ""
}

// cleanupExpiredLocked removes expired records. Callers must hold t.mu.
func (t *Tracker) cleanupExpiredLocked() {
	now := t.nowFunc()
	for tok, rec := range t.tokens {
		if now.Sub(rec.issuedAt) > t.expiry {
			delete(t.tokens, tok)
		}
	}
}

// Pending reports how many unexpired tokens are outstanding. Used by
// diagnostics/health reporting.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanupExpiredLocked()
	return len(t.tokens)
}
