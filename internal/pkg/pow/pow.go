/*
Package pow gates WebSocket upgrades behind an optional proof-of-work challenge.

A client fetches a nonce, searches for a counter such that
hex(sha256(nonce + counter)) starts with difficulty zeros, and trades the proof for a
short-lived, single-use token that it presents when upgrading. A difficulty of zero
disables the gate.
*/
package pow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"chatrelay/internal/pkg/randx"
)

const (
	// TokenHeaderKey carries the proof token on the upgrade request.
	TokenHeaderKey = "X-PoW-Token"

	// TokenQueryKey is the query parameter fallback for browsers, which cannot set
	// headers on WebSocket requests.
	TokenQueryKey = "pow_token"

	// ProofTokenDuration is how long an issued token stays valid.
	ProofTokenDuration = 30 * time.Second

	// NonceExpiryDuration is how long a challenge nonce stays valid.
	NonceExpiryDuration = 5 * time.Minute

	// MaxDifficulty bounds the leading zero count a server may demand.
	MaxDifficulty = 8
)

// Validation failures returned by ValidateProof.
var (
	ErrNonceInvalid      = errors.New("nonce expired or unknown")
	ErrProofInsufficient = errors.New("proof does not meet difficulty")
)

// Manager tracks outstanding nonces and issued tokens.
type Manager struct {
	difficulty int
	now        func() time.Time

	mu     sync.Mutex
	nonces map[string]time.Time
	tokens map[string]time.Time
}

// NewManager returns a Manager for the given difficulty. Expired entries are
// purged every minute until ctx is done.
func NewManager(ctx context.Context, difficulty int) *Manager {
	m := &Manager{
		difficulty: difficulty,
		now:        time.Now,
		nonces:     make(map[string]time.Time),
		tokens:     make(map[string]time.Time),
	}

	go m.purgeLoop(ctx)

	return m
}

// Enabled reports whether upgrades require a proof token.
func (m *Manager) Enabled() bool {
	return m != nil && m.difficulty > 0
}

// Difficulty returns the required number of leading hex zeros.
func (m *Manager) Difficulty() int {
	return m.difficulty
}

// GenerateNonce issues a fresh challenge.
func (m *Manager) GenerateNonce() string {
	nonce := randx.Token()

	m.mu.Lock()
	m.nonces[nonce] = m.now().Add(NonceExpiryDuration)
	m.mu.Unlock()

	return nonce
}

// ValidateProof checks counter against nonce. On success the nonce is consumed and
// a proof token is returned.
func (m *Manager) ValidateProof(nonce, counter string) (string, error) {
	if !Satisfies(nonce, counter, m.difficulty) {
		return "", ErrProofInsufficient
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.nonces[nonce]
	if !ok || m.now().After(expiry) {
		return "", ErrNonceInvalid
	}
	delete(m.nonces, nonce)

	token := randx.Token()
	m.tokens[token] = m.now().Add(ProofTokenDuration)
	return token, nil
}

// ConsumeToken reports whether r carries a valid token and invalidates it.
func (m *Manager) ConsumeToken(r *http.Request) bool {
	token := r.Header.Get(TokenHeaderKey)
	if token == "" {
		token = r.URL.Query().Get(TokenQueryKey)
	}
	if token == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.tokens[token]
	if !ok {
		return false
	}
	delete(m.tokens, token)
	return !m.now().After(expiry)
}

// Satisfies reports whether sha256(nonce + counter) has difficulty leading hex zeros.
func Satisfies(nonce, counter string, difficulty int) bool {
	sum := sha256.Sum256([]byte(nonce + counter))
	return strings.HasPrefix(hex.EncodeToString(sum[:]), strings.Repeat("0", difficulty))
}

func (m *Manager) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.purge()
		}
	}
}

func (m *Manager) purge() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, exp := range m.nonces {
		if now.After(exp) {
			delete(m.nonces, k)
		}
	}
	for k, exp := range m.tokens {
		if now.After(exp) {
			delete(m.tokens, k)
		}
	}
}
