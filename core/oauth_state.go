package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	// DefaultStateTTL bounds replay risk on the callback correlation token.
	DefaultStateTTL = 10 * time.Minute

	stateIssuer          = "go-integrations"
	stateClaimTenantID   = "tenant_id"
	stateClaimProviderID = "provider_id"

	defaultNonceStoreMaxEntries = 4096
)

// SignedStateCodec mints HS256-signed callback state tokens. The signature
// binds (tenant, provider, nonce) so a forged callback cannot attribute a
// stolen authorization code to an arbitrary tenant.
type SignedStateCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewSignedStateCodec(key []byte, ttl time.Duration) (*SignedStateCodec, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("core: state signing key is required")
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &SignedStateCodec{
		key: append([]byte(nil), key...),
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (c *SignedStateCodec) TTL() time.Duration {
	if c == nil {
		return DefaultStateTTL
	}
	return c.ttl
}

func (c *SignedStateCodec) Encode(claims StateClaims) (string, error) {
	if c == nil {
		return "", fmt.Errorf("core: state codec is not configured")
	}
	tenantID := strings.TrimSpace(claims.TenantID)
	if tenantID == "" {
		return "", fmt.Errorf("core: tenant id is required for state encoding")
	}
	providerID := strings.TrimSpace(claims.ProviderID)
	if providerID == "" {
		return "", fmt.Errorf("core: provider id is required for state encoding")
	}
	nonce := strings.TrimSpace(claims.Nonce)
	if nonce == "" {
		generated, err := GenerateNonce()
		if err != nil {
			return "", err
		}
		nonce = generated
	}
	expiresAt := claims.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = c.now().Add(c.ttl)
	}

	token, err := jwt.NewBuilder().
		Issuer(stateIssuer).
		JwtID(nonce).
		IssuedAt(c.now()).
		Expiration(expiresAt).
		Claim(stateClaimTenantID, tenantID).
		Claim(stateClaimProviderID, providerID).
		Build()
	if err != nil {
		return "", fmt.Errorf("core: build state token: %w", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, c.key))
	if err != nil {
		return "", fmt.Errorf("core: sign state token: %w", err)
	}
	return string(signed), nil
}

func (c *SignedStateCodec) Decode(raw string) (StateClaims, error) {
	if c == nil {
		return StateClaims{}, fmt.Errorf("core: state codec is not configured")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return StateClaims{}, NewCallbackStateError("state token is empty")
	}

	token, err := jwt.Parse(
		[]byte(raw),
		jwt.WithKey(jwa.HS256, c.key),
		jwt.WithIssuer(stateIssuer),
		jwt.WithValidate(true),
	)
	if err != nil {
		return StateClaims{}, NewCallbackStateError(err.Error())
	}

	claims := StateClaims{
		Nonce:     token.JwtID(),
		ExpiresAt: token.Expiration(),
	}
	if value, ok := token.Get(stateClaimTenantID); ok {
		claims.TenantID, _ = value.(string)
	}
	if value, ok := token.Get(stateClaimProviderID); ok {
		claims.ProviderID, _ = value.(string)
	}
	if strings.TrimSpace(claims.TenantID) == "" || strings.TrimSpace(claims.ProviderID) == "" {
		return StateClaims{}, NewCallbackStateError("state token is missing tenant or provider")
	}
	if strings.TrimSpace(claims.Nonce) == "" {
		return StateClaims{}, NewCallbackStateError("state token is missing nonce")
	}
	return claims, nil
}

func GenerateNonce() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// MemoryNonceStore tracks consumed nonces in process. Save prunes expired
// entries and evicts oldest-first past the cap so an abandoned redirect storm
// cannot grow the map without bound.
type MemoryNonceStore struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]time.Time
	order      []string
	now        func() time.Time
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return NewMemoryNonceStoreWithLimits(defaultNonceStoreMaxEntries)
}

func NewMemoryNonceStoreWithLimits(maxEntries int) *MemoryNonceStore {
	if maxEntries <= 0 {
		maxEntries = defaultNonceStoreMaxEntries
	}
	return &MemoryNonceStore{
		maxEntries: maxEntries,
		entries:    map[string]time.Time{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryNonceStore) Save(_ context.Context, nonce string, expiresAt time.Time) error {
	if s == nil {
		return fmt.Errorf("core: nonce store is not configured")
	}
	nonce = strings.TrimSpace(nonce)
	if nonce == "" {
		return fmt.Errorf("core: nonce is required")
	}
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(DefaultStateTTL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	if _, exists := s.entries[nonce]; exists {
		return fmt.Errorf("core: nonce already issued")
	}
	for len(s.entries) >= s.maxEntries && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
	s.entries[nonce] = expiresAt
	s.order = append(s.order, nonce)
	return nil
}

func (s *MemoryNonceStore) Consume(_ context.Context, nonce string) error {
	if s == nil {
		return fmt.Errorf("core: nonce store is not configured")
	}
	nonce = strings.TrimSpace(nonce)
	if nonce == "" {
		return NewCallbackStateError("nonce is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.entries[nonce]
	if !ok {
		return NewCallbackStateError("nonce not found or already used")
	}
	delete(s.entries, nonce)
	if s.now().After(expiresAt) {
		return NewCallbackStateError("nonce expired")
	}
	return nil
}

func (s *MemoryNonceStore) pruneLocked() {
	now := s.now()
	kept := s.order[:0]
	for _, nonce := range s.order {
		expiresAt, ok := s.entries[nonce]
		if !ok {
			continue
		}
		if now.After(expiresAt) {
			delete(s.entries, nonce)
			continue
		}
		kept = append(kept, nonce)
	}
	s.order = kept
}
