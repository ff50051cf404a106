package core

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

type testOAuthProvider struct {
	id         string
	configured bool
	tools      []ToolDefinition

	authURLFn  func(ctx context.Context, req AuthURLRequest) (string, error)
	exchangeFn func(ctx context.Context, req ExchangeRequest) (ExchangeResult, error)
	refreshFn  func(ctx context.Context, cred ActiveCredential) (RefreshResult, error)
	executeFn  func(ctx context.Context, name string, params map[string]any, cred ActiveCredential) ToolInvocationResult

	mu           sync.Mutex
	exchangeHits int
	refreshHits  int
}

func newTestOAuthProvider(id string) *testOAuthProvider {
	return &testOAuthProvider{id: id, configured: true}
}

func (p *testOAuthProvider) ID() string                { return p.id }
func (p *testOAuthProvider) DisplayName() string       { return strings.ToTitle(p.id) }
func (p *testOAuthProvider) Category() string          { return "testing" }
func (p *testOAuthProvider) AuthKind() AuthKind        { return AuthKindOAuth2 }
func (p *testOAuthProvider) RequiredSecrets() []string { return nil }
func (p *testOAuthProvider) IsConfigured() bool        { return p.configured }

func (p *testOAuthProvider) Initialize(context.Context) error { return nil }

func (p *testOAuthProvider) Tools() []ToolDefinition {
	out := make([]ToolDefinition, 0, len(p.tools))
	for _, tool := range p.tools {
		tool.ProviderID = p.id
		out = append(out, tool)
	}
	return out
}

func (p *testOAuthProvider) AuthURL(ctx context.Context, req AuthURLRequest) (string, error) {
	if p.authURLFn != nil {
		return p.authURLFn(ctx, req)
	}
	return "https://auth.example.test/authorize?state=" + req.State, nil
}

func (p *testOAuthProvider) ExchangeCode(ctx context.Context, req ExchangeRequest) (ExchangeResult, error) {
	p.mu.Lock()
	p.exchangeHits++
	p.mu.Unlock()
	if p.exchangeFn != nil {
		return p.exchangeFn(ctx, req)
	}
	expires := time.Now().UTC().Add(time.Hour)
	return ExchangeResult{
		AccessToken:  "access-" + req.Code,
		RefreshToken: "refresh-" + req.Code,
		ExpiresAt:    &expires,
		Account:      AccountInfo{Label: "user@example.test"},
	}, nil
}

func (p *testOAuthProvider) Refresh(ctx context.Context, cred ActiveCredential) (RefreshResult, error) {
	p.mu.Lock()
	p.refreshHits++
	p.mu.Unlock()
	if p.refreshFn != nil {
		return p.refreshFn(ctx, cred)
	}
	expires := time.Now().UTC().Add(time.Hour)
	return RefreshResult{AccessToken: "refreshed-token", ExpiresAt: &expires}, nil
}

func (p *testOAuthProvider) ExecuteTool(ctx context.Context, name string, params map[string]any, cred ActiveCredential) ToolInvocationResult {
	if p.executeFn != nil {
		return p.executeFn(ctx, name, params, cred)
	}
	for _, tool := range p.tools {
		if tool.Name == name {
			return SuccessResult(map[string]any{"tool": name})
		}
	}
	return FailureResult(IntegrationErrorBadInput, fmt.Sprintf("Unknown tool: %s", name))
}

func (p *testOAuthProvider) refreshCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshHits
}

func (p *testOAuthProvider) exchangeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchangeHits
}

type testAPIKeyProvider struct {
	testOAuthProvider
	verifyFn func(ctx context.Context, key string) (AccountInfo, error)
}

func newTestAPIKeyProvider(id string) *testAPIKeyProvider {
	return &testAPIKeyProvider{testOAuthProvider: testOAuthProvider{id: id, configured: true}}
}

func (p *testAPIKeyProvider) AuthKind() AuthKind { return AuthKindAPIKey }

func (p *testAPIKeyProvider) VerifyKey(ctx context.Context, key string) (AccountInfo, error) {
	if p.verifyFn != nil {
		return p.verifyFn(ctx, key)
	}
	if strings.TrimSpace(key) == "" {
		return AccountInfo{}, fmt.Errorf("api key is required")
	}
	return AccountInfo{Label: "workspace"}, nil
}

type testSecretProvider struct{}

func (testSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("test secret provider: plaintext is required")
	}
	encoded := base64.StdEncoding.EncodeToString(plaintext)
	return []byte("enc:" + encoded), nil
}

func (testSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	value := strings.TrimSpace(string(ciphertext))
	if value == "" || !strings.HasPrefix(value, "enc:") {
		return nil, fmt.Errorf("test secret provider: invalid ciphertext")
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, "enc:"))
	if err != nil {
		return nil, fmt.Errorf("test secret provider: decode ciphertext: %w", err)
	}
	return decoded, nil
}

type memoryCredentialStore struct {
	mu              sync.Mutex
	next            int
	byID            map[string]Credential
	findActiveCalls int
	upsertCalls     int
}

func newMemoryCredentialStore() *memoryCredentialStore {
	return &memoryCredentialStore{byID: map[string]Credential{}}
}

func (s *memoryCredentialStore) FindActive(_ context.Context, tenantID string, providerID string) ([]Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findActiveCalls++
	out := make([]Credential, 0)
	for _, credential := range s.byID {
		if credential.TenantID == tenantID && credential.ProviderID == providerID && credential.IsActive {
			out = append(out, credential)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memoryCredentialStore) Get(_ context.Context, tenantID string, credentialID string) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	credential, ok := s.byID[credentialID]
	if !ok || credential.TenantID != tenantID {
		return Credential{}, fmt.Errorf("%w: %s", ErrCredentialNotFound, credentialID)
	}
	return credential, nil
}

func (s *memoryCredentialStore) Upsert(_ context.Context, in UpsertCredentialInput) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	now := time.Now().UTC()

	for id, existing := range s.byID {
		if existing.TenantID == in.TenantID && existing.ProviderID == in.ProviderID &&
			existing.AccountLabel == in.AccountLabel && existing.IsActive {
			existing.EncryptedPayload = append([]byte(nil), in.EncryptedPayload...)
			existing.ExpiresAt = in.ExpiresAt
			existing.HasRefreshToken = in.HasRefreshToken
			existing.Metadata = in.Metadata
			existing.LastRefreshError = ""
			existing.UpdatedAt = now
			s.byID[id] = existing
			return existing, nil
		}
	}

	isPrimary := true
	for _, existing := range s.byID {
		if existing.TenantID == in.TenantID && existing.ProviderID == in.ProviderID && existing.IsActive {
			isPrimary = false
			break
		}
	}

	s.next++
	credential := Credential{
		ID:               fmt.Sprintf("cred_%d", s.next),
		TenantID:         in.TenantID,
		ProviderID:       in.ProviderID,
		AccountLabel:     in.AccountLabel,
		EncryptedPayload: append([]byte(nil), in.EncryptedPayload...),
		ExpiresAt:        in.ExpiresAt,
		HasRefreshToken:  in.HasRefreshToken,
		Metadata:         in.Metadata,
		IsActive:         true,
		IsPrimary:        isPrimary,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.byID[credential.ID] = credential
	return credential, nil
}

func (s *memoryCredentialStore) UpdateToken(_ context.Context, in UpdateTokenInput) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	credential, ok := s.byID[in.CredentialID]
	if !ok || credential.TenantID != in.TenantID || !credential.IsActive {
		return Credential{}, fmt.Errorf("%w: %s", ErrCredentialNotFound, in.CredentialID)
	}
	credential.EncryptedPayload = append([]byte(nil), in.EncryptedPayload...)
	credential.ExpiresAt = in.ExpiresAt
	credential.HasRefreshToken = in.HasRefreshToken
	credential.LastRefreshError = in.LastRefreshError
	credential.UpdatedAt = time.Now().UTC()
	s.byID[in.CredentialID] = credential
	return credential, nil
}

func (s *memoryCredentialStore) Deactivate(_ context.Context, tenantID string, credentialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	credential, ok := s.byID[credentialID]
	if !ok || credential.TenantID != tenantID {
		return fmt.Errorf("%w: %s", ErrCredentialNotFound, credentialID)
	}
	wasPrimary := credential.IsPrimary
	credential.IsActive = false
	credential.IsPrimary = false
	credential.UpdatedAt = time.Now().UTC()
	s.byID[credentialID] = credential

	if !wasPrimary {
		return nil
	}
	var oldest *Credential
	for id := range s.byID {
		sibling := s.byID[id]
		if sibling.TenantID != credential.TenantID || sibling.ProviderID != credential.ProviderID || !sibling.IsActive {
			continue
		}
		if oldest == nil || sibling.CreatedAt.Before(oldest.CreatedAt) {
			copy := sibling
			oldest = &copy
		}
	}
	if oldest != nil {
		oldest.IsPrimary = true
		s.byID[oldest.ID] = *oldest
	}
	return nil
}

func (s *memoryCredentialStore) MarkPrimary(_ context.Context, tenantID string, credentialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.byID[credentialID]
	if !ok || target.TenantID != tenantID || !target.IsActive {
		return fmt.Errorf("%w: %s", ErrCredentialNotFound, credentialID)
	}
	for id, sibling := range s.byID {
		if sibling.TenantID == target.TenantID && sibling.ProviderID == target.ProviderID && sibling.IsActive {
			sibling.IsPrimary = id == credentialID
			s.byID[id] = sibling
		}
	}
	return nil
}

func (s *memoryCredentialStore) FindExpiring(_ context.Context, within time.Duration, limit int) ([]Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(within)
	out := make([]Credential, 0)
	for _, credential := range s.byID {
		if !credential.IsActive || !credential.HasRefreshToken || credential.ExpiresAt == nil {
			continue
		}
		if credential.ExpiresAt.Before(cutoff) {
			out = append(out, credential)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiresAt.Before(*out[j].ExpiresAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryCredentialStore) stats() (findActive int, upserts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findActiveCalls, s.upsertCalls
}

func (s *memoryCredentialStore) seed(credential Credential) Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	if credential.ID == "" {
		s.next++
		credential.ID = fmt.Sprintf("cred_%d", s.next)
	}
	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = time.Now().UTC()
	}
	if credential.UpdatedAt.IsZero() {
		credential.UpdatedAt = credential.CreatedAt
	}
	s.byID[credential.ID] = credential
	return credential
}

type memoryTenantStore struct {
	mu   sync.Mutex
	next int
	byID map[string]Tenant
}

func newMemoryTenantStore() *memoryTenantStore {
	return &memoryTenantStore{byID: map[string]Tenant{}}
}

func (s *memoryTenantStore) FindOrCreate(_ context.Context, idOrSlug string, name string) (Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trimmed := strings.TrimSpace(idOrSlug)
	if trimmed == "" {
		return Tenant{}, fmt.Errorf("tenant id or slug is required")
	}
	for _, tenant := range s.byID {
		if tenant.ID == trimmed || tenant.Slug == trimmed {
			return tenant, nil
		}
	}
	s.next++
	now := time.Now().UTC()
	tenant := Tenant{
		ID:        fmt.Sprintf("tnt_%d", s.next),
		Slug:      trimmed,
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byID[tenant.ID] = tenant
	return tenant, nil
}

func (s *memoryTenantStore) Get(_ context.Context, id string) (Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trimmed := strings.TrimSpace(id)
	for _, tenant := range s.byID {
		if tenant.ID == trimmed || tenant.Slug == trimmed {
			return tenant, nil
		}
	}
	return Tenant{}, fmt.Errorf("%w: %s", ErrTenantNotFound, id)
}

type testEnv struct {
	service     *Service
	registry    Registry
	credentials *memoryCredentialStore
	tenants     *memoryTenantStore
}

func newTestService(t *testing.T, providers []Provider, opts ...Option) *testEnv {
	t.Helper()

	registry := NewProviderRegistry()
	for _, provider := range providers {
		if err := registry.Register(provider); err != nil {
			t.Fatalf("register provider %q: %v", provider.ID(), err)
		}
	}

	credentials := newMemoryCredentialStore()
	tenants := newMemoryTenantStore()

	cfg := DefaultConfig()
	cfg.CallbackBaseURL = "https://app.example.test"
	cfg.Security.FallbackSecret = "test-state-secret"

	allOpts := append([]Option{
		WithRegistry(registry),
		WithCredentialStore(credentials),
		WithTenantStore(tenants),
		WithSecretProvider(testSecretProvider{}),
	}, opts...)

	service, err := NewService(cfg, allOpts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &testEnv{
		service:     service,
		registry:    registry,
		credentials: credentials,
		tenants:     tenants,
	}
}

func ptrTime(value time.Time) *time.Time {
	return &value
}

func sealedPayload(t *testing.T, payload credentialPayload) []byte {
	t.Helper()
	raw, err := payload.marshal()
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	sealed, err := testSecretProvider{}.Encrypt(context.Background(), raw)
	if err != nil {
		t.Fatalf("seal payload: %v", err)
	}
	return sealed
}
