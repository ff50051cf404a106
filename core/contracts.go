package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Provider is the capability surface every integration implements. One
// instance per identifier, registered exactly once at process start.
//
// IsConfigured is a pure function of process configuration: all
// RequiredSecrets present. It is checked before any auth flow starts.
//
// ExecuteTool performs the actual provider call. It must never panic past its
// boundary and always returns a ToolInvocationResult value; the dispatch
// gateway additionally converts a stray panic into a failed result.
type Provider interface {
	ID() string
	DisplayName() string
	Category() string
	AuthKind() AuthKind
	RequiredSecrets() []string
	IsConfigured() bool
	Initialize(ctx context.Context) error
	Tools() []ToolDefinition
	ExecuteTool(ctx context.Context, name string, params map[string]any, cred ActiveCredential) ToolInvocationResult
}

// OAuthProvider is implemented by oauth2-kind providers, discovered by type
// assertion at registry-lookup time.
type OAuthProvider interface {
	Provider
	AuthURL(ctx context.Context, req AuthURLRequest) (string, error)
	ExchangeCode(ctx context.Context, req ExchangeRequest) (ExchangeResult, error)
	Refresh(ctx context.Context, cred ActiveCredential) (RefreshResult, error)
}

// APIKeyProvider is implemented by api_key-kind providers. VerifyKey makes a
// cheap provider call to validate the key before it is stored.
type APIKeyProvider interface {
	Provider
	VerifyKey(ctx context.Context, key string) (AccountInfo, error)
}

type AuthURLRequest struct {
	TenantID    string
	State       string
	RedirectURI string
	Scopes      []string
}

type ExchangeRequest struct {
	TenantID    string
	Code        string
	RedirectURI string
}

// AccountInfo identifies the connected account on the provider side. Label
// becomes the credential's account label; it defaults to empty when the
// provider supplies none.
type AccountInfo struct {
	Label    string
	Metadata map[string]any
}

type ExchangeResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	Account      AccountInfo
}

type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// Registry is the process-wide provider catalog: write-once during startup,
// read-many afterwards. List returns descriptors in registration order.
type Registry interface {
	Register(provider Provider) error
	Get(providerID string) (Provider, bool)
	List() []Provider
}

type UpsertCredentialInput struct {
	TenantID         string
	ProviderID       string
	AccountLabel     string
	EncryptedPayload []byte
	ExpiresAt        *time.Time
	HasRefreshToken  bool
	Metadata         map[string]any
}

type UpdateTokenInput struct {
	TenantID         string
	CredentialID     string
	EncryptedPayload []byte
	ExpiresAt        *time.Time
	HasRefreshToken  bool
	LastRefreshError string
}

// CredentialStore is CRUD over encrypted credential records. Every predicate
// includes the tenant id so cross-tenant reads are structurally impossible.
type CredentialStore interface {
	// FindActive returns active credentials for the pair ordered
	// primary-first then oldest-first.
	FindActive(ctx context.Context, tenantID string, providerID string) ([]Credential, error)
	Get(ctx context.Context, tenantID string, credentialID string) (Credential, error)
	// Upsert updates a record matching the (tenant, provider, account)
	// composite key in place, or inserts one, marking it primary iff it is
	// the first active credential for the pair.
	Upsert(ctx context.Context, in UpsertCredentialInput) (Credential, error)
	// UpdateToken persists rotated token material after a refresh.
	UpdateToken(ctx context.Context, in UpdateTokenInput) (Credential, error)
	// Deactivate soft-deletes and, inside the same transaction, promotes the
	// next-oldest active sibling when the primary went away.
	Deactivate(ctx context.Context, tenantID string, credentialID string) error
	// MarkPrimary clears IsPrimary on all active siblings and sets it on the
	// target atomically.
	MarkPrimary(ctx context.Context, tenantID string, credentialID string) error
	// FindExpiring lists active refreshable credentials expiring within the
	// window, for the background sweep.
	FindExpiring(ctx context.Context, within time.Duration, limit int) ([]Credential, error)
}

// TenantStore resolves tenants lazily by id or slug.
type TenantStore interface {
	FindOrCreate(ctx context.Context, idOrSlug string, name string) (Tenant, error)
	Get(ctx context.Context, id string) (Tenant, error)
}

// SecretProvider seals and opens credential payloads. Implementations live in
// the security package; the codec layout is IV(16) || Tag(16) || Ciphertext,
// base64 at rest.
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// StateCodec mints and verifies the OAuth callback correlation token. The
// token is signed; a bare JSON echo would let a third party forge a callback
// attributing stolen credentials to an arbitrary tenant.
type StateCodec interface {
	Encode(claims StateClaims) (string, error)
	Decode(token string) (StateClaims, error)
}

type StateClaims struct {
	TenantID   string
	ProviderID string
	Nonce      string
	ExpiresAt  time.Time
}

// NonceStore enforces single use of callback state nonces within the validity
// window.
type NonceStore interface {
	Save(ctx context.Context, nonce string, expiresAt time.Time) error
	Consume(ctx context.Context, nonce string) error
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type StoreProvider interface {
	CredentialStore() CredentialStore
	TenantStore() TenantStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// RefreshBackoffScheduler spaces retries of the background refresh sweep.
type RefreshBackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}
