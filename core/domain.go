package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrTenantNotFound     = errors.New("core: tenant not found")
	ErrCredentialNotFound = errors.New("core: credential not found")
	ErrInvalidAuthKind    = errors.New("core: invalid auth kind")
)

type AuthKind string

const (
	AuthKindOAuth2 AuthKind = "oauth2"
	AuthKindAPIKey AuthKind = "api_key"
	AuthKindNone   AuthKind = "none"
)

func (k AuthKind) Validate() error {
	switch k {
	case AuthKindOAuth2, AuthKindAPIKey, AuthKindNone:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidAuthKind, string(k))
}

// Tenant is a logical customer space. Tenants are created lazily on first
// reference, looked up by id or slug.
type Tenant struct {
	ID        string
	Slug      string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Credential is one connected account for a (tenant, provider) pair. Secret
// fields live only inside EncryptedPayload; everything else is plaintext
// bookkeeping. Rows are never hard-deleted: Disconnect flips IsActive and the
// store promotes the next-oldest active sibling when the primary goes away.
type Credential struct {
	ID               string
	TenantID         string
	ProviderID       string
	AccountLabel     string
	EncryptedPayload []byte
	ExpiresAt        *time.Time
	HasRefreshToken  bool
	Metadata         map[string]any
	IsActive         bool
	IsPrimary        bool
	LastRefreshError string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ActiveCredential is the decrypted, in-flight form of a Credential. It never
// touches the persistent store.
type ActiveCredential struct {
	CredentialID string
	TenantID     string
	ProviderID   string
	AccountLabel string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	Metadata     map[string]any
}

// Expired reports whether the access token has an expiry in the past. A
// credential without an expiry never expires.
func (c ActiveCredential) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return !c.ExpiresAt.UTC().After(now.UTC())
}

type ToolParameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Default     any
}

// ToolDefinition describes one invocable operation a provider exposes. It
// describes, it does not execute.
type ToolDefinition struct {
	Name        string
	Description string
	Category    string
	ProviderID  string
	Parameters  []ToolParameter
}

// ToolInvocationResult is the tagged outcome of one tool call. The dispatch
// boundary always hands callers a value, never a panic.
type ToolInvocationResult struct {
	OK        bool
	Data      map[string]any
	ErrorKind string
	Error     string
}

func SuccessResult(data map[string]any) ToolInvocationResult {
	if data == nil {
		data = map[string]any{}
	}
	return ToolInvocationResult{OK: true, Data: data}
}

func FailureResult(kind string, message string) ToolInvocationResult {
	return ToolInvocationResult{
		OK:        false,
		ErrorKind: strings.TrimSpace(kind),
		Error:     strings.TrimSpace(message),
	}
}

// AccountStatus is the per-account view returned by GetStatus.
type AccountStatus struct {
	CredentialID string
	AccountLabel string
	IsPrimary    bool
	ExpiresAt    *time.Time
	// NeedsReauth is set when the credential cannot recover on its own:
	// expired without a refresh token, or the last refresh was rejected as
	// revoked.
	NeedsReauth      bool
	LastRefreshError string
	ConnectedAt      time.Time
}

// ProviderStatus reports whether a tenant is connected to a provider and
// through which accounts.
type ProviderStatus struct {
	ProviderID string
	Connected  bool
	Accounts   []AccountStatus
}

// ProviderDescriptor is the read-only catalog entry surfaced by
// ListProviders.
type ProviderDescriptor struct {
	ID              string
	DisplayName     string
	Category        string
	AuthKind        AuthKind
	RequiredSecrets []string
	Configured      bool
	ToolCount       int
}

func cloneTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := value.UTC()
	return &clone
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
