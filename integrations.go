package integrations

import (
	"strings"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/security"
)

type Config = core.Config

type SecurityConfig = core.SecurityConfig

type RefreshConfig = core.RefreshConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type Provider = core.Provider
type OAuthProvider = core.OAuthProvider
type APIKeyProvider = core.APIKeyProvider
type Registry = core.Registry
type CredentialStore = core.CredentialStore
type TenantStore = core.TenantStore
type SecretProvider = core.SecretProvider
type StateCodec = core.StateCodec
type NonceStore = core.NonceStore
type RefreshBackoffScheduler = core.RefreshBackoffScheduler

type StartAuthRequest = core.StartAuthRequest
type StartAuthResponse = core.StartAuthResponse
type CallbackRequest = core.CallbackRequest
type CallbackOutcome = core.CallbackOutcome
type ConnectAPIKeyRequest = core.ConnectAPIKeyRequest
type InvokeRequest = core.InvokeRequest

type Credential = core.Credential
type ActiveCredential = core.ActiveCredential
type ToolDefinition = core.ToolDefinition
type ToolInvocationResult = core.ToolInvocationResult
type ProviderDescriptor = core.ProviderDescriptor
type ProviderStatus = core.ProviderStatus

var (
	WithLogger                  = core.WithLogger
	WithLoggerProvider          = core.WithLoggerProvider
	WithMetricsRecorder         = core.WithMetricsRecorder
	WithErrorFactory            = core.WithErrorFactory
	WithErrorMapper             = core.WithErrorMapper
	WithSecretProvider          = core.WithSecretProvider
	WithPersistenceClient       = core.WithPersistenceClient
	WithRepositoryFactory       = core.WithRepositoryFactory
	WithConfigProvider          = core.WithConfigProvider
	WithOptionsResolver         = core.WithOptionsResolver
	WithStateCodec              = core.WithStateCodec
	WithNonceStore              = core.WithNonceStore
	WithRefreshBackoffScheduler = core.WithRefreshBackoffScheduler
	WithRegistry                = core.WithRegistry
	WithCredentialStore         = core.WithCredentialStore
	WithTenantStore             = core.WithTenantStore
	WithHTTPClient              = core.WithHTTPClient
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

// Setup builds a service with an envelope secret provider derived from the
// security configuration. Callers that pass WithSecretProvider override it;
// with no key material configured the service is built without one and fails
// on the first operation that seals a credential.
func Setup(cfg Config, opts ...Option) (*Service, error) {
	var stretched bool
	if hasKeyMaterial(cfg.Security) {
		codec, derived, err := security.NewEnvelopeCodecFromConfig(cfg.Security.EncryptionKey, cfg.Security.FallbackSecret)
		if err != nil {
			return nil, err
		}
		stretched = derived.Stretched
		opts = append([]Option{WithSecretProvider(codec)}, opts...)
	}
	service, err := core.Setup(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if stretched {
		if logger := service.Dependencies().Logger; logger != nil {
			logger.Warn("credential encryption key stretched from a passphrase; set security.encryption_key to 64 hex characters so database access alone cannot decrypt credentials")
		}
	}
	return service, nil
}

// NewEnvelopeSecretProvider builds the AES-256-GCM envelope codec from
// configuration, hex-decoding a 64 character key and stretching anything else
// through scrypt.
func NewEnvelopeSecretProvider(cfg SecurityConfig) (SecretProvider, error) {
	codec, _, err := security.NewEnvelopeCodecFromConfig(cfg.EncryptionKey, cfg.FallbackSecret)
	if err != nil {
		return nil, err
	}
	return codec, nil
}

func hasKeyMaterial(cfg SecurityConfig) bool {
	return strings.TrimSpace(cfg.EncryptionKey) != "" || strings.TrimSpace(cfg.FallbackSecret) != ""
}
