package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	IntegrationErrorBadInput         = "INTEGRATIONS_BAD_INPUT"
	IntegrationErrorUnknownProvider  = "INTEGRATIONS_UNKNOWN_PROVIDER"
	IntegrationErrorNotConfigured    = "INTEGRATIONS_PROVIDER_NOT_CONFIGURED"
	IntegrationErrorNotConnected     = "INTEGRATIONS_NOT_CONNECTED"
	IntegrationErrorCallbackState    = "INTEGRATIONS_CALLBACK_STATE_INVALID"
	IntegrationErrorAuthExchange     = "INTEGRATIONS_AUTH_EXCHANGE_FAILED"
	IntegrationErrorRefreshTransient = "INTEGRATIONS_REFRESH_TRANSIENT"
	IntegrationErrorRefreshRevoked   = "INTEGRATIONS_REFRESH_REVOKED"
	IntegrationErrorReauthRequired   = "INTEGRATIONS_REAUTH_REQUIRED"
	IntegrationErrorDecryption       = "INTEGRATIONS_DECRYPTION_FAILED"
	IntegrationErrorProviderCall     = "INTEGRATIONS_PROVIDER_CALL_FAILED"
	IntegrationErrorInternal         = "INTEGRATIONS_INTERNAL_ERROR"
)

// NewUnknownProviderError is the 4xx-equivalent caller error for ids that do
// not resolve in the registry.
func NewUnknownProviderError(providerID string) *goerrors.Error {
	return goerrors.New("core: unknown provider: "+strings.TrimSpace(providerID), goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(IntegrationErrorUnknownProvider)
}

// NewNotConfiguredError marks a provider whose required secrets are missing.
// Fatal for that provider only; other providers keep working.
func NewNotConfiguredError(providerID string) *goerrors.Error {
	return goerrors.New("core: provider is not configured: "+strings.TrimSpace(providerID), goerrors.CategoryOperation).
		WithCode(http.StatusConflict).
		WithTextCode(IntegrationErrorNotConfigured)
}

func NewNotConnectedError(tenantID string, providerID string) *goerrors.Error {
	return goerrors.New(
		"core: tenant "+strings.TrimSpace(tenantID)+" has no active credential for provider "+strings.TrimSpace(providerID),
		goerrors.CategoryNotFound,
	).
		WithCode(http.StatusNotFound).
		WithTextCode(IntegrationErrorNotConnected)
}

func NewCallbackStateError(message string) *goerrors.Error {
	return goerrors.New("core: oauth callback state rejected: "+strings.TrimSpace(message), goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(IntegrationErrorCallbackState)
}

func NewAuthExchangeError(providerID string, cause error) *goerrors.Error {
	err := goerrors.Wrap(cause, goerrors.CategoryAuth, "core: authorization code exchange failed for provider "+strings.TrimSpace(providerID)).
		WithCode(http.StatusBadGateway).
		WithTextCode(IntegrationErrorAuthExchange)
	return err
}

// NewRefreshRevokedError is the permanent refresh failure: the provider
// rejected the refresh token and only a new authorization can recover.
func NewRefreshRevokedError(credentialID string, cause error) *goerrors.Error {
	return goerrors.Wrap(cause, goerrors.CategoryAuth, "core: refresh token revoked for credential "+strings.TrimSpace(credentialID)).
		WithCode(http.StatusUnauthorized).
		WithTextCode(IntegrationErrorRefreshRevoked)
}

// NewRefreshTransientError is retryable on a later invocation, never in a
// loop within one request.
func NewRefreshTransientError(credentialID string, cause error) *goerrors.Error {
	return goerrors.Wrap(cause, goerrors.CategoryExternal, "core: transient refresh failure for credential "+strings.TrimSpace(credentialID)).
		WithCode(http.StatusBadGateway).
		WithTextCode(IntegrationErrorRefreshTransient)
}

// NewReauthRequiredError marks an expired credential with no refresh token.
// No automatic recovery is possible; the caller surfaces it to the tenant.
func NewReauthRequiredError(credentialID string) *goerrors.Error {
	return goerrors.New("core: credential "+strings.TrimSpace(credentialID)+" requires re-authorization", goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(IntegrationErrorReauthRequired)
}

// NewDecryptionError is store corruption for one record: logged, surfaced,
// never silently substituted with empty credentials.
func NewDecryptionError(credentialID string, cause error) *goerrors.Error {
	return goerrors.Wrap(cause, goerrors.CategoryInternal, "core: credential payload failed to decrypt: "+strings.TrimSpace(credentialID)).
		WithCode(http.StatusInternalServerError).
		WithTextCode(IntegrationErrorDecryption)
}

func IsReauthRequired(err error) bool {
	return hasTextCode(err, IntegrationErrorReauthRequired) || hasTextCode(err, IntegrationErrorRefreshRevoked)
}

func IsRefreshTransient(err error) bool {
	return hasTextCode(err, IntegrationErrorRefreshTransient)
}

func IsDecryptionError(err error) bool {
	return hasTextCode(err, IntegrationErrorDecryption)
}

func IsCallbackStateError(err error) bool {
	return hasTextCode(err, IntegrationErrorCallbackState)
}

func IsUnknownProvider(err error) bool {
	return hasTextCode(err, IntegrationErrorUnknownProvider)
}

func IsNotConnected(err error) bool {
	return hasTextCode(err, IntegrationErrorNotConnected)
}

// ErrorKind extracts the stable machine-readable kind carried by a service
// failure, falling back to the internal kind for foreign errors.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && strings.TrimSpace(richErr.TextCode) != "" {
		return richErr.TextCode
	}
	return IntegrationErrorInternal
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), code)
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "unknown provider"), strings.Contains(msg, "not registered"):
		return newMappedError(err.Error(), goerrors.CategoryNotFound, IntegrationErrorUnknownProvider)
	case strings.Contains(msg, "not configured"):
		return newMappedError(err.Error(), goerrors.CategoryOperation, IntegrationErrorNotConfigured)
	case strings.Contains(msg, "callback state"), strings.Contains(msg, "oauth state"):
		return newMappedError(err.Error(), goerrors.CategoryAuth, IntegrationErrorCallbackState)
	case strings.Contains(msg, "no active credential"):
		return newMappedError(err.Error(), goerrors.CategoryNotFound, IntegrationErrorNotConnected)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newMappedError(err.Error(), goerrors.CategoryBadInput, IntegrationErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func newMappedError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = integrationHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return IntegrationErrorBadInput
	case goerrors.CategoryNotFound:
		return IntegrationErrorUnknownProvider
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return IntegrationErrorReauthRequired
	case goerrors.CategoryExternal:
		return IntegrationErrorProviderCall
	case goerrors.CategoryOperation:
		return IntegrationErrorNotConfigured
	default:
		return IntegrationErrorInternal
	}
}

func integrationHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
