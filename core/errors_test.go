package core

import (
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestErrorKind_ExtractsTextCode(t *testing.T) {
	err := NewUnknownProviderError("nope")
	if kind := ErrorKind(err); kind != IntegrationErrorUnknownProvider {
		t.Fatalf("unexpected kind: %q", kind)
	}

	wrapped := fmt.Errorf("outer context: %w", err)
	if kind := ErrorKind(wrapped); kind != IntegrationErrorUnknownProvider {
		t.Fatalf("expected kind to survive wrapping, got %q", kind)
	}

	if kind := ErrorKind(fmt.Errorf("plain failure")); kind != IntegrationErrorInternal {
		t.Fatalf("expected internal fallback, got %q", kind)
	}
	if kind := ErrorKind(nil); kind != "" {
		t.Fatalf("expected empty kind for nil, got %q", kind)
	}
}

func TestErrorConstructors_CarryStatusAndCode(t *testing.T) {
	cases := []struct {
		name     string
		err      *goerrors.Error
		code     int
		textCode string
	}{
		{"unknown provider", NewUnknownProviderError("x"), http.StatusNotFound, IntegrationErrorUnknownProvider},
		{"not configured", NewNotConfiguredError("x"), http.StatusConflict, IntegrationErrorNotConfigured},
		{"not connected", NewNotConnectedError("t", "p"), http.StatusNotFound, IntegrationErrorNotConnected},
		{"callback state", NewCallbackStateError("bad"), http.StatusUnauthorized, IntegrationErrorCallbackState},
		{"auth exchange", NewAuthExchangeError("x", fmt.Errorf("boom")), http.StatusBadGateway, IntegrationErrorAuthExchange},
		{"refresh revoked", NewRefreshRevokedError("c", fmt.Errorf("boom")), http.StatusUnauthorized, IntegrationErrorRefreshRevoked},
		{"refresh transient", NewRefreshTransientError("c", fmt.Errorf("boom")), http.StatusBadGateway, IntegrationErrorRefreshTransient},
		{"reauth required", NewReauthRequiredError("c"), http.StatusUnauthorized, IntegrationErrorReauthRequired},
		{"decryption", NewDecryptionError("c", fmt.Errorf("boom")), http.StatusInternalServerError, IntegrationErrorDecryption},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.code {
				t.Fatalf("expected code %d, got %d", tc.code, tc.err.Code)
			}
			if tc.err.TextCode != tc.textCode {
				t.Fatalf("expected text code %q, got %q", tc.textCode, tc.err.TextCode)
			}
		})
	}
}

func TestDefaultErrorMapper_ClassifiesByMessage(t *testing.T) {
	cases := []struct {
		message  string
		textCode string
	}{
		{"core: unknown provider: x", IntegrationErrorUnknownProvider},
		{"provider is not configured: mail", IntegrationErrorNotConfigured},
		{"core: oauth callback state rejected", IntegrationErrorCallbackState},
		{"tenant acme has no active credential for provider mail", IntegrationErrorNotConnected},
		{"core: tenant id is required", IntegrationErrorBadInput},
	}
	for _, tc := range cases {
		mapped := defaultErrorMapper(fmt.Errorf("%s", tc.message))
		if mapped == nil {
			t.Fatalf("%q: expected mapped error", tc.message)
		}
		if mapped.TextCode != tc.textCode {
			t.Fatalf("%q: expected %q, got %q", tc.message, tc.textCode, mapped.TextCode)
		}
		if mapped.Code == 0 {
			t.Fatalf("%q: expected http status to be filled", tc.message)
		}
	}

	if defaultErrorMapper(nil) != nil {
		t.Fatal("nil must map to nil")
	}
}

func TestDefaultErrorMapper_PreservesRichErrors(t *testing.T) {
	original := NewReauthRequiredError("cred_1")
	mapped := defaultErrorMapper(original)
	if mapped != original {
		t.Fatal("rich errors must pass through unchanged")
	}
}

func TestIsUnrecoverableRefreshError_Heuristics(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{fmt.Errorf("invalid_grant"), true},
		{fmt.Errorf("the server said: Invalid refresh token"), true},
		{fmt.Errorf("token revoked by the user"), true},
		{fmt.Errorf("connection reset by peer"), false},
		{NewRefreshRevokedError("c", fmt.Errorf("x")), true},
		{NewRefreshTransientError("c", fmt.Errorf("x")), false},
		{NewReauthRequiredError("c"), true},
	}
	for i, tc := range cases {
		if got := isUnrecoverableRefreshError(tc.err); got != tc.want {
			t.Fatalf("case %d (%v): expected %v, got %v", i, tc.err, tc.want, got)
		}
	}
}

func TestEnsureErrorEnvelope_FillsDefaults(t *testing.T) {
	err := goerrors.New("", goerrors.CategoryInternal)
	filled := ensureErrorEnvelope(err)
	if filled.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", filled.Code)
	}
	if filled.TextCode != IntegrationErrorInternal {
		t.Fatalf("expected internal text code, got %q", filled.TextCode)
	}
	if filled.Message == "" {
		t.Fatal("expected a user-safe message")
	}
}
