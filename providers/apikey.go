package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goliatone/go-integrations/core"
)

const maxVerifyResponseBodyBytes = 1 << 16

// KeyVerifier checks an API key against the provider and reports the
// account it belongs to.
type KeyVerifier func(ctx context.Context, key string) (core.AccountInfo, error)

// APIKeyBase couples the shared provider Base with a key verification
// hook so concrete API-key providers satisfy core.APIKeyProvider.
type APIKeyBase struct {
	*Base
	verifier KeyVerifier
}

func NewAPIKeyBase(cfg BaseConfig, verifier KeyVerifier) (*APIKeyBase, error) {
	if verifier == nil {
		return nil, fmt.Errorf("providers: key verifier is required")
	}
	cfg.AuthKind = core.AuthKindAPIKey
	base, err := NewBase(cfg)
	if err != nil {
		return nil, err
	}
	return &APIKeyBase{Base: base, verifier: verifier}, nil
}

func (p *APIKeyBase) VerifyKey(ctx context.Context, key string) (core.AccountInfo, error) {
	if p == nil || p.verifier == nil {
		return core.AccountInfo{}, fmt.Errorf("providers: key verifier is not configured")
	}
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return core.AccountInfo{}, fmt.Errorf("providers: api key is required")
	}
	return p.verifier(ctx, trimmed)
}

// HTTPKeyVerifier builds a KeyVerifier that probes an authenticated
// endpoint with the candidate key as a bearer token. A 2xx response
// accepts the key; 401 and 403 reject it.
func HTTPKeyVerifier(client HTTPDoer, verifyURL string, headerName string) KeyVerifier {
	return func(ctx context.Context, key string) (core.AccountInfo, error) {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(verifyURL), nil)
		if err != nil {
			return core.AccountInfo{}, fmt.Errorf("providers: build verify request: %w", err)
		}
		header := strings.TrimSpace(headerName)
		if header == "" {
			request.Header.Set("Authorization", "Bearer "+key)
		} else {
			request.Header.Set(header, key)
		}
		request.Header.Set("Accept", "application/json")

		doer := client
		if doer == nil {
			doer = http.DefaultClient
		}
		response, err := doer.Do(request)
		if err != nil {
			return core.AccountInfo{}, fmt.Errorf("providers: verify request failed: %w", err)
		}
		defer response.Body.Close()
		io.Copy(io.Discard, io.LimitReader(response.Body, maxVerifyResponseBodyBytes))

		switch {
		case response.StatusCode >= 200 && response.StatusCode < 300:
			return core.AccountInfo{}, nil
		case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
			return core.AccountInfo{}, fmt.Errorf("providers: api key rejected with status %d", response.StatusCode)
		default:
			return core.AccountInfo{}, fmt.Errorf("providers: verify endpoint returned %d", response.StatusCode)
		}
	}
}
