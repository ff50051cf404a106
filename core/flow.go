package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type StartAuthRequest struct {
	TenantID   string
	ProviderID string
	Scopes     []string
}

type StartAuthResponse struct {
	AuthorizationURL string
	State            string
}

type CallbackRequest struct {
	State string
	Code  string
	// Error carries the provider's error query parameter when the user
	// denied consent or the provider aborted the flow.
	Error string
}

const (
	CallbackStatusConnected = "connected"
	CallbackStatusFailed    = "failed"
)

// CallbackOutcome is what the HTTP edge renders back to the user agent. Kind
// carries a machine readable failure kind suitable for a redirect query
// parameter.
type CallbackOutcome struct {
	Status     string
	Kind       string
	TenantID   string
	ProviderID string
	Credential Credential
	Message    string
}

type ConnectAPIKeyRequest struct {
	TenantID     string
	ProviderID   string
	APIKey       string
	AccountLabel string
}

// credentialPayload is the plaintext shape sealed into EncryptedPayload.
type credentialPayload struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	APIKey       string `json:"api_key,omitempty"`
}

func (p credentialPayload) marshal() ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("core: marshal credential payload: %w", err)
	}
	return raw, nil
}

func unmarshalCredentialPayload(raw []byte) (credentialPayload, error) {
	var payload credentialPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return credentialPayload{}, fmt.Errorf("core: unmarshal credential payload: %w", err)
	}
	return payload, nil
}

// StartAuth begins the OAuth flow for a tenant and provider. It never touches
// credential storage; state is carried entirely in the signed token.
func (s *Service) StartAuth(ctx context.Context, req StartAuthRequest) (response StartAuthResponse, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_id": req.ProviderID,
		"tenant_id":   req.TenantID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "start_auth", err, fields)
	}()

	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" {
		err = s.mapError(fmt.Errorf("core: tenant id is required"))
		return StartAuthResponse{}, err
	}

	provider, err := s.resolveProvider(req.ProviderID)
	if err != nil {
		return StartAuthResponse{}, err
	}
	if !provider.IsConfigured() {
		err = NewNotConfiguredError(provider.ID())
		return StartAuthResponse{}, err
	}
	oauthProvider, ok := provider.(OAuthProvider)
	if !ok || provider.AuthKind() != AuthKindOAuth2 {
		err = s.mapError(fmt.Errorf("core: provider %q does not support oauth authorization", provider.ID()))
		return StartAuthResponse{}, err
	}

	nonce, err := GenerateNonce()
	if err != nil {
		err = s.mapError(err)
		return StartAuthResponse{}, err
	}
	expiresAt := time.Now().UTC().Add(s.stateTTL())
	state, err := s.stateCodec.Encode(StateClaims{
		TenantID:   tenantID,
		ProviderID: provider.ID(),
		Nonce:      nonce,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		err = s.mapError(err)
		return StartAuthResponse{}, err
	}
	if s.nonceStore != nil {
		if saveErr := s.nonceStore.Save(ctx, nonce, expiresAt); saveErr != nil {
			err = s.mapError(saveErr)
			return StartAuthResponse{}, err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout())
	defer cancel()
	authURL, err := oauthProvider.AuthURL(callCtx, AuthURLRequest{
		TenantID:    tenantID,
		State:       state,
		RedirectURI: s.callbackURL(provider.ID()),
		Scopes:      append([]string(nil), req.Scopes...),
	})
	if err != nil {
		err = s.mapError(err)
		return StartAuthResponse{}, err
	}

	response = StartAuthResponse{AuthorizationURL: authURL, State: state}
	return response, nil
}

// CompleteCallback finishes the OAuth flow. A provider error parameter fails
// the flow before any state validation or code exchange. A failed outcome is
// returned with a nil error for flow-level failures the edge should render;
// the error return is reserved for infrastructure faults.
func (s *Service) CompleteCallback(ctx context.Context, req CallbackRequest) (outcome CallbackOutcome, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		if outcome.ProviderID != "" {
			fields["provider_id"] = outcome.ProviderID
		}
		if outcome.TenantID != "" {
			fields["tenant_id"] = outcome.TenantID
		}
		fields["callback_status"] = outcome.Status
		s.observeOperation(ctx, startedAt, "complete_callback", err, fields)
	}()

	if providerErr := strings.TrimSpace(req.Error); providerErr != "" {
		outcome = CallbackOutcome{
			Status:  CallbackStatusFailed,
			Kind:    IntegrationErrorAuthExchange,
			Message: fmt.Sprintf("provider returned error: %s", providerErr),
		}
		return outcome, nil
	}

	claims, stateErr := s.decodeCallbackState(ctx, req.State)
	if stateErr != nil {
		outcome = CallbackOutcome{
			Status:  CallbackStatusFailed,
			Kind:    IntegrationErrorCallbackState,
			Message: stateErr.Error(),
		}
		return outcome, nil
	}
	outcome.TenantID = claims.TenantID
	outcome.ProviderID = claims.ProviderID

	provider, resolveErr := s.resolveProvider(claims.ProviderID)
	if resolveErr != nil {
		outcome = CallbackOutcome{
			Status:     CallbackStatusFailed,
			Kind:       IntegrationErrorUnknownProvider,
			TenantID:   claims.TenantID,
			ProviderID: claims.ProviderID,
			Message:    resolveErr.Error(),
		}
		return outcome, nil
	}
	oauthProvider, ok := provider.(OAuthProvider)
	if !ok {
		err = s.mapError(fmt.Errorf("core: provider %q does not support oauth authorization", provider.ID()))
		return CallbackOutcome{}, err
	}

	if s.tenantStore != nil {
		if _, tenantErr := s.tenantStore.FindOrCreate(ctx, claims.TenantID, ""); tenantErr != nil {
			err = s.mapError(tenantErr)
			return CallbackOutcome{}, err
		}
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		outcome = CallbackOutcome{
			Status:     CallbackStatusFailed,
			Kind:       IntegrationErrorAuthExchange,
			TenantID:   claims.TenantID,
			ProviderID: claims.ProviderID,
			Message:    "authorization code is missing",
		}
		return outcome, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout())
	result, exchangeErr := oauthProvider.ExchangeCode(callCtx, ExchangeRequest{
		TenantID:    claims.TenantID,
		Code:        code,
		RedirectURI: s.callbackURL(provider.ID()),
	})
	cancel()
	if exchangeErr != nil {
		wrapped := NewAuthExchangeError(provider.ID(), exchangeErr)
		outcome = CallbackOutcome{
			Status:     CallbackStatusFailed,
			Kind:       IntegrationErrorAuthExchange,
			TenantID:   claims.TenantID,
			ProviderID: claims.ProviderID,
			Message:    wrapped.Error(),
		}
		return outcome, nil
	}

	sealed, sealErr := s.sealPayload(ctx, credentialPayload{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	})
	if sealErr != nil {
		err = s.mapError(sealErr)
		return CallbackOutcome{}, err
	}

	if s.credentialStore == nil {
		err = s.mapError(fmt.Errorf("core: credential store is required to complete a callback"))
		return CallbackOutcome{}, err
	}
	credential, upsertErr := s.credentialStore.Upsert(ctx, UpsertCredentialInput{
		TenantID:         claims.TenantID,
		ProviderID:       provider.ID(),
		AccountLabel:     strings.TrimSpace(result.Account.Label),
		EncryptedPayload: sealed,
		ExpiresAt:        cloneTimePointer(result.ExpiresAt),
		HasRefreshToken:  strings.TrimSpace(result.RefreshToken) != "",
		Metadata:         copyAnyMap(result.Account.Metadata),
	})
	if upsertErr != nil {
		err = s.mapError(upsertErr)
		return CallbackOutcome{}, err
	}

	outcome = CallbackOutcome{
		Status:     CallbackStatusConnected,
		TenantID:   claims.TenantID,
		ProviderID: provider.ID(),
		Credential: credential,
	}
	return outcome, nil
}

// ConnectAPIKey verifies and stores an API key credential. The key is
// verified with the provider before anything is persisted.
func (s *Service) ConnectAPIKey(ctx context.Context, req ConnectAPIKeyRequest) (credential Credential, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_id": req.ProviderID,
		"tenant_id":   req.TenantID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "connect_api_key", err, fields)
	}()

	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" {
		err = s.mapError(fmt.Errorf("core: tenant id is required"))
		return Credential{}, err
	}
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		err = s.mapError(fmt.Errorf("core: api key is required"))
		return Credential{}, err
	}

	provider, err := s.resolveProvider(req.ProviderID)
	if err != nil {
		return Credential{}, err
	}
	if !provider.IsConfigured() {
		err = NewNotConfiguredError(provider.ID())
		return Credential{}, err
	}
	keyProvider, ok := provider.(APIKeyProvider)
	if !ok || provider.AuthKind() != AuthKindAPIKey {
		err = s.mapError(fmt.Errorf("core: provider %q does not accept api keys", provider.ID()))
		return Credential{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout())
	account, verifyErr := keyProvider.VerifyKey(callCtx, apiKey)
	cancel()
	if verifyErr != nil {
		err = NewAuthExchangeError(provider.ID(), verifyErr)
		return Credential{}, err
	}

	if s.tenantStore != nil {
		if _, tenantErr := s.tenantStore.FindOrCreate(ctx, tenantID, ""); tenantErr != nil {
			err = s.mapError(tenantErr)
			return Credential{}, err
		}
	}

	sealed, sealErr := s.sealPayload(ctx, credentialPayload{APIKey: apiKey})
	if sealErr != nil {
		err = s.mapError(sealErr)
		return Credential{}, err
	}

	label := strings.TrimSpace(req.AccountLabel)
	if label == "" {
		label = strings.TrimSpace(account.Label)
	}

	if s.credentialStore == nil {
		err = s.mapError(fmt.Errorf("core: credential store is required to connect an api key"))
		return Credential{}, err
	}
	credential, err = s.credentialStore.Upsert(ctx, UpsertCredentialInput{
		TenantID:         tenantID,
		ProviderID:       provider.ID(),
		AccountLabel:     label,
		EncryptedPayload: sealed,
		HasRefreshToken:  false,
		Metadata:         copyAnyMap(account.Metadata),
	})
	if err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}
	return credential, nil
}

func (s *Service) decodeCallbackState(ctx context.Context, raw string) (StateClaims, error) {
	if s == nil || s.stateCodec == nil {
		return StateClaims{}, NewCallbackStateError("state codec is not configured")
	}
	claims, err := s.stateCodec.Decode(raw)
	if err != nil {
		return StateClaims{}, err
	}
	if s.nonceStore != nil {
		if err := s.nonceStore.Consume(ctx, claims.Nonce); err != nil {
			return StateClaims{}, err
		}
	}
	return claims, nil
}

func (s *Service) sealPayload(ctx context.Context, payload credentialPayload) ([]byte, error) {
	raw, err := payload.marshal()
	if err != nil {
		return nil, err
	}
	if s == nil || s.secretProvider == nil {
		return nil, fmt.Errorf("core: secret provider is required")
	}
	return s.secretProvider.Encrypt(ctx, raw)
}

func (s *Service) openPayload(ctx context.Context, credentialID string, sealed []byte) (credentialPayload, error) {
	if s == nil || s.secretProvider == nil {
		return credentialPayload{}, fmt.Errorf("core: secret provider is required")
	}
	raw, err := s.secretProvider.Decrypt(ctx, sealed)
	if err != nil {
		return credentialPayload{}, NewDecryptionError(credentialID, err)
	}
	payload, err := unmarshalCredentialPayload(raw)
	if err != nil {
		return credentialPayload{}, NewDecryptionError(credentialID, err)
	}
	return payload, nil
}

func (s *Service) stateTTL() time.Duration {
	if s == nil || s.config.StateTTL <= 0 {
		return DefaultStateTTL
	}
	return s.config.StateTTL
}

func (s *Service) callbackURL(providerID string) string {
	if s == nil {
		return ""
	}
	base := strings.TrimRight(strings.TrimSpace(s.config.CallbackBaseURL), "/")
	if base == "" {
		return ""
	}
	return base + "/integrations/" + providerID + "/callback"
}
