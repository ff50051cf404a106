package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/sync/singleflight"
)

const (
	defaultRefreshMaxAttempts    = 3
	defaultRefreshInitialBackoff = 500 * time.Millisecond
	defaultRefreshMaxBackoff     = 10 * time.Second
	defaultSweepBatchSize        = 50
)

type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = defaultRefreshInitialBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultRefreshMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// refreshFlightGroup collapses concurrent refreshes of the same credential
// into a single provider call. Keyed by credential id.
type refreshFlightGroup struct {
	group singleflight.Group
}

// EnsureFresh returns a decrypted credential guaranteed usable now. An
// unexpired token is returned without any network call; an expired one is
// refreshed first, and concurrent callers for the same credential share one
// refresh. Proactive refreshing ahead of expiry belongs to the sweep.
func (s *Service) EnsureFresh(ctx context.Context, tenantID string, credentialID string) (active ActiveCredential, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"tenant_id":     tenantID,
		"credential_id": credentialID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "ensure_fresh", err, fields)
	}()

	if s == nil || s.credentialStore == nil {
		err = fmt.Errorf("core: credential store is required")
		return ActiveCredential{}, err
	}
	credentialID = strings.TrimSpace(credentialID)
	if credentialID == "" {
		err = s.mapError(fmt.Errorf("core: credential id is required"))
		return ActiveCredential{}, err
	}

	credential, err := s.credentialStore.Get(ctx, tenantID, credentialID)
	if err != nil {
		err = s.mapError(err)
		return ActiveCredential{}, err
	}
	fields["provider_id"] = credential.ProviderID

	active, err = s.activeFromCredential(ctx, credential)
	if err != nil {
		return ActiveCredential{}, err
	}
	if !s.needsRefresh(credential, time.Now().UTC(), 0) {
		return active, nil
	}

	if !credential.HasRefreshToken {
		err = NewReauthRequiredError(credential.ID)
		return ActiveCredential{}, err
	}

	result, flightErr, _ := s.refreshFlight.group.Do(credential.ID, func() (any, error) {
		return s.refreshCredential(ctx, credential.TenantID, credential.ID, 0)
	})
	if flightErr != nil {
		err = flightErr
		return ActiveCredential{}, err
	}
	refreshed, ok := result.(ActiveCredential)
	if !ok {
		err = fmt.Errorf("core: unexpected refresh result type")
		return ActiveCredential{}, err
	}
	return refreshed, nil
}

// refreshCredential runs inside the singleflight. It re-reads the record so a
// refresh completed by the previous flight holder is observed instead of
// repeated.
func (s *Service) refreshCredential(ctx context.Context, tenantID string, credentialID string, lead time.Duration) (ActiveCredential, error) {
	credential, err := s.credentialStore.Get(ctx, tenantID, credentialID)
	if err != nil {
		return ActiveCredential{}, s.mapError(err)
	}
	active, err := s.activeFromCredential(ctx, credential)
	if err != nil {
		return ActiveCredential{}, err
	}
	now := time.Now().UTC()
	if !s.needsRefresh(credential, now, lead) {
		return active, nil
	}

	provider, err := s.resolveProvider(credential.ProviderID)
	if err != nil {
		return ActiveCredential{}, err
	}
	oauthProvider, ok := provider.(OAuthProvider)
	if !ok {
		return ActiveCredential{}, s.mapError(fmt.Errorf("core: provider %q cannot refresh credentials", credential.ProviderID))
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout())
	result, refreshErr := oauthProvider.Refresh(callCtx, active)
	cancel()
	if refreshErr != nil {
		classified := s.classifyRefreshError(credential.ID, refreshErr)
		s.recordRefreshFailure(ctx, credential, classified)
		return ActiveCredential{}, classified
	}

	refreshToken := strings.TrimSpace(result.RefreshToken)
	if refreshToken == "" {
		// Providers that do not rotate the refresh token omit it; keep
		// the one we have.
		refreshToken = active.RefreshToken
	}
	sealed, sealErr := s.sealPayload(ctx, credentialPayload{
		AccessToken:  result.AccessToken,
		RefreshToken: refreshToken,
	})
	if sealErr != nil {
		return ActiveCredential{}, s.mapError(sealErr)
	}

	updated, updateErr := s.credentialStore.UpdateToken(ctx, UpdateTokenInput{
		TenantID:         credential.TenantID,
		CredentialID:     credential.ID,
		EncryptedPayload: sealed,
		ExpiresAt:        cloneTimePointer(result.ExpiresAt),
		HasRefreshToken:  refreshToken != "",
		LastRefreshError: "",
	})
	if updateErr != nil {
		return ActiveCredential{}, s.mapError(updateErr)
	}

	return ActiveCredential{
		CredentialID: updated.ID,
		TenantID:     updated.TenantID,
		ProviderID:   updated.ProviderID,
		AccountLabel: updated.AccountLabel,
		AccessToken:  result.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    cloneTimePointer(result.ExpiresAt),
		Metadata:     copyAnyMap(updated.Metadata),
	}, nil
}

func (s *Service) classifyRefreshError(credentialID string, err error) error {
	if isUnrecoverableRefreshError(err) {
		return NewRefreshRevokedError(credentialID, err)
	}
	return NewRefreshTransientError(credentialID, err)
}

func (s *Service) recordRefreshFailure(ctx context.Context, credential Credential, cause error) {
	if s == nil || s.credentialStore == nil || cause == nil {
		return
	}
	_, updateErr := s.credentialStore.UpdateToken(ctx, UpdateTokenInput{
		TenantID:         credential.TenantID,
		CredentialID:     credential.ID,
		EncryptedPayload: credential.EncryptedPayload,
		ExpiresAt:        cloneTimePointer(credential.ExpiresAt),
		HasRefreshToken:  credential.HasRefreshToken,
		LastRefreshError: cause.Error(),
	})
	if updateErr != nil {
		s.logWarn(ctx, "failed to record refresh error", map[string]any{
			"credential_id": credential.ID,
			"error":         updateErr.Error(),
		})
	}
}

func (s *Service) activeFromCredential(ctx context.Context, credential Credential) (ActiveCredential, error) {
	payload, err := s.openPayload(ctx, credential.ID, credential.EncryptedPayload)
	if err != nil {
		return ActiveCredential{}, err
	}
	accessToken := payload.AccessToken
	if accessToken == "" {
		accessToken = payload.APIKey
	}
	return ActiveCredential{
		CredentialID: credential.ID,
		TenantID:     credential.TenantID,
		ProviderID:   credential.ProviderID,
		AccountLabel: credential.AccountLabel,
		AccessToken:  accessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresAt:    cloneTimePointer(credential.ExpiresAt),
		Metadata:     copyAnyMap(credential.Metadata),
	}, nil
}

func (s *Service) needsRefresh(credential Credential, now time.Time, lead time.Duration) bool {
	if credential.ExpiresAt == nil {
		return false
	}
	return now.Add(lead).After(*credential.ExpiresAt)
}

type RefreshSweepResult struct {
	Scanned   int
	Refreshed int
	Failed    int
	Revoked   int
}

// RefreshSweepOnce scans for credentials inside the lead window and refreshes
// them, retrying transient failures with backoff. Revoked credentials are
// counted and skipped; the next authorization replaces them.
func (s *Service) RefreshSweepOnce(ctx context.Context) (result RefreshSweepResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["scanned"] = result.Scanned
		fields["refreshed"] = result.Refreshed
		fields["failed"] = result.Failed
		s.observeOperation(ctx, startedAt, "refresh_sweep", err, fields)
	}()

	if s == nil || s.credentialStore == nil {
		err = fmt.Errorf("core: credential store is required")
		return RefreshSweepResult{}, err
	}

	expiring, findErr := s.credentialStore.FindExpiring(ctx, s.refreshLeadWindow(), defaultSweepBatchSize)
	if findErr != nil {
		err = s.mapError(findErr)
		return RefreshSweepResult{}, err
	}
	result.Scanned = len(expiring)

	for _, credential := range expiring {
		if ctx.Err() != nil {
			err = ctx.Err()
			return result, err
		}
		if refreshErr := s.refreshWithRetry(ctx, credential); refreshErr != nil {
			if IsReauthRequired(refreshErr) {
				result.Revoked++
			} else {
				result.Failed++
			}
			continue
		}
		result.Refreshed++
	}
	return result, nil
}

func (s *Service) refreshWithRetry(ctx context.Context, credential Credential) error {
	var lastErr error
	for attempt := 1; attempt <= defaultRefreshMaxAttempts; attempt++ {
		_, _, err := s.ensureFreshShared(ctx, credential)
		if err == nil {
			return nil
		}
		lastErr = err
		if isUnrecoverableRefreshError(err) || IsDecryptionError(err) {
			return err
		}
		if attempt == defaultRefreshMaxAttempts {
			break
		}
		delay := defaultRefreshInitialBackoff
		if s.refreshBackoffScheduler != nil {
			delay = s.refreshBackoffScheduler.NextDelay(attempt)
		}
		if waitErr := waitWithContext(ctx, delay); waitErr != nil {
			return waitErr
		}
	}
	return lastErr
}

func (s *Service) ensureFreshShared(ctx context.Context, credential Credential) (ActiveCredential, bool, error) {
	result, err, shared := s.refreshFlight.group.Do(credential.ID, func() (any, error) {
		return s.refreshCredential(ctx, credential.TenantID, credential.ID, s.refreshLeadWindow())
	})
	if err != nil {
		return ActiveCredential{}, shared, err
	}
	active, ok := result.(ActiveCredential)
	if !ok {
		return ActiveCredential{}, shared, fmt.Errorf("core: unexpected refresh result type")
	}
	return active, shared, nil
}

// RunRefreshSweep owns the background sweep loop. It blocks until the context
// is cancelled.
func (s *Service) RunRefreshSweep(ctx context.Context) error {
	interval := s.config.Refresh.SweepInterval
	if interval <= 0 {
		interval = DefaultConfig().Refresh.SweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RefreshSweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logWarn(ctx, "refresh sweep iteration failed", map[string]any{
					"error": err.Error(),
				})
			}
		}
	}
}

func isUnrecoverableRefreshError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch strings.TrimSpace(strings.ToUpper(richErr.TextCode)) {
		case IntegrationErrorRefreshRevoked, IntegrationErrorReauthRequired:
			return true
		case IntegrationErrorRefreshTransient:
			return false
		}
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryValidation:
			return true
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "invalid_grant") ||
		strings.Contains(msg, "invalid refresh token") ||
		strings.Contains(msg, "token revoked") ||
		strings.Contains(msg, "reauthorization required")
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
