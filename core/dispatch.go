package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type InvokeRequest struct {
	TenantID string
	// ProviderID may be left empty when ToolName is unambiguous across the
	// catalog; the dispatcher routes to the provider that exposes the tool.
	ProviderID string
	ToolName   string
	Params     map[string]any
	// AccountLabel selects a specific connected account. Empty selects the
	// primary credential.
	AccountLabel string
}

// ListProviders returns catalog descriptors for every registered provider, in
// registration order.
func (s *Service) ListProviders(ctx context.Context) []ProviderDescriptor {
	if s == nil || s.registry == nil {
		return nil
	}
	providers := s.registry.List()
	descriptors := make([]ProviderDescriptor, 0, len(providers))
	for _, provider := range providers {
		descriptors = append(descriptors, ProviderDescriptor{
			ID:              provider.ID(),
			DisplayName:     provider.DisplayName(),
			Category:        provider.Category(),
			AuthKind:        provider.AuthKind(),
			RequiredSecrets: append([]string(nil), provider.RequiredSecrets()...),
			Configured:      provider.IsConfigured(),
			ToolCount:       len(provider.Tools()),
		})
	}
	return descriptors
}

// ListTools aggregates tool definitions across configured providers. Each
// definition carries its provider id so callers can route invocations back.
func (s *Service) ListTools(ctx context.Context) []ToolDefinition {
	if s == nil || s.registry == nil {
		return nil
	}
	var tools []ToolDefinition
	for _, provider := range s.registry.List() {
		if !provider.IsConfigured() {
			continue
		}
		for _, tool := range provider.Tools() {
			tool.ProviderID = provider.ID()
			tools = append(tools, tool)
		}
	}
	return tools
}

// GetStatus reports the tenant's connection state for one provider without
// decrypting anything.
func (s *Service) GetStatus(ctx context.Context, tenantID string, providerID string) (status ProviderStatus, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"tenant_id":   tenantID,
		"provider_id": providerID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_status", err, fields)
	}()

	provider, err := s.resolveProvider(providerID)
	if err != nil {
		return ProviderStatus{}, err
	}
	if s.credentialStore == nil {
		err = fmt.Errorf("core: credential store is required")
		return ProviderStatus{}, err
	}

	credentials, err := s.credentialStore.FindActive(ctx, tenantID, provider.ID())
	if err != nil {
		err = s.mapError(err)
		return ProviderStatus{}, err
	}

	now := time.Now().UTC()
	status = ProviderStatus{ProviderID: provider.ID(), Connected: len(credentials) > 0}
	for _, credential := range credentials {
		expired := credential.ExpiresAt != nil && !credential.ExpiresAt.After(now)
		status.Accounts = append(status.Accounts, AccountStatus{
			CredentialID:     credential.ID,
			AccountLabel:     credential.AccountLabel,
			IsPrimary:        credential.IsPrimary,
			ExpiresAt:        cloneTimePointer(credential.ExpiresAt),
			NeedsReauth:      (expired && !credential.HasRefreshToken) || refreshRevoked(credential),
			LastRefreshError: credential.LastRefreshError,
			ConnectedAt:      credential.CreatedAt,
		})
	}
	return status, nil
}

// refreshRevoked reports whether the credential's last refresh attempt was
// rejected as unrecoverable, as recorded by recordRefreshFailure.
func refreshRevoked(credential Credential) bool {
	return strings.Contains(credential.LastRefreshError, IntegrationErrorRefreshRevoked) ||
		strings.Contains(credential.LastRefreshError, IntegrationErrorReauthRequired)
}

// Disconnect deactivates one credential. When the primary is removed the
// store promotes the next-oldest active sibling in the same transaction.
func (s *Service) Disconnect(ctx context.Context, tenantID string, credentialID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"tenant_id":     tenantID,
		"credential_id": credentialID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "disconnect", err, fields)
	}()

	if s == nil || s.credentialStore == nil {
		err = fmt.Errorf("core: credential store is required")
		return err
	}
	if strings.TrimSpace(credentialID) == "" {
		err = s.mapError(fmt.Errorf("core: credential id is required"))
		return err
	}
	if err = s.credentialStore.Deactivate(ctx, tenantID, credentialID); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

// MarkPrimary promotes one account to primary, demoting its siblings
// atomically.
func (s *Service) MarkPrimary(ctx context.Context, tenantID string, credentialID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"tenant_id":     tenantID,
		"credential_id": credentialID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "mark_primary", err, fields)
	}()

	if s == nil || s.credentialStore == nil {
		err = fmt.Errorf("core: credential store is required")
		return err
	}
	if strings.TrimSpace(credentialID) == "" {
		err = s.mapError(fmt.Errorf("core: credential id is required"))
		return err
	}
	if err = s.credentialStore.MarkPrimary(ctx, tenantID, credentialID); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

// Invoke is the tool dispatch gateway. Provider resolution happens before any
// store access; an unknown provider never costs a query. Provider panics are
// converted into failed results so one bad integration cannot take the
// process down.
func (s *Service) Invoke(ctx context.Context, req InvokeRequest) (result ToolInvocationResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"tenant_id":   req.TenantID,
		"provider_id": req.ProviderID,
		"tool_name":   req.ToolName,
	}
	defer func() {
		if !result.OK && result.ErrorKind != "" {
			fields["error_kind"] = result.ErrorKind
		}
		s.observeOperation(ctx, startedAt, "invoke", err, fields)
	}()

	var provider Provider
	if strings.TrimSpace(req.ProviderID) == "" {
		matched, ok := s.providerForTool(req.ToolName)
		if !ok {
			result = FailureResult(IntegrationErrorUnknownProvider,
				fmt.Sprintf("core: no provider exposes tool %q", strings.TrimSpace(req.ToolName)))
			return result, nil
		}
		provider = matched
		fields["provider_id"] = provider.ID()
	} else {
		resolved, resolveErr := s.resolveProvider(req.ProviderID)
		if resolveErr != nil {
			result = FailureResult(ErrorKind(resolveErr), resolveErr.Error())
			return result, nil
		}
		provider = resolved
	}
	if !provider.IsConfigured() {
		notConfigured := NewNotConfiguredError(provider.ID())
		result = FailureResult(ErrorKind(notConfigured), notConfigured.Error())
		return result, nil
	}

	credential, selectErr := s.selectCredential(ctx, req.TenantID, provider.ID(), req.AccountLabel)
	if selectErr != nil {
		result = FailureResult(ErrorKind(selectErr), selectErr.Error())
		return result, nil
	}

	active, freshErr := s.EnsureFresh(ctx, credential.TenantID, credential.ID)
	if freshErr != nil {
		result = FailureResult(ErrorKind(freshErr), freshErr.Error())
		return result, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout())
	defer cancel()
	result = s.executeTool(callCtx, provider, req.ToolName, req.Params, active)
	return result, nil
}

func (s *Service) executeTool(ctx context.Context, provider Provider, name string, params map[string]any, cred ActiveCredential) (result ToolInvocationResult) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logError(ctx, "tool execution panicked", map[string]any{
				"provider_id": provider.ID(),
				"tool_name":   name,
				"panic":       fmt.Sprint(recovered),
			})
			result = FailureResult(IntegrationErrorProviderCall, fmt.Sprintf("tool %q panicked: %v", name, recovered))
		}
	}()
	return provider.ExecuteTool(ctx, name, params, cred)
}

// providerForTool finds the registered provider exposing the named tool.
// Registry-only lookup, no store access.
func (s *Service) providerForTool(toolName string) (Provider, bool) {
	name := strings.TrimSpace(toolName)
	if s == nil || s.registry == nil || name == "" {
		return nil, false
	}
	for _, provider := range s.registry.List() {
		for _, tool := range provider.Tools() {
			if tool.Name == name {
				return provider, true
			}
		}
	}
	return nil, false
}

// selectCredential picks the primary credential for the pair, or the account
// matching the requested label.
func (s *Service) selectCredential(ctx context.Context, tenantID string, providerID string, accountLabel string) (Credential, error) {
	if s == nil || s.credentialStore == nil {
		return Credential{}, fmt.Errorf("core: credential store is required")
	}
	credentials, err := s.credentialStore.FindActive(ctx, tenantID, providerID)
	if err != nil {
		return Credential{}, s.mapError(err)
	}
	if len(credentials) == 0 {
		return Credential{}, NewNotConnectedError(tenantID, providerID)
	}

	label := strings.TrimSpace(accountLabel)
	if label == "" {
		for _, credential := range credentials {
			if credential.IsPrimary {
				return credential, nil
			}
		}
		// FindActive orders primary first; fall back to the oldest.
		return credentials[0], nil
	}
	for _, credential := range credentials {
		if strings.EqualFold(strings.TrimSpace(credential.AccountLabel), label) {
			return credential, nil
		}
	}
	return Credential{}, NewNotConnectedError(tenantID, providerID)
}
