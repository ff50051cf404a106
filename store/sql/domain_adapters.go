package sqlstore

import (
	"time"

	"github.com/goliatone/go-integrations/core"
)

func newTenantRecord(id string, slug string, name string, now time.Time) *tenantRecord {
	return &tenantRecord{
		ID:        id,
		Slug:      slug,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *tenantRecord) toDomain() core.Tenant {
	if r == nil {
		return core.Tenant{}
	}
	return core.Tenant{
		ID:        r.ID,
		Slug:      r.Slug,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func newCredentialRecord(in core.UpsertCredentialInput, isPrimary bool, now time.Time) *credentialRecord {
	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &credentialRecord{
		TenantID:         in.TenantID,
		ProviderID:       in.ProviderID,
		AccountLabel:     in.AccountLabel,
		EncryptedPayload: append([]byte(nil), in.EncryptedPayload...),
		ExpiresAt:        cloneTimePointer(in.ExpiresAt),
		HasRefreshToken:  in.HasRefreshToken,
		Metadata:         metadata,
		IsActive:         true,
		IsPrimary:        isPrimary,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (r *credentialRecord) toDomain() core.Credential {
	if r == nil {
		return core.Credential{}
	}
	return core.Credential{
		ID:               r.ID,
		TenantID:         r.TenantID,
		ProviderID:       r.ProviderID,
		AccountLabel:     r.AccountLabel,
		EncryptedPayload: append([]byte(nil), r.EncryptedPayload...),
		ExpiresAt:        cloneTimePointer(r.ExpiresAt),
		HasRefreshToken:  r.HasRefreshToken,
		Metadata:         copyAnyMap(r.Metadata),
		IsActive:         r.IsActive,
		IsPrimary:        r.IsPrimary,
		LastRefreshError: r.LastRefreshError,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
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
