package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type tenantRecord struct {
	bun.BaseModel `bun:"table:integration_tenants,alias:it"`

	ID        string    `bun:"id,pk"`
	Slug      string    `bun:"slug,notnull"`
	Name      string    `bun:"name"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// credentialRecord is unique on (tenant_id, provider_id, account_label)
// among active rows; Upsert relies on that to update in place.
type credentialRecord struct {
	bun.BaseModel `bun:"table:integration_credentials,alias:ic"`

	ID               string         `bun:"id,pk"`
	TenantID         string         `bun:"tenant_id,notnull"`
	ProviderID       string         `bun:"provider_id,notnull"`
	AccountLabel     string         `bun:"account_label,notnull"`
	EncryptedPayload []byte         `bun:"encrypted_payload,notnull"`
	ExpiresAt        *time.Time     `bun:"expires_at,nullzero"`
	HasRefreshToken  bool           `bun:"has_refresh_token,notnull"`
	Metadata         map[string]any `bun:"metadata,type:jsonb,notnull"`
	IsActive         bool           `bun:"is_active,notnull"`
	IsPrimary        bool           `bun:"is_primary,notnull"`
	LastRefreshError string         `bun:"last_refresh_error"`
	CreatedAt        time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
