package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type CredentialStore struct {
	db   *bun.DB
	repo repository.Repository[*credentialRecord]
}

func (s *CredentialStore) FindActive(ctx context.Context, tenantID string, providerID string) ([]core.Credential, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: credential store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("tenant_id", "=", strings.TrimSpace(tenantID)),
		repository.SelectBy("provider_id", "=", strings.TrimSpace(providerID)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.is_active = ?", true)
		}),
		repository.OrderBy("is_primary DESC"),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	credentials := make([]core.Credential, 0, len(records))
	for _, record := range records {
		credentials = append(credentials, record.toDomain())
	}
	return credentials, nil
}

func (s *CredentialStore) Get(ctx context.Context, tenantID string, credentialID string) (core.Credential, error) {
	if s == nil || s.repo == nil {
		return core.Credential{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", strings.TrimSpace(credentialID)),
		repository.SelectBy("tenant_id", "=", strings.TrimSpace(tenantID)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Credential{}, err
	}
	if len(records) == 0 {
		return core.Credential{}, fmt.Errorf("sqlstore: %w: %s", core.ErrCredentialNotFound, credentialID)
	}
	return records[0].toDomain(), nil
}

// Upsert updates the active row matching (tenant, provider, account label) in
// place or inserts a new one. A freshly inserted row becomes primary only
// when it is the first active credential for the pair.
func (s *CredentialStore) Upsert(ctx context.Context, in core.UpsertCredentialInput) (core.Credential, error) {
	if s == nil || s.repo == nil || s.db == nil {
		return core.Credential{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.ProviderID = strings.TrimSpace(in.ProviderID)
	in.AccountLabel = strings.TrimSpace(in.AccountLabel)
	if in.TenantID == "" {
		return core.Credential{}, fmt.Errorf("sqlstore: tenant id is required")
	}
	if in.ProviderID == "" {
		return core.Credential{}, fmt.Errorf("sqlstore: provider id is required")
	}
	now := time.Now().UTC()

	var saved core.Credential
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := new(credentialRecord)
		findErr := tx.NewSelect().
			Model(existing).
			Where("tenant_id = ?", in.TenantID).
			Where("provider_id = ?", in.ProviderID).
			Where("account_label = ?", in.AccountLabel).
			Where("is_active = ?", true).
			Limit(1).
			Scan(ctx)
		if findErr != nil && !errors.Is(findErr, sql.ErrNoRows) {
			return findErr
		}

		if findErr == nil && strings.TrimSpace(existing.ID) != "" {
			metadata := in.Metadata
			if metadata == nil {
				metadata = map[string]any{}
			}
			existing.EncryptedPayload = append([]byte(nil), in.EncryptedPayload...)
			existing.ExpiresAt = cloneTimePointer(in.ExpiresAt)
			existing.HasRefreshToken = in.HasRefreshToken
			existing.Metadata = metadata
			existing.LastRefreshError = ""
			existing.UpdatedAt = now
			if _, updateErr := tx.NewUpdate().
				Model(existing).
				Column("encrypted_payload", "expires_at", "has_refresh_token", "metadata", "last_refresh_error", "updated_at").
				WherePK().
				Exec(ctx); updateErr != nil {
				return updateErr
			}
			saved = existing.toDomain()
			return nil
		}

		activeCount, countErr := tx.NewSelect().
			Model((*credentialRecord)(nil)).
			Where("tenant_id = ?", in.TenantID).
			Where("provider_id = ?", in.ProviderID).
			Where("is_active = ?", true).
			Count(ctx)
		if countErr != nil {
			return countErr
		}

		record := newCredentialRecord(in, activeCount == 0, now)
		inserted, createErr := s.repo.CreateTx(ctx, tx, record)
		if createErr != nil {
			return createErr
		}
		saved = inserted.toDomain()
		return nil
	})
	if err != nil {
		return core.Credential{}, err
	}
	return saved, nil
}

func (s *CredentialStore) UpdateToken(ctx context.Context, in core.UpdateTokenInput) (core.Credential, error) {
	if s == nil || s.db == nil {
		return core.Credential{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	credentialID := strings.TrimSpace(in.CredentialID)
	if credentialID == "" {
		return core.Credential{}, fmt.Errorf("sqlstore: credential id is required")
	}
	now := time.Now().UTC()

	result, err := s.db.NewUpdate().
		Model((*credentialRecord)(nil)).
		Set("encrypted_payload = ?", in.EncryptedPayload).
		Set("expires_at = ?", in.ExpiresAt).
		Set("has_refresh_token = ?", in.HasRefreshToken).
		Set("last_refresh_error = ?", in.LastRefreshError).
		Set("updated_at = ?", now).
		Where("id = ?", credentialID).
		Where("tenant_id = ?", strings.TrimSpace(in.TenantID)).
		Where("is_active = ?", true).
		Exec(ctx)
	if err != nil {
		return core.Credential{}, err
	}
	if affected, affectedErr := result.RowsAffected(); affectedErr == nil && affected == 0 {
		return core.Credential{}, fmt.Errorf("sqlstore: %w: %s", core.ErrCredentialNotFound, credentialID)
	}
	return s.Get(ctx, in.TenantID, credentialID)
}

// Deactivate soft-deletes one credential. When the primary goes away the
// next-oldest active sibling is promoted in the same transaction so the pair
// never loses its primary while accounts remain.
func (s *CredentialStore) Deactivate(ctx context.Context, tenantID string, credentialID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	credentialID = strings.TrimSpace(credentialID)
	if credentialID == "" {
		return fmt.Errorf("sqlstore: credential id is required")
	}
	now := time.Now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		target := new(credentialRecord)
		if err := tx.NewSelect().
			Model(target).
			Where("id = ?", credentialID).
			Where("tenant_id = ?", tenantID).
			Where("is_active = ?", true).
			Limit(1).
			Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("sqlstore: %w: %s", core.ErrCredentialNotFound, credentialID)
			}
			return err
		}

		if _, err := tx.NewUpdate().
			Model((*credentialRecord)(nil)).
			Set("is_active = ?", false).
			Set("is_primary = ?", false).
			Set("updated_at = ?", now).
			Where("id = ?", credentialID).
			Exec(ctx); err != nil {
			return err
		}

		if !target.IsPrimary {
			return nil
		}

		successor := new(credentialRecord)
		err := tx.NewSelect().
			Model(successor).
			Where("tenant_id = ?", target.TenantID).
			Where("provider_id = ?", target.ProviderID).
			Where("is_active = ?", true).
			OrderExpr("created_at ASC").
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		_, err = tx.NewUpdate().
			Model((*credentialRecord)(nil)).
			Set("is_primary = ?", true).
			Set("updated_at = ?", now).
			Where("id = ?", successor.ID).
			Exec(ctx)
		return err
	})
}

func (s *CredentialStore) MarkPrimary(ctx context.Context, tenantID string, credentialID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	credentialID = strings.TrimSpace(credentialID)
	if credentialID == "" {
		return fmt.Errorf("sqlstore: credential id is required")
	}
	now := time.Now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		target := new(credentialRecord)
		if err := tx.NewSelect().
			Model(target).
			Where("id = ?", credentialID).
			Where("tenant_id = ?", tenantID).
			Where("is_active = ?", true).
			Limit(1).
			Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("sqlstore: %w: %s", core.ErrCredentialNotFound, credentialID)
			}
			return err
		}

		if _, err := tx.NewUpdate().
			Model((*credentialRecord)(nil)).
			Set("is_primary = ?", false).
			Set("updated_at = ?", now).
			Where("tenant_id = ?", target.TenantID).
			Where("provider_id = ?", target.ProviderID).
			Where("is_active = ?", true).
			Where("is_primary = ?", true).
			Exec(ctx); err != nil {
			return err
		}

		_, err := tx.NewUpdate().
			Model((*credentialRecord)(nil)).
			Set("is_primary = ?", true).
			Set("updated_at = ?", now).
			Where("id = ?", credentialID).
			Exec(ctx)
		return err
	})
}

func (s *CredentialStore) FindExpiring(ctx context.Context, within time.Duration, limit int) ([]core.Credential, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: credential store is not configured")
	}
	if within <= 0 {
		within = time.Minute
	}
	if limit <= 0 {
		limit = 50
	}
	cutoff := time.Now().UTC().Add(within)

	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.is_active = ?", true).
				Where("?TableAlias.has_refresh_token = ?", true).
				Where("?TableAlias.expires_at IS NOT NULL").
				Where("?TableAlias.expires_at < ?", cutoff)
		}),
		repository.OrderBy("expires_at ASC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	credentials := make([]core.Credential, 0, len(records))
	for _, record := range records {
		credentials = append(credentials, record.toDomain())
	}
	return credentials, nil
}

var _ core.CredentialStore = (*CredentialStore)(nil)
