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
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type TenantStore struct {
	db   *bun.DB
	repo repository.Repository[*tenantRecord]
}

// FindOrCreate resolves a tenant by id or slug, creating it lazily on first
// reference. The identifier doubles as the slug for created tenants unless it
// parses as a UUID.
func (s *TenantStore) FindOrCreate(ctx context.Context, idOrSlug string, name string) (core.Tenant, error) {
	if s == nil || s.repo == nil || s.db == nil {
		return core.Tenant{}, fmt.Errorf("sqlstore: tenant store is not configured")
	}
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return core.Tenant{}, fmt.Errorf("sqlstore: tenant identifier is required")
	}

	var tenant core.Tenant
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := new(tenantRecord)
		findErr := tx.NewSelect().
			Model(existing).
			Where("id = ? OR slug = ?", idOrSlug, idOrSlug).
			Limit(1).
			Scan(ctx)
		if findErr == nil {
			tenant = existing.toDomain()
			return nil
		}
		if !errors.Is(findErr, sql.ErrNoRows) {
			return findErr
		}

		now := time.Now().UTC()
		id := idOrSlug
		slug := idOrSlug
		if _, parseErr := uuid.Parse(idOrSlug); parseErr != nil {
			id = uuid.NewString()
		}
		record := newTenantRecord(id, slug, strings.TrimSpace(name), now)
		inserted, createErr := s.repo.CreateTx(ctx, tx, record)
		if createErr != nil {
			return createErr
		}
		tenant = inserted.toDomain()
		return nil
	})
	if err != nil {
		return core.Tenant{}, err
	}
	return tenant, nil
}

func (s *TenantStore) Get(ctx context.Context, id string) (core.Tenant, error) {
	if s == nil || s.repo == nil {
		return core.Tenant{}, fmt.Errorf("sqlstore: tenant store is not configured")
	}
	id = strings.TrimSpace(id)
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.id = ? OR ?TableAlias.slug = ?", id, id)
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Tenant{}, err
	}
	if len(records) == 0 {
		return core.Tenant{}, fmt.Errorf("sqlstore: %w: %s", core.ErrTenantNotFound, id)
	}
	return records[0].toDomain(), nil
}

var _ core.TenantStore = (*TenantStore)(nil)
