package query

import (
	"context"

	"github.com/goliatone/go-integrations/core"
)

// CatalogReader serves the provider catalog and tool listing.
type CatalogReader interface {
	ListProviders(ctx context.Context) []core.ProviderDescriptor
	ListTools(ctx context.Context) []core.ToolDefinition
}

// StatusReader serves the per-tenant connection status view.
type StatusReader interface {
	GetStatus(ctx context.Context, tenantID string, providerID string) (core.ProviderStatus, error)
}

type ListProvidersQuery struct {
	reader CatalogReader
}

func NewListProvidersQuery(reader CatalogReader) *ListProvidersQuery {
	return &ListProvidersQuery{reader: reader}
}

func (q *ListProvidersQuery) Query(ctx context.Context, _ ListProvidersMessage) ([]core.ProviderDescriptor, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: catalog reader is required")
	}
	return q.reader.ListProviders(ctx), nil
}

type ListToolsQuery struct {
	reader CatalogReader
}

func NewListToolsQuery(reader CatalogReader) *ListToolsQuery {
	return &ListToolsQuery{reader: reader}
}

func (q *ListToolsQuery) Query(ctx context.Context, _ ListToolsMessage) ([]core.ToolDefinition, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: catalog reader is required")
	}
	return q.reader.ListTools(ctx), nil
}

type GetStatusQuery struct {
	reader StatusReader
}

func NewGetStatusQuery(reader StatusReader) *GetStatusQuery {
	return &GetStatusQuery{reader: reader}
}

func (q *GetStatusQuery) Query(ctx context.Context, msg GetStatusMessage) (core.ProviderStatus, error) {
	if q == nil || q.reader == nil {
		return core.ProviderStatus{}, queryDependencyError("query: status reader is required")
	}
	return q.reader.GetStatus(ctx, msg.TenantID, msg.ProviderID)
}
