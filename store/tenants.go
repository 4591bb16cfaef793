package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/workflowai/gateway/core"
)

// Tenant is the process-wide context every agent/version/run is scoped
// under (spec §3 "Tenant"). Credit balance lives here; provider credential
// overrides are layered on top by the caller (core.Config.Providers holds
// the process-wide defaults a Tenant may shadow).
type Tenant struct {
	TenantUID  int64
	Tenant     string
	BalanceUSD float64
}

// GetTenantByAPIKey resolves a bearer token to its tenant (spec §6
// "Authentication: bearer token in Authorization header; token is resolved
// to a tenant"). Returns core.ErrInvalidConfiguration wrapped around
// pgx.ErrNoRows semantics via a dedicated sentinel so callers can
// distinguish "no such token" from a transport failure.
func (s *Store) GetTenantByAPIKey(ctx context.Context, apiKey string) (*Tenant, error) {
	var t Tenant
	err := s.pool.QueryRow(ctx, `
		SELECT tenant_uid, tenant, balance_usd FROM tenants WHERE api_key = $1
	`, apiKey).Scan(&t.TenantUID, &t.Tenant, &t.BalanceUSD)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("store: get tenant by api key: %w", err)
	}
	return &t, nil
}

// GetTenantByName resolves the {tenant} path segment used by the native
// endpoints to the tenant row, independent of which bearer token was
// presented (the token still must belong to this same tenant; callers
// enforce that separately).
func (s *Store) GetTenantByName(ctx context.Context, tenant string) (*Tenant, error) {
	var t Tenant
	err := s.pool.QueryRow(ctx, `
		SELECT tenant_uid, tenant, balance_usd FROM tenants WHERE tenant = $1
	`, tenant).Scan(&t.TenantUID, &t.Tenant, &t.BalanceUSD)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrAgentNotFound
		}
		return nil, fmt.Errorf("store: get tenant by name: %w", err)
	}
	return &t, nil
}

// ErrUnauthenticated is returned when a bearer token matches no tenant.
var ErrUnauthenticated = errors.New("store: unauthenticated")
