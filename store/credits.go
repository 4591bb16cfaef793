package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/workflowai/gateway/core"
)

// CreditFloor bounds how far in debt a single DecrementCredits call may put
// a tenant. It is deliberately far below zero: an in-flight run that was
// already admitted must still be able to post its cost even if the balance
// crossed zero while the run was running. AdmitRun is the gate that stops
// *new* runs once balance is negative; DecrementCredits refuses a charge
// only when it would take the balance below CreditFloor.
const CreditFloor = -1_000_000.0

// DecrementCredits atomically subtracts amountUSD from tenant's balance and
// returns the resulting balance. This is the single consistent write path
// for balance mutation (§4.8/§5): a conditional UPDATE ... WHERE ...
// RETURNING rather than an in-process mutex, so it stays correct across any
// number of gateway replicas sharing one database.
func (s *Store) DecrementCredits(ctx context.Context, tenantUID int64, amountUSD float64) (float64, error) {
	var balance float64
	err := s.pool.QueryRow(ctx, `
		UPDATE tenants
		SET balance_usd = balance_usd - $2
		WHERE tenant_uid = $1 AND balance_usd - $2 >= $3
		RETURNING balance_usd
	`, tenantUID, amountUSD, CreditFloor).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, fmt.Errorf("store: decrement credits: tenant %d at or below credit floor", tenantUID)
		}
		return 0, fmt.Errorf("store: decrement credits: %w", err)
	}
	return balance, nil
}

// AdmitRun reports whether tenant has a non-negative balance, the gate a
// caller checks before starting a new run (§5: crossing zero blocks new
// runs, not in-flight ones). Returns core.ErrInsufficientCredits when not.
func (s *Store) AdmitRun(ctx context.Context, tenantUID int64) error {
	var balance float64
	err := s.pool.QueryRow(ctx, `SELECT balance_usd FROM tenants WHERE tenant_uid = $1`, tenantUID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("store: admit run: unknown tenant %d", tenantUID)
		}
		return fmt.Errorf("store: admit run: %w", err)
	}
	if balance < 0 {
		return core.ErrInsufficientCredits
	}
	return nil
}
