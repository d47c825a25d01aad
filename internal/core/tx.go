package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// querier is satisfied by pgx.Tx, *pgx.Conn and *pgxpool.Pool.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// resolveCompany maps a tenant (company code) to its id.
func resolveCompany(ctx context.Context, q querier, tenant string) (int, error) {
	var companyID int
	err := q.QueryRow(ctx, "SELECT id FROM companies WHERE company_code = $1", tenant).Scan(&companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, newError(KindTenantNotFound, fmt.Sprintf("company code %s not found", tenant))
		}
		return 0, fmt.Errorf("failed to resolve company: %w", err)
	}
	return companyID, nil
}

// DefaultLockTimeout bounds how long a command waits for a row lock.
const DefaultLockTimeout = 2 * time.Second

// txRunner opens transactions with a bounded lock wait.
type txRunner struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func newTxRunner(pool *pgxpool.Pool, lockTimeout time.Duration) txRunner {
	if lockTimeout < time.Millisecond {
		lockTimeout = DefaultLockTimeout
	}
	return txRunner{pool: pool, lockTimeout: lockTimeout}
}

// errScope is the item/location detail attached to lock and constraint errors.
type errScope struct {
	item     string
	location string
}

// inTx runs fn in one transaction with a bounded lock wait. Any error rolls the
// whole unit back; lock timeouts and deadlocks surface as ConcurrencyTimeout.
func (r txRunner) inTx(ctx context.Context, tenant string, scope errScope, fn func(tx pgx.Tx, companyID int) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	timeout := fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())
	if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", timeout); err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}

	companyID, err := resolveCompany(ctx, tx, tenant)
	if err != nil {
		return err
	}

	if err := fn(tx, companyID); err != nil {
		return mapPgError(err, scope.item, scope.location)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(fmt.Errorf("failed to commit: %w", err), scope.item, scope.location)
	}
	return nil
}

// ── Input validation (runs before any transaction is opened) ─────────────────

func requireTenant(tenant string) error {
	if strings.TrimSpace(tenant) == "" {
		return newError(KindInvalidInput, "company code is required")
	}
	return nil
}

func requireItem(item string) error {
	if strings.TrimSpace(item) == "" {
		return newError(KindInvalidInput, "item code is required")
	}
	return nil
}

func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return newError(KindInvalidInput, "actor is required")
	}
	return nil
}

// Quantity columns are NUMERIC(18,4): four decimal places, magnitude below 10^14.
const quantityScale = 4

var quantityLimit = decimal.New(1, 18-quantityScale)

// requireStorable rejects quantities the quantity columns would round or overflow.
func requireStorable(qty decimal.Decimal, item, location string) error {
	if !qty.Equal(qty.Truncate(quantityScale)) {
		return &StockError{
			Kind:     KindInvalidQuantity,
			Item:     item,
			Location: location,
			Msg:      fmt.Sprintf("quantity %s has more than %d decimal places", qty.String(), quantityScale),
		}
	}
	if qty.Abs().GreaterThanOrEqual(quantityLimit) {
		return &StockError{
			Kind:     KindInvalidQuantity,
			Item:     item,
			Location: location,
			Msg:      fmt.Sprintf("quantity %s must be below %s", qty.String(), quantityLimit.String()),
		}
	}
	return nil
}

func requirePositive(qty decimal.Decimal, item string, ref LocationRef) error {
	if !qty.IsPositive() {
		return &StockError{
			Kind:     KindInvalidQuantity,
			Item:     item,
			Location: ref.String(),
			Msg:      fmt.Sprintf("quantity must be positive, got %s", qty.String()),
		}
	}
	return requireStorable(qty, item, ref.String())
}

func requireReason(reason, item string, ref LocationRef) error {
	if strings.TrimSpace(reason) == "" {
		return &StockError{Kind: KindMissingReason, Item: item, Location: ref.String()}
	}
	return nil
}

// validateCommon checks tenant, item, actor and location address.
func validateCommon(tenant, item, actor string, ref LocationRef) error {
	if err := requireTenant(tenant); err != nil {
		return err
	}
	if err := requireItem(item); err != nil {
		return err
	}
	if err := requireActor(actor); err != nil {
		return err
	}
	return ref.validate()
}
