package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// AuditTrail is the append-only movement log. Record is the only write and it
// always joins the caller's transaction, so a movement exists iff its ledger
// mutation committed.
type AuditTrail interface {
	// Record appends m inside tx and fills in its ID and CreatedAt.
	Record(ctx context.Context, tx pgx.Tx, m *Movement) error

	ByStockLevel(ctx context.Context, tenant string, stockLevelID int64) ([]Movement, error)
	ByActor(ctx context.Context, tenant, actor string, limit int) ([]Movement, error)
	ByTimeRange(ctx context.Context, tenant string, from, to time.Time) ([]Movement, error)
	// ByCorrelation returns the movements written by one logical operation, e.g. both legs of a transfer.
	ByCorrelation(ctx context.Context, tenant string, correlationID uuid.UUID) ([]Movement, error)

	// Replay folds every movement of a stock level from zero and compares the
	// result with the stored counters.
	Replay(ctx context.Context, tenant string, stockLevelID int64) (*ReplayResult, error)
}

// ReplayResult is the outcome of rebuilding a stock level from its history.
type ReplayResult struct {
	StockLevelID int64           `json:"stock_level_id"`
	Movements    int             `json:"movements"`
	OnHand       decimal.Decimal `json:"replayed_on_hand"`
	Reserved     decimal.Decimal `json:"replayed_reserved"`
	SoftReserved decimal.Decimal `json:"replayed_soft_reserved"`
	Current      *StockLevel     `json:"current"`
	Consistent   bool            `json:"consistent"`
	// Breaks lists movement ids whose on_hand_before does not continue the running total.
	Breaks []int64 `json:"breaks,omitempty"`
}

type auditTrail struct {
	pool *pgxpool.Pool
}

// NewAuditTrail constructs an AuditTrail over the stock_movements table.
func NewAuditTrail(pool *pgxpool.Pool) AuditTrail {
	return &auditTrail{pool: pool}
}

func (a *auditTrail) Record(ctx context.Context, tx pgx.Tx, m *Movement) error {
	if !m.Type.valid() {
		return newError(KindInvalidInput, fmt.Sprintf("unknown movement type %q", m.Type))
	}
	if m.StockLevelID == 0 {
		return newError(KindInvalidInput, "movement has no stock level")
	}

	var kind *string
	if m.ReservationKind != "" {
		k := string(m.ReservationKind)
		kind = &k
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO stock_movements (company_id, stock_level_id, movement_type, reservation_kind,
		                             quantity, on_hand_delta, reserved_delta, soft_reserved_delta,
		                             on_hand_before, on_hand_after, actor, reason, reference, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at
	`, m.CompanyID, m.StockLevelID, string(m.Type), kind,
		m.Quantity, m.OnHandDelta, m.ReservedDelta, m.SoftReservedDelta,
		m.OnHandBefore, m.OnHandAfter, m.Actor, m.Reason, m.Reference, m.CorrelationID,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record %s movement: %w", m.Type, err)
	}
	return nil
}

const movementSelect = `
	SELECT id, company_id, stock_level_id, movement_type, COALESCE(reservation_kind, ''),
	       quantity, on_hand_delta, reserved_delta, soft_reserved_delta,
	       on_hand_before, on_hand_after, actor, reason, reference, correlation_id, created_at
	FROM stock_movements`

func scanMovements(rows pgx.Rows) ([]Movement, error) {
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		var mtype, kind string
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.StockLevelID, &mtype, &kind,
			&m.Quantity, &m.OnHandDelta, &m.ReservedDelta, &m.SoftReservedDelta,
			&m.OnHandBefore, &m.OnHandAfter, &m.Actor, &m.Reason, &m.Reference,
			&m.CorrelationID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		m.Type = MovementType(mtype)
		m.ReservationKind = ReservationKind(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (a *auditTrail) query(ctx context.Context, tenant, where string, args ...any) ([]Movement, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	companyID, err := resolveCompany(ctx, a.pool, tenant)
	if err != nil {
		return nil, err
	}
	rows, err := a.pool.Query(ctx, movementSelect+" WHERE company_id = $1 AND "+where, append([]any{companyID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	return scanMovements(rows)
}

func (a *auditTrail) ByStockLevel(ctx context.Context, tenant string, stockLevelID int64) ([]Movement, error) {
	return a.query(ctx, tenant, "stock_level_id = $2 ORDER BY id", stockLevelID)
}

func (a *auditTrail) ByActor(ctx context.Context, tenant, actor string, limit int) ([]Movement, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	return a.query(ctx, tenant, "actor = $2 ORDER BY id DESC LIMIT $3", actor, limit)
}

func (a *auditTrail) ByTimeRange(ctx context.Context, tenant string, from, to time.Time) ([]Movement, error) {
	if !to.IsZero() && to.Before(from) {
		return nil, newError(KindInvalidInput, "time range end is before its start")
	}
	if to.IsZero() {
		to = time.Now()
	}
	return a.query(ctx, tenant, "created_at >= $2 AND created_at < $3 ORDER BY id", from, to)
}

func (a *auditTrail) ByCorrelation(ctx context.Context, tenant string, correlationID uuid.UUID) ([]Movement, error) {
	return a.query(ctx, tenant, "correlation_id = $2 ORDER BY id", correlationID)
}

func (a *auditTrail) Replay(ctx context.Context, tenant string, stockLevelID int64) (*ReplayResult, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}

	// One snapshot for both the history and the current row.
	tx, err := a.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	companyID, err := resolveCompany(ctx, tx, tenant)
	if err != nil {
		return nil, err
	}

	current, err := scanStockLevel(tx.QueryRow(ctx, stockSelect+`
		WHERE sl.company_id = $1 AND sl.id = $2
	`, companyID, stockLevelID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stockLevelNotFound(stockLevelID)
		}
		return nil, fmt.Errorf("failed to load stock level: %w", err)
	}

	rows, err := tx.Query(ctx, movementSelect+" WHERE company_id = $1 AND stock_level_id = $2 ORDER BY id",
		companyID, stockLevelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	movements, err := scanMovements(rows)
	if err != nil {
		return nil, err
	}

	res := fold(stockLevelID, movements)
	res.Current = current
	res.Consistent = len(res.Breaks) == 0 &&
		res.OnHand.Equal(current.OnHand) &&
		res.Reserved.Equal(current.Reserved) &&
		res.SoftReserved.Equal(current.SoftReserved)
	return res, tx.Commit(ctx)
}

// fold sums movement deltas from zero in id order.
func fold(stockLevelID int64, movements []Movement) *ReplayResult {
	res := &ReplayResult{
		StockLevelID: stockLevelID,
		Movements:    len(movements),
		OnHand:       decimal.Zero,
		Reserved:     decimal.Zero,
		SoftReserved: decimal.Zero,
	}
	for _, m := range movements {
		if !m.OnHandBefore.Equal(res.OnHand) || !m.OnHandAfter.Equal(m.OnHandBefore.Add(m.OnHandDelta)) {
			res.Breaks = append(res.Breaks, m.ID)
		}
		res.OnHand = res.OnHand.Add(m.OnHandDelta)
		res.Reserved = res.Reserved.Add(m.ReservedDelta)
		res.SoftReserved = res.SoftReserved.Add(m.SoftReservedDelta)
	}
	return res
}
