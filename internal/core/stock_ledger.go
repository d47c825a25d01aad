package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// StockLedger is the authoritative store of per-(item, location) quantities.
// Every mutation goes through applyDeltaTx: lock the row, check the invariant on
// the locked values, write the row and append one movement, all in the caller's
// transaction.
type StockLedger struct {
	txRunner
	audit AuditTrail
}

// NewStockLedger constructs a StockLedger. lockTimeout bounds every row-lock wait;
// zero selects DefaultLockTimeout.
func NewStockLedger(pool *pgxpool.Pool, audit AuditTrail, lockTimeout time.Duration) *StockLedger {
	return &StockLedger{txRunner: newTxRunner(pool, lockTimeout), audit: audit}
}

const stockSelect = `
	SELECT sl.id, sl.company_id, sl.item_code, sl.warehouse_id, sl.location_id,
	       w.code, l.code, l.location_type,
	       sl.qty_on_hand, sl.qty_reserved, sl.qty_soft_reserved, sl.updated_at
	FROM stock_levels sl
	JOIN warehouses w ON w.id = sl.warehouse_id
	JOIN locations l  ON l.id = sl.location_id`

func scanStockLevel(row pgx.Row) (*StockLevel, error) {
	var s StockLevel
	if err := row.Scan(&s.ID, &s.CompanyID, &s.ItemCode, &s.WarehouseID, &s.LocationID,
		&s.WarehouseCode, &s.LocationCode, &s.LocationType,
		&s.OnHand, &s.Reserved, &s.SoftReserved, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.refreshAvailable()
	return &s, nil
}

func stockLevelNotFound(id int64) *StockError {
	return &StockError{Kind: KindLocationNotFound, Msg: fmt.Sprintf("stock level %d not found", id)}
}

// ── Public operations ─────────────────────────────────────────────────────────

// GetOrCreate returns the stock level for item at ref, inserting a zero row if none exists.
func (l *StockLedger) GetOrCreate(ctx context.Context, tenant, item string, ref LocationRef) (*StockLevel, error) {
	item, ref = strings.TrimSpace(item), ref.normalize()
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if err := requireItem(item); err != nil {
		return nil, err
	}
	if err := ref.validate(); err != nil {
		return nil, err
	}

	var level *StockLevel
	err := l.inTx(ctx, tenant, errScope{item: item, location: ref.String()}, func(tx pgx.Tx, companyID int) error {
		loc, err := findLocation(ctx, tx, companyID, ref, lockShare)
		if err != nil {
			return err
		}
		id, err := l.getOrCreateTx(ctx, tx, companyID, item, loc)
		if err != nil {
			return err
		}
		level, err = scanStockLevel(tx.QueryRow(ctx, stockSelect+" WHERE sl.id = $1", id))
		if err != nil {
			return fmt.Errorf("failed to load stock level: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return level, nil
}

// ApplyDelta applies d to one stock level and appends the movement described by
// in, atomically. Location capacity is not consulted here; the processors that
// move stock into a bin check it themselves.
func (l *StockLedger) ApplyDelta(ctx context.Context, tenant string, stockLevelID int64, d Delta, in MovementInput) (*StockLevel, *Movement, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, nil, err
	}
	if err := requireActor(in.Actor); err != nil {
		return nil, nil, err
	}
	if !in.Type.valid() {
		return nil, nil, newError(KindInvalidInput, fmt.Sprintf("unknown movement type %q", in.Type))
	}
	if d.IsZero() {
		return nil, nil, newError(KindInvalidQuantity, "delta changes nothing")
	}
	if !in.Quantity.IsPositive() {
		return nil, nil, newError(KindInvalidQuantity, "movement quantity must be positive")
	}
	for _, q := range []decimal.Decimal{in.Quantity, d.OnHand, d.Reserved, d.SoftReserved} {
		if err := requireStorable(q, "", ""); err != nil {
			return nil, nil, err
		}
	}

	var (
		level *StockLevel
		mv    *Movement
	)
	err := l.inTx(ctx, tenant, errScope{}, func(tx pgx.Tx, companyID int) error {
		// Location before stock row, matching every other command.
		var locationID int
		err := tx.QueryRow(ctx,
			"SELECT location_id FROM stock_levels WHERE id = $1 AND company_id = $2",
			stockLevelID, companyID,
		).Scan(&locationID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return stockLevelNotFound(stockLevelID)
			}
			return fmt.Errorf("failed to resolve stock level: %w", err)
		}
		if err := lockLocationByID(ctx, tx, locationID); err != nil {
			return err
		}

		current, err := l.lockTx(ctx, tx, companyID, stockLevelID)
		if err != nil {
			return err
		}
		level, mv, err = l.applyDeltaTx(ctx, tx, current, d, in)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return level, mv, nil
}

// GetStockLevels lists stock levels at active locations, filtered by q.
func (l *StockLedger) GetStockLevels(ctx context.Context, tenant string, q StockQuery) ([]StockLevel, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	companyID, err := resolveCompany(ctx, l.pool, tenant)
	if err != nil {
		return nil, err
	}

	rows, err := l.pool.Query(ctx, stockSelect+`
		WHERE sl.company_id = $1
		  AND l.is_active AND w.is_active
		  AND ($2 = '' OR sl.item_code = $2)
		  AND ($3 = '' OR w.code = $3)
		  AND ($4 = '' OR l.code = $4)
		ORDER BY sl.item_code, w.code, l.code
	`, companyID, strings.TrimSpace(q.ItemCode), strings.TrimSpace(q.WarehouseCode), strings.TrimSpace(q.LocationCode))
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		s, err := scanStockLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels = append(levels, *s)
	}
	return levels, rows.Err()
}

// GetStockLevel returns one stock level by id.
func (l *StockLedger) GetStockLevel(ctx context.Context, tenant string, stockLevelID int64) (*StockLevel, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	companyID, err := resolveCompany(ctx, l.pool, tenant)
	if err != nil {
		return nil, err
	}
	s, err := scanStockLevel(l.pool.QueryRow(ctx, stockSelect+`
		WHERE sl.company_id = $1 AND sl.id = $2
	`, companyID, stockLevelID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stockLevelNotFound(stockLevelID)
		}
		return nil, fmt.Errorf("failed to load stock level: %w", err)
	}
	return s, nil
}

// ── TX-scoped primitives shared by the processors ─────────────────────────────

// findTx returns the stock level for item at loc, or nil if none exists.
// With forUpdate the row is locked.
func (l *StockLedger) findTx(ctx context.Context, tx pgx.Tx, companyID int, item string, loc *Location, forUpdate bool) (*StockLevel, error) {
	sql := stockSelect + " WHERE sl.company_id = $1 AND sl.item_code = $2 AND sl.location_id = $3"
	if forUpdate {
		sql += " FOR UPDATE OF sl"
	}
	s, err := scanStockLevel(tx.QueryRow(ctx, sql, companyID, item, loc.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read stock level: %w", err)
	}
	return s, nil
}

// getOrCreateTx returns the id of the stock level for item at loc, inserting a
// zero row if needed. The insert never takes a lock on an existing row.
func (l *StockLedger) getOrCreateTx(ctx context.Context, tx pgx.Tx, companyID int, item string, loc *Location) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO stock_levels (company_id, item_code, warehouse_id, location_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (company_id, item_code, location_id) DO NOTHING
		RETURNING id
	`, companyID, item, loc.WarehouseID, loc.ID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to create stock level: %w", err)
	}

	err = tx.QueryRow(ctx,
		"SELECT id FROM stock_levels WHERE company_id = $1 AND item_code = $2 AND location_id = $3",
		companyID, item, loc.ID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read stock level: %w", err)
	}
	return id, nil
}

// lockTx locks one stock level row and returns its current values.
func (l *StockLedger) lockTx(ctx context.Context, tx pgx.Tx, companyID int, id int64) (*StockLevel, error) {
	s, err := scanStockLevel(tx.QueryRow(ctx, stockSelect+`
		WHERE sl.company_id = $1 AND sl.id = $2
		FOR UPDATE OF sl
	`, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stockLevelNotFound(id)
		}
		return nil, fmt.Errorf("failed to lock stock level: %w", err)
	}
	return s, nil
}

// lockPairTx locks two distinct stock levels in ascending id order and returns
// them in argument order.
func (l *StockLedger) lockPairTx(ctx context.Context, tx pgx.Tx, companyID int, a, b int64) (*StockLevel, *StockLevel, error) {
	if a == b {
		return nil, nil, newError(KindSameLocation, "cannot lock a stock level against itself")
	}
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	lo, err := l.lockTx(ctx, tx, companyID, first)
	if err != nil {
		return nil, nil, err
	}
	hi, err := l.lockTx(ctx, tx, companyID, second)
	if err != nil {
		return nil, nil, err
	}
	if lo.ID == a {
		return lo, hi, nil
	}
	return hi, lo, nil
}

// applyDeltaTx writes current+d and appends the movement. current must be locked
// by tx. On an invariant breach nothing is written.
func (l *StockLedger) applyDeltaTx(ctx context.Context, tx pgx.Tx, current *StockLevel, d Delta, in MovementInput) (*StockLevel, *Movement, error) {
	next, err := current.Apply(d)
	if err != nil {
		return nil, nil, err
	}

	err = tx.QueryRow(ctx, `
		UPDATE stock_levels
		SET qty_on_hand = $1, qty_reserved = $2, qty_soft_reserved = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`, next.OnHand, next.Reserved, next.SoftReserved, current.ID).Scan(&next.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update stock level: %w", err)
	}

	m := &Movement{
		CompanyID:         current.CompanyID,
		StockLevelID:      current.ID,
		Type:              in.Type,
		ReservationKind:   in.ReservationKind,
		Quantity:          in.Quantity,
		OnHandDelta:       d.OnHand,
		ReservedDelta:     d.Reserved,
		SoftReservedDelta: d.SoftReserved,
		OnHandBefore:      current.OnHand,
		OnHandAfter:       next.OnHand,
		Actor:             in.Actor,
		Reason:            in.Reason,
		Reference:         in.Reference,
		CorrelationID:     in.CorrelationID,
	}
	if err := l.audit.Record(ctx, tx, m); err != nil {
		return nil, nil, err
	}
	return &next, m, nil
}

// lockAtTx share-locks the active bin at ref, then locks the stock row for item
// there. The returned level is nil when no row exists yet.
func (l *StockLedger) lockAtTx(ctx context.Context, tx pgx.Tx, companyID int, item string, ref LocationRef) (*Location, *StockLevel, error) {
	loc, err := findLocation(ctx, tx, companyID, ref, lockShare)
	if err != nil {
		return nil, nil, err
	}
	level, err := l.findTx(ctx, tx, companyID, item, loc, true)
	if err != nil {
		return nil, nil, err
	}
	return loc, level, nil
}
