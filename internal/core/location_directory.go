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

// LocationDirectory is the registry of warehouses and their bins. It enforces
// code and barcode uniqueness on creation and gates deactivation on emptiness.
type LocationDirectory interface {
	CreateWarehouse(ctx context.Context, tenant, code, name string) (*Warehouse, error)
	ListWarehouses(ctx context.Context, tenant string, includeInactive bool) ([]Warehouse, error)
	// DeactivateWarehouse soft-disables a warehouse. Fails LocationNotEmpty if any
	// bin in it still holds on-hand or reserved quantity.
	DeactivateWarehouse(ctx context.Context, tenant, code string) (*Warehouse, error)

	CreateLocation(ctx context.Context, in CreateLocationInput) (*Location, error)
	ListLocations(ctx context.Context, tenant, warehouseCode string, includeInactive bool) ([]Location, error)
	GetLocation(ctx context.Context, tenant string, ref LocationRef) (*Location, error)
	FindByBarcode(ctx context.Context, tenant, warehouseCode, barcode string) (*Location, error)
	// ScanBarcode looks a barcode up across every active warehouse of the tenant.
	ScanBarcode(ctx context.Context, tenant, barcode string) ([]Location, error)
	// DeactivateLocation flips the active flag. Fails LocationNotEmpty while any
	// stock level at the bin has non-zero on-hand, reserved or soft-reserved.
	DeactivateLocation(ctx context.Context, tenant string, ref LocationRef) (*Location, error)
	ReactivateLocation(ctx context.Context, tenant string, ref LocationRef) (*Location, error)
}

// CreateLocationInput describes a new bin.
type CreateLocationInput struct {
	Tenant        string
	WarehouseCode string
	Code          string
	Barcode       string // defaults to Code
	Type          LocationType
	Capacity      decimal.NullDecimal
}

type locationDirectory struct {
	txRunner
}

// NewLocationDirectory constructs a LocationDirectory backed by PostgreSQL.
func NewLocationDirectory(pool *pgxpool.Pool, lockTimeout time.Duration) LocationDirectory {
	return &locationDirectory{txRunner: newTxRunner(pool, lockTimeout)}
}

// ── Warehouses ────────────────────────────────────────────────────────────────

const warehouseColumns = `id, company_id, code, name, is_active, deactivated_at, created_at`

func scanWarehouse(row pgx.Row) (*Warehouse, error) {
	var w Warehouse
	if err := row.Scan(&w.ID, &w.CompanyID, &w.Code, &w.Name, &w.IsActive, &w.DeactivatedAt, &w.CreatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

func (d *locationDirectory) CreateWarehouse(ctx context.Context, tenant, code, name string) (*Warehouse, error) {
	code, name = strings.TrimSpace(code), strings.TrimSpace(name)
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if code == "" || name == "" {
		return nil, newError(KindInvalidInput, "warehouse code and name are required")
	}

	var w *Warehouse
	err := d.inTx(ctx, tenant, errScope{}, func(tx pgx.Tx, companyID int) error {
		var err error
		w, err = scanWarehouse(tx.QueryRow(ctx, `
			INSERT INTO warehouses (company_id, code, name)
			VALUES ($1, $2, $3)
			RETURNING `+warehouseColumns,
			companyID, code, name))
		if err != nil {
			if isUniqueViolation(err) {
				return newError(KindDuplicateLocation, fmt.Sprintf("warehouse %s already exists", code))
			}
			return fmt.Errorf("failed to insert warehouse: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (d *locationDirectory) ListWarehouses(ctx context.Context, tenant string, includeInactive bool) ([]Warehouse, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	companyID, err := resolveCompany(ctx, d.pool, tenant)
	if err != nil {
		return nil, err
	}

	rows, err := d.pool.Query(ctx, `
		SELECT `+warehouseColumns+`
		FROM warehouses
		WHERE company_id = $1 AND (is_active OR $2)
		ORDER BY code
	`, companyID, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to query warehouses: %w", err)
	}
	defer rows.Close()

	var warehouses []Warehouse
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan warehouse: %w", err)
		}
		warehouses = append(warehouses, *w)
	}
	return warehouses, rows.Err()
}

func (d *locationDirectory) DeactivateWarehouse(ctx context.Context, tenant, code string) (*Warehouse, error) {
	code = strings.TrimSpace(code)
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, newError(KindInvalidInput, "warehouse code is required")
	}

	var w *Warehouse
	err := d.inTx(ctx, tenant, errScope{location: code}, func(tx pgx.Tx, companyID int) error {
		var err error
		w, err = scanWarehouse(tx.QueryRow(ctx, `
			SELECT `+warehouseColumns+`
			FROM warehouses
			WHERE company_id = $1 AND code = $2 AND is_active
			FOR UPDATE
		`, companyID, code))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &StockError{Kind: KindWarehouseNotFound, Location: code}
			}
			return fmt.Errorf("failed to lock warehouse: %w", err)
		}

		// Wait out in-flight receipts and transfers into any bin of this warehouse.
		if _, err := tx.Exec(ctx, `
			SELECT id FROM locations WHERE warehouse_id = $1 AND is_active ORDER BY id FOR UPDATE
		`, w.ID); err != nil {
			return fmt.Errorf("failed to lock warehouse locations: %w", err)
		}

		var occupied int
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM stock_levels
			WHERE warehouse_id = $1
			  AND (qty_on_hand <> 0 OR qty_reserved <> 0 OR qty_soft_reserved <> 0)
		`, w.ID).Scan(&occupied); err != nil {
			return fmt.Errorf("failed to check warehouse stock: %w", err)
		}
		if occupied > 0 {
			return &StockError{
				Kind:     KindLocationNotEmpty,
				Location: code,
				Msg:      fmt.Sprintf("warehouse still holds stock in %d ledger record(s)", occupied),
			}
		}

		w, err = scanWarehouse(tx.QueryRow(ctx, `
			UPDATE warehouses SET is_active = false, deactivated_at = NOW()
			WHERE id = $1
			RETURNING `+warehouseColumns, w.ID))
		if err != nil {
			return fmt.Errorf("failed to deactivate warehouse: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// ── Locations ─────────────────────────────────────────────────────────────────

const locationSelect = `
	SELECT l.id, l.company_id, l.warehouse_id, w.code, l.code, l.barcode, l.location_type,
	       l.capacity, l.is_active, l.deactivated_at, l.created_at
	FROM locations l
	JOIN warehouses w ON w.id = l.warehouse_id`

func scanLocation(row pgx.Row) (*Location, error) {
	var l Location
	if err := row.Scan(&l.ID, &l.CompanyID, &l.WarehouseID, &l.WarehouseCode, &l.Code, &l.Barcode,
		&l.Type, &l.Capacity, &l.IsActive, &l.DeactivatedAt, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func scanLocations(rows pgx.Rows) ([]Location, error) {
	defer rows.Close()
	var out []Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

type lockMode int

const (
	lockNone lockMode = iota
	lockShare
	lockUpdate
)

func (m lockMode) clause() string {
	switch m {
	case lockShare:
		return " FOR SHARE OF l"
	case lockUpdate:
		return " FOR UPDATE OF l"
	}
	return ""
}

// findLocation resolves an active bin in an active warehouse.
func findLocation(ctx context.Context, q querier, companyID int, ref LocationRef, mode lockMode) (*Location, error) {
	loc, err := scanLocation(q.QueryRow(ctx, locationSelect+`
		WHERE l.company_id = $1 AND w.code = $2 AND l.code = $3
		  AND l.is_active AND w.is_active`+mode.clause(),
		companyID, ref.WarehouseCode, ref.LocationCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &StockError{Kind: KindLocationNotFound, Location: ref.String()}
		}
		return nil, fmt.Errorf("failed to resolve location %s: %w", ref, err)
	}
	return loc, nil
}

// lockLocationByID share-locks an active bin so it cannot be deactivated while
// stock rows under it are being changed.
func lockLocationByID(ctx context.Context, tx pgx.Tx, locationID int) error {
	var id int
	err := tx.QueryRow(ctx, `
		SELECT l.id FROM locations l
		JOIN warehouses w ON w.id = l.warehouse_id
		WHERE l.id = $1 AND l.is_active AND w.is_active
		FOR SHARE OF l
	`, locationID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &StockError{Kind: KindLocationNotFound, Msg: "location is inactive or missing"}
		}
		return fmt.Errorf("failed to lock location: %w", err)
	}
	return nil
}

// lockInboundLocation resolves a bin that stock is about to enter. The bin row is
// share-locked so it cannot be deactivated mid-flight; bins with a capacity are
// locked exclusively so concurrent inbound moves cannot jointly overfill them.
func lockInboundLocation(ctx context.Context, tx pgx.Tx, companyID int, ref LocationRef) (*Location, error) {
	loc, err := findLocation(ctx, tx, companyID, ref, lockNone)
	if err != nil {
		return nil, err
	}
	mode := lockShare
	if loc.Capacity.Valid {
		mode = lockUpdate
	}
	return findLocation(ctx, tx, companyID, ref, mode)
}

// checkCapacity fails CapacityExceeded if adding qty to loc would exceed its capacity.
// The caller must hold an exclusive lock on loc when it has a capacity.
func checkCapacity(ctx context.Context, tx pgx.Tx, loc *Location, item string, qty decimal.Decimal) error {
	if !loc.Capacity.Valid {
		return nil
	}
	var stored decimal.Decimal
	if err := tx.QueryRow(ctx,
		"SELECT COALESCE(SUM(qty_on_hand), 0) FROM stock_levels WHERE location_id = $1", loc.ID,
	).Scan(&stored); err != nil {
		return fmt.Errorf("failed to sum location stock: %w", err)
	}
	if stored.Add(qty).GreaterThan(loc.Capacity.Decimal) {
		return &StockError{
			Kind:      KindCapacityExceeded,
			Item:      item,
			Location:  loc.Ref().String(),
			Requested: qty,
			Available: decimal.Max(loc.Capacity.Decimal.Sub(stored), decimal.Zero),
		}
	}
	return nil
}

func (d *locationDirectory) CreateLocation(ctx context.Context, in CreateLocationInput) (*Location, error) {
	in.WarehouseCode = strings.TrimSpace(in.WarehouseCode)
	in.Code = strings.TrimSpace(in.Code)
	in.Barcode = strings.TrimSpace(in.Barcode)
	if in.Barcode == "" {
		in.Barcode = in.Code
	}
	ref := LocationRef{WarehouseCode: in.WarehouseCode, LocationCode: in.Code}

	if err := requireTenant(in.Tenant); err != nil {
		return nil, err
	}
	if err := ref.validate(); err != nil {
		return nil, err
	}
	locType, err := ParseLocationType(string(in.Type))
	if err != nil {
		return nil, err
	}
	if in.Capacity.Valid && in.Capacity.Decimal.IsNegative() {
		return nil, &StockError{Kind: KindInvalidQuantity, Location: ref.String(), Msg: "capacity cannot be negative"}
	}
	if in.Capacity.Valid {
		if err := requireStorable(in.Capacity.Decimal, "", ref.String()); err != nil {
			return nil, err
		}
	}

	var loc *Location
	err = d.inTx(ctx, in.Tenant, errScope{location: ref.String()}, func(tx pgx.Tx, companyID int) error {
		var warehouseID int
		err := tx.QueryRow(ctx,
			"SELECT id FROM warehouses WHERE company_id = $1 AND code = $2 AND is_active",
			companyID, in.WarehouseCode,
		).Scan(&warehouseID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &StockError{Kind: KindWarehouseNotFound, Location: in.WarehouseCode}
			}
			return fmt.Errorf("failed to resolve warehouse: %w", err)
		}

		var id int
		err = tx.QueryRow(ctx, `
			INSERT INTO locations (company_id, warehouse_id, code, barcode, location_type, capacity)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, companyID, warehouseID, in.Code, in.Barcode, string(locType), in.Capacity).Scan(&id)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				what := "code " + in.Code
				if strings.Contains(pgErr.ConstraintName, "barcode") {
					what = "barcode " + in.Barcode
				}
				return &StockError{
					Kind:     KindDuplicateLocation,
					Location: ref.String(),
					Msg:      fmt.Sprintf("location %s already used in warehouse %s", what, in.WarehouseCode),
				}
			}
			return fmt.Errorf("failed to insert location: %w", err)
		}

		loc, err = scanLocation(tx.QueryRow(ctx, locationSelect+" WHERE l.id = $1", id))
		if err != nil {
			return fmt.Errorf("failed to reload location: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loc, nil
}

func (d *locationDirectory) ListLocations(ctx context.Context, tenant, warehouseCode string, includeInactive bool) ([]Location, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	companyID, err := resolveCompany(ctx, d.pool, tenant)
	if err != nil {
		return nil, err
	}

	rows, err := d.pool.Query(ctx, locationSelect+`
		WHERE l.company_id = $1
		  AND ($2 = '' OR w.code = $2)
		  AND ((l.is_active AND w.is_active) OR $3)
		ORDER BY w.code, l.code
	`, companyID, strings.TrimSpace(warehouseCode), includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	return scanLocations(rows)
}

func (d *locationDirectory) GetLocation(ctx context.Context, tenant string, ref LocationRef) (*Location, error) {
	ref = ref.normalize()
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if err := ref.validate(); err != nil {
		return nil, err
	}
	companyID, err := resolveCompany(ctx, d.pool, tenant)
	if err != nil {
		return nil, err
	}
	return findLocation(ctx, d.pool, companyID, ref, lockNone)
}

func (d *locationDirectory) FindByBarcode(ctx context.Context, tenant, warehouseCode, barcode string) (*Location, error) {
	warehouseCode, barcode = strings.TrimSpace(warehouseCode), strings.TrimSpace(barcode)
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if warehouseCode == "" || barcode == "" {
		return nil, newError(KindInvalidInput, "warehouse code and barcode are required")
	}
	companyID, err := resolveCompany(ctx, d.pool, tenant)
	if err != nil {
		return nil, err
	}

	loc, err := scanLocation(d.pool.QueryRow(ctx, locationSelect+`
		WHERE l.company_id = $1 AND w.code = $2 AND l.barcode = $3
		  AND l.is_active AND w.is_active
	`, companyID, warehouseCode, barcode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &StockError{Kind: KindLocationNotFound, Location: warehouseCode + "/" + barcode, Msg: "no location with this barcode"}
		}
		return nil, fmt.Errorf("failed to look up barcode: %w", err)
	}
	return loc, nil
}

func (d *locationDirectory) ScanBarcode(ctx context.Context, tenant, barcode string) ([]Location, error) {
	barcode = strings.TrimSpace(barcode)
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if barcode == "" {
		return nil, newError(KindInvalidInput, "barcode is required")
	}
	companyID, err := resolveCompany(ctx, d.pool, tenant)
	if err != nil {
		return nil, err
	}

	rows, err := d.pool.Query(ctx, locationSelect+`
		WHERE l.company_id = $1 AND l.barcode = $2 AND l.is_active AND w.is_active
		ORDER BY w.code
	`, companyID, barcode)
	if err != nil {
		return nil, fmt.Errorf("failed to look up barcode: %w", err)
	}
	locs, err := scanLocations(rows)
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return nil, &StockError{Kind: KindLocationNotFound, Location: barcode, Msg: "no location with this barcode"}
	}
	return locs, nil
}

func (d *locationDirectory) DeactivateLocation(ctx context.Context, tenant string, ref LocationRef) (*Location, error) {
	ref = ref.normalize()
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if err := ref.validate(); err != nil {
		return nil, err
	}

	var loc *Location
	err := d.inTx(ctx, tenant, errScope{location: ref.String()}, func(tx pgx.Tx, companyID int) error {
		var err error
		loc, err = findLocation(ctx, tx, companyID, ref, lockUpdate)
		if err != nil {
			return err
		}

		var occupied int
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM stock_levels
			WHERE location_id = $1
			  AND (qty_on_hand <> 0 OR qty_reserved <> 0 OR qty_soft_reserved <> 0)
		`, loc.ID).Scan(&occupied); err != nil {
			return fmt.Errorf("failed to check location stock: %w", err)
		}
		if occupied > 0 {
			return &StockError{
				Kind:     KindLocationNotEmpty,
				Location: ref.String(),
				Msg:      fmt.Sprintf("location still holds stock for %d item(s)", occupied),
			}
		}

		if _, err := tx.Exec(ctx,
			"UPDATE locations SET is_active = false, deactivated_at = NOW() WHERE id = $1", loc.ID,
		); err != nil {
			return fmt.Errorf("failed to deactivate location: %w", err)
		}
		loc, err = scanLocation(tx.QueryRow(ctx, locationSelect+" WHERE l.id = $1", loc.ID))
		if err != nil {
			return fmt.Errorf("failed to reload location: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loc, nil
}

func (d *locationDirectory) ReactivateLocation(ctx context.Context, tenant string, ref LocationRef) (*Location, error) {
	ref = ref.normalize()
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if err := ref.validate(); err != nil {
		return nil, err
	}

	var loc *Location
	err := d.inTx(ctx, tenant, errScope{location: ref.String()}, func(tx pgx.Tx, companyID int) error {
		var err error
		loc, err = scanLocation(tx.QueryRow(ctx, locationSelect+`
			WHERE l.company_id = $1 AND w.code = $2 AND l.code = $3 AND w.is_active
			FOR UPDATE OF l
		`, companyID, ref.WarehouseCode, ref.LocationCode))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &StockError{Kind: KindLocationNotFound, Location: ref.String()}
			}
			return fmt.Errorf("failed to lock location: %w", err)
		}
		if loc.IsActive {
			return nil
		}

		if _, err := tx.Exec(ctx,
			"UPDATE locations SET is_active = true, deactivated_at = NULL WHERE id = $1", loc.ID,
		); err != nil {
			return fmt.Errorf("failed to reactivate location: %w", err)
		}
		loc.IsActive = true
		loc.DeactivatedAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loc, nil
}
