package app

import (
	"context"

	"stock-ledger/internal/core"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It decouples presentation from the stock engine. Every method takes the
// tenant explicitly as a company code. Implementations must contain no
// display logic of any kind.
type ApplicationService interface {
	// Receive books goods arriving at a location.
	Receive(ctx context.Context, req ReceiveRequest) (*CommandResult, error)

	// Transfer moves on-hand between two locations, possibly across warehouses.
	// Both legs commit together or not at all.
	Transfer(ctx context.Context, req TransferRequest) (*CommandResult, error)

	// Adjust sets on-hand to a counted value. Returns NoOp when nothing changes.
	Adjust(ctx context.Context, req AdjustRequest) (*CommandResult, error)

	// Reserve places a soft or hard hold against available stock.
	Reserve(ctx context.Context, req ReservationRequest) (*CommandResult, error)

	// Release returns a soft or hard hold to available.
	Release(ctx context.Context, req ReservationRequest) (*CommandResult, error)

	// Promote converts a soft hold into a hard one.
	Promote(ctx context.Context, req PromoteRequest) (*CommandResult, error)

	// Issue books the physical pick of hard-reserved stock.
	Issue(ctx context.Context, req IssueRequest) (*CommandResult, error)

	// GetStockLevel returns the stock levels matching the query. Warehouse and
	// location are optional filters.
	GetStockLevel(ctx context.Context, req StockQueryRequest) (*StockResult, error)

	CreateWarehouse(ctx context.Context, req CreateWarehouseRequest) (*core.Warehouse, error)
	ListWarehouses(ctx context.Context, companyCode string, includeInactive bool) (*WarehouseListResult, error)
	DeactivateWarehouse(ctx context.Context, companyCode, warehouseCode string) (*core.Warehouse, error)

	CreateLocation(ctx context.Context, req CreateLocationRequest) (*core.Location, error)
	ListLocations(ctx context.Context, companyCode, warehouseCode string, includeInactive bool) (*LocationListResult, error)
	DeactivateLocation(ctx context.Context, companyCode string, ref core.LocationRef) (*core.Location, error)
	ReactivateLocation(ctx context.Context, companyCode string, ref core.LocationRef) (*core.Location, error)

	// LookupBarcode resolves a scanned barcode. With a warehouse code the lookup
	// is scoped to that warehouse; without one every active warehouse is searched.
	LookupBarcode(ctx context.Context, companyCode, warehouseCode, barcode string) (*LocationListResult, error)

	// ListMovements reads the audit trail by stock level, actor, correlation id or time range.
	ListMovements(ctx context.Context, req MovementQuery) (*MovementListResult, error)

	// VerifyStockLevel replays a stock level's movements and reports whether
	// they reproduce the stored counters.
	VerifyStockLevel(ctx context.Context, companyCode string, stockLevelID int64) (*core.ReplayResult, error)

	// Health checks the database and cache connections.
	Health(ctx context.Context) error
}
