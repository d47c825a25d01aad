package app

import "stock-ledger/internal/core"

// CommandResult is returned by every stock command.
type CommandResult struct {
	CompanyCode string            `json:"company_code"`
	Levels      []core.StockLevel `json:"stock_levels"`
	Movements   []core.Movement   `json:"movements"`
	NoOp        bool              `json:"no_op"`
}

// StockResult is returned by GetStockLevel.
type StockResult struct {
	CompanyCode string            `json:"company_code"`
	Levels      []core.StockLevel `json:"stock_levels"`
	Cached      bool              `json:"cached"`
}

// WarehouseListResult is returned by ListWarehouses.
type WarehouseListResult struct {
	Warehouses []core.Warehouse `json:"warehouses"`
}

// LocationListResult is returned by ListLocations and LookupBarcode.
type LocationListResult struct {
	Locations []core.Location `json:"locations"`
}

// MovementListResult is returned by ListMovements.
type MovementListResult struct {
	Movements []core.Movement `json:"movements"`
}
