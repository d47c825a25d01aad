package app

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiveRequest is the input for Receive.
type ReceiveRequest struct {
	CompanyCode   string
	Item          string
	WarehouseCode string
	LocationCode  string
	Qty           decimal.Decimal
	Reference     string // e.g. purchase order or delivery note number
	Actor         string
}

// TransferRequest is the input for Transfer.
type TransferRequest struct {
	CompanyCode   string
	Item          string
	FromWarehouse string
	FromLocation  string
	ToWarehouse   string
	ToLocation    string
	Qty           decimal.Decimal
	Reason        string
	Reference     string
	Actor         string
	CorrelationID string // optional UUID; generated when empty
}

// AdjustRequest is the input for Adjust.
type AdjustRequest struct {
	CompanyCode   string
	Item          string
	WarehouseCode string
	LocationCode  string
	NewOnHand     decimal.Decimal
	Reason        string
	Reference     string
	Actor         string
}

// ReservationRequest is the input for Reserve and Release.
type ReservationRequest struct {
	CompanyCode   string
	Item          string
	WarehouseCode string
	LocationCode  string
	Qty           decimal.Decimal
	Kind          string // "soft" or "hard"
	Reference     string
	Actor         string
}

// PromoteRequest is the input for Promote.
type PromoteRequest struct {
	CompanyCode   string
	Item          string
	WarehouseCode string
	LocationCode  string
	Qty           decimal.Decimal
	Reference     string
	Actor         string
}

// IssueRequest is the input for Issue.
type IssueRequest struct {
	CompanyCode   string
	Item          string
	WarehouseCode string
	LocationCode  string
	Qty           decimal.Decimal
	Reference     string
	Actor         string
}

// StockQueryRequest is the input for GetStockLevel. Empty fields match everything.
type StockQueryRequest struct {
	CompanyCode   string
	Item          string
	WarehouseCode string
	LocationCode  string
}

// CreateWarehouseRequest is the input for CreateWarehouse.
type CreateWarehouseRequest struct {
	CompanyCode string
	Code        string
	Name        string
}

// CreateLocationRequest is the input for CreateLocation.
type CreateLocationRequest struct {
	CompanyCode   string
	WarehouseCode string
	Code          string
	Barcode       string           // defaults to Code
	Type          string           // PICKING, BULK, RETURN, DAMAGED or INBOUND
	Capacity      *decimal.Decimal // nil means unlimited
}

// MovementQuery selects audit rows. Exactly one selector is used, checked in
// this order: StockLevelID, CorrelationID, Actor, then the From/To range.
type MovementQuery struct {
	CompanyCode   string
	StockLevelID  int64
	CorrelationID string
	Actor         string
	From          time.Time
	To            time.Time
	Limit         int // applies to Actor queries
}
