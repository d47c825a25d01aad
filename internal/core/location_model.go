package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LocationType is the operational purpose of a storage bin.
type LocationType string

const (
	LocationPicking LocationType = "PICKING"
	LocationBulk    LocationType = "BULK"
	LocationReturn  LocationType = "RETURN"
	LocationDamaged LocationType = "DAMAGED"
	LocationInbound LocationType = "INBOUND"
)

// ParseLocationType accepts any casing of a known location type.
func ParseLocationType(s string) (LocationType, error) {
	t := LocationType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case LocationPicking, LocationBulk, LocationReturn, LocationDamaged, LocationInbound:
		return t, nil
	}
	return "", newError(KindInvalidInput, fmt.Sprintf("unknown location type %q", s))
}

// Warehouse is a physical site owned by a company. Warehouses are soft-disabled, never deleted.
type Warehouse struct {
	ID            int        `json:"id"`
	CompanyID     int        `json:"company_id"`
	Code          string     `json:"code"`
	Name          string     `json:"name"`
	IsActive      bool       `json:"is_active"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Location is an addressable bin inside a warehouse.
// (WarehouseID, Code) and (WarehouseID, Barcode) are unique.
type Location struct {
	ID            int                 `json:"id"`
	CompanyID     int                 `json:"company_id"`
	WarehouseID   int                 `json:"warehouse_id"`
	WarehouseCode string              `json:"warehouse_code"`
	Code          string              `json:"code"`
	Barcode       string              `json:"barcode"`
	Type          LocationType        `json:"type"`
	Capacity      decimal.NullDecimal `json:"capacity"` // max total on-hand across items; null = unlimited
	IsActive      bool                `json:"is_active"`
	DeactivatedAt *time.Time          `json:"deactivated_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Ref returns the (warehouse code, location code) address of l.
func (l *Location) Ref() LocationRef {
	return LocationRef{WarehouseCode: l.WarehouseCode, LocationCode: l.Code}
}

// LocationRef addresses a bin by warehouse code and location code.
type LocationRef struct {
	WarehouseCode string `json:"warehouse"`
	LocationCode  string `json:"location"`
}

func (r LocationRef) String() string {
	return r.WarehouseCode + "/" + r.LocationCode
}

func (r LocationRef) normalize() LocationRef {
	return LocationRef{
		WarehouseCode: strings.TrimSpace(r.WarehouseCode),
		LocationCode:  strings.TrimSpace(r.LocationCode),
	}
}

func (r LocationRef) validate() error {
	if r.WarehouseCode == "" || r.LocationCode == "" {
		return newError(KindInvalidInput, "location requires warehouse and location code")
	}
	return nil
}
