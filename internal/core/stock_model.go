package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockLevel is the ledger record for one (item, warehouse, location) triple.
//
// Invariant: 0 <= Reserved + SoftReserved <= OnHand, so Available >= 0.
type StockLevel struct {
	ID            int64           `json:"id"`
	CompanyID     int             `json:"company_id"`
	ItemCode      string          `json:"item_code"`
	WarehouseID   int             `json:"warehouse_id"`
	LocationID    int             `json:"location_id"`
	WarehouseCode string          `json:"warehouse_code"`
	LocationCode  string          `json:"location_code"`
	LocationType  LocationType    `json:"location_type"`
	OnHand        decimal.Decimal `json:"quantity_on_hand"`
	Reserved      decimal.Decimal `json:"quantity_reserved"`
	SoftReserved  decimal.Decimal `json:"quantity_soft_reserved"`
	Available     decimal.Decimal `json:"quantity_available"` // = OnHand - Reserved - SoftReserved
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Delta is a signed change to the three counters of a StockLevel.
type Delta struct {
	OnHand       decimal.Decimal
	Reserved     decimal.Decimal
	SoftReserved decimal.Decimal
}

// IsZero reports whether d changes nothing.
func (d Delta) IsZero() bool {
	return d.OnHand.IsZero() && d.Reserved.IsZero() && d.SoftReserved.IsZero()
}

// Ref returns the location address of s.
func (s StockLevel) Ref() LocationRef {
	return LocationRef{WarehouseCode: s.WarehouseCode, LocationCode: s.LocationCode}
}

// Committed is the quantity promised away by hard and soft reservations.
func (s StockLevel) Committed() decimal.Decimal {
	return s.Reserved.Add(s.SoftReserved)
}

// IsEmpty reports whether all three counters are zero.
func (s StockLevel) IsEmpty() bool {
	return s.OnHand.IsZero() && s.Reserved.IsZero() && s.SoftReserved.IsZero()
}

// CheckInvariant returns an InvariantViolation if s breaks the ledger rule.
func (s StockLevel) CheckInvariant() error {
	switch {
	case s.OnHand.IsNegative():
		return s.violation("on-hand would become negative")
	case s.Reserved.IsNegative():
		return s.violation("hard reservation would become negative")
	case s.SoftReserved.IsNegative():
		return s.violation("soft reservation would become negative")
	case s.Committed().GreaterThan(s.OnHand):
		return s.violation("reservations would exceed on-hand")
	}
	return nil
}

// Apply returns s with d added. s itself is never modified; on an invariant
// breach the original record stays authoritative and an error is returned.
func (s StockLevel) Apply(d Delta) (StockLevel, error) {
	next := s
	next.OnHand = s.OnHand.Add(d.OnHand)
	next.Reserved = s.Reserved.Add(d.Reserved)
	next.SoftReserved = s.SoftReserved.Add(d.SoftReserved)
	next.Available = next.OnHand.Sub(next.Committed())
	if err := next.CheckInvariant(); err != nil {
		return s, err
	}
	return next, nil
}

func (s StockLevel) violation(msg string) *StockError {
	return &StockError{
		Kind:      KindInvariantViolation,
		Item:      s.ItemCode,
		Location:  s.Ref().String(),
		Msg:       "stock invariant violation: " + msg,
		Available: decimal.Max(s.OnHand.Sub(s.Committed()), decimal.Zero),
	}
}

func (s *StockLevel) refreshAvailable() {
	s.Available = s.OnHand.Sub(s.Committed())
}

// StockQuery filters GetStockLevels. Empty fields match everything.
type StockQuery struct {
	ItemCode      string
	WarehouseCode string
	LocationCode  string
}
