package core_test

import (
	"errors"
	"testing"

	"stock-ledger/internal/core"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func level(onHand, reserved, soft string) core.StockLevel {
	s := core.StockLevel{
		ItemCode:      "ITEM-A",
		WarehouseCode: "WH1",
		LocationCode:  "A-01",
		OnHand:        d(onHand),
		Reserved:      d(reserved),
		SoftReserved:  d(soft),
	}
	s.Available = s.OnHand.Sub(s.Committed())
	return s
}

func TestStockLevel_Apply(t *testing.T) {
	tests := []struct {
		name      string
		start     core.StockLevel
		delta     core.Delta
		wantErr   bool
		onHand    string
		available string
	}{
		{"receive", level("0", "0", "0"), core.Delta{OnHand: d("10")}, false, "10", "10"},
		{"soft reserve", level("10", "0", "0"), core.Delta{SoftReserved: d("4")}, false, "10", "6"},
		{"hard reserve up to on-hand", level("10", "2", "3"), core.Delta{Reserved: d("5")}, false, "10", "0"},
		{"promote keeps available", level("10", "2", "3"), core.Delta{Reserved: d("3"), SoftReserved: d("-3")}, false, "10", "5"},
		{"issue consumes hard", level("10", "4", "0"), core.Delta{OnHand: d("-4"), Reserved: d("-4")}, false, "6", "6"},
		{"fractional", level("1.5", "0", "0.25"), core.Delta{OnHand: d("0.75")}, false, "2.25", "2"},
		{"over-reserve", level("10", "6", "3"), core.Delta{SoftReserved: d("2")}, true, "", ""},
		{"on-hand below reserved", level("10", "6", "0"), core.Delta{OnHand: d("-5")}, true, "", ""},
		{"negative on-hand", level("3", "0", "0"), core.Delta{OnHand: d("-4")}, true, "", ""},
		{"negative reservation", level("10", "1", "0"), core.Delta{Reserved: d("-2")}, true, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := tt.start.Apply(tt.delta)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected invariant violation, got %+v", next)
				}
				if !errors.Is(err, core.ErrInvariantViolation) {
					t.Errorf("expected ErrInvariantViolation, got %v", err)
				}
				if !next.OnHand.Equal(tt.start.OnHand) || !next.Reserved.Equal(tt.start.Reserved) {
					t.Errorf("failed Apply must return the original level, got %+v", next)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !next.OnHand.Equal(d(tt.onHand)) {
				t.Errorf("on-hand: expected %s, got %s", tt.onHand, next.OnHand)
			}
			if !next.Available.Equal(d(tt.available)) {
				t.Errorf("available: expected %s, got %s", tt.available, next.Available)
			}
			if err := next.CheckInvariant(); err != nil {
				t.Errorf("result breaks invariant: %v", err)
			}
		})
	}
}

func TestStockLevel_ApplyDoesNotMutateReceiver(t *testing.T) {
	s := level("5", "1", "1")
	if _, err := s.Apply(core.Delta{OnHand: d("5")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.OnHand.Equal(d("5")) {
		t.Errorf("receiver changed: on-hand %s", s.OnHand)
	}
}

func TestStockLevel_IsEmpty(t *testing.T) {
	if !level("0", "0", "0").IsEmpty() {
		t.Error("zero level should be empty")
	}
	if level("0.0001", "0", "0").IsEmpty() {
		t.Error("level with on-hand should not be empty")
	}
}

func TestDelta_IsZero(t *testing.T) {
	if !(core.Delta{}).IsZero() {
		t.Error("zero-value delta should be zero")
	}
	if (core.Delta{SoftReserved: d("-1")}).IsZero() {
		t.Error("soft-reserved delta should not be zero")
	}
}

func TestStockError_Detail(t *testing.T) {
	err := error(&core.StockError{
		Kind:      core.KindInsufficientStock,
		Item:      "ITEM-A",
		Location:  "WH1/A-01",
		Requested: d("5"),
		Available: d("3"),
	})

	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Errorf("expected errors.Is ErrInsufficientStock")
	}
	if errors.Is(err, core.ErrInvalidQuantity) {
		t.Errorf("must not match another kind")
	}
	if got := core.KindOf(err); got != core.KindInsufficientStock {
		t.Errorf("KindOf: expected %s, got %s", core.KindInsufficientStock, got)
	}
	want := "insufficient stock: item ITEM-A at WH1/A-01 (requested 5, available 3)"
	if err.Error() != want {
		t.Errorf("message:\n  want %q\n  got  %q", want, err.Error())
	}
	if core.KindOf(errors.New("boom")) != "" {
		t.Errorf("KindOf of a plain error should be empty")
	}
}

func TestParseKinds(t *testing.T) {
	if k, err := core.ParseReservationKind(" soft "); err != nil || k != core.ReservationSoft {
		t.Errorf("ParseReservationKind(soft) = %q, %v", k, err)
	}
	if _, err := core.ParseReservationKind("firm"); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if lt, err := core.ParseLocationType("bulk"); err != nil || lt != core.LocationBulk {
		t.Errorf("ParseLocationType(bulk) = %q, %v", lt, err)
	}
	if _, err := core.ParseLocationType("ATTIC"); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
