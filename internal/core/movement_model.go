package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType is the operation that produced a movement row.
type MovementType string

const (
	MovementReceive     MovementType = "RECEIVE"
	MovementTransferOut MovementType = "TRANSFER_OUT"
	MovementTransferIn  MovementType = "TRANSFER_IN"
	MovementAdjust      MovementType = "ADJUST"
	MovementReserve     MovementType = "RESERVE"
	MovementRelease     MovementType = "RELEASE"
	MovementPromote     MovementType = "PROMOTE"
	MovementIssue       MovementType = "ISSUE"
)

func (t MovementType) valid() bool {
	switch t {
	case MovementReceive, MovementTransferOut, MovementTransferIn, MovementAdjust,
		MovementReserve, MovementRelease, MovementPromote, MovementIssue:
		return true
	}
	return false
}

// ReservationKind distinguishes provisional holds from committed allocations.
type ReservationKind string

const (
	ReservationSoft ReservationKind = "SOFT"
	ReservationHard ReservationKind = "HARD"
)

// ParseReservationKind accepts "soft" or "hard" in any casing.
func ParseReservationKind(s string) (ReservationKind, error) {
	k := ReservationKind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case ReservationSoft, ReservationHard:
		return k, nil
	}
	return "", newError(KindInvalidInput, fmt.Sprintf("unknown reservation kind %q", s))
}

// delta returns the counter change for reserving qty of kind k.
func (k ReservationKind) delta(qty decimal.Decimal) Delta {
	if k == ReservationHard {
		return Delta{Reserved: qty}
	}
	return Delta{SoftReserved: qty}
}

// Movement is one immutable audit row. It references its StockLevel by id only.
type Movement struct {
	ID                int64           `json:"id"`
	CompanyID         int             `json:"company_id"`
	StockLevelID      int64           `json:"stock_level_id"`
	Type              MovementType    `json:"type"`
	ReservationKind   ReservationKind `json:"reservation_kind,omitempty"`
	Quantity          decimal.Decimal `json:"quantity"`
	OnHandDelta       decimal.Decimal `json:"on_hand_delta"`
	ReservedDelta     decimal.Decimal `json:"reserved_delta"`
	SoftReservedDelta decimal.Decimal `json:"soft_reserved_delta"`
	OnHandBefore      decimal.Decimal `json:"on_hand_before"`
	OnHandAfter       decimal.Decimal `json:"on_hand_after"`
	Actor             string          `json:"actor"`
	Reason            string          `json:"reason,omitempty"`
	Reference         string          `json:"reference,omitempty"`
	CorrelationID     *uuid.UUID      `json:"correlation_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Delta returns the counter change this movement recorded.
func (m Movement) Delta() Delta {
	return Delta{OnHand: m.OnHandDelta, Reserved: m.ReservedDelta, SoftReserved: m.SoftReservedDelta}
}

// MovementInput describes the audit row a ledger mutation must write.
type MovementInput struct {
	Type            MovementType
	ReservationKind ReservationKind
	Quantity        decimal.Decimal
	Actor           string
	Reason          string
	Reference       string
	CorrelationID   *uuid.UUID
}

// CommandResult is returned by every successful stock command: the stock levels
// it touched, in their committed state, and the movements it appended.
type CommandResult struct {
	Levels    []StockLevel `json:"stock_levels"`
	Movements []Movement   `json:"movements"`
	// NoOp is set when the command was valid but changed nothing.
	NoOp bool `json:"no_op,omitempty"`
}

func singleResult(level *StockLevel, m *Movement) *CommandResult {
	return &CommandResult{Levels: []StockLevel{*level}, Movements: []Movement{*m}}
}
