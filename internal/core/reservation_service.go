package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ReservationManager places, releases and promotes holds against available stock.
// Availability is always read from the locked row, so concurrent reservations
// can never jointly exceed on-hand.
type ReservationManager interface {
	// Reserve holds qty of item at a location. Fails InsufficientStock when
	// available < qty, including when the item has never been stocked there.
	Reserve(ctx context.Context, in ReservationInput) (*CommandResult, error)
	// Release returns a hold of the given kind to available.
	Release(ctx context.Context, in ReservationInput) (*CommandResult, error)
	// Promote converts soft-reserved quantity into a hard reservation.
	// On-hand and available are unchanged.
	Promote(ctx context.Context, in PromoteInput) (*CommandResult, error)
}

// ReservationInput is the request for Reserve and Release.
type ReservationInput struct {
	Tenant    string
	Item      string
	Location  LocationRef
	Qty       decimal.Decimal
	Kind      ReservationKind
	Actor     string
	Reference string
}

// PromoteInput is the request for Promote.
type PromoteInput struct {
	Tenant    string
	Item      string
	Location  LocationRef
	Qty       decimal.Decimal
	Actor     string
	Reference string
}

type reservationManager struct {
	ledger *StockLedger
}

// NewReservationManager constructs a ReservationManager over ledger.
func NewReservationManager(ledger *StockLedger) ReservationManager {
	return &reservationManager{ledger: ledger}
}

func (in *ReservationInput) validate() error {
	in.Item, in.Location = strings.TrimSpace(in.Item), in.Location.normalize()
	if err := validateCommon(in.Tenant, in.Item, in.Actor, in.Location); err != nil {
		return err
	}
	kind, err := ParseReservationKind(string(in.Kind))
	if err != nil {
		return err
	}
	in.Kind = kind
	return requirePositive(in.Qty, in.Item, in.Location)
}

func (r *reservationManager) Reserve(ctx context.Context, in ReservationInput) (*CommandResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var res *CommandResult
	err := r.ledger.inTx(ctx, in.Tenant, errScope{item: in.Item, location: in.Location.String()}, func(tx pgx.Tx, companyID int) error {
		_, level, err := r.ledger.lockAtTx(ctx, tx, companyID, in.Item, in.Location)
		if err != nil {
			return err
		}
		if level == nil {
			return insufficientStock(in.Item, in.Location.String(), in.Qty, decimal.Zero)
		}
		if level.Available.LessThan(in.Qty) {
			return insufficientStock(in.Item, in.Location.String(), in.Qty, level.Available)
		}

		next, mv, err := r.ledger.applyDeltaTx(ctx, tx, level, in.Kind.delta(in.Qty), MovementInput{
			Type:            MovementReserve,
			ReservationKind: in.Kind,
			Quantity:        in.Qty,
			Actor:           in.Actor,
			Reference:       in.Reference,
		})
		if err != nil {
			return err
		}
		res = singleResult(next, mv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *reservationManager) Release(ctx context.Context, in ReservationInput) (*CommandResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var res *CommandResult
	err := r.ledger.inTx(ctx, in.Tenant, errScope{item: in.Item, location: in.Location.String()}, func(tx pgx.Tx, companyID int) error {
		_, level, err := r.ledger.lockAtTx(ctx, tx, companyID, in.Item, in.Location)
		if err != nil {
			return err
		}
		held := decimal.Zero
		if level != nil {
			held = level.SoftReserved
			if in.Kind == ReservationHard {
				held = level.Reserved
			}
		}
		if held.LessThan(in.Qty) {
			return &StockError{
				Kind:      KindInvalidQuantity,
				Item:      in.Item,
				Location:  in.Location.String(),
				Requested: in.Qty,
				Available: held,
				Msg:       fmt.Sprintf("release exceeds %s reservation held", strings.ToLower(string(in.Kind))),
			}
		}

		next, mv, err := r.ledger.applyDeltaTx(ctx, tx, level, in.Kind.delta(in.Qty.Neg()), MovementInput{
			Type:            MovementRelease,
			ReservationKind: in.Kind,
			Quantity:        in.Qty,
			Actor:           in.Actor,
			Reference:       in.Reference,
		})
		if err != nil {
			return err
		}
		res = singleResult(next, mv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *reservationManager) Promote(ctx context.Context, in PromoteInput) (*CommandResult, error) {
	in.Item, in.Location = strings.TrimSpace(in.Item), in.Location.normalize()
	if err := validateCommon(in.Tenant, in.Item, in.Actor, in.Location); err != nil {
		return nil, err
	}
	if err := requirePositive(in.Qty, in.Item, in.Location); err != nil {
		return nil, err
	}

	var res *CommandResult
	err := r.ledger.inTx(ctx, in.Tenant, errScope{item: in.Item, location: in.Location.String()}, func(tx pgx.Tx, companyID int) error {
		_, level, err := r.ledger.lockAtTx(ctx, tx, companyID, in.Item, in.Location)
		if err != nil {
			return err
		}
		soft := decimal.Zero
		if level != nil {
			soft = level.SoftReserved
		}
		if soft.LessThan(in.Qty) {
			return &StockError{
				Kind:      KindInvalidQuantity,
				Item:      in.Item,
				Location:  in.Location.String(),
				Requested: in.Qty,
				Available: soft,
				Msg:       "promotion exceeds soft reservation held",
			}
		}

		next, mv, err := r.ledger.applyDeltaTx(ctx, tx, level, Delta{Reserved: in.Qty, SoftReserved: in.Qty.Neg()}, MovementInput{
			Type:            MovementPromote,
			ReservationKind: ReservationHard,
			Quantity:        in.Qty,
			Actor:           in.Actor,
			Reference:       in.Reference,
		})
		if err != nil {
			return err
		}
		res = singleResult(next, mv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
