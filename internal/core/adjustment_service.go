package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AdjustmentProcessor sets on-hand to a counted value, e.g. after a cycle count.
// The count is ground truth, so location capacity is not enforced.
type AdjustmentProcessor interface {
	// Adjust sets on-hand to NewOnHand. A count equal to the current on-hand
	// returns a NoOp result and writes nothing. The new value may not drop below
	// the quantity already reserved.
	Adjust(ctx context.Context, in AdjustInput) (*CommandResult, error)
}

// AdjustInput is the request for Adjust.
type AdjustInput struct {
	Tenant    string
	Item      string
	Location  LocationRef
	NewOnHand decimal.Decimal
	Reason    string
	Actor     string
	Reference string
}

type adjustmentProcessor struct {
	ledger *StockLedger
}

// NewAdjustmentProcessor constructs an AdjustmentProcessor over ledger.
func NewAdjustmentProcessor(ledger *StockLedger) AdjustmentProcessor {
	return &adjustmentProcessor{ledger: ledger}
}

func (a *adjustmentProcessor) Adjust(ctx context.Context, in AdjustInput) (*CommandResult, error) {
	in.Item, in.Location = strings.TrimSpace(in.Item), in.Location.normalize()
	if err := validateCommon(in.Tenant, in.Item, in.Actor, in.Location); err != nil {
		return nil, err
	}
	if in.NewOnHand.IsNegative() {
		return nil, &StockError{
			Kind:     KindInvalidQuantity,
			Item:     in.Item,
			Location: in.Location.String(),
			Msg:      fmt.Sprintf("counted quantity cannot be negative, got %s", in.NewOnHand.String()),
		}
	}
	if err := requireStorable(in.NewOnHand, in.Item, in.Location.String()); err != nil {
		return nil, err
	}
	if err := requireReason(in.Reason, in.Item, in.Location); err != nil {
		return nil, err
	}

	var res *CommandResult
	err := a.ledger.inTx(ctx, in.Tenant, errScope{item: in.Item, location: in.Location.String()}, func(tx pgx.Tx, companyID int) error {
		loc, level, err := a.ledger.lockAtTx(ctx, tx, companyID, in.Item, in.Location)
		if err != nil {
			return err
		}
		if level == nil {
			if in.NewOnHand.IsZero() {
				res = &CommandResult{NoOp: true}
				return nil
			}
			// Found stock for an item never recorded here.
			id, err := a.ledger.getOrCreateTx(ctx, tx, companyID, in.Item, loc)
			if err != nil {
				return err
			}
			if level, err = a.ledger.lockTx(ctx, tx, companyID, id); err != nil {
				return err
			}
		}

		diff := in.NewOnHand.Sub(level.OnHand)
		if diff.IsZero() {
			res = &CommandResult{Levels: []StockLevel{*level}, NoOp: true}
			return nil
		}
		if in.NewOnHand.LessThan(level.Committed()) {
			return &StockError{
				Kind:      KindInvariantViolation,
				Item:      in.Item,
				Location:  in.Location.String(),
				Requested: in.NewOnHand,
				Available: level.Committed(),
				Msg:       "counted quantity is below the quantity already reserved",
			}
		}

		next, mv, err := a.ledger.applyDeltaTx(ctx, tx, level, Delta{OnHand: diff}, MovementInput{
			Type:      MovementAdjust,
			Quantity:  diff.Abs(),
			Actor:     in.Actor,
			Reason:    in.Reason,
			Reference: in.Reference,
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
