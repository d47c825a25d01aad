package core

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransferOrchestrator moves on-hand between two bins as one atomic unit: both
// rows change and both movements are written, or nothing is.
type TransferOrchestrator interface {
	Transfer(ctx context.Context, in TransferInput) (*CommandResult, error)
}

// TransferInput is the request for Transfer. CorrelationID links the two
// movement legs; a new one is generated when nil.
type TransferInput struct {
	Tenant        string
	Item          string
	From          LocationRef
	To            LocationRef
	Qty           decimal.Decimal
	Reason        string
	Actor         string
	Reference     string
	CorrelationID *uuid.UUID
}

type transferOrchestrator struct {
	ledger *StockLedger
}

// NewTransferOrchestrator constructs a TransferOrchestrator over ledger.
func NewTransferOrchestrator(ledger *StockLedger) TransferOrchestrator {
	return &transferOrchestrator{ledger: ledger}
}

func (in *TransferInput) validate() error {
	in.Item = strings.TrimSpace(in.Item)
	in.From, in.To = in.From.normalize(), in.To.normalize()
	if err := validateCommon(in.Tenant, in.Item, in.Actor, in.From); err != nil {
		return err
	}
	if err := in.To.validate(); err != nil {
		return err
	}
	if err := requirePositive(in.Qty, in.Item, in.From); err != nil {
		return err
	}
	if in.From == in.To {
		return &StockError{Kind: KindSameLocation, Item: in.Item, Location: in.From.String()}
	}
	return requireReason(in.Reason, in.Item, in.From)
}

func (t *transferOrchestrator) Transfer(ctx context.Context, in TransferInput) (*CommandResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	correlationID := in.CorrelationID
	if correlationID == nil {
		id := uuid.New()
		correlationID = &id
	}

	var res *CommandResult
	err := t.ledger.inTx(ctx, in.Tenant, errScope{item: in.Item, location: in.From.String()}, func(tx pgx.Tx, companyID int) error {
		from, to, err := lockTransferLocations(ctx, tx, companyID, in.From, in.To)
		if err != nil {
			return err
		}

		src, err := t.ledger.findTx(ctx, tx, companyID, in.Item, from, false)
		if err != nil {
			return err
		}
		if src == nil {
			return insufficientStock(in.Item, in.From.String(), in.Qty, decimal.Zero)
		}
		dstID, err := t.ledger.getOrCreateTx(ctx, tx, companyID, in.Item, to)
		if err != nil {
			return err
		}

		src, dst, err := t.ledger.lockPairTx(ctx, tx, companyID, src.ID, dstID)
		if err != nil {
			return err
		}
		if src.Available.LessThan(in.Qty) {
			return insufficientStock(in.Item, in.From.String(), in.Qty, src.Available)
		}
		if err := checkCapacity(ctx, tx, to, in.Item, in.Qty); err != nil {
			return err
		}

		leg := MovementInput{
			Quantity:      in.Qty,
			Actor:         in.Actor,
			Reason:        in.Reason,
			Reference:     in.Reference,
			CorrelationID: correlationID,
		}
		out := leg
		out.Type = MovementTransferOut
		srcNext, outMv, err := t.ledger.applyDeltaTx(ctx, tx, src, Delta{OnHand: in.Qty.Neg()}, out)
		if err != nil {
			return err
		}
		inLeg := leg
		inLeg.Type = MovementTransferIn
		dstNext, inMv, err := t.ledger.applyDeltaTx(ctx, tx, dst, Delta{OnHand: in.Qty}, inLeg)
		if err != nil {
			return err
		}

		res = &CommandResult{
			Levels:    []StockLevel{*srcNext, *dstNext},
			Movements: []Movement{*outMv, *inMv},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// lockTransferLocations locks both bins in ascending id order. The source is
// share-locked; the destination is locked exclusively when it has a capacity.
func lockTransferLocations(ctx context.Context, tx pgx.Tx, companyID int, fromRef, toRef LocationRef) (*Location, *Location, error) {
	from, err := findLocation(ctx, tx, companyID, fromRef, lockNone)
	if err != nil {
		return nil, nil, err
	}
	to, err := findLocation(ctx, tx, companyID, toRef, lockNone)
	if err != nil {
		return nil, nil, err
	}
	if from.ID == to.ID {
		return nil, nil, &StockError{Kind: KindSameLocation, Location: fromRef.String()}
	}

	toMode := lockShare
	if to.Capacity.Valid {
		toMode = lockUpdate
	}
	type step struct {
		ref  LocationRef
		mode lockMode
		dst  **Location
	}
	steps := []step{{fromRef, lockShare, &from}, {toRef, toMode, &to}}
	if to.ID < from.ID {
		steps[0], steps[1] = steps[1], steps[0]
	}
	for _, s := range steps {
		loc, err := findLocation(ctx, tx, companyID, s.ref, s.mode)
		if err != nil {
			return nil, nil, err
		}
		*s.dst = loc
	}
	return from, to, nil
}
