package core

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ReceivingProcessor books goods arriving at a bin. It only ever raises on-hand;
// reservation counters are untouched.
type ReceivingProcessor interface {
	Receive(ctx context.Context, in ReceiveInput) (*CommandResult, error)
}

// ReceiveInput is the request for Receive. Reference ties the receipt to an
// external document such as a purchase order or delivery note.
type ReceiveInput struct {
	Tenant    string
	Item      string
	Location  LocationRef
	Qty       decimal.Decimal
	Reference string
	Actor     string
}

type receivingProcessor struct {
	ledger *StockLedger
}

// NewReceivingProcessor constructs a ReceivingProcessor over ledger.
func NewReceivingProcessor(ledger *StockLedger) ReceivingProcessor {
	return &receivingProcessor{ledger: ledger}
}

func (p *receivingProcessor) Receive(ctx context.Context, in ReceiveInput) (*CommandResult, error) {
	in.Item, in.Location = strings.TrimSpace(in.Item), in.Location.normalize()
	if err := validateCommon(in.Tenant, in.Item, in.Actor, in.Location); err != nil {
		return nil, err
	}
	if err := requirePositive(in.Qty, in.Item, in.Location); err != nil {
		return nil, err
	}

	var res *CommandResult
	err := p.ledger.inTx(ctx, in.Tenant, errScope{item: in.Item, location: in.Location.String()}, func(tx pgx.Tx, companyID int) error {
		loc, err := lockInboundLocation(ctx, tx, companyID, in.Location)
		if err != nil {
			return err
		}
		id, err := p.ledger.getOrCreateTx(ctx, tx, companyID, in.Item, loc)
		if err != nil {
			return err
		}
		level, err := p.ledger.lockTx(ctx, tx, companyID, id)
		if err != nil {
			return err
		}
		if err := checkCapacity(ctx, tx, loc, in.Item, in.Qty); err != nil {
			return err
		}

		next, mv, err := p.ledger.applyDeltaTx(ctx, tx, level, Delta{OnHand: in.Qty}, MovementInput{
			Type:      MovementReceive,
			Quantity:  in.Qty,
			Actor:     in.Actor,
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
