package core

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// IssueProcessor books the physical pick of goods that were hard-reserved:
// on-hand and the hard reservation drop by the same amount, so available is
// unchanged.
type IssueProcessor interface {
	Issue(ctx context.Context, in IssueInput) (*CommandResult, error)
}

// IssueInput is the request for Issue.
type IssueInput struct {
	Tenant    string
	Item      string
	Location  LocationRef
	Qty       decimal.Decimal
	Reference string
	Actor     string
}

type issueProcessor struct {
	ledger *StockLedger
}

// NewIssueProcessor constructs an IssueProcessor over ledger.
func NewIssueProcessor(ledger *StockLedger) IssueProcessor {
	return &issueProcessor{ledger: ledger}
}

func (p *issueProcessor) Issue(ctx context.Context, in IssueInput) (*CommandResult, error) {
	in.Item, in.Location = strings.TrimSpace(in.Item), in.Location.normalize()
	if err := validateCommon(in.Tenant, in.Item, in.Actor, in.Location); err != nil {
		return nil, err
	}
	if err := requirePositive(in.Qty, in.Item, in.Location); err != nil {
		return nil, err
	}

	var res *CommandResult
	err := p.ledger.inTx(ctx, in.Tenant, errScope{item: in.Item, location: in.Location.String()}, func(tx pgx.Tx, companyID int) error {
		_, level, err := p.ledger.lockAtTx(ctx, tx, companyID, in.Item, in.Location)
		if err != nil {
			return err
		}
		reserved := decimal.Zero
		if level != nil {
			reserved = level.Reserved
		}
		if reserved.LessThan(in.Qty) {
			return &StockError{
				Kind:      KindInvalidQuantity,
				Item:      in.Item,
				Location:  in.Location.String(),
				Requested: in.Qty,
				Available: reserved,
				Msg:       "issue exceeds hard reservation held",
			}
		}

		next, mv, err := p.ledger.applyDeltaTx(ctx, tx, level, Delta{OnHand: in.Qty.Neg(), Reserved: in.Qty.Neg()}, MovementInput{
			Type:            MovementIssue,
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
