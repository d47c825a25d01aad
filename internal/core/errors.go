package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// ErrorKind classifies every failure the stock engine returns to callers.
type ErrorKind string

const (
	KindInvalidQuantity    ErrorKind = "INVALID_QUANTITY"
	KindInsufficientStock  ErrorKind = "INSUFFICIENT_STOCK"
	KindInvariantViolation ErrorKind = "INVARIANT_VIOLATION"
	KindLocationNotFound   ErrorKind = "LOCATION_NOT_FOUND"
	KindLocationNotEmpty   ErrorKind = "LOCATION_NOT_EMPTY"
	KindDuplicateLocation  ErrorKind = "DUPLICATE_LOCATION"
	KindMissingReason      ErrorKind = "MISSING_REASON"
	KindConcurrencyTimeout ErrorKind = "CONCURRENCY_TIMEOUT"
	KindSameLocation       ErrorKind = "SAME_LOCATION"
	KindCapacityExceeded   ErrorKind = "CAPACITY_EXCEEDED"
	KindWarehouseNotFound  ErrorKind = "WAREHOUSE_NOT_FOUND"
	KindTenantNotFound     ErrorKind = "TENANT_NOT_FOUND"
	KindInvalidInput       ErrorKind = "INVALID_INPUT"
)

// Sentinels for errors.Is. A *StockError matches the sentinel of its Kind.
var (
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvariantViolation = errors.New("stock invariant violation")
	ErrLocationNotFound   = errors.New("location not found")
	ErrLocationNotEmpty   = errors.New("location not empty")
	ErrDuplicateLocation  = errors.New("duplicate location")
	ErrMissingReason      = errors.New("reason is required")
	ErrConcurrencyTimeout = errors.New("timed out waiting for stock lock")
	ErrSameLocation       = errors.New("source and destination location are the same")
	ErrCapacityExceeded   = errors.New("location capacity exceeded")
	ErrWarehouseNotFound  = errors.New("warehouse not found")
	ErrTenantNotFound     = errors.New("company not found")
	ErrInvalidInput       = errors.New("invalid input")
)

var sentinels = map[ErrorKind]error{
	KindInvalidQuantity:    ErrInvalidQuantity,
	KindInsufficientStock:  ErrInsufficientStock,
	KindInvariantViolation: ErrInvariantViolation,
	KindLocationNotFound:   ErrLocationNotFound,
	KindLocationNotEmpty:   ErrLocationNotEmpty,
	KindDuplicateLocation:  ErrDuplicateLocation,
	KindMissingReason:      ErrMissingReason,
	KindConcurrencyTimeout: ErrConcurrencyTimeout,
	KindSameLocation:       ErrSameLocation,
	KindCapacityExceeded:   ErrCapacityExceeded,
	KindWarehouseNotFound:  ErrWarehouseNotFound,
	KindTenantNotFound:     ErrTenantNotFound,
	KindInvalidInput:       ErrInvalidInput,
}

// StockError carries enough structured detail for a caller to render a message:
// the kind, the item and location involved, and requested vs available quantity.
type StockError struct {
	Kind      ErrorKind
	Item      string
	Location  string
	Requested decimal.Decimal
	Available decimal.Decimal
	Msg       string
	Err       error
}

func (e *StockError) Error() string {
	var b strings.Builder
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else if s, ok := sentinels[e.Kind]; ok {
		b.WriteString(s.Error())
	} else {
		b.WriteString(string(e.Kind))
	}
	if e.Item != "" {
		fmt.Fprintf(&b, ": item %s", e.Item)
	}
	if e.Location != "" {
		fmt.Fprintf(&b, " at %s", e.Location)
	}
	if !e.Requested.IsZero() || !e.Available.IsZero() {
		fmt.Fprintf(&b, " (requested %s, available %s)", e.Requested.String(), e.Available.String())
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Is reports whether target is the sentinel for e.Kind.
func (e *StockError) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func (e *StockError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind of err, or "" if err is not a stock engine error.
func KindOf(err error) ErrorKind {
	var se *StockError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

func newError(kind ErrorKind, msg string) *StockError {
	return &StockError{Kind: kind, Msg: msg}
}

func insufficientStock(item, location string, requested, available decimal.Decimal) *StockError {
	return &StockError{
		Kind:      KindInsufficientStock,
		Item:      item,
		Location:  location,
		Requested: requested,
		Available: available,
	}
}

// Postgres SQLSTATE codes the engine translates into its own taxonomy.
const (
	pgLockNotAvailable = "55P03"
	pgDeadlockDetected = "40P01"
	pgCheckViolation   = "23514"
	pgUniqueViolation  = "23505"
	pgNumericOverflow  = "22003"
)

// mapPgError translates lock timeouts, deadlocks, CHECK violations and
// quantity overflow into StockErrors. Anything else is returned unchanged.
func mapPgError(err error, item, location string) error {
	if err == nil {
		return nil
	}
	var se *StockError
	if errors.As(err, &se) {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgLockNotAvailable, pgDeadlockDetected:
		return &StockError{Kind: KindConcurrencyTimeout, Item: item, Location: location, Err: err}
	case pgCheckViolation:
		return &StockError{Kind: KindInvariantViolation, Item: item, Location: location, Err: err}
	case pgNumericOverflow:
		return &StockError{Kind: KindInvalidQuantity, Item: item, Location: location, Msg: "quantity out of range", Err: err}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
