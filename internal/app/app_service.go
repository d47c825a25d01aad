package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stock-ledger/internal/cache"
	"stock-ledger/internal/core"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type appService struct {
	pool         *pgxpool.Pool
	ledger       *core.StockLedger
	audit        core.AuditTrail
	directory    core.LocationDirectory
	reservations core.ReservationManager
	transfers    core.TransferOrchestrator
	adjustments  core.AdjustmentProcessor
	receiving    core.ReceivingProcessor
	issues       core.IssueProcessor
	cache        cache.StockCache
}

// NewAppService wires the stock engine over pool and returns it as an
// ApplicationService. stockCache may be nil.
func NewAppService(pool *pgxpool.Pool, stockCache cache.StockCache, lockTimeout time.Duration) ApplicationService {
	if stockCache == nil {
		stockCache = cache.Noop{}
	}
	audit := core.NewAuditTrail(pool)
	ledger := core.NewStockLedger(pool, audit, lockTimeout)
	return &appService{
		pool:         pool,
		ledger:       ledger,
		audit:        audit,
		directory:    core.NewLocationDirectory(pool, lockTimeout),
		reservations: core.NewReservationManager(ledger),
		transfers:    core.NewTransferOrchestrator(ledger),
		adjustments:  core.NewAdjustmentProcessor(ledger),
		receiving:    core.NewReceivingProcessor(ledger),
		issues:       core.NewIssueProcessor(ledger),
		cache:        stockCache,
	}
}

func ref(warehouseCode, locationCode string) core.LocationRef {
	return core.LocationRef{WarehouseCode: warehouseCode, LocationCode: locationCode}
}

// commandResult converts a core result and drops cached reads of the item.
func (s *appService) commandResult(ctx context.Context, companyCode, item string, res *core.CommandResult, err error) (*CommandResult, error) {
	if err != nil {
		return nil, err
	}
	if !res.NoOp {
		s.cache.InvalidateItem(ctx, companyCode, item)
	}
	return &CommandResult{
		CompanyCode: companyCode,
		Levels:      res.Levels,
		Movements:   res.Movements,
		NoOp:        res.NoOp,
	}, nil
}

// ── Stock commands ────────────────────────────────────────────────────────────

func (s *appService) Receive(ctx context.Context, req ReceiveRequest) (*CommandResult, error) {
	res, err := s.receiving.Receive(ctx, core.ReceiveInput{
		Tenant:    req.CompanyCode,
		Item:      req.Item,
		Location:  ref(req.WarehouseCode, req.LocationCode),
		Qty:       req.Qty,
		Reference: req.Reference,
		Actor:     req.Actor,
	})
	return s.commandResult(ctx, req.CompanyCode, req.Item, res, err)
}

func (s *appService) Transfer(ctx context.Context, req TransferRequest) (*CommandResult, error) {
	var correlationID *uuid.UUID
	if c := strings.TrimSpace(req.CorrelationID); c != "" {
		id, err := uuid.Parse(c)
		if err != nil {
			return nil, &core.StockError{Kind: core.KindInvalidInput, Msg: fmt.Sprintf("invalid correlation id %q", c)}
		}
		correlationID = &id
	}

	res, err := s.transfers.Transfer(ctx, core.TransferInput{
		Tenant:        req.CompanyCode,
		Item:          req.Item,
		From:          ref(req.FromWarehouse, req.FromLocation),
		To:            ref(req.ToWarehouse, req.ToLocation),
		Qty:           req.Qty,
		Reason:        req.Reason,
		Actor:         req.Actor,
		Reference:     req.Reference,
		CorrelationID: correlationID,
	})
	return s.commandResult(ctx, req.CompanyCode, req.Item, res, err)
}

func (s *appService) Adjust(ctx context.Context, req AdjustRequest) (*CommandResult, error) {
	res, err := s.adjustments.Adjust(ctx, core.AdjustInput{
		Tenant:    req.CompanyCode,
		Item:      req.Item,
		Location:  ref(req.WarehouseCode, req.LocationCode),
		NewOnHand: req.NewOnHand,
		Reason:    req.Reason,
		Actor:     req.Actor,
		Reference: req.Reference,
	})
	return s.commandResult(ctx, req.CompanyCode, req.Item, res, err)
}

func (s *appService) reservationInput(req ReservationRequest) (core.ReservationInput, error) {
	kind, err := core.ParseReservationKind(req.Kind)
	if err != nil {
		return core.ReservationInput{}, err
	}
	return core.ReservationInput{
		Tenant:    req.CompanyCode,
		Item:      req.Item,
		Location:  ref(req.WarehouseCode, req.LocationCode),
		Qty:       req.Qty,
		Kind:      kind,
		Actor:     req.Actor,
		Reference: req.Reference,
	}, nil
}

func (s *appService) Reserve(ctx context.Context, req ReservationRequest) (*CommandResult, error) {
	in, err := s.reservationInput(req)
	if err != nil {
		return nil, err
	}
	res, err := s.reservations.Reserve(ctx, in)
	return s.commandResult(ctx, req.CompanyCode, req.Item, res, err)
}

func (s *appService) Release(ctx context.Context, req ReservationRequest) (*CommandResult, error) {
	in, err := s.reservationInput(req)
	if err != nil {
		return nil, err
	}
	res, err := s.reservations.Release(ctx, in)
	return s.commandResult(ctx, req.CompanyCode, req.Item, res, err)
}

func (s *appService) Promote(ctx context.Context, req PromoteRequest) (*CommandResult, error) {
	res, err := s.reservations.Promote(ctx, core.PromoteInput{
		Tenant:    req.CompanyCode,
		Item:      req.Item,
		Location:  ref(req.WarehouseCode, req.LocationCode),
		Qty:       req.Qty,
		Actor:     req.Actor,
		Reference: req.Reference,
	})
	return s.commandResult(ctx, req.CompanyCode, req.Item, res, err)
}

func (s *appService) Issue(ctx context.Context, req IssueRequest) (*CommandResult, error) {
	res, err := s.issues.Issue(ctx, core.IssueInput{
		Tenant:    req.CompanyCode,
		Item:      req.Item,
		Location:  ref(req.WarehouseCode, req.LocationCode),
		Qty:       req.Qty,
		Reference: req.Reference,
		Actor:     req.Actor,
	})
	return s.commandResult(ctx, req.CompanyCode, req.Item, res, err)
}

// ── Reads ─────────────────────────────────────────────────────────────────────

// GetStockLevel serves from the cache when possible. The cache is never used
// by commands.
func (s *appService) GetStockLevel(ctx context.Context, req StockQueryRequest) (*StockResult, error) {
	q := core.StockQuery{ItemCode: req.Item, WarehouseCode: req.WarehouseCode, LocationCode: req.LocationCode}
	if levels, ok := s.cache.GetStockLevels(ctx, req.CompanyCode, q); ok {
		return &StockResult{CompanyCode: req.CompanyCode, Levels: levels, Cached: true}, nil
	}

	// Taken before the read so a command committing meanwhile voids the set.
	gen := s.cache.Generation(ctx, req.CompanyCode)
	levels, err := s.ledger.GetStockLevels(ctx, req.CompanyCode, q)
	if err != nil {
		return nil, err
	}
	if levels == nil {
		levels = []core.StockLevel{}
	}
	s.cache.SetStockLevels(ctx, req.CompanyCode, gen, q, levels)
	return &StockResult{CompanyCode: req.CompanyCode, Levels: levels}, nil
}

func (s *appService) ListMovements(ctx context.Context, req MovementQuery) (*MovementListResult, error) {
	var (
		movements []core.Movement
		err       error
	)
	switch {
	case req.StockLevelID > 0:
		movements, err = s.audit.ByStockLevel(ctx, req.CompanyCode, req.StockLevelID)
	case strings.TrimSpace(req.CorrelationID) != "":
		id, perr := uuid.Parse(strings.TrimSpace(req.CorrelationID))
		if perr != nil {
			return nil, &core.StockError{Kind: core.KindInvalidInput, Msg: fmt.Sprintf("invalid correlation id %q", req.CorrelationID)}
		}
		movements, err = s.audit.ByCorrelation(ctx, req.CompanyCode, id)
	case strings.TrimSpace(req.Actor) != "":
		movements, err = s.audit.ByActor(ctx, req.CompanyCode, strings.TrimSpace(req.Actor), req.Limit)
	case !req.From.IsZero():
		movements, err = s.audit.ByTimeRange(ctx, req.CompanyCode, req.From, req.To)
	default:
		return nil, &core.StockError{Kind: core.KindInvalidInput, Msg: "movement query needs a stock level, correlation id, actor or time range"}
	}
	if err != nil {
		return nil, err
	}
	if movements == nil {
		movements = []core.Movement{}
	}
	return &MovementListResult{Movements: movements}, nil
}

func (s *appService) VerifyStockLevel(ctx context.Context, companyCode string, stockLevelID int64) (*core.ReplayResult, error) {
	return s.audit.Replay(ctx, companyCode, stockLevelID)
}

// ── Directory ─────────────────────────────────────────────────────────────────

func (s *appService) CreateWarehouse(ctx context.Context, req CreateWarehouseRequest) (*core.Warehouse, error) {
	return s.directory.CreateWarehouse(ctx, req.CompanyCode, req.Code, req.Name)
}

func (s *appService) ListWarehouses(ctx context.Context, companyCode string, includeInactive bool) (*WarehouseListResult, error) {
	warehouses, err := s.directory.ListWarehouses(ctx, companyCode, includeInactive)
	if err != nil {
		return nil, err
	}
	if warehouses == nil {
		warehouses = []core.Warehouse{}
	}
	return &WarehouseListResult{Warehouses: warehouses}, nil
}

func (s *appService) DeactivateWarehouse(ctx context.Context, companyCode, warehouseCode string) (*core.Warehouse, error) {
	w, err := s.directory.DeactivateWarehouse(ctx, companyCode, warehouseCode)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateTenant(ctx, companyCode)
	return w, nil
}

func (s *appService) CreateLocation(ctx context.Context, req CreateLocationRequest) (*core.Location, error) {
	locType, err := core.ParseLocationType(req.Type)
	if err != nil {
		return nil, err
	}
	var capacity decimal.NullDecimal
	if req.Capacity != nil {
		capacity = decimal.NewNullDecimal(*req.Capacity)
	}
	return s.directory.CreateLocation(ctx, core.CreateLocationInput{
		Tenant:        req.CompanyCode,
		WarehouseCode: req.WarehouseCode,
		Code:          req.Code,
		Barcode:       req.Barcode,
		Type:          locType,
		Capacity:      capacity,
	})
}

func (s *appService) ListLocations(ctx context.Context, companyCode, warehouseCode string, includeInactive bool) (*LocationListResult, error) {
	locs, err := s.directory.ListLocations(ctx, companyCode, warehouseCode, includeInactive)
	if err != nil {
		return nil, err
	}
	if locs == nil {
		locs = []core.Location{}
	}
	return &LocationListResult{Locations: locs}, nil
}

func (s *appService) DeactivateLocation(ctx context.Context, companyCode string, r core.LocationRef) (*core.Location, error) {
	loc, err := s.directory.DeactivateLocation(ctx, companyCode, r)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateTenant(ctx, companyCode)
	return loc, nil
}

func (s *appService) ReactivateLocation(ctx context.Context, companyCode string, r core.LocationRef) (*core.Location, error) {
	loc, err := s.directory.ReactivateLocation(ctx, companyCode, r)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateTenant(ctx, companyCode)
	return loc, nil
}

func (s *appService) LookupBarcode(ctx context.Context, companyCode, warehouseCode, barcode string) (*LocationListResult, error) {
	if strings.TrimSpace(warehouseCode) != "" {
		loc, err := s.directory.FindByBarcode(ctx, companyCode, warehouseCode, barcode)
		if err != nil {
			return nil, err
		}
		return &LocationListResult{Locations: []core.Location{*loc}}, nil
	}
	locs, err := s.directory.ScanBarcode(ctx, companyCode, barcode)
	if err != nil {
		return nil, err
	}
	return &LocationListResult{Locations: locs}, nil
}

// Health pings the database and the cache.
func (s *appService) Health(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	if err := s.cache.Ping(ctx); err != nil {
		return fmt.Errorf("cache unreachable: %w", err)
	}
	return nil
}
