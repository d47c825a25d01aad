package app_test

import (
	"context"
	"testing"
	"time"

	"stock-ledger/internal/app"
	"stock-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// hitCache always answers from memory, so no database is needed.
type hitCache struct {
	levels      []core.StockLevel
	invalidated []string
}

func (c *hitCache) GetStockLevels(context.Context, string, core.StockQuery) ([]core.StockLevel, bool) {
	return c.levels, true
}
func (c *hitCache) Generation(context.Context, string) int64 { return 0 }
func (c *hitCache) SetStockLevels(context.Context, string, int64, core.StockQuery, []core.StockLevel) {
}
func (c *hitCache) InvalidateItem(_ context.Context, tenant, item string) {
	c.invalidated = append(c.invalidated, tenant+":"+item)
}
func (c *hitCache) InvalidateTenant(_ context.Context, tenant string) {
	c.invalidated = append(c.invalidated, tenant)
}
func (c *hitCache) Ping(context.Context) error { return nil }
func (c *hitCache) Close() error               { return nil }

func TestGetStockLevel_ServedFromCache(t *testing.T) {
	c := &hitCache{levels: []core.StockLevel{{ID: 1, ItemCode: "WIDGET", OnHand: decimal.NewFromInt(4)}}}
	svc := app.NewAppService(nil, c, time.Second)

	result, err := svc.GetStockLevel(context.Background(), app.StockQueryRequest{CompanyCode: "1000", Item: "WIDGET"})
	if err != nil {
		t.Fatalf("GetStockLevel failed: %v", err)
	}
	if !result.Cached || len(result.Levels) != 1 || !result.Levels[0].OnHand.Equal(decimal.NewFromInt(4)) {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestRejectedCommandsDoNotInvalidate(t *testing.T) {
	c := &hitCache{}
	svc := app.NewAppService(nil, c, time.Second)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, app.ReservationRequest{
		CompanyCode: "1000", Item: "WIDGET", WarehouseCode: "WH1", LocationCode: "A-01",
		Qty: decimal.NewFromInt(1), Kind: "firm", Actor: "tester",
	})
	if core.KindOf(err) != core.KindInvalidInput {
		t.Errorf("unknown kind: expected INVALID_INPUT, got %v", err)
	}

	_, err = svc.Transfer(ctx, app.TransferRequest{
		CompanyCode: "1000", Item: "WIDGET", FromWarehouse: "WH1", FromLocation: "A-01",
		ToWarehouse: "WH1", ToLocation: "B-01", Qty: decimal.NewFromInt(1), Reason: "move",
		Actor: "tester", CorrelationID: "not-a-uuid",
	})
	if core.KindOf(err) != core.KindInvalidInput {
		t.Errorf("bad correlation id: expected INVALID_INPUT, got %v", err)
	}

	_, err = svc.Receive(ctx, app.ReceiveRequest{
		CompanyCode: "1000", Item: "WIDGET", WarehouseCode: "WH1", LocationCode: "A-01",
		Qty: decimal.NewFromInt(-3), Actor: "tester",
	})
	if core.KindOf(err) != core.KindInvalidQuantity {
		t.Errorf("negative receive: expected INVALID_QUANTITY, got %v", err)
	}

	_, err = svc.CreateLocation(ctx, app.CreateLocationRequest{CompanyCode: "1000", WarehouseCode: "WH1", Code: "X", Type: "SHELF"})
	if core.KindOf(err) != core.KindInvalidInput {
		t.Errorf("unknown location type: expected INVALID_INPUT, got %v", err)
	}

	_, err = svc.ListMovements(ctx, app.MovementQuery{CompanyCode: "1000"})
	if core.KindOf(err) != core.KindInvalidInput {
		t.Errorf("empty movement query: expected INVALID_INPUT, got %v", err)
	}

	if len(c.invalidated) != 0 {
		t.Errorf("rejected commands invalidated %v", c.invalidated)
	}
}
