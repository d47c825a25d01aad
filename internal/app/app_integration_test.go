package app_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"stock-ledger/internal/app"
	"stock-ledger/internal/core"
	"stock-ledger/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// memoryCache keeps the generation protocol in memory. beforeRead, if set,
// runs once after a reader has taken its generation.
type memoryCache struct {
	mu         sync.Mutex
	gen        int64
	entries    map[string][]core.StockLevel
	discarded  int
	beforeRead func()
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]core.StockLevel{}}
}

func memoryKey(tenant string, q core.StockQuery) string {
	return tenant + "|" + q.ItemCode + "|" + q.WarehouseCode + "|" + q.LocationCode
}

func (c *memoryCache) GetStockLevels(_ context.Context, tenant string, q core.StockQuery) ([]core.StockLevel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	levels, ok := c.entries[memoryKey(tenant, q)]
	return levels, ok
}

func (c *memoryCache) Generation(context.Context, string) int64 {
	c.mu.Lock()
	gen, hook := c.gen, c.beforeRead
	c.beforeRead = nil
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return gen
}

func (c *memoryCache) SetStockLevels(_ context.Context, tenant string, gen int64, q core.StockQuery, levels []core.StockLevel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.discarded++
		return
	}
	c.entries[memoryKey(tenant, q)] = levels
}

func (c *memoryCache) InvalidateItem(context.Context, string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries = map[string][]core.StockLevel{}
}

func (c *memoryCache) InvalidateTenant(ctx context.Context, tenant string) {
	c.InvalidateItem(ctx, tenant, "")
}

func (c *memoryCache) Ping(context.Context) error { return nil }
func (c *memoryCache) Close() error               { return nil }

func setupAppTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database; the tables below are truncated.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := migrations.Apply(ctx, pool); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE stock_movements, stock_levels, locations, warehouses, companies RESTART IDENTITY CASCADE;
		INSERT INTO companies (company_code, name) VALUES ('1000', 'Test Company');
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}
	return pool
}

func TestGetStockLevel_WriteDuringReadIsNotCached(t *testing.T) {
	pool := setupAppTestDB(t)
	ctx := context.Background()
	c := newMemoryCache()
	svc := app.NewAppService(pool, c, 10*time.Second)

	if _, err := svc.CreateWarehouse(ctx, app.CreateWarehouseRequest{CompanyCode: "1000", Code: "WH1", Name: "Main"}); err != nil {
		t.Fatalf("CreateWarehouse failed: %v", err)
	}
	if _, err := svc.CreateLocation(ctx, app.CreateLocationRequest{CompanyCode: "1000", WarehouseCode: "WH1", Code: "A-01", Type: "PICKING"}); err != nil {
		t.Fatalf("CreateLocation failed: %v", err)
	}
	receive := func(qty int64) {
		t.Helper()
		_, err := svc.Receive(ctx, app.ReceiveRequest{
			CompanyCode: "1000", Item: "WIDGET", WarehouseCode: "WH1", LocationCode: "A-01",
			Qty: decimal.NewFromInt(qty), Actor: "receiver",
		})
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
	}
	receive(10)

	query := app.StockQueryRequest{CompanyCode: "1000", Item: "WIDGET"}

	// A command commits between the reader taking its generation and storing its rows.
	c.beforeRead = func() { receive(5) }
	if _, err := svc.GetStockLevel(ctx, query); err != nil {
		t.Fatalf("GetStockLevel failed: %v", err)
	}
	if c.discarded != 1 {
		t.Fatalf("expected the racing set to be discarded, got %d discards", c.discarded)
	}

	result, err := svc.GetStockLevel(ctx, query)
	if err != nil {
		t.Fatalf("GetStockLevel failed: %v", err)
	}
	if result.Cached || len(result.Levels) != 1 || !result.Levels[0].OnHand.Equal(decimal.NewFromInt(15)) {
		t.Errorf("expected an uncached read of 15, got %+v", result)
	}

	result, err = svc.GetStockLevel(ctx, query)
	if err != nil {
		t.Fatalf("GetStockLevel failed: %v", err)
	}
	if !result.Cached || !result.Levels[0].OnHand.Equal(decimal.NewFromInt(15)) {
		t.Errorf("expected the settled read to be cached, got %+v", result)
	}

	// A later command drops it again.
	receive(1)
	result, err = svc.GetStockLevel(ctx, query)
	if err != nil {
		t.Fatalf("GetStockLevel failed: %v", err)
	}
	if result.Cached || !result.Levels[0].OnHand.Equal(decimal.NewFromInt(16)) {
		t.Errorf("expected a fresh read of 16 after Receive, got %+v", result)
	}
}
