package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"stock-ledger/internal/core"
)

func setupRedisTest(t *testing.T) (*RedisCache, string) {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Keys are written and deleted under a per-test tenant.
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set — skipping redis integration test")
	}
	ctx := context.Background()
	c, err := NewRedis(ctx, url, time.Minute)
	if err != nil {
		t.Fatalf("Failed to connect to test redis: %v", err)
	}
	tenant := "test-" + t.Name() + "-" + time.Now().Format("150405.000000")
	t.Cleanup(func() {
		c.InvalidateTenant(ctx, tenant)
		c.client.Del(ctx, generationKey(tenant))
		c.Close()
	})
	return c, tenant
}

func TestRedisCache_RoundTrip(t *testing.T) {
	c, tenant := setupRedisTest(t)
	ctx := context.Background()
	q := core.StockQuery{ItemCode: "WIDGET"}

	levels := []core.StockLevel{{ID: 7, ItemCode: "WIDGET", OnHand: decimal.NewFromInt(12)}}
	c.SetStockLevels(ctx, tenant, c.Generation(ctx, tenant), q, levels)
	got, hit := c.GetStockLevels(ctx, tenant, q)
	if !hit || len(got) != 1 || !got[0].OnHand.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected cached level, got %+v (hit %v)", got, hit)
	}

	c.InvalidateItem(ctx, tenant, "WIDGET")
	if _, hit := c.GetStockLevels(ctx, tenant, q); hit {
		t.Errorf("expected miss after InvalidateItem")
	}
}

// A reader that took its generation before a write commits must not cache
// the rows it read.
func TestRedisCache_SetAfterInvalidationDiscarded(t *testing.T) {
	c, tenant := setupRedisTest(t)
	ctx := context.Background()
	q := core.StockQuery{ItemCode: "WIDGET", WarehouseCode: "WH1"}

	gen := c.Generation(ctx, tenant)
	stale := []core.StockLevel{{ID: 7, ItemCode: "WIDGET", OnHand: decimal.NewFromInt(100)}}

	c.InvalidateItem(ctx, tenant, "WIDGET")
	c.SetStockLevels(ctx, tenant, gen, q, stale)

	if got, hit := c.GetStockLevels(ctx, tenant, q); hit {
		t.Fatalf("stale set survived invalidation: %+v", got)
	}
	if next := c.Generation(ctx, tenant); next != gen+1 {
		t.Errorf("expected generation %d, got %d", gen+1, next)
	}

	// A fresh reader caches again.
	c.SetStockLevels(ctx, tenant, c.Generation(ctx, tenant), q, stale)
	if _, hit := c.GetStockLevels(ctx, tenant, q); !hit {
		t.Errorf("expected a current-generation set to be cached")
	}
}
