package cache

import (
	"context"
	"path"
	"testing"

	"stock-ledger/internal/core"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		q    core.StockQuery
		want string
	}{
		{"all filters", core.StockQuery{ItemCode: "WIDGET", WarehouseCode: "WH1", LocationCode: "A-01"}, "stock-ledger:stock:1000:WIDGET:WH1:A-01"},
		{"item only", core.StockQuery{ItemCode: "WIDGET"}, "stock-ledger:stock:1000:WIDGET:_:_"},
		{"no filters", core.StockQuery{}, "stock-ledger:stock:1000:_:_:_"},
		{"colon in code", core.StockQuery{ItemCode: "SKU:1"}, "stock-ledger:stock:1000:SKU%3A1:_:_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key("1000", tt.q); got != tt.want {
				t.Errorf("Key = %q, want %q", got, tt.want)
			}
		})
	}
}

// Redis MATCH and path.Match agree on '*', '?' and escaping for these inputs.
func TestItemPatterns_CoverAffectedKeys(t *testing.T) {
	affected := []string{
		Key("1000", core.StockQuery{ItemCode: "WIDGET"}),
		Key("1000", core.StockQuery{ItemCode: "WIDGET", WarehouseCode: "WH1"}),
		Key("1000", core.StockQuery{}),
		Key("1000", core.StockQuery{WarehouseCode: "WH1", LocationCode: "A-01"}),
	}
	unaffected := []string{
		Key("1000", core.StockQuery{ItemCode: "GADGET"}),
		Key("2000", core.StockQuery{ItemCode: "WIDGET"}),
		Key("2000", core.StockQuery{}),
	}

	matches := func(key string) bool {
		for _, p := range itemPatterns("1000", "WIDGET") {
			if ok, _ := path.Match(p, key); ok {
				return true
			}
		}
		return false
	}
	for _, k := range affected {
		if !matches(k) {
			t.Errorf("expected %s to be invalidated", k)
		}
	}
	for _, k := range unaffected {
		if matches(k) {
			t.Errorf("expected %s to survive", k)
		}
	}
}

func TestEscapeGlob(t *testing.T) {
	if got := escapeGlob("A*B?[x]"); got != `A\*B\?\[x\]` {
		t.Errorf("escapeGlob = %q", got)
	}
	p := itemPatterns("1000", "PART*")[0]
	if ok, _ := path.Match(p, Key("1000", core.StockQuery{ItemCode: "PART-9"})); ok {
		t.Errorf("wildcard in item code must not match other items")
	}
}

func TestOpen_NoURLIsNoop(t *testing.T) {
	c, err := Open(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := c.(Noop); !ok {
		t.Fatalf("expected Noop, got %T", c)
	}
	if _, hit := c.GetStockLevels(context.Background(), "1000", core.StockQuery{}); hit {
		t.Errorf("Noop must always miss")
	}
}

func TestGenerationKey_OutsideStockPatterns(t *testing.T) {
	k := generationKey("1000")
	if ok, _ := path.Match(tenantPattern("1000"), k); ok {
		t.Errorf("generation key %s must survive tenant invalidation", k)
	}
}

func TestNoop_IgnoresSets(t *testing.T) {
	ctx := context.Background()
	var c StockCache = Noop{}
	c.SetStockLevels(ctx, "1000", c.Generation(ctx, "1000"), core.StockQuery{}, []core.StockLevel{{ID: 1}})
	if _, hit := c.GetStockLevels(ctx, "1000", core.StockQuery{}); hit {
		t.Errorf("Noop must always miss")
	}
}
