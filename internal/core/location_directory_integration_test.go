package core_test

import (
	"errors"
	"testing"

	"stock-ledger/internal/core"
)

func TestLocationDirectory_UniquenessAndLookup(t *testing.T) {
	e := setupStockTestDB(t)
	ctx := e.ctx

	_, err := e.directory.CreateLocation(ctx, core.CreateLocationInput{Tenant: "1000", WarehouseCode: "WH1", Code: "A-01", Type: core.LocationBulk})
	if !errors.Is(err, core.ErrDuplicateLocation) {
		t.Errorf("expected ErrDuplicateLocation for repeated code, got %v", err)
	}
	// Barcode defaults to the code, so "B-01" is already taken as a barcode too.
	_, err = e.directory.CreateLocation(ctx, core.CreateLocationInput{Tenant: "1000", WarehouseCode: "WH1", Code: "C-01", Barcode: "B-01", Type: core.LocationBulk})
	if !errors.Is(err, core.ErrDuplicateLocation) {
		t.Errorf("expected ErrDuplicateLocation for repeated barcode, got %v", err)
	}
	_, err = e.directory.CreateWarehouse(ctx, "1000", "WH1", "Again")
	if !errors.Is(err, core.ErrDuplicateLocation) {
		t.Errorf("expected ErrDuplicateLocation for repeated warehouse, got %v", err)
	}
	_, err = e.directory.CreateLocation(ctx, core.CreateLocationInput{Tenant: "1000", WarehouseCode: "NOPE", Code: "X", Type: core.LocationBulk})
	if !errors.Is(err, core.ErrWarehouseNotFound) {
		t.Errorf("expected ErrWarehouseNotFound, got %v", err)
	}

	// The same code and barcode may repeat in another warehouse.
	if _, err := e.directory.CreateLocation(ctx, core.CreateLocationInput{Tenant: "1000", WarehouseCode: "WH2", Code: "A-01", Barcode: "8800001", Type: core.LocationPicking}); err != nil {
		t.Fatalf("CreateLocation in second warehouse failed: %v", err)
	}
	if _, err := e.directory.CreateLocation(ctx, core.CreateLocationInput{Tenant: "1000", WarehouseCode: "WH1", Code: "D-01", Barcode: "8800001", Type: core.LocationInbound}); err != nil {
		t.Fatalf("CreateLocation with shared barcode failed: %v", err)
	}

	loc, err := e.directory.FindByBarcode(ctx, "1000", "WH2", "8800001")
	if err != nil {
		t.Fatalf("FindByBarcode failed: %v", err)
	}
	if loc.Code != "A-01" || loc.WarehouseCode != "WH2" {
		t.Errorf("expected WH2/A-01, got %s", loc.Ref())
	}
	hits, err := e.directory.ScanBarcode(ctx, "1000", "8800001")
	if err != nil {
		t.Fatalf("ScanBarcode failed: %v", err)
	}
	if len(hits) != 2 || hits[0].WarehouseCode != "WH1" || hits[1].WarehouseCode != "WH2" {
		t.Errorf("expected hits in WH1 and WH2, got %+v", hits)
	}
	if _, err := e.directory.ScanBarcode(ctx, "2000", "8800001"); !errors.Is(err, core.ErrLocationNotFound) {
		t.Errorf("expected ErrLocationNotFound for another tenant, got %v", err)
	}

	capLoc, err := e.directory.GetLocation(ctx, "1000", whCap)
	if err != nil {
		t.Fatalf("GetLocation failed: %v", err)
	}
	if !capLoc.Capacity.Valid || !capLoc.Capacity.Decimal.Equal(d("5")) {
		t.Errorf("expected capacity 5, got %+v", capLoc.Capacity)
	}

	locs, err := e.directory.ListLocations(ctx, "1000", "WH1", false)
	if err != nil {
		t.Fatalf("ListLocations failed: %v", err)
	}
	if len(locs) != 4 {
		t.Errorf("expected 4 locations in WH1, got %d", len(locs))
	}
}

func TestLocationDirectory_DeactivationGatedOnStock(t *testing.T) {
	e := setupStockTestDB(t)
	ctx := e.ctx
	e.receive(t, "WIDGET", whA01, "3")

	_, err := e.directory.DeactivateLocation(ctx, "1000", whA01)
	if !errors.Is(err, core.ErrLocationNotEmpty) {
		t.Fatalf("expected ErrLocationNotEmpty, got %v", err)
	}
	_, err = e.directory.DeactivateWarehouse(ctx, "1000", "WH1")
	if !errors.Is(err, core.ErrLocationNotEmpty) {
		t.Fatalf("expected ErrLocationNotEmpty for warehouse, got %v", err)
	}

	// Empty the bin; the zero record stays but no longer blocks.
	if _, err := e.adjustments.Adjust(ctx, core.AdjustInput{Tenant: "1000", Item: "WIDGET", Location: whA01, NewOnHand: d("0"), Reason: "scrapped", Actor: "auditor"}); err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}
	loc, err := e.directory.DeactivateLocation(ctx, "1000", whA01)
	if err != nil {
		t.Fatalf("DeactivateLocation failed: %v", err)
	}
	if loc.IsActive || loc.DeactivatedAt == nil {
		t.Errorf("expected inactive location with timestamp, got %+v", loc)
	}

	if _, err := e.directory.GetLocation(ctx, "1000", whA01); !errors.Is(err, core.ErrLocationNotFound) {
		t.Errorf("inactive location must be invisible, got %v", err)
	}
	if s := e.stockAt(t, "WIDGET", whA01); s != nil {
		t.Errorf("stock at inactive location must be hidden from reads")
	}
	if _, err := e.directory.DeactivateLocation(ctx, "1000", whA01); !errors.Is(err, core.ErrLocationNotFound) {
		t.Errorf("expected ErrLocationNotFound deactivating twice, got %v", err)
	}
	all, err := e.directory.ListLocations(ctx, "1000", "WH1", true)
	if err != nil {
		t.Fatalf("ListLocations failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 locations including inactive, got %d", len(all))
	}

	if _, err := e.directory.ReactivateLocation(ctx, "1000", whA01); err != nil {
		t.Fatalf("ReactivateLocation failed: %v", err)
	}
	if _, err := e.directory.GetLocation(ctx, "1000", whA01); err != nil {
		t.Errorf("reactivated location should resolve, got %v", err)
	}

	w, err := e.directory.DeactivateWarehouse(ctx, "1000", "WH2")
	if err != nil {
		t.Fatalf("DeactivateWarehouse failed: %v", err)
	}
	if w.IsActive {
		t.Errorf("expected WH2 inactive")
	}
	whs, err := e.directory.ListWarehouses(ctx, "1000", false)
	if err != nil {
		t.Fatalf("ListWarehouses failed: %v", err)
	}
	if len(whs) != 1 || whs[0].Code != "WH1" {
		t.Errorf("expected only WH1 active, got %+v", whs)
	}
	if _, err := e.directory.GetLocation(ctx, "1000", whR01); !errors.Is(err, core.ErrLocationNotFound) {
		t.Errorf("locations of an inactive warehouse must be invisible, got %v", err)
	}
}
