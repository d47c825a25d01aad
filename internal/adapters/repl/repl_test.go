package repl_test

import (
	"bufio"
	"context"
	"strings"
	"testing"
	"time"

	"stock-ledger/internal/adapters/repl"
	"stock-ledger/internal/app"
	"stock-ledger/internal/core"

	"github.com/shopspring/decimal"
)

type fakeService struct {
	app.ApplicationService

	adjusts []app.AdjustRequest
}

func (f *fakeService) GetStockLevel(_ context.Context, req app.StockQueryRequest) (*app.StockResult, error) {
	return &app.StockResult{CompanyCode: req.CompanyCode, Levels: []core.StockLevel{}}, nil
}

func (f *fakeService) Adjust(_ context.Context, req app.AdjustRequest) (*app.CommandResult, error) {
	f.adjusts = append(f.adjusts, req)
	return &app.CommandResult{CompanyCode: req.CompanyCode}, nil
}

// runShell feeds input to the shell and fails if it has not returned within 2s.
func runShell(t *testing.T, svc app.ApplicationService, input string) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		repl.Run(context.Background(), svc, "1000", "alice", bufio.NewReader(strings.NewReader(input)))
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("shell did not return after end of input %q", input)
	}
}

func TestRun_CountStopsAtEndOfInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"while entering lines", "/count WH1/A-01\nWIDGET 3\n"},
		{"at the reason prompt", "/count WH1/A-01\nWIDGET 3\ndone\n"},
		{"at the confirmation", "/count WH1/A-01\nWIDGET 3\ndone\nrecount\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			runShell(t, svc, tt.input)
			if len(svc.adjusts) != 0 {
				t.Errorf("expected nothing posted, got %+v", svc.adjusts)
			}
		})
	}
}

func TestRun_CountPostsConfirmedLines(t *testing.T) {
	svc := &fakeService{}
	runShell(t, svc, "/count WH1/A-01\nWIDGET 3\n\nGEAR 0.5\ndone\n\ny\n/exit\n")

	if len(svc.adjusts) != 2 {
		t.Fatalf("expected 2 adjustments, got %d", len(svc.adjusts))
	}
	first := svc.adjusts[0]
	if first.CompanyCode != "1000" || first.Actor != "alice" || first.Item != "WIDGET" {
		t.Errorf("unexpected request %+v", first)
	}
	if first.WarehouseCode != "WH1" || first.LocationCode != "A-01" {
		t.Errorf("expected WH1/A-01, got %s/%s", first.WarehouseCode, first.LocationCode)
	}
	if !first.NewOnHand.Equal(decimal.NewFromInt(3)) || first.Reason != "cycle count" {
		t.Errorf("expected count 3 with default reason, got %s %q", first.NewOnHand, first.Reason)
	}
	if !svc.adjusts[1].NewOnHand.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("expected GEAR counted at 0.5, got %s", svc.adjusts[1].NewOnHand)
	}
}

func TestRun_CountCancelled(t *testing.T) {
	svc := &fakeService{}
	runShell(t, svc, "/count WH1/A-01\nWIDGET 3\ncancel\n/exit\n")
	if len(svc.adjusts) != 0 {
		t.Errorf("expected nothing posted after cancel, got %+v", svc.adjusts)
	}
}
