package cli_test

import (
	"context"
	"errors"
	"testing"

	"stock-ledger/internal/adapters/cli"
	"stock-ledger/internal/app"
	"stock-ledger/internal/core"

	"github.com/shopspring/decimal"
)

type fakeService struct {
	app.ApplicationService

	transfer app.TransferRequest
	reserve  app.ReservationRequest
	replay   *core.ReplayResult
}

func (f *fakeService) Transfer(_ context.Context, req app.TransferRequest) (*app.CommandResult, error) {
	f.transfer = req
	return &app.CommandResult{CompanyCode: req.CompanyCode}, nil
}

func (f *fakeService) Reserve(_ context.Context, req app.ReservationRequest) (*app.CommandResult, error) {
	f.reserve = req
	return &app.CommandResult{CompanyCode: req.CompanyCode}, nil
}

func (f *fakeService) VerifyStockLevel(context.Context, string, int64) (*core.ReplayResult, error) {
	return f.replay, nil
}

func TestExecute_UsageErrors(t *testing.T) {
	svc := &fakeService{}
	tests := [][]string{
		{},
		{"bogus"},
		{"receive", "ITEM"},
		{"receive", "ITEM", "no-slash", "5"},
		{"receive", "ITEM", "WH1/A-01", "five"},
		{"transfer", "ITEM", "WH1/A-01", "WH1/B-01", "5"},
		{"verify", "abc"},
		{"location-add", "WH1/X", "BULK", "big"},
	}
	for _, args := range tests {
		if err := cli.Execute(context.Background(), svc, "1000", "tester", args); !errors.Is(err, cli.ErrUsage) {
			t.Errorf("%v: expected usage error, got %v", args, err)
		}
	}
}

func TestExecute_Transfer(t *testing.T) {
	svc := &fakeService{}
	args := []string{"transfer", "ITEM", "WH1/A-01", "WH2/R-01", "2.5", "rebalance", "aisle", "3"}
	if err := cli.Execute(context.Background(), svc, "1000", "tester", args); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	got := svc.transfer
	if got.FromWarehouse != "WH1" || got.FromLocation != "A-01" || got.ToWarehouse != "WH2" || got.ToLocation != "R-01" {
		t.Errorf("unexpected locations %+v", got)
	}
	if !got.Qty.Equal(decimal.RequireFromString("2.5")) || got.Reason != "rebalance aisle 3" || got.Actor != "tester" {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestExecute_ReserveDefaultsToHard(t *testing.T) {
	svc := &fakeService{}
	if err := cli.Execute(context.Background(), svc, "1000", "tester", []string{"reserve", "ITEM", "WH1/A-01", "1"}); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if svc.reserve.Kind != string(core.ReservationHard) {
		t.Errorf("expected HARD, got %q", svc.reserve.Kind)
	}
}

func TestExecute_VerifyInconsistent(t *testing.T) {
	svc := &fakeService{replay: &core.ReplayResult{StockLevelID: 4, Consistent: false}}
	err := cli.Execute(context.Background(), svc, "1000", "tester", []string{"verify", "4"})
	var inconsistent *cli.InconsistentError
	if !errors.As(err, &inconsistent) || inconsistent.Result.StockLevelID != 4 {
		t.Fatalf("expected InconsistentError, got %v", err)
	}

	svc.replay = &core.ReplayResult{StockLevelID: 4, Consistent: true}
	if err := cli.Execute(context.Background(), svc, "1000", "tester", []string{"verify", "4"}); err != nil {
		t.Errorf("consistent replay returned %v", err)
	}
}
