package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"stock-ledger/internal/app"
	"stock-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// Usage lists the available subcommands.
const Usage = `Usage: stockctl <command> [args]

  receive   <item> <wh/loc> <qty> [reference]
  transfer  <item> <from wh/loc> <to wh/loc> <qty> <reason...>
  adjust    <item> <wh/loc> <new_on_hand> <reason...>
  reserve   <item> <wh/loc> <qty> [soft|hard] [reference]
  release   <item> <wh/loc> <qty> [soft|hard] [reference]
  promote   <item> <wh/loc> <qty> [reference]
  issue     <item> <wh/loc> <qty> [reference]
  stock     [item] [wh | wh/loc]
  warehouses
  warehouse-add <code> <name...>
  locations <wh>
  location-add  <wh/loc> <type> [capacity] [barcode]
  deactivate <wh/loc>
  activate   <wh/loc>
  barcode   <barcode> [wh]
  movements <stock_level_id>
  verify    <stock_level_id>
  token     <username> [role]
  shell     (interactive)`

// ErrUsage is wrapped by errors caused by malformed arguments.
var ErrUsage = errors.New("usage")

// InconsistentError is returned by verify when replaying the movement log does
// not reproduce the stored counters.
type InconsistentError struct {
	Result *core.ReplayResult
}

func (e *InconsistentError) Error() string {
	return fmt.Sprintf("stock level %d does not match its movement history", e.Result.StockLevelID)
}

// Execute runs one command and prints its result to stdout.
func Execute(ctx context.Context, svc app.ApplicationService, company, actor string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command given", ErrUsage)
	}
	p := &parser{args: args}

	switch args[0] {
	case "receive", "rcv":
		p.need(4, "receive <item> <wh/loc> <qty> [reference]")
		ref, qty := p.ref(2), p.qty(3)
		if p.err != nil {
			return p.err
		}
		return printCommand(svc.Receive(ctx, app.ReceiveRequest{
			CompanyCode:   company,
			Item:          args[1],
			WarehouseCode: ref.WarehouseCode,
			LocationCode:  ref.LocationCode,
			Qty:           qty,
			Reference:     p.optional(4),
			Actor:         actor,
		}))

	case "transfer", "mv":
		p.need(6, "transfer <item> <from wh/loc> <to wh/loc> <qty> <reason...>")
		from, to, qty := p.ref(2), p.ref(3), p.qty(4)
		if p.err != nil {
			return p.err
		}
		return printCommand(svc.Transfer(ctx, app.TransferRequest{
			CompanyCode:   company,
			Item:          args[1],
			FromWarehouse: from.WarehouseCode,
			FromLocation:  from.LocationCode,
			ToWarehouse:   to.WarehouseCode,
			ToLocation:    to.LocationCode,
			Qty:           qty,
			Reason:        strings.Join(args[5:], " "),
			Actor:         actor,
		}))

	case "adjust", "adj":
		p.need(5, "adjust <item> <wh/loc> <new_on_hand> <reason...>")
		ref, newOnHand := p.ref(2), p.qty(3)
		if p.err != nil {
			return p.err
		}
		return printCommand(svc.Adjust(ctx, app.AdjustRequest{
			CompanyCode:   company,
			Item:          args[1],
			WarehouseCode: ref.WarehouseCode,
			LocationCode:  ref.LocationCode,
			NewOnHand:     newOnHand,
			Reason:        strings.Join(args[4:], " "),
			Actor:         actor,
		}))

	case "reserve", "release":
		p.need(4, args[0]+" <item> <wh/loc> <qty> [soft|hard] [reference]")
		ref, qty := p.ref(2), p.qty(3)
		if p.err != nil {
			return p.err
		}
		kind := p.optional(4)
		if kind == "" {
			kind = string(core.ReservationHard)
		}
		req := app.ReservationRequest{
			CompanyCode:   company,
			Item:          args[1],
			WarehouseCode: ref.WarehouseCode,
			LocationCode:  ref.LocationCode,
			Qty:           qty,
			Kind:          kind,
			Reference:     p.optional(5),
			Actor:         actor,
		}
		if args[0] == "reserve" {
			return printCommand(svc.Reserve(ctx, req))
		}
		return printCommand(svc.Release(ctx, req))

	case "promote":
		p.need(4, "promote <item> <wh/loc> <qty> [reference]")
		ref, qty := p.ref(2), p.qty(3)
		if p.err != nil {
			return p.err
		}
		return printCommand(svc.Promote(ctx, app.PromoteRequest{
			CompanyCode:   company,
			Item:          args[1],
			WarehouseCode: ref.WarehouseCode,
			LocationCode:  ref.LocationCode,
			Qty:           qty,
			Reference:     p.optional(4),
			Actor:         actor,
		}))

	case "issue":
		p.need(4, "issue <item> <wh/loc> <qty> [reference]")
		ref, qty := p.ref(2), p.qty(3)
		if p.err != nil {
			return p.err
		}
		return printCommand(svc.Issue(ctx, app.IssueRequest{
			CompanyCode:   company,
			Item:          args[1],
			WarehouseCode: ref.WarehouseCode,
			LocationCode:  ref.LocationCode,
			Qty:           qty,
			Reference:     p.optional(4),
			Actor:         actor,
		}))

	case "stock", "bal":
		req := app.StockQueryRequest{CompanyCode: company, Item: p.optional(1)}
		if where := p.optional(2); where != "" {
			req.WarehouseCode, req.LocationCode, _ = strings.Cut(where, "/")
		}
		result, err := svc.GetStockLevel(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to get stock: %w", err)
		}
		printStockLevels(result.Levels)

	case "warehouses":
		result, err := svc.ListWarehouses(ctx, company, true)
		if err != nil {
			return fmt.Errorf("failed to list warehouses: %w", err)
		}
		printWarehouses(result.Warehouses)

	case "warehouse-add":
		if err := p.need(3, "warehouse-add <code> <name...>"); err != nil {
			return err
		}
		wh, err := svc.CreateWarehouse(ctx, app.CreateWarehouseRequest{
			CompanyCode: company,
			Code:        args[1],
			Name:        strings.Join(args[2:], " "),
		})
		if err != nil {
			return fmt.Errorf("failed to create warehouse: %w", err)
		}
		printWarehouses([]core.Warehouse{*wh})

	case "locations", "locs":
		if err := p.need(2, "locations <wh>"); err != nil {
			return err
		}
		result, err := svc.ListLocations(ctx, company, args[1], true)
		if err != nil {
			return fmt.Errorf("failed to list locations: %w", err)
		}
		printLocations(result.Locations)

	case "location-add":
		p.need(3, "location-add <wh/loc> <type> [capacity] [barcode]")
		ref := p.ref(1)
		req := app.CreateLocationRequest{
			CompanyCode:   company,
			WarehouseCode: ref.WarehouseCode,
			Code:          ref.LocationCode,
			Type:          p.optional(2),
			Barcode:       p.optional(4),
		}
		if c := p.optional(3); c != "" && c != "-" {
			capacity := p.qty(3)
			req.Capacity = &capacity
		}
		if p.err != nil {
			return p.err
		}
		loc, err := svc.CreateLocation(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to create location: %w", err)
		}
		printLocations([]core.Location{*loc})

	case "deactivate", "activate":
		p.need(2, args[0]+" <wh/loc>")
		ref := p.ref(1)
		if p.err != nil {
			return p.err
		}
		var (
			loc *core.Location
			err error
		)
		if args[0] == "deactivate" {
			loc, err = svc.DeactivateLocation(ctx, company, ref)
		} else {
			loc, err = svc.ReactivateLocation(ctx, company, ref)
		}
		if err != nil {
			return fmt.Errorf("failed to %s location: %w", args[0], err)
		}
		printLocations([]core.Location{*loc})

	case "barcode", "scan":
		if err := p.need(2, "barcode <barcode> [wh]"); err != nil {
			return err
		}
		result, err := svc.LookupBarcode(ctx, company, p.optional(2), args[1])
		if err != nil {
			return fmt.Errorf("lookup failed: %w", err)
		}
		printLocations(result.Locations)

	case "movements", "audit":
		p.need(2, "movements <stock_level_id>")
		id := p.id(1)
		if p.err != nil {
			return p.err
		}
		result, err := svc.ListMovements(ctx, app.MovementQuery{CompanyCode: company, StockLevelID: id})
		if err != nil {
			return fmt.Errorf("failed to list movements: %w", err)
		}
		printMovements(result.Movements)

	case "verify":
		p.need(2, "verify <stock_level_id>")
		id := p.id(1)
		if p.err != nil {
			return p.err
		}
		result, err := svc.VerifyStockLevel(ctx, company, id)
		if err != nil {
			return fmt.Errorf("replay failed: %w", err)
		}
		printJSON(result)
		if !result.Consistent {
			return &InconsistentError{Result: result}
		}

	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}
	return nil
}

// parser collects the first argument error so a command can check once.
type parser struct {
	args []string
	err  error
}

func (p *parser) fail(format string, a ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: "+format, append([]any{ErrUsage}, a...)...)
	}
}

func (p *parser) need(n int, usage string) error {
	if len(p.args) < n {
		p.fail("stockctl %s", usage)
	}
	return p.err
}

func (p *parser) optional(i int) string {
	if i < len(p.args) {
		return p.args[i]
	}
	return ""
}

// ref splits "WH1/A-01" into a LocationRef.
func (p *parser) ref(i int) core.LocationRef {
	wh, loc, ok := strings.Cut(p.optional(i), "/")
	if !ok || wh == "" || loc == "" {
		p.fail("invalid location %q, expected <warehouse>/<location>", p.optional(i))
	}
	return core.LocationRef{WarehouseCode: wh, LocationCode: loc}
}

func (p *parser) qty(i int) decimal.Decimal {
	q, err := decimal.NewFromString(p.optional(i))
	if err != nil {
		p.fail("invalid quantity %q", p.optional(i))
	}
	return q
}

func (p *parser) id(i int) int64 {
	id, err := strconv.ParseInt(p.optional(i), 10, 64)
	if err != nil || id <= 0 {
		p.fail("invalid stock level id %q", p.optional(i))
	}
	return id
}

func printCommand(result *app.CommandResult, err error) error {
	if err != nil {
		return fmt.Errorf("command failed: %w", err)
	}
	if result.NoOp {
		fmt.Println("No change.")
	}
	printStockLevels(result.Levels)
	printMovements(result.Movements)
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func printStockLevels(levels []core.StockLevel) {
	if len(levels) == 0 {
		fmt.Println("No stock levels.")
		return
	}
	fmt.Printf("%-6s %-16s %-16s %12s %12s %12s %12s\n", "ID", "ITEM", "LOCATION", "ON HAND", "RESERVED", "SOFT", "AVAILABLE")
	fmt.Println(strings.Repeat("-", 92))
	for _, l := range levels {
		fmt.Printf("%-6d %-16s %-16s %12s %12s %12s %12s\n",
			l.ID, l.ItemCode, l.Ref().String(),
			l.OnHand.String(), l.Reserved.String(), l.SoftReserved.String(), l.Available.String())
	}
}

func printMovements(movements []core.Movement) {
	if len(movements) == 0 {
		return
	}
	fmt.Println()
	fmt.Printf("%-6s %-13s %10s %10s %10s  %-12s %s\n", "ID", "TYPE", "QTY", "BEFORE", "AFTER", "ACTOR", "REASON")
	fmt.Println(strings.Repeat("-", 92))
	for _, m := range movements {
		typ := string(m.Type)
		if m.ReservationKind != "" {
			typ += "/" + strings.ToLower(string(m.ReservationKind))
		}
		fmt.Printf("%-6d %-13s %10s %10s %10s  %-12s %s\n",
			m.ID, typ, m.Quantity.String(), m.OnHandBefore.String(), m.OnHandAfter.String(), m.Actor, m.Reason)
	}
}

func printWarehouses(warehouses []core.Warehouse) {
	fmt.Printf("%-10s %-30s %s\n", "CODE", "NAME", "ACTIVE")
	fmt.Println(strings.Repeat("-", 50))
	for _, w := range warehouses {
		fmt.Printf("%-10s %-30s %t\n", w.Code, w.Name, w.IsActive)
	}
}

func printLocations(locations []core.Location) {
	fmt.Printf("%-16s %-16s %-8s %10s %s\n", "LOCATION", "BARCODE", "TYPE", "CAPACITY", "ACTIVE")
	fmt.Println(strings.Repeat("-", 64))
	for _, l := range locations {
		capacity := "-"
		if l.Capacity.Valid {
			capacity = l.Capacity.Decimal.String()
		}
		fmt.Printf("%-16s %-16s %-8s %10s %t\n", l.Ref().String(), l.Barcode, l.Type, capacity, l.IsActive)
	}
}
