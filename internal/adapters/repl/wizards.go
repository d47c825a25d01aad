package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"stock-ledger/internal/app"

	"github.com/shopspring/decimal"
)

type countLine struct {
	item    string
	counted decimal.Decimal
}

// readLine returns the next trimmed line. ok is false once input is exhausted.
func readLine(reader *bufio.Reader) (line string, ok bool) {
	raw, err := reader.ReadString('\n')
	line = strings.TrimSpace(raw)
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", false
	}
	return line, true
}

// handleCycleCount shows what the ledger holds at one location, collects the
// physically counted quantity per item and posts an adjustment for each line.
func handleCycleCount(ctx context.Context, reader *bufio.Reader, svc app.ApplicationService, company, actor, where string) {
	wh, loc, ok := strings.Cut(where, "/")
	if !ok || wh == "" || loc == "" {
		fmt.Println("Location must be <warehouse>/<location>.")
		return
	}

	current, err := svc.GetStockLevel(ctx, app.StockQueryRequest{CompanyCode: company, WarehouseCode: wh, LocationCode: loc})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Cycle count at %s/%s. Expected:\n", wh, loc)
	for _, l := range current.Levels {
		fmt.Printf("  %-16s %12s on hand (%s committed)\n", l.ItemCode, l.OnHand.String(), l.Committed().String())
	}
	fmt.Println("Enter counted lines. Type 'done' when finished, 'cancel' to abort.")
	fmt.Println("Format per line: <item> <counted-qty>")

	var lines []countLine
	for {
		fmt.Printf("  Line %d: ", len(lines)+1)
		raw, ok := readLine(reader)
		if !ok {
			fmt.Println("\nCount cancelled.")
			return
		}
		switch strings.ToLower(raw) {
		case "cancel":
			fmt.Println("Count cancelled.")
			return
		case "done":
		case "":
			continue
		default:
			parts := strings.Fields(raw)
			if len(parts) != 2 {
				fmt.Println("  Invalid format. Use: <item> <counted-qty>")
				continue
			}
			qty, err := decimal.NewFromString(parts[1])
			if err != nil || qty.IsNegative() {
				fmt.Println("  Invalid quantity.")
				continue
			}
			lines = append(lines, countLine{item: parts[0], counted: qty})
			continue
		}
		break
	}

	if len(lines) == 0 {
		fmt.Println("No lines entered. Nothing posted.")
		return
	}

	fmt.Print("Reason [cycle count]: ")
	reason, ok := readLine(reader)
	if !ok {
		fmt.Println("\nCount cancelled.")
		return
	}
	if reason == "" {
		reason = "cycle count"
	}

	fmt.Printf("Post %d adjustment(s)? (y/n): ", len(lines))
	choice, ok := readLine(reader)
	if c := strings.ToLower(choice); !ok || (c != "y" && c != "yes") {
		fmt.Println("Count cancelled.")
		return
	}

	for _, line := range lines {
		result, err := svc.Adjust(ctx, app.AdjustRequest{
			CompanyCode:   company,
			Item:          line.item,
			WarehouseCode: wh,
			LocationCode:  loc,
			NewOnHand:     line.counted,
			Reason:        reason,
			Actor:         actor,
		})
		switch {
		case err != nil:
			fmt.Printf("  %-16s FAILED: %v\n", line.item, err)
		case result.NoOp:
			fmt.Printf("  %-16s matches (%s)\n", line.item, line.counted.String())
		default:
			fmt.Printf("  %-16s adjusted to %s\n", line.item, line.counted.String())
		}
	}
}
