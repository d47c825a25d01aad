package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"stock-ledger/internal/adapters/cli"
	"stock-ledger/internal/app"
)

// Run starts the interactive shell for company, acting as actor.
// Lines are dispatched to the same commands stockctl accepts; an optional
// leading slash is ignored. /count starts a cycle-count session.
func Run(ctx context.Context, svc app.ApplicationService, company, actor string, reader *bufio.Reader) {
	fmt.Println("Stock Ledger")
	fmt.Printf("Company: %s  Actor: %s\n", company, actor)
	fmt.Println("Type /help for commands, /exit to quit.")
	fmt.Println(strings.Repeat("-", 70))

	for {
		fmt.Print("\n> ")
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			if errors.Is(err, io.EOF) {
				return
			}
			continue
		}

		tokens := strings.Fields(strings.TrimPrefix(input, "/"))
		switch strings.ToLower(tokens[0]) {
		case "exit", "quit", "q":
			fmt.Println("Goodbye!")
			return
		case "help", "h":
			fmt.Println(cli.Usage)
			fmt.Println("  count     <wh/loc>   (guided cycle count)")
		case "count":
			if len(tokens) < 2 {
				fmt.Println("Usage: /count <wh/loc>")
				continue
			}
			handleCycleCount(ctx, reader, svc, company, actor, tokens[1])
		case "token", "shell":
			fmt.Println("Not available inside the shell.")
		default:
			if err := cli.Execute(ctx, svc, company, actor, tokens); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		}
	}
}
