package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"stock-ledger/internal/adapters/cli"
	"stock-ledger/internal/adapters/repl"
	webAdapter "stock-ledger/internal/adapters/web"
	"stock-ledger/internal/app"
	"stock-ledger/internal/cache"
	"stock-ledger/internal/config"
	"stock-ledger/internal/db"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, cli.Usage)
		os.Exit(1)
	}

	// Issuing a token needs only the signing secret.
	if os.Args[1] == "token" {
		issueToken(os.Args[2:])
		return
	}

	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred cleanup (including stopping
// an embedded database) happens before exiting.
func run(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("config: %v", err)
		return 1
	}
	if cfg.CLI.Company == "" {
		log.Print("STOCK_COMPANY is not set")
		return 1
	}

	ctx := context.Background()
	database, err := db.Open(ctx, cfg)
	if err != nil {
		log.Printf("database: %v", err)
		return 1
	}
	defer database.Close()

	stockCache, err := cache.Open(ctx, cfg.RedisURL, cfg.CacheTTL)
	if err != nil {
		log.Printf("Warning: cache disabled: %v", err)
		stockCache = cache.Noop{}
	}
	defer stockCache.Close()

	svc := app.NewAppService(database.Pool, stockCache, cfg.LockTimeout)

	if args[0] == "shell" {
		repl.Run(ctx, svc, cfg.CLI.Company, cfg.CLI.Actor, bufio.NewReader(os.Stdin))
		return 0
	}

	if err := cli.Execute(ctx, svc, cfg.CLI.Company, cfg.CLI.Actor, args); err != nil {
		var inconsistent *cli.InconsistentError
		switch {
		case errors.As(err, &inconsistent):
			fmt.Fprintln(os.Stderr, err)
			return 2
		case errors.Is(err, cli.ErrUsage):
			fmt.Fprintf(os.Stderr, "%v\n\n%s\n", err, cli.Usage)
			return 1
		}
		log.Print(err)
		return 1
	}
	return 0
}

func issueToken(args []string) {
	if len(args) < 1 {
		log.Fatal("Usage: stockctl token <username> [role]")
	}
	cfg, err := config.LoadForToken()
	if err != nil {
		log.Fatal(err)
	}
	role := "operator"
	if len(args) > 1 {
		role = args[1]
	}
	tok, err := webAdapter.SignToken(cfg.JWTSecret, args[0], cfg.CLI.Company, role, 24*time.Hour)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok)
}
