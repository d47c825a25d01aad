package main

import (
	"context"
	"log"
	"os"

	"stock-ledger/internal/config"
	"stock-ledger/internal/db"
	"stock-ledger/migrations"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "list" {
		found, err := migrations.Discover()
		if err != nil {
			log.Fatalf("[DISCOVER] %v", err)
		}
		for _, m := range found {
			log.Printf("%s  %s  %s", m.Version, m.Checksum[:12], m.Filename)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[CONFIG] %v", err)
	}

	ctx := context.Background()
	database, err := db.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("[CONNECT] %v", err)
	}
	defer database.Close()
	log.Println("[CONNECT] success")

	if err := migrations.Apply(ctx, database.Pool); err != nil {
		log.Fatalf("[MIGRATE] %v", err)
	}
	log.Println("[DONE] All migrations processed.")
}
