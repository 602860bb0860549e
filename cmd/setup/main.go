package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"ecomdw/internal/config"
	"ecomdw/internal/warehouse"

	_ "ecomdw/internal/warehouse/all"
)

// main creates the staging and warehouse schemas and all pipeline tables.
// Safe to run repeatedly; existing tables are left alone.
func main() {
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatalf("config: %v", err)
	}

	ctx := context.Background()

	repo, err := warehouse.Open(ctx, warehouse.Config{Kind: cfg.DBKind, DSN: cfg.DSN()})
	if err != nil {
		fatalf("open warehouse: %v", err)
	}
	defer repo.Close()

	if *verbose {
		log.Printf("setup: db=%s name=%s", cfg.DBKind, cfg.DBName)
	}

	if err := repo.EnsureSchemas(ctx); err != nil {
		fatalf("ensure schemas: %v", err)
	}
	log.Printf("setup: schemas ready db=%s", cfg.DBKind)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
