package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"ecomdw/internal/config"
	"ecomdw/internal/gen"
)

// main writes deterministic sample CSV extracts into the data directory.
func main() {
	opts := gen.DefaultOptions()

	var dataDirFlg string
	flag.StringVar(&dataDirFlg, "data-dir", "", "output directory (overrides env DATA_DIR)")
	flag.IntVar(&opts.Customers, "customers", opts.Customers, "number of customers")
	flag.IntVar(&opts.Products, "products", opts.Products, "number of products")
	flag.IntVar(&opts.Orders, "orders", opts.Orders, "number of orders")
	seed := flag.Uint64("seed", opts.Seed, "random seed")
	flag.Parse()

	opts.Seed = *seed
	if opts.Customers < 1 || opts.Products < 1 || opts.Orders < 0 {
		fatalf("gendata: sizes must be positive")
	}

	dir := dataDirFlg
	if dir == "" {
		cfg, err := config.Load()
		if err != nil {
			fatalf("config: %v", err)
		}
		dir = cfg.DataDir
	}

	counts, err := gen.New(opts).WriteCSV(dir)
	if err != nil {
		fatalf("%v", err)
	}
	for _, name := range []string{"customers", "products", "orders", "order_items"} {
		log.Printf("gendata: wrote %s rows=%d dir=%s", name, counts[name], dir)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
