package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"ecomdw/internal/config"
	"ecomdw/internal/metrics"
	"ecomdw/internal/metrics/datadog"
	"ecomdw/internal/metrics/prompush"
	"ecomdw/internal/pipeline"
	"ecomdw/internal/warehouse"

	// register all warehouse backends with the factory; config selects one.
	_ "ecomdw/internal/warehouse/all"
)

// main runs the full pipeline: staging, dimensions, facts, quality checks.
// Exit code 0 means success, 1 means quality violations, 2 means a stage
// failed.
func main() {
	os.Exit(run())
}

func run() int {
	var (
		dataDirFlg        string
		skipStaging       bool
		metricsBackendFlg string
		pushGatewayURLFlg string
	)

	flag.StringVar(&dataDirFlg, "data-dir", "", "CSV extract directory (overrides env DATA_DIR)")
	flag.BoolVar(&skipStaging, "skip-staging", false, "reload warehouse from existing staging tables")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatalf("config: %v", err)
	}
	if dataDirFlg != "" {
		cfg.DataDir = dataDirFlg
	}

	// Decide metrics backend: flag → env → none.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = cfg.MetricsBackend
	}
	switch backendName {
	case "pushgateway":
		gwURL := pushGatewayURLFlg
		if gwURL == "" {
			gwURL = cfg.PushgatewayURL
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}

		b, err := prompush.NewBackend("ecomdw_pipeline", gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%s url=%s", backendName, gwURL)
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Flush(); err != nil {
					log.Printf("metrics: flush error: %v", err)
				}
			}()
		}

	case "datadog":
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName:    "ecomdw_pipeline",
			Tags:       extraTags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%s tags=%v", backendName, extraTags)
			metrics.SetBackend(b)
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()

	repo, err := warehouse.Open(ctx, warehouse.Config{Kind: cfg.DBKind, DSN: cfg.DSN()})
	if err != nil {
		log.Printf("open warehouse: %v (run setup first?)", err)
		return pipeline.Failed.ExitCode()
	}
	defer repo.Close()

	if err := repo.EnsureSchemas(ctx); err != nil {
		log.Printf("ensure schemas: %v", err)
		return pipeline.Failed.ExitCode()
	}

	runner := pipeline.New(repo, cfg)
	runner.SkipStaging = skipStaging

	if *verbose {
		log.Printf("pipeline: db=%s data_dir=%s skip_staging=%t", cfg.DBKind, cfg.DataDir, skipStaging)
	}

	start := time.Now()
	outcome, err := runner.Run(ctx)
	if err != nil {
		log.Printf("%v", err)
	}
	log.Printf("pipeline: outcome=%s duration=%s", outcome, time.Since(start).Truncate(time.Millisecond))
	return outcome.ExitCode()
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(2)
}
