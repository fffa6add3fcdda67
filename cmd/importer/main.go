package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"retailetl/internal/config"
	"retailetl/internal/importer"
	"retailetl/internal/metrics"
	"retailetl/internal/metrics/datadog"
	"retailetl/internal/metrics/prompush"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "retailetl/internal/storage/all"
)

// main is the entry point for the importer binary. It loads the pipeline
// config (or falls back to the built-in default pipeline), optionally
// initializes a metrics backend, and executes the run.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		seedFlg           int64
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/retail_sales.json", "pipeline config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (datadog, pushgateway, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.Int64Var(&seedFlg, "seed", 0, "fixed random seed for the synthetic customer population (0 = time-based)")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	p, err := loadPipeline(cfgPath, *verbose)
	if err != nil {
		fatalf("load config: %v", err)
	}
	if seedFlg != 0 {
		p.Synth.Seed = &seedFlg
	}

	shutdownMetrics := setupMetrics(p, metricsBackendFlg, pushGatewayURLFlg, *verbose)
	defer shutdownMetrics()

	ctx := context.Background()
	start := time.Now()

	if *verbose {
		log.Printf("pipeline: job=%s source=%s storage=%s schema=%s",
			p.Job, p.Source.File.Path, p.Storage.Kind, p.Storage.DB.SchemaPath)
	}

	sum, err := importer.Run(ctx, p, log.Default())
	if err != nil {
		log.Printf("%v", err)
		shutdownMetrics()
		os.Exit(1)
	}

	log.Printf("summary rows_read=%d parse_errors=%d dropped=%d customers=%d products=%d orders=%d order_details=%d duration=%s",
		sum.RowsRead, sum.ParseErrors, sum.RowsDropped,
		sum.Customers, sum.Products, sum.Orders, sum.OrderDetails,
		time.Since(start).Truncate(time.Millisecond))
}

// loadPipeline reads the config file. A missing file falls back to the
// built-in default pipeline so the importer keeps working as a
// zero-configuration tool.
func loadPipeline(path string, verbose bool) (config.Pipeline, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		if verbose {
			log.Printf("config %s not found; using built-in default pipeline", path)
		}
		return config.Default(), nil
	}
	if err != nil {
		return config.Pipeline{}, err
	}
	defer f.Close()

	var p config.Pipeline
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		return config.Pipeline{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return p, nil
}

// setupMetrics installs the requested metrics backend (flag → env → none)
// and returns the shutdown hook that flushes whatever is buffered.
func setupMetrics(p config.Pipeline, backendName, gwURLFlag string, verbose bool) func() {
	nop := func() {}

	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}

	jobName := p.Job
	if jobName == "" {
		jobName = "retail_sales"
	}

	switch backendName {
	case "pushgateway":
		gwURL := gwURLFlag
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}

		b, err := prompush.NewBackend(jobName, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init pushgateway backend: %v; using nop", err)
			return nop
		}
		log.Printf("metrics: backend=%v url=%v job_name=%v", backendName, gwURL, jobName)
		metrics.SetBackend(b)
		return func() {
			if err := metrics.Flush(); err != nil {
				log.Printf("metrics: flush error: %v", err)
			}
		}

	case "datadog":
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))

		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName:    jobName,
			Tags:       extraTags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return nop
		}
		log.Printf("metrics: backend=%v job_name=%v tags=%v", backendName, jobName, extraTags)
		metrics.SetBackend(b)
		// Close stops the periodic flush loop and performs the final Flush.
		return func() {
			if err := b.Close(); err != nil {
				log.Printf("metrics: datadog close/flush error: %v", err)
			}
		}

	case "none":
		if verbose {
			log.Printf("metrics: disabled")
		}
		return nop

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
		return nop
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
