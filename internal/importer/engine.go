// Package importer orchestrates the full import run: stream the export,
// normalize rows, synthesize the customer population, and load the four
// entity sets into storage in one transaction.
package importer

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"retailetl/internal/config"
	"retailetl/internal/datasource/file"
	"retailetl/internal/metrics"
	csvparser "retailetl/internal/parser/csv"
	"retailetl/internal/sales"
	"retailetl/internal/storage"
	"retailetl/internal/transformer"
)

// Logger is the minimal logging interface used by the engine.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// StreamFn is a seam for providing row streams.
//
// When to use:
//   - Unit tests: inject deterministic rows without file I/O.
//   - Alternate runtimes: route rows from other sources.
type StreamFn func(ctx context.Context, cfg config.Pipeline, columns []string, out chan<- *transformer.Row, onErr func(line int, err error)) error

// Summary reports what one run did. All counts are post-coercion.
type Summary struct {
	RowsRead     int64
	ParseErrors  int64
	RowsDropped  int64
	Customers    int64
	Products     int64
	Orders       int64
	OrderDetails int64
}

// Engine runs the import against a storage.Repository.
type Engine struct {
	Repo   storage.Repository
	Logger Logger

	// Stream is an optional seam to make Engine unit-testable.
	// When nil, the configured file source is streamed through the CSV parser.
	Stream StreamFn
}

// Run executes the import: collect, synthesize, aggregate, reset, load.
//
// The whole load happens in one transaction; on any storage error the store
// is left untouched apart from the schema reset.
func (e *Engine) Run(ctx context.Context, cfg config.Pipeline, schemaSQL string) (Summary, error) {
	if e.Repo == nil {
		return Summary{}, fmt.Errorf("importer: Repo is required")
	}

	logf := e.logger()
	var sum Summary

	// Collect and normalize rows.
	collectStart := time.Now()
	records, err := e.collect(ctx, cfg, &sum)
	metrics.RecordStep(cfg.Job, "collect", err, time.Since(collectStart))
	if err != nil {
		return sum, err
	}
	logf("stage=collect rows_read=%d parse_errors=%d dropped=%d kept=%d duration=%s",
		sum.RowsRead, sum.ParseErrors, sum.RowsDropped, len(records), durMS(collectStart))

	// Synthesize the customer population and assign orders.
	synthStart := time.Now()
	rng := newRNG(cfg.Synth.Seed)
	orderIDs := sales.DistinctOrderIDs(records)
	customers, assign := sales.SynthesizeCustomers(orderIDs, rng)
	products := sales.DedupeProducts(records)
	orders, details := sales.AggregateOrders(records, assign, customers)
	metrics.RecordStep(cfg.Job, "synthesize", nil, time.Since(synthStart))
	logf("stage=synthesize customers=%d products=%d orders=%d order_details=%d duration=%s",
		len(customers), len(products), len(orders), len(details), durMS(synthStart))

	sum.Customers = int64(len(customers))
	sum.Products = int64(len(products))
	sum.Orders = int64(len(orders))
	sum.OrderDetails = int64(len(details))

	// Reset the schema and load everything in one transaction.
	resetStart := time.Now()
	err = e.Repo.ResetSchema(ctx, schemaSQL)
	metrics.RecordStep(cfg.Job, "reset_schema", err, time.Since(resetStart))
	if err != nil {
		return sum, fmt.Errorf("reset schema: %w", err)
	}
	logf("stage=reset_schema ok duration=%s", durMS(resetStart))

	loadStart := time.Now()
	err = e.load(ctx, cfg, sales.Snapshot{
		Customers: customers,
		Products:  products,
		Orders:    orders,
		Details:   details,
	})
	metrics.RecordStep(cfg.Job, "load", err, time.Since(loadStart))
	if err != nil {
		return sum, err
	}
	logf("stage=load ok duration=%s", durMS(loadStart))

	metrics.RecordRow(cfg.Job, "read", sum.RowsRead)
	metrics.RecordRow(cfg.Job, "parse_errors", sum.ParseErrors)
	metrics.RecordRow(cfg.Job, "dropped", sum.RowsDropped)
	metrics.RecordRow(cfg.Job, "customers", sum.Customers)
	metrics.RecordRow(cfg.Job, "products", sum.Products)
	metrics.RecordRow(cfg.Job, "orders", sum.Orders)
	metrics.RecordRow(cfg.Job, "order_details", sum.OrderDetails)

	return sum, nil
}

// collect streams the source and materializes the kept records in input
// order. Row order matters downstream: group order, product dedupe, and
// customer assignment are all first-appearance based.
func (e *Engine) collect(ctx context.Context, cfg config.Pipeline, sum *Summary) ([]sales.RawRecord, error) {
	buffer := cfg.Runtime.ChannelBuffer
	if buffer <= 0 {
		buffer = 1024
	}

	logf := e.logger()
	out := make(chan *transformer.Row, buffer)

	onErr := func(line int, err error) {
		sum.ParseErrors++
		logf("stage=parse line=%d status=error err=%v", line, err)
	}

	var (
		wg        sync.WaitGroup
		streamErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		streamErr = e.stream(ctx, cfg, sales.Columns(), out, onErr)
	}()

	var records []sales.RawRecord
	for row := range out {
		sum.RowsRead++
		rec, ok := sales.FromRow(row.V)
		row.Free()
		if !ok {
			sum.RowsDropped++
			continue
		}
		records = append(records, rec)
	}
	wg.Wait()

	if streamErr != nil {
		return nil, fmt.Errorf("stream source: %w", streamErr)
	}
	return records, nil
}

func (e *Engine) stream(ctx context.Context, cfg config.Pipeline, columns []string, out chan<- *transformer.Row, onErr func(int, error)) error {
	if e.Stream != nil {
		return e.Stream(ctx, cfg, columns, out, onErr)
	}

	if cfg.Source.Kind != "file" {
		return fmt.Errorf("unsupported source.kind=%s", cfg.Source.Kind)
	}
	if cfg.Parser.Kind != "" && cfg.Parser.Kind != "csv" {
		return fmt.Errorf("unsupported parser.kind=%s", cfg.Parser.Kind)
	}

	src, err := file.NewLocal(cfg.Source.File.Path).Open(ctx)
	if err != nil {
		return err
	}
	return csvparser.StreamRows(ctx, src, columns, cfg.Parser.Options, out, onErr)
}

// load writes the four entity sets inside one transaction, batched by
// Runtime.BatchSize. Products dedupe on their natural key so repeated SKUs
// keep the first-seen row.
func (e *Engine) load(ctx context.Context, cfg config.Pipeline, snap sales.Snapshot) error {
	batchSize := cfg.Runtime.BatchSize
	if batchSize <= 0 {
		batchSize = 1024
	}

	logf := e.logger()

	return e.Repo.ImportTx(ctx, func(tx storage.Tx) error {
		type tableLoad struct {
			table   string
			columns []string
			rows    [][]any
			dedupe  []string
		}

		loads := []tableLoad{
			{"Customers", customerColumns, customerRows(snap.Customers), nil},
			{"Products", productColumns, productRows(snap.Products), []string{"ProductID"}},
			{"Orders", orderColumns, orderRows(snap.Orders), nil},
			{"OrderDetails", detailColumns, detailRows(snap.Details), nil},
		}

		for _, l := range loads {
			var inserted int64
			for start := 0; start < len(l.rows); start += batchSize {
				end := start + batchSize
				if end > len(l.rows) {
					end = len(l.rows)
				}
				n, err := tx.InsertRows(ctx, l.table, l.columns, l.rows[start:end], l.dedupe)
				if err != nil {
					return fmt.Errorf("insert %s: %w", l.table, err)
				}
				inserted += n
			}
			logf("stage=load_table table=%s rows=%d inserted=%d", l.table, len(l.rows), inserted)
		}
		return nil
	})
}

func (e *Engine) logger() func(format string, v ...any) {
	if e.Logger == nil {
		l := log.New(discardWriter{}, "", 0)
		return l.Printf
	}
	return e.Logger.Printf
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }

// newRNG builds the random source for the synthetic customer population.
// A fixed seed makes the whole run reproducible.
func newRNG(seed *int64) *rand.Rand {
	s := time.Now().UnixNano()
	if seed != nil {
		s = *seed
	}
	return rand.New(rand.NewPCG(uint64(s), uint64(s)))
}

var (
	customerColumns = []string{"CustomerID", "CustomerName", "Region", "Contact"}
	productColumns  = []string{"ProductID", "ProductName", "Category", "Price"}
	orderColumns    = []string{"OrderID", "CustomerID", "OrderDate", "TotalAmount"}
	detailColumns   = []string{"OrderID", "ProductID", "Quantity", "UnitPrice"}
)

func customerRows(cs []sales.Customer) [][]any {
	rows := make([][]any, len(cs))
	for i, c := range cs {
		rows[i] = []any{c.ID, c.Name, c.Region, c.Contact}
	}
	return rows
}

func productRows(ps []sales.Product) [][]any {
	rows := make([][]any, len(ps))
	for i, p := range ps {
		rows[i] = []any{p.SKU, p.Style, p.Category, p.Price}
	}
	return rows
}

func orderRows(os []sales.Order) [][]any {
	rows := make([][]any, len(os))
	for i, o := range os {
		rows[i] = []any{o.OrderID, o.CustomerID, o.Date, o.Total}
	}
	return rows
}

func detailRows(ds []sales.OrderDetail) [][]any {
	rows := make([][]any, len(ds))
	for i, d := range ds {
		rows[i] = []any{d.OrderID, d.SKU, d.Qty, d.UnitPrice}
	}
	return rows
}
