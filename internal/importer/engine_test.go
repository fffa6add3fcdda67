package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"retailetl/internal/config"
	"retailetl/internal/storage"
	"retailetl/internal/transformer"
)

type insertCall struct {
	table   string
	columns []string
	rows    [][]any
	dedupe  []string
}

type fakeTx struct {
	calls *[]insertCall
	err   error
}

func (t *fakeTx) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupeColumns []string) (int64, error) {
	if t.err != nil {
		return 0, t.err
	}
	*t.calls = append(*t.calls, insertCall{table, columns, rows, dedupeColumns})
	return int64(len(rows)), nil
}

type fakeRepo struct {
	resetCalls int
	resetErr   error
	txErr      error
	calls      []insertCall
	committed  bool
}

func (r *fakeRepo) Close() {}

func (r *fakeRepo) ResetSchema(ctx context.Context, script string) error {
	r.resetCalls++
	return r.resetErr
}

func (r *fakeRepo) ImportTx(ctx context.Context, fn func(storage.Tx) error) error {
	if err := fn(&fakeTx{calls: &r.calls, err: r.txErr}); err != nil {
		return err
	}
	r.committed = true
	return nil
}

// streamOf returns a StreamFn feeding fixed rows in order. Row layout follows
// sales.Columns(): order_id, sku, style, category, amount, qty, date, ship_state.
func streamOf(rows [][]string) StreamFn {
	return func(ctx context.Context, cfg config.Pipeline, columns []string, out chan<- *transformer.Row, onErr func(int, error)) error {
		for i, vals := range rows {
			row := transformer.GetRow(len(columns))
			row.Line = i + 1
			copy(row.V, vals)
			select {
			case out <- row:
			case <-ctx.Done():
				row.Drop()
				return ctx.Err()
			}
		}
		return nil
	}
}

func seededConfig(seed int64) config.Pipeline {
	cfg := config.Default()
	cfg.Synth.Seed = &seed
	return cfg
}

func TestRunLoadsAllFourTables(t *testing.T) {
	repo := &fakeRepo{}
	e := &Engine{
		Repo: repo,
		Stream: streamOf([][]string{
			{"A1", "S1", "JNE-1", "Kurta", "10.0", "1", "04-30-22", "MAHARASHTRA"},
			{"A1", "S2", "JNE-2", "Top", "15.0", "2", "04-30-22", "MAHARASHTRA"},
			{"A2", "S1", "JNE-1", "Kurta", "10.0", "1", "05-01-22", ""},
		}),
	}

	sum, err := e.Run(context.Background(), seededConfig(7), "CREATE TABLE x (y);")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.resetCalls != 1 {
		t.Errorf("resetCalls = %d, want 1", repo.resetCalls)
	}
	if !repo.committed {
		t.Errorf("transaction not committed")
	}

	var tables []string
	for _, c := range repo.calls {
		tables = append(tables, c.table)
	}
	want := "Customers,Products,Orders,OrderDetails"
	if got := strings.Join(tables, ","); got != want {
		t.Fatalf("tables = %s, want %s", got, want)
	}

	// 2 distinct orders -> max(1, 2/3) = 1 customer.
	if n := len(repo.calls[0].rows); n != 1 {
		t.Errorf("Customers rows = %d, want 1", n)
	}
	// S1 deduped first-seen.
	if n := len(repo.calls[1].rows); n != 2 {
		t.Errorf("Products rows = %d, want 2", n)
	}
	if d := repo.calls[1].dedupe; len(d) != 1 || d[0] != "ProductID" {
		t.Errorf("Products dedupe = %v", d)
	}
	if n := len(repo.calls[2].rows); n != 2 {
		t.Errorf("Orders rows = %d, want 2", n)
	}
	if n := len(repo.calls[3].rows); n != 3 {
		t.Errorf("OrderDetails rows = %d, want 3", n)
	}

	if sum.RowsRead != 3 || sum.Customers != 1 || sum.Products != 2 || sum.Orders != 2 || sum.OrderDetails != 3 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRunCountsDroppedRows(t *testing.T) {
	repo := &fakeRepo{}
	e := &Engine{
		Repo: repo,
		Stream: streamOf([][]string{
			{"A1", "S1", "JNE-1", "Kurta", "10.0", "1", "04-30-22", "GOA"},
			{"", "S2", "JNE-2", "Top", "15.0", "2", "04-30-22", "GOA"},
			{"A2", "", "JNE-3", "Set", "20.0", "1", "04-30-22", "GOA"},
		}),
	}

	sum, err := e.Run(context.Background(), seededConfig(1), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.RowsRead != 3 || sum.RowsDropped != 2 {
		t.Errorf("summary = %+v, want 3 read / 2 dropped", sum)
	}
	if sum.Orders != 1 {
		t.Errorf("Orders = %d, want 1", sum.Orders)
	}
}

func TestRunPropagatesInsertError(t *testing.T) {
	boom := errors.New("constraint violated")
	repo := &fakeRepo{txErr: boom}
	e := &Engine{
		Repo: repo,
		Stream: streamOf([][]string{
			{"A1", "S1", "JNE-1", "Kurta", "10.0", "1", "04-30-22", "GOA"},
		}),
	}

	_, err := e.Run(context.Background(), seededConfig(1), "")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want insert error", err)
	}
	if repo.committed {
		t.Errorf("transaction committed despite error")
	}
}

func TestRunPropagatesResetError(t *testing.T) {
	repo := &fakeRepo{resetErr: errors.New("ddl failed")}
	e := &Engine{
		Repo: repo,
		Stream: streamOf([][]string{
			{"A1", "S1", "JNE-1", "Kurta", "10.0", "1", "04-30-22", "GOA"},
		}),
	}

	if _, err := e.Run(context.Background(), seededConfig(1), ""); err == nil {
		t.Fatalf("expected reset error")
	}
	if len(repo.calls) != 0 {
		t.Errorf("inserts happened after failed reset")
	}
}

func TestRunBatchesInserts(t *testing.T) {
	repo := &fakeRepo{}
	e := &Engine{
		Repo: repo,
		Stream: streamOf([][]string{
			{"A1", "S1", "JNE-1", "Kurta", "10.0", "1", "04-30-22", "GOA"},
			{"A2", "S2", "JNE-2", "Top", "15.0", "2", "04-30-22", "GOA"},
			{"A3", "S3", "JNE-3", "Set", "20.0", "1", "04-30-22", "GOA"},
		}),
	}

	cfg := seededConfig(1)
	cfg.Runtime.BatchSize = 1

	if _, err := e.Run(context.Background(), cfg, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var orderCalls int
	for _, c := range repo.calls {
		if c.table == "Orders" {
			orderCalls++
			if len(c.rows) != 1 {
				t.Errorf("Orders batch = %d rows, want 1", len(c.rows))
			}
		}
	}
	if orderCalls != 3 {
		t.Errorf("Orders batches = %d, want 3", orderCalls)
	}
}

func TestRunDeterministicUnderFixedSeed(t *testing.T) {
	rows := [][]string{
		{"A1", "S1", "JNE-1", "Kurta", "10.0", "1", "04-30-22", "GOA"},
		{"A2", "S2", "JNE-2", "Top", "15.0", "2", "04-30-22", "DELHI"},
		{"A3", "S3", "JNE-3", "Set", "20.0", "1", "04-30-22", "PUNJAB"},
		{"A4", "S4", "JNE-4", "Saree", "30.0", "1", "04-30-22", "KERALA"},
	}

	run := func() []insertCall {
		repo := &fakeRepo{}
		e := &Engine{Repo: repo, Stream: streamOf(rows)}
		if _, err := e.Run(context.Background(), seededConfig(99), ""); err != nil {
			t.Fatalf("Run: %v", err)
		}
		return repo.calls
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("call counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].table != b[i].table || len(a[i].rows) != len(b[i].rows) {
			t.Fatalf("call %d differs: %v vs %v", i, a[i], b[i])
		}
		for j := range a[i].rows {
			for k := range a[i].rows[j] {
				av := fmt.Sprint(a[i].rows[j][k])
				bv := fmt.Sprint(b[i].rows[j][k])
				if av != bv {
					t.Fatalf("row %d col %d differs: %v vs %v", j, k, av, bv)
				}
			}
		}
	}
}

func TestRunUnsupportedSourceKind(t *testing.T) {
	cfg := seededConfig(1)
	cfg.Source.Kind = "http"

	e := &Engine{Repo: &fakeRepo{}}
	if _, err := e.Run(context.Background(), cfg, ""); err == nil {
		t.Fatalf("expected error for unsupported source kind")
	}
}
