package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"retailetl/internal/storage"
)

// Repo implements storage.Repository for SQL Server via database/sql and the
// "sqlserver" driver.
//
// SQL Server has no ON CONFLICT clause. Dedupe inserts materialize the
// incoming rows as a VALUES derived table and keep only rows with no match in
// the destination per dedupeColumns (INSERT ... SELECT ... WHERE NOT EXISTS).
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// ResetSchema executes the DDL script statement by statement. The script owns
// its DROP TABLE IF EXISTS lines.
func (r *Repo) ResetSchema(ctx context.Context, script string) error {
	for _, stmt := range storage.SplitScript(script) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema: %w", err)
		}
	}
	return nil
}

// ImportTx runs fn inside one transaction; commit happens only when fn
// returns nil.
func (r *Repo) ImportTx(ctx context.Context, fn func(storage.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&mssqlTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type mssqlTx struct {
	tx *sql.Tx
}

// SQL Server hard-caps a statement at 2100 parameters; stay comfortably below.
const maxBindVars = 2000

func (t *mssqlTx) InsertRows(
	ctx context.Context,
	table string,
	columns []string,
	rows [][]any,
	dedupeColumns []string,
) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	chunk := maxBindVars / len(columns)
	if chunk < 1 {
		chunk = 1
	}

	var total int64
	for start := 0; start < len(rows); start += chunk {
		end := start + chunk
		if end > len(rows) {
			end = len(rows)
		}

		var (
			q    string
			args []any
			err  error
		)
		if len(dedupeColumns) > 0 {
			q, args, err = buildInsertNotExistsSQL(table, columns, rows[start:end], dedupeColumns)
		} else {
			q, args, err = buildBulkInsertSQL(table, columns, rows[start:end])
		}
		if err != nil {
			return total, err
		}

		res, err := t.tx.ExecContext(ctx, q, args...)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// buildBulkInsertSQL constructs a single INSERT ... VALUES statement using
// @pN placeholders.
func buildBulkInsertSQL(table string, columns []string, rows [][]any) (string, []any, error) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
	}
	b.WriteString(") VALUES ")

	args, err := writeValuesList(&b, columns, rows)
	if err != nil {
		return "", nil, err
	}
	return b.String(), args, nil
}

// buildInsertNotExistsSQL constructs the dedupe variant: incoming rows become
// a derived table v, and only rows with no match per dedupeColumns are kept.
func buildInsertNotExistsSQL(table string, columns []string, rows [][]any, dedupeColumns []string) (string, []any, error) {
	for _, dc := range dedupeColumns {
		if _, ok := indexOfColumn(columns, dc); !ok {
			return "", nil, fmt.Errorf("mssql: dedupe column %q not present in columns", dc)
		}
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
	}
	b.WriteString(") SELECT ")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("v.")
		b.WriteString(ident(c))
	}
	b.WriteString(" FROM (VALUES ")

	args, err := writeValuesList(&b, columns, rows)
	if err != nil {
		return "", nil, err
	}

	b.WriteString(") AS v(")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
	}
	b.WriteString(") WHERE NOT EXISTS (SELECT 1 FROM ")
	b.WriteString(tableIdent(table))
	b.WriteString(" t WHERE ")
	for i, dc := range dedupeColumns {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString("t.")
		b.WriteString(ident(dc))
		b.WriteString(" = v.")
		b.WriteString(ident(dc))
	}
	b.WriteString(")")

	return b.String(), args, nil
}

func writeValuesList(b *strings.Builder, columns []string, rows [][]any) ([]any, error) {
	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("mssql: row length %d != columns length %d", len(row), len(columns))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "@p%d", p)
			args = append(args, bindValue(row[j]))
			p++
		}
		b.WriteString(")")
	}
	return args, nil
}

func indexOfColumn(columns []string, name string) (int, bool) {
	for i, c := range columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

func ident(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// tableIdent bracket-quotes schema-qualified names, e.g. "dbo.Orders"
// becomes [dbo].[Orders].
func tableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = ident(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// bindValue unwraps *time.Time so a nil pointer binds as SQL NULL.
func bindValue(v any) any {
	if t, ok := v.(*time.Time); ok {
		if t == nil {
			return nil
		}
		return *t
	}
	return v
}
