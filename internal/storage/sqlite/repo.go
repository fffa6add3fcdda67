package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"retailetl/internal/storage"
)

// Repo implements storage.Repository for SQLite.
//
// Key design points:
//   - The DSN is the database file path. ResetSchema removes the file before
//     executing the DDL, which makes the rebuild total. The historical
//     importer deleted retail_sales.db the same way.
//   - SQLite has no DATE type. Dates are bound as "YYYY-MM-DD" TEXT for
//     reliable round-trip behavior and easy debugging; nil stays NULL.
type Repo struct {
	dsn string
	db  *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{dsn: cfg.DSN, db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// ResetSchema destroys the database file and re-creates the schema from the
// DDL script.
//
// The open handle must be closed before the file is removed; otherwise the
// driver keeps writing into the unlinked inode and the "new" database never
// materializes on disk.
func (r *Repo) ResetSchema(ctx context.Context, script string) error {
	if path := filePath(r.dsn); path != "" {
		_ = r.db.Close()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		db, err := sql.Open("sqlite", r.dsn)
		if err != nil {
			return err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return err
		}
		r.db = db
	}

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

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type sqliteTx struct {
	tx *sql.Tx
}

// maxBindVars keeps multi-row statements under SQLite's historical variable
// limit (999) regardless of build-time configuration.
const maxBindVars = 900

// InsertRows performs SQLite multi-row inserts, chunked to stay within the
// bind-variable limit.
//
// If dedupeColumns is non-empty, uses "INSERT OR IGNORE" which relies on a
// UNIQUE/PK constraint matching those columns in the destination table.
func (t *sqliteTx) InsertRows(
	ctx context.Context,
	table string,
	columns []string,
	rows [][]any,
	dedupeColumns []string,
) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	insertPrefix := "INSERT INTO "
	if len(dedupeColumns) > 0 {
		insertPrefix = "INSERT OR IGNORE INTO "
	}

	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

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
		part := rows[start:end]

		var b strings.Builder
		b.WriteString(insertPrefix)
		b.WriteString(table)
		b.WriteString(" (")
		b.WriteString(strings.Join(colList, ", "))
		b.WriteString(") VALUES ")

		args := make([]any, 0, len(part)*len(columns))
		for i, row := range part {
			if len(row) != len(columns) {
				return total, fmt.Errorf("sqlite: row length %d != columns length %d", len(row), len(columns))
			}
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(placeholders)
			for _, v := range row {
				args = append(args, bindValue(v))
			}
		}

		res, err := t.tx.ExecContext(ctx, b.String(), args...)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// bindValue normalizes Go values for SQLite binding. Calendar dates become
// "YYYY-MM-DD" TEXT; everything else passes through.
func bindValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.Format("2006-01-02")
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.Format("2006-01-02")
	default:
		return v
	}
}

// filePath extracts the filesystem path from a sqlite DSN, or "" when the DSN
// addresses an in-memory database.
func filePath(dsn string) string {
	s := strings.TrimPrefix(dsn, "file:")
	if ix := strings.IndexByte(s, '?'); ix >= 0 {
		if strings.Contains(s[ix:], "mode=memory") {
			return ""
		}
		s = s[:ix]
	}
	if s == "" || s == ":memory:" {
		return ""
	}
	return s
}
