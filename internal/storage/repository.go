package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to create a repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific (for sqlite the DSN is the database file path).
type Config struct {
	Kind string
	DSN  string
}

// Repository is the backend-agnostic persistence sink for the import run.
//
// IMPORTANT: This interface is intentionally minimal and focused on what the
// import engine needs: a destructive schema reset and a single-transaction
// bulk load. Each backend implements the semantics in its own idiomatic way
// (Postgres ON CONFLICT, SQLite OR IGNORE, SQL Server NOT EXISTS).
type Repository interface {
	// Close releases any backend resources (connections, prepared statements).
	// Callers should treat Close as "call once" at process shutdown.
	Close()

	// ResetSchema destroys any existing store content and executes the DDL
	// script. The script owns DROP/CREATE statements; sqlite additionally
	// removes the database file first, making the rebuild total.
	//
	// After ResetSchema the four tables exist and are empty.
	ResetSchema(ctx context.Context, script string) error

	// ImportTx runs fn inside a single transaction. The transaction commits
	// only when fn returns nil; any error rolls the whole batch back, so the
	// store never holds a partial import.
	ImportTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write surface available inside ImportTx.
type Tx interface {
	// InsertRows bulk-inserts rows into table. Every row must align with
	// columns.
	//
	// When dedupeColumns is non-empty the insert is conflict-ignoring on
	// those columns: a row whose key already exists is silently skipped
	// rather than failing the transaction (first-seen wins).
	//
	// Returns the number of rows actually inserted where the backend can
	// report it.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupeColumns []string) (int64, error)
}

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "sqlite", "postgres").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The `kind` string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. This is intentional to fail fast and
//     avoid ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Concurrency:
//   - Safe for concurrent use with Register. New takes a read lock while
//     selecting the factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
