package importer

import (
	"context"
	"fmt"
	"os"

	"retailetl/internal/config"
	"retailetl/internal/storage"
)

// Run wires a pipeline config to a storage backend and executes the import.
//
// The DSN is environment-expanded (os.ExpandEnv) so pipeline files can carry
// "${RETAIL_DB_DSN}" instead of credentials. The backend kind must have been
// registered (import retailetl/internal/storage/all for all of them).
func Run(ctx context.Context, cfg config.Pipeline, logger Logger) (Summary, error) {
	if cfg.Storage.DB.SchemaPath == "" {
		return Summary{}, fmt.Errorf("importer: storage.db.schema_path is required")
	}

	schemaSQL, err := os.ReadFile(cfg.Storage.DB.SchemaPath)
	if err != nil {
		return Summary{}, fmt.Errorf("read schema %s: %w", cfg.Storage.DB.SchemaPath, err)
	}

	repo, err := storage.New(ctx, storage.Config{
		Kind: cfg.Storage.Kind,
		DSN:  os.ExpandEnv(cfg.Storage.DB.DSN),
	})
	if err != nil {
		return Summary{}, fmt.Errorf("open storage: %w", err)
	}
	defer repo.Close()

	e := &Engine{Repo: repo, Logger: logger}
	return e.Run(ctx, cfg, string(schemaSQL))
}
