package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/zap"

	"sensoretl/internal/config"
	"sensoretl/internal/schema"
	"sensoretl/internal/storage"
)

// Bootstrap applies the DDL artifact at cfg.Path once. The artifact must be
// idempotent; it runs on every pipeline start.
//
// A missing artifact is not fatal: it is logged, and when cfg.AutoCreate is set
// the built-in table specs are created instead. Any other read error, or a
// failing statement, is returned.
func Bootstrap(ctx context.Context, repo storage.MultiRepository, cfg config.Schema, log *zap.Logger) error {
	b, err := os.ReadFile(cfg.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn("schema artifact not found; continuing without it", zap.String("path", cfg.Path))
		if !cfg.AutoCreate {
			return nil
		}
		if err := repo.EnsureTables(ctx, schema.Tables()); err != nil {
			return fmt.Errorf("bootstrap: create built-in tables: %w", err)
		}
		log.Info("created tables from built-in specs", zap.Int("tables", len(schema.Tables())))
		return nil
	case err != nil:
		return fmt.Errorf("bootstrap: read %s: %w", cfg.Path, err)
	}

	script := string(b)
	if strings.TrimSpace(script) == "" {
		log.Warn("schema artifact is empty", zap.String("path", cfg.Path))
		return nil
	}
	if err := repo.ApplySchema(ctx, script); err != nil {
		return fmt.Errorf("bootstrap: apply %s: %w", cfg.Path, err)
	}
	log.Info("schema applied", zap.String("path", cfg.Path))
	return nil
}
