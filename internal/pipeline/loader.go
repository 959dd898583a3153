package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sensoretl/internal/config"
	"sensoretl/internal/model"
	"sensoretl/internal/storage"
)

// TableLoad is the outcome of loading one table.
type TableLoad struct {
	Table    string
	Inserted int64
	// Count is SELECT COUNT(*) read back after the insert.
	Count int64
}

// Load replaces the contents of all six tables with batch.
//
// Tables are cleared children-first, then inserted parents-first
// (model.LoadOrder). mode selects the transaction scope:
//   - config.LoadModeAtomic: one transaction for everything; any error rolls
//     the store back to its previous contents.
//   - config.LoadModePerTable: every delete and every insert commits on its own,
//     children cleared first so foreign keys hold between commits. A failure
//     leaves earlier tables committed and later ones empty; rerunning the
//     pipeline restores a consistent state. DuckDB needs this mode: it rejects
//     deleting a parent whose children were deleted earlier in the same
//     transaction.
func Load(ctx context.Context, repo storage.MultiRepository, batch *model.Batch, mode string, log *zap.Logger) ([]TableLoad, error) {
	tables := batch.Tables()
	switch mode {
	case config.LoadModeAtomic, "":
		return loadAtomic(ctx, repo, tables, log)
	case config.LoadModePerTable:
		return loadPerTable(ctx, repo, tables, log)
	default:
		return nil, fmt.Errorf("load: unsupported load mode %q", mode)
	}
}

func loadAtomic(ctx context.Context, repo storage.MultiRepository, tables []model.TableData, log *zap.Logger) (out []TableLoad, err error) {
	tx, err := repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("load: begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error("rollback failed", zap.Error(rbErr))
			} else {
				log.Warn("load rolled back; previous table contents kept")
			}
		}
	}()

	if err = clearAll(ctx, tx, tables, log); err != nil {
		return nil, err
	}
	for _, t := range tables {
		var tl TableLoad
		if tl, err = insertTable(ctx, tx, t, log); err != nil {
			return nil, err
		}
		if tl.Count, err = tx.CountRows(ctx, t.Name); err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}
		logCount(log, tl)
		out = append(out, tl)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("load: commit: %w", err)
	}
	return out, nil
}

func loadPerTable(ctx context.Context, repo storage.MultiRepository, tables []model.TableData, log *zap.Logger) ([]TableLoad, error) {
	for i := len(tables) - 1; i >= 0; i-- {
		err := inTx(ctx, repo, func(tx storage.LoadTx) error {
			return clearTable(ctx, tx, tables[i].Name, log)
		})
		if err != nil {
			log.Warn("per_table clear stopped; rerun the pipeline", zap.String("table", tables[i].Name))
			return nil, err
		}
	}

	out := make([]TableLoad, 0, len(tables))
	for _, t := range tables {
		var tl TableLoad
		err := inTx(ctx, repo, func(tx storage.LoadTx) error {
			var err error
			tl, err = insertTable(ctx, tx, t, log)
			return err
		})
		if err != nil {
			log.Warn("per_table load stopped; earlier tables are committed, rerun the pipeline",
				zap.String("table", t.Name))
			return nil, err
		}
		// counted outside the transaction: single-connection stores cannot
		// serve a second query while a tx is open
		if tl.Count, err = repo.CountRows(ctx, t.Name); err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}
		logCount(log, tl)
		out = append(out, tl)
	}
	return out, nil
}

func inTx(ctx context.Context, repo storage.MultiRepository, fn func(tx storage.LoadTx) error) error {
	tx, err := repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("load: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("load: commit: %w", err)
	}
	return nil
}

// clearAll deletes every table, children first.
func clearAll(ctx context.Context, tx storage.LoadTx, tables []model.TableData, log *zap.Logger) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if err := clearTable(ctx, tx, tables[i].Name, log); err != nil {
			return err
		}
	}
	return nil
}

func clearTable(ctx context.Context, tx storage.LoadTx, table string, log *zap.Logger) error {
	n, err := tx.DeleteAll(ctx, table)
	if err != nil {
		return fmt.Errorf("load: clear: %w", err)
	}
	log.Debug("table cleared", zap.String("table", table), zap.Int64("rows", n))
	return nil
}

func insertTable(ctx context.Context, tx storage.LoadTx, t model.TableData, log *zap.Logger) (TableLoad, error) {
	start := time.Now()
	n, err := tx.InsertRows(ctx, t.Name, t.Columns, t.Rows)
	if err != nil {
		return TableLoad{}, fmt.Errorf("load: %w", err)
	}
	log.Debug("table inserted",
		zap.String("table", t.Name),
		zap.Int64("rows", n),
		zap.Int64("duration_ms", durMS(time.Since(start))))
	return TableLoad{Table: t.Name, Inserted: n}, nil
}

func logCount(log *zap.Logger, tl TableLoad) {
	if tl.Count != tl.Inserted {
		log.Warn("row count differs from inserted rows",
			zap.String("table", tl.Table),
			zap.Int64("inserted", tl.Inserted),
			zap.Int64("count", tl.Count))
		return
	}
	log.Info("table loaded", zap.String("table", tl.Table), zap.Int64("rows", tl.Count))
}
