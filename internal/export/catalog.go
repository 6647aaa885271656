package export

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dbsmedya/accesstally/internal/logger"
	"github.com/dbsmedya/accesstally/internal/sqlutil"
	"github.com/dbsmedya/accesstally/internal/tally"
)

// WriteStats summarises a catalog write-back.
type WriteStats struct {
	Orders   int
	Batches  int
	Changed  int64 // rows whose value actually changed
	Duration time.Duration
}

// CatalogWriter writes access counts back to the orders table, one
// transaction per batch.
type CatalogWriter struct {
	db        *sql.DB
	table     string
	idColumn  string
	column    string
	batchSize int
	logger    *logger.Logger
}

// NewCatalogWriter creates a writer updating table.column keyed by idColumn.
func NewCatalogWriter(db *sql.DB, table, idColumn, column string, batchSize int, log *logger.Logger) (*CatalogWriter, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	for _, name := range []string{table, idColumn, column} {
		if !sqlutil.IsValidIdentifier(name) {
			return nil, &sqlutil.InvalidIdentifierError{Name: name}
		}
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &CatalogWriter{
		db:        db,
		table:     table,
		idColumn:  idColumn,
		column:    column,
		batchSize: batchSize,
		logger:    log,
	}, nil
}

// Write updates every order in counts. Orders are written in id order so
// concurrent writers lock rows in the same sequence.
func (w *CatalogWriter) Write(ctx context.Context, counts map[string]int) (*WriteStats, error) {
	start := time.Now()
	entries := tally.Sorted(counts)
	stats := &WriteStats{Orders: len(entries)}

	totalBatches := (len(entries) + w.batchSize - 1) / w.batchSize
	w.logger.Infof("Writing %d access counts to %s.%s in %d batches", len(entries), w.table, w.column, totalBatches)

	for batchNum := 0; batchNum < totalBatches; batchNum++ {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("catalog write interrupted: %w", err)
		}

		lo := batchNum * w.batchSize
		hi := min(lo+w.batchSize, len(entries))

		changed, err := w.writeBatch(ctx, entries[lo:hi])
		if err != nil {
			return stats, fmt.Errorf("batch %d/%d failed: %w", batchNum+1, totalBatches, err)
		}
		stats.Batches++
		stats.Changed += changed

		if totalBatches > 1 {
			w.logger.Debugf("Wrote batch %d/%d (%d orders)", batchNum+1, totalBatches, hi-lo)
		}
	}

	stats.Duration = time.Since(start)
	w.logger.Infof("Catalog write complete: %d orders, %d changed, duration: %s",
		stats.Orders, stats.Changed, stats.Duration)
	return stats, nil
}

func (w *CatalogWriter) writeBatch(ctx context.Context, entries []tally.Entry) (changed int64, err error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				w.logger.Errorf("Failed to rollback transaction: %v", rbErr)
			}
		}
	}()

	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?",
		sqlutil.QuoteIdentifier(w.table),
		sqlutil.QuoteIdentifier(w.column),
		sqlutil.QuoteIdentifier(w.idColumn),
	)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare update: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		res, err := stmt.ExecContext(ctx, e.Count, e.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to update order %s: %w", e.ID, err)
		}
		// MySQL reports 0 affected rows when the value is unchanged
		if n, err := res.RowsAffected(); err == nil {
			changed += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return changed, nil
}
