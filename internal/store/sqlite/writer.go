package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"indstream/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/indstream.db"
}

// Writer is a single-connection SQLite writer with transaction batching.
// It stores bars (for deterministic replay), confirmed indicator values and
// engine checkpoints.
type Writer struct {
	db  *sql.DB
	log *slog.Logger
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens (and if needed creates) the database in WAL mode.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := open(cfg.DBPath, 1)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	l := slog.With("component", "sqlite")
	l.Info("opened database", "path", cfg.DBPath)
	return &Writer{db: db, log: l}, nil
}

// WriteBars inserts closed bars in one transaction. Forming bars are skipped;
// a bar with an existing (symbol, ts) replaces the stored one.
func (w *Writer) WriteBars(ctx context.Context, bars []model.Bar) error {
	return w.inTx(ctx, `
		INSERT OR REPLACE INTO bars (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, func(stmt *sql.Stmt) error {
		for i := range bars {
			b := &bars[i]
			if b.Forming {
				continue
			}
			if _, err := stmt.ExecContext(ctx, b.Key(), b.TS.UnixMilli(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteFrames inserts the indicator values of confirmed frames. Live
// (peeked) frames are not persisted.
func (w *Writer) WriteFrames(ctx context.Context, frames []model.Frame) error {
	return w.inTx(ctx, `
		INSERT OR REPLACE INTO indicator_values (name, stream, seq, ts, ready, value, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, func(stmt *sql.Stmt) error {
		for i := range frames {
			if frames[i].Live {
				continue
			}
			for _, rec := range frames[i].Records() {
				value, err := json.Marshal(rec.Value)
				if err != nil {
					return fmt.Errorf("encode %s: %w", rec.Name, err)
				}
				var errText sql.NullString
				if rec.Error != "" {
					errText = sql.NullString{String: rec.Error, Valid: true}
				}
				if _, err := stmt.ExecContext(ctx, rec.Name, rec.Stream, rec.Seq, rec.TS.UnixMilli(), rec.Ready, string(value), errText); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (w *Writer) inTx(ctx context.Context, query string, fn func(*sql.Stmt) error) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite insert: %w", err)
	}
	return tx.Commit()
}

// RunBars reads bars from barCh and inserts them in batched transactions.
// Flushes every batch size bars OR every flush delay, whichever first.
// Blocks until ctx is cancelled or barCh is closed.
func (w *Writer) RunBars(ctx context.Context, barCh <-chan model.Bar) {
	runBatched(ctx, w.log, "bars", barCh, w.WriteBars)
}

// RunFrames is RunBars for indicator frames.
func (w *Writer) RunFrames(ctx context.Context, frameCh <-chan model.Frame) {
	runBatched(ctx, w.log, "frames", frameCh, w.WriteFrames)
}

func runBatched[T any](ctx context.Context, log *slog.Logger, what string, ch <-chan T, write func(context.Context, []T) error) {
	batch := make([]T, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		// The final flush runs after ctx is already cancelled.
		if err := write(context.Background(), batch); err != nil {
			log.Error("batch insert failed", "kind", what, "n", len(batch), "error", err)
		} else {
			log.Debug("batch committed", "kind", what, "n", len(batch), "took", time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case v, ok := <-ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, v)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// LastBarTS returns the newest stored bar timestamp for symbol, or the zero
// time when none exist.
func (w *Writer) LastBarTS(ctx context.Context, symbol string) (time.Time, error) {
	var ts sql.NullInt64
	err := w.db.QueryRowContext(ctx, `SELECT MAX(ts) FROM bars WHERE symbol = ?`, symbol).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return fromMillis(ts.Int64), nil
}

// SaveCheckpointJSON stores an engine checkpoint, keeping the newest few.
func (w *Writer) SaveCheckpointJSON(ctx context.Context, data []byte) error {
	_, err := w.db.ExecContext(ctx, `INSERT INTO checkpoints (data, created_at) VALUES (?, ?)`,
		string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlite insert checkpoint: %w", err)
	}

	_, err = w.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE id NOT IN (SELECT id FROM checkpoints ORDER BY id DESC LIMIT ?)`, checkpointsKept)
	if err != nil {
		w.log.Warn("prune checkpoints failed", "error", err)
	}
	return nil
}

// ReadLatestCheckpointJSON returns the newest checkpoint, or nil, nil.
func (w *Writer) ReadLatestCheckpointJSON(ctx context.Context) ([]byte, error) {
	return latestCheckpoint(ctx, w.db)
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
