package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"indstream/internal/model"
)

// Reader provides read access to SQLite for replay and checkpoint restore.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := open(dbPath, 2)
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	slog.Info("opened database", "component", "sqlite-reader", "path", dbPath)
	return &Reader{db: db}, nil
}

// ReadBars returns the stored bars of symbol with TS after `after`, oldest
// first. A zero `after` reads from the beginning.
func (r *Reader) ReadBars(ctx context.Context, symbol string, after time.Time) ([]model.Bar, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT symbol, ts, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND ts > ?
		ORDER BY ts ASC
	`, symbol, toMillis(after))
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var ts int64
		if err := rows.Scan(&b.Symbol, &ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.TS = fromMillis(ts)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Symbols lists the symbols that have stored bars.
func (r *Reader) Symbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite scan symbols: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReadValues returns the stored values of one indicator on one stream in
// sequence order.
func (r *Reader) ReadValues(ctx context.Context, name, stream string) ([]model.IndicatorRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, ts, ready, value, error
		FROM indicator_values
		WHERE name = ? AND stream = ?
		ORDER BY seq ASC
	`, name, stream)
	if err != nil {
		return nil, fmt.Errorf("sqlite query indicator_values: %w", err)
	}
	defer rows.Close()

	var out []model.IndicatorRecord
	for rows.Next() {
		rec := model.IndicatorRecord{Name: name, Stream: stream}
		var ts int64
		var value, errText sql.NullString
		if err := rows.Scan(&rec.Seq, &ts, &rec.Ready, &value, &errText); err != nil {
			return nil, fmt.Errorf("sqlite scan indicator_values: %w", err)
		}
		rec.TS = fromMillis(ts)
		rec.Error = errText.String
		if value.Valid {
			if err := json.Unmarshal([]byte(value.String), &rec.Value); err != nil {
				return nil, fmt.Errorf("decode value %s seq %d: %w", name, rec.Seq, err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ReadLatestCheckpointJSON returns the newest checkpoint, or nil, nil.
func (r *Reader) ReadLatestCheckpointJSON(ctx context.Context) ([]byte, error) {
	return latestCheckpoint(ctx, r.db)
}

func latestCheckpoint(ctx context.Context, db *sql.DB) ([]byte, error) {
	var data string
	err := db.QueryRowContext(ctx, `SELECT data FROM checkpoints ORDER BY id DESC LIMIT 1`).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite read checkpoint: %w", err)
	}
	return []byte(data), nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
