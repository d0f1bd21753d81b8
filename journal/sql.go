package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/ohlcv/market"
)

// SQLJournal stores runs, candles and raw order books through sqlx. Queries
// are written with '?' placeholders and rebound for the driver in use, so
// the same code serves "sqlite3" and "postgres".
type SQLJournal struct {
	db *sqlx.DB

	tx     *sqlx.Tx
	insert *sqlx.Stmt
	runID  string
}

// OpenSQL connects with driver ("sqlite3" or "postgres") and applies Schema.
func OpenSQL(driver, dsn string) (*SQLJournal, error) {
	switch driver {
	case "sqlite3", "postgres":
	default:
		return nil, fmt.Errorf("journal: unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLJournal{db: db}, nil
}

// NewSQLite opens (or creates) a SQLite database file.
func NewSQLite(path string) (*SQLJournal, error) {
	return OpenSQL("sqlite3", path)
}

// BeginRun records the run header and opens the transaction that candles are
// written in until FinishRun.
func (j *SQLJournal) BeginRun(r Run) error {
	if j.tx != nil {
		return fmt.Errorf("journal: run %s already in progress", j.runID)
	}

	tx, err := j.db.Beginx()
	if err != nil {
		return err
	}

	_, err = tx.Exec(j.db.Rebind(`
		INSERT INTO runs (run_id, pair, source, granularity, interpolate, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		r.RunID, r.Pair, r.Source, r.Granularity.String(), r.Interpolate, r.StartedAt.UTC(),
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Preparex(j.db.Rebind(`
		INSERT INTO candles (run_id, boundary, open, high, low, close, volume, synthetic)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		tx.Rollback()
		return err
	}

	j.tx, j.insert, j.runID = tx, stmt, r.RunID
	return nil
}

func (j *SQLJournal) RecordCandle(c market.Candle) error {
	if j.tx == nil {
		return ErrNoRun
	}
	_, err := j.insert.Exec(j.runID, int64(c.Boundary), c.Open, c.High, c.Low, c.Close, c.Volume, c.Synthetic)
	return err
}

// FinishRun commits the run's candles and stores its totals.
func (j *SQLJournal) FinishRun(r Run) error {
	if j.tx == nil {
		return ErrNoRun
	}

	_, err := j.tx.Exec(j.db.Rebind(`
		UPDATE runs
		SET finished_at = ?, candles = ?, synthetic = ?, skipped = ?, discarded = ?
		WHERE run_id = ?`),
		r.FinishedAt.UTC(), r.Candles, r.Synthetic, r.Skipped, r.Discarded, j.runID,
	)
	if err != nil {
		j.abort()
		return fmt.Errorf("update run: %w", err)
	}

	j.insert.Close()
	err = j.tx.Commit()
	j.tx, j.insert, j.runID = nil, nil, ""
	return err
}

func (j *SQLJournal) abort() {
	if j.insert != nil {
		j.insert.Close()
	}
	if j.tx != nil {
		j.tx.Rollback()
	}
	j.tx, j.insert, j.runID = nil, nil, ""
}

// Close rolls back an unfinished run and closes the database.
func (j *SQLJournal) Close() error {
	j.abort()
	return j.db.Close()
}

type runRow struct {
	RunID       string       `db:"run_id"`
	Pair        string       `db:"pair"`
	Source      string       `db:"source"`
	Granularity string       `db:"granularity"`
	Interpolate bool         `db:"interpolate"`
	StartedAt   time.Time    `db:"started_at"`
	FinishedAt  sql.NullTime `db:"finished_at"`
	Candles     int          `db:"candles"`
	Synthetic   int          `db:"synthetic"`
	Skipped     int          `db:"skipped"`
	Discarded   int          `db:"discarded"`
}

func (rr runRow) run() (Run, error) {
	g, err := market.ParseGranularity(rr.Granularity)
	if err != nil {
		return Run{}, err
	}
	return Run{
		RunID:       rr.RunID,
		Pair:        rr.Pair,
		Source:      rr.Source,
		Granularity: g,
		Interpolate: rr.Interpolate,
		StartedAt:   rr.StartedAt,
		FinishedAt:  rr.FinishedAt.Time,
		Candles:     rr.Candles,
		Synthetic:   rr.Synthetic,
		Skipped:     rr.Skipped,
		Discarded:   rr.Discarded,
	}, nil
}

const runColumns = `run_id, pair, source, granularity, interpolate, started_at, finished_at, candles, synthetic, skipped, discarded`

// GetRun returns a single run by ID.
func (j *SQLJournal) GetRun(ctx context.Context, runID string) (Run, error) {
	var rr runRow
	err := j.db.GetContext(ctx, &rr, j.db.Rebind(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`), runID)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %q not found", runID)
	}
	if err != nil {
		return Run{}, err
	}
	return rr.run()
}

// ListRuns returns finished and unfinished runs, newest first.
func (j *SQLJournal) ListRuns(ctx context.Context) ([]Run, error) {
	var rows []runRow
	if err := j.db.SelectContext(ctx, &rows, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, run_id DESC`); err != nil {
		return nil, err
	}

	out := make([]Run, 0, len(rows))
	for _, rr := range rows {
		r, err := rr.run()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

type candleRow struct {
	Boundary  int64   `db:"boundary"`
	Open      float64 `db:"open"`
	High      float64 `db:"high"`
	Low       float64 `db:"low"`
	Close     float64 `db:"close"`
	Volume    float64 `db:"volume"`
	Synthetic bool    `db:"synthetic"`
}

// ListCandles returns a run's candles in boundary order.
func (j *SQLJournal) ListCandles(ctx context.Context, runID string) ([]market.Candle, error) {
	var rows []candleRow
	err := j.db.SelectContext(ctx, &rows, j.db.Rebind(`
		SELECT boundary, open, high, low, close, volume, synthetic
		FROM candles
		WHERE run_id = ?
		ORDER BY boundary ASC`), runID)
	if err != nil {
		return nil, err
	}

	out := make([]market.Candle, len(rows))
	for i, r := range rows {
		out[i] = market.Candle{
			Boundary:  market.Boundary(r.Boundary),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
			Synthetic: r.Synthetic,
		}
	}
	return out, nil
}

// RecordOrderBook stores every level of a snapshot in one transaction and
// returns the number of rows written.
func (j *SQLJournal) RecordOrderBook(ctx context.Context, ob market.OrderBook) (int, error) {
	tx, err := j.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, j.db.Rebind(`
		INSERT INTO raw_orderbook (pair, price, volume, is_ask, order_epoch, snapshot_epoch)
		VALUES (?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	snapshot := float64(ob.Snapshot.UnixNano()) / 1e9
	n := 0
	for _, side := range []struct {
		ask    bool
		levels []market.Level
	}{{true, ob.Asks}, {false, ob.Bids}} {
		for _, l := range side.levels {
			if _, err := stmt.ExecContext(ctx, ob.Pair, l.Price, l.Volume, side.ask, l.Time, snapshot); err != nil {
				return 0, err
			}
			n++
		}
	}
	return n, tx.Commit()
}

// CountOrderBookRows is the number of stored levels for pair.
func (j *SQLJournal) CountOrderBookRows(ctx context.Context, pair string) (int, error) {
	var n int
	err := j.db.GetContext(ctx, &n, j.db.Rebind(`SELECT COUNT(*) FROM raw_orderbook WHERE pair = ?`), pair)
	return n, err
}
