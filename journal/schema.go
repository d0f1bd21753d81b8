// journal/schema.go
package journal

// Schema uses column types both SQLite and PostgreSQL accept.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	pair TEXT NOT NULL,
	source TEXT NOT NULL,
	granularity TEXT NOT NULL,
	interpolate BOOLEAN NOT NULL,
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	candles BIGINT NOT NULL DEFAULT 0,
	synthetic BIGINT NOT NULL DEFAULT 0,
	skipped BIGINT NOT NULL DEFAULT 0,
	discarded BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS candles (
	run_id TEXT NOT NULL,
	boundary BIGINT NOT NULL,
	open DOUBLE PRECISION NOT NULL,
	high DOUBLE PRECISION NOT NULL,
	low DOUBLE PRECISION NOT NULL,
	close DOUBLE PRECISION NOT NULL,
	volume DOUBLE PRECISION NOT NULL,
	synthetic BOOLEAN NOT NULL,
	PRIMARY KEY (run_id, boundary)
);

CREATE TABLE IF NOT EXISTS raw_orderbook (
	pair TEXT NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	volume DOUBLE PRECISION NOT NULL,
	is_ask BOOLEAN NOT NULL,
	order_epoch BIGINT NOT NULL,
	snapshot_epoch DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_raw_orderbook_snapshot ON raw_orderbook(pair, snapshot_epoch);
`
