// journal/journal.go
package journal

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/ohlcv/market"
)

var ErrNoRun = errors.New("journal: no run in progress")

// Run describes one resampling pass and its outcome.
type Run struct {
	RunID       string
	Pair        string
	Source      string
	Granularity market.Granularity
	Interpolate bool
	StartedAt   time.Time
	FinishedAt  time.Time
	Candles     int
	Synthetic   int
	Skipped     int
	Discarded   int
}

// CandleJournal receives the candles of a run in boundary order.
type CandleJournal interface {
	BeginRun(Run) error
	RecordCandle(market.Candle) error
	FinishRun(Run) error
	Close() error
}

// Open returns the journal for an output type: "csv" and "sqlite" write to
// path, "postgres" connects to dsn.
func Open(kind, path, dsn string) (CandleJournal, error) {
	var (
		j   CandleJournal
		err error
	)
	switch kind {
	case "csv":
		var cj *CSVJournal
		if cj, err = NewCSV(path); err == nil {
			j = cj
		}
	case "sqlite", "postgres":
		driver, src := "sqlite3", path
		if kind == "postgres" {
			driver, src = "postgres", dsn
		}
		var sj *SQLJournal
		if sj, err = OpenSQL(driver, src); err == nil {
			j = sj
		}
	default:
		err = fmt.Errorf("journal: unknown output type %q", kind)
	}
	return j, err
}
