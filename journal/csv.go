// journal/csv.go
package journal

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rustyeddy/ohlcv/market"
)

// CandlesHeader is the row layout downstream tools read.
var CandlesHeader = []string{"interval_start", "open", "high", "low", "close", "volume", "synthetic"}

// CSVJournal writes one row per candle. Run bookkeeping has no place in a
// flat file, so BeginRun and FinishRun only flush.
type CSVJournal struct {
	candles *csv.Writer
	closer  io.Closer
}

// NewCSV creates (or truncates) path and writes the header.
func NewCSV(path string) (*CSVJournal, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	j, err := NewCSVWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	j.closer = f
	return j, nil
}

// NewCSVWriter writes to w; Close flushes but leaves w open.
func NewCSVWriter(w io.Writer) (*CSVJournal, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(CandlesHeader); err != nil {
		return nil, err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return &CSVJournal{candles: cw}, nil
}

func (j *CSVJournal) BeginRun(Run) error {
	return nil
}

func (j *CSVJournal) RecordCandle(c market.Candle) error {
	synthetic := "0"
	if c.Synthetic {
		synthetic = "1"
	}
	return j.candles.Write([]string{
		strconv.FormatInt(int64(c.Boundary), 10),
		f(c.Open),
		f(c.High),
		f(c.Low),
		f(c.Close),
		f(c.Volume),
		synthetic,
	})
}

func (j *CSVJournal) FinishRun(Run) error {
	j.candles.Flush()
	return j.candles.Error()
}

// Close flushes and closes the file even when the flush fails; the first
// error wins.
func (j *CSVJournal) Close() error {
	j.candles.Flush()
	err := j.candles.Error()
	if j.closer != nil {
		if cerr := j.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
