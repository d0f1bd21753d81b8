package feed

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/ohlcv/market"
)

// tailSize is how far back from the end of a trades file we look for the
// last complete row.
const tailSize = 1024

// TradeWriter appends trades in the layout CSVTradesFeed reads.
type TradeWriter struct {
	w *csv.Writer
}

func NewTradeWriter(w io.Writer) *TradeWriter {
	return &TradeWriter{w: csv.NewWriter(w)}
}

func (tw *TradeWriter) WriteHeader() error {
	return tw.w.Write(TradesHeader)
}

func (tw *TradeWriter) Write(t market.Trade) error {
	return tw.w.Write([]string{
		strconv.FormatFloat(t.Price, 'f', -1, 64),
		strconv.FormatFloat(t.Volume, 'f', -1, 64),
		strconv.FormatFloat(t.Time, 'f', -1, 64),
		t.Side,
		t.OrderType,
		t.Misc,
	})
}

func (tw *TradeWriter) Flush() error {
	tw.w.Flush()
	return tw.w.Error()
}

// LastTradeSince returns the Kraken "since" cursor (nanoseconds since the
// epoch) for the last trade stored in path, so a download can resume where
// the file ends. A missing, empty or header-only file yields "0".
func LastTradeSince(path string) (string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", err
	}
	off := fi.Size() - tailSize
	if off < 0 {
		off = 0
	}
	buf := make([]byte, fi.Size()-off)
	if _, err := f.ReadAt(buf, off); err != nil && err != io.EOF {
		return "", err
	}

	lines := bytes.Split(bytes.TrimRight(buf, "\r\n"), []byte("\n"))
	last := bytes.TrimSpace(lines[len(lines)-1])
	if len(last) == 0 {
		return "0", nil
	}

	row, err := csv.NewReader(bytes.NewReader(last)).Read()
	if err != nil || len(row) < 3 {
		return "0", nil
	}
	if row[0] == TradesHeader[0] {
		return "0", nil
	}

	ts, err := decimal.NewFromString(row[2])
	if err != nil {
		return "", fmt.Errorf("last trade in %s: bad time %q", path, row[2])
	}
	return ts.Shift(9).Truncate(0).String(), nil
}
