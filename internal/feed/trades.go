package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	"github.com/rustyeddy/ohlcv/market"
)

// TradesHeader is the column layout of Kraken trade history files.
var TradesHeader = []string{"price", "volume", "time", "buy/sell", "market/limit", "misc"}

// RowError is a data row that could not be turned into a trade. Reading can
// continue past it.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// CSVTradesFeed reads trade rows:
//
//	price,volume,time[,buy/sell,market/limit,misc]
//
// where time is fractional seconds since the epoch.
//
// A single header row ("price,...") is allowed. Empty rows are skipped.
// Files ending in .xz or .lzma are decompressed on the fly.
type CSVTradesFeed struct {
	closer io.Closer
	r      *csv.Reader

	sawFirst bool
}

// Open opens a trades file by path.
func Open(path string) (*CSVTradesFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var src io.Reader = f
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xz":
		src, err = xz.NewReader(f)
	case ".lzma":
		src, err = lzma.NewReader(f)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	tf := NewCSVTradesFeed(src)
	tf.closer = f
	return tf, nil
}

func NewCSVTradesFeed(r io.Reader) *CSVTradesFeed {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	cr.LazyQuotes = true
	return &CSVTradesFeed{r: cr}
}

func (f *CSVTradesFeed) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

// Next returns the next trade. ok is false at end of input. A *RowError means
// only that row was bad; any other error is fatal to the read.
func (f *CSVTradesFeed) Next() (market.Trade, bool, error) {
	for {
		row, err := f.r.Read()
		if err == io.EOF {
			return market.Trade{}, false, nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return market.Trade{}, false, &RowError{Line: parseErr.Line, Err: fmt.Errorf("%w: %v", market.ErrMalformedRecord, parseErr.Err)}
		}
		if err != nil {
			return market.Trade{}, false, err
		}
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		line, _ := f.r.FieldPos(0)

		// Allow a single header row
		if !f.sawFirst {
			f.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), TradesHeader[0]) {
				continue
			}
		}

		t, err := ParseTradeRow(row)
		if err != nil {
			return market.Trade{}, false, &RowError{Line: line, Err: err}
		}
		return t, true, nil
	}
}

// ParseTradeRow converts one CSV row. Numbers go through decimal so spellings
// like "NaN" or "Inf", which strconv accepts, are rejected.
func ParseTradeRow(row []string) (market.Trade, error) {
	if len(row) < 3 {
		return market.Trade{}, fmt.Errorf("%w: want at least 3 columns, got %d", market.ErrMalformedRecord, len(row))
	}

	price, err := parseNumber(row[0])
	if err != nil {
		return market.Trade{}, fmt.Errorf("%w: bad price %q", market.ErrMalformedRecord, row[0])
	}
	volume, err := parseNumber(row[1])
	if err != nil {
		return market.Trade{}, fmt.Errorf("%w: bad volume %q", market.ErrMalformedRecord, row[1])
	}
	ts, err := parseNumber(row[2])
	if err != nil {
		return market.Trade{}, fmt.Errorf("%w: bad time %q", market.ErrInvalidTimestamp, row[2])
	}

	t := market.Trade{Price: price, Volume: volume, Time: ts}
	if len(row) > 3 {
		t.Side = strings.TrimSpace(row[3])
	}
	if len(row) > 4 {
		t.OrderType = strings.TrimSpace(row[4])
	}
	if len(row) > 5 {
		t.Misc = strings.TrimSpace(row[5])
	}

	if err := t.Validate(); err != nil {
		return market.Trade{}, err
	}
	return t, nil
}

func parseNumber(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
