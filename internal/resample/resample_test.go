package resample

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/ohlcv/aggregate"
	"github.com/rustyeddy/ohlcv/internal/feed"
	"github.com/rustyeddy/ohlcv/journal"
	"github.com/rustyeddy/ohlcv/market"
	"github.com/rustyeddy/ohlcv/pkg/id"
)

type sliceSource struct {
	trades []market.Trade
	i      int
}

func (s *sliceSource) Next() (market.Trade, bool, error) {
	if s.i >= len(s.trades) {
		return market.Trade{}, false, nil
	}
	t := s.trades[s.i]
	s.i++
	return t, true, nil
}

type memJournal struct {
	begun    []journal.Run
	finished []journal.Run
	candles  []market.Candle
	failOn   int // RecordCandle call that fails, 1-based; 0 never
}

func (m *memJournal) BeginRun(r journal.Run) error {
	m.begun = append(m.begun, r)
	return nil
}

func (m *memJournal) RecordCandle(c market.Candle) error {
	if m.failOn > 0 && len(m.candles)+1 == m.failOn {
		return errors.New("disk full")
	}
	m.candles = append(m.candles, c)
	return nil
}

func (m *memJournal) FinishRun(r journal.Run) error {
	m.finished = append(m.finished, r)
	return nil
}

func (m *memJournal) Close() error { return nil }

func fixedNow() time.Time {
	return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
}

func m1(interpolate bool) aggregate.Config {
	return aggregate.Config{Granularity: market.M1, Interpolate: interpolate}
}

func TestRunExample(t *testing.T) {
	t.Parallel()

	j := &memJournal{}
	rep, err := Run(context.Background(), Options{
		Source: &sliceSource{trades: []market.Trade{
			{Price: 100, Volume: 1, Time: 30},
			{Price: 101, Volume: 2, Time: 45},
			{Price: 105, Volume: 1, Time: 125},
		}},
		Pair:      "XXBTZUSD",
		Aggregate: m1(true),
		Journal:   j,
		Now:       fixedNow,
	})
	require.NoError(t, err)

	require.Len(t, j.candles, 2)
	assert.Equal(t, market.Candle{Boundary: 60, Open: 100, High: 101, Low: 100, Close: 101, Volume: 3}, j.candles[0])
	assert.Equal(t, market.NewSyntheticCandle(120, 103), j.candles[1])

	assert.Equal(t, 2, rep.Stats.Candles)
	assert.Equal(t, 1, rep.Stats.Synthetic)
	assert.Equal(t, 1, rep.Stats.Discarded)
	assert.Zero(t, rep.Gaps.Missing)
	assert.Equal(t, 2, rep.Gaps.Present)

	require.Len(t, j.begun, 1)
	require.Len(t, j.finished, 1)
	assert.Equal(t, rep.RunID, j.begun[0].RunID)
	assert.Equal(t, "XXBTZUSD", j.finished[0].Pair)
	assert.Equal(t, 2, j.finished[0].Candles)
	assert.Equal(t, 1, j.finished[0].Discarded)

	started, err := id.Time(rep.RunID)
	require.NoError(t, err)
	assert.True(t, started.Equal(fixedNow()))
}

func TestRunFlushAndGaps(t *testing.T) {
	t.Parallel()

	trades := []market.Trade{
		{Price: 10, Volume: 1, Time: 10},
		{Price: 20, Volume: 1, Time: 250},
		{Price: 21, Volume: 1, Time: 255},
	}

	j := &memJournal{}
	rep, err := Run(context.Background(), Options{
		Source:    &sliceSource{trades: trades},
		Aggregate: m1(false),
		Flush:     true,
		Journal:   j,
	})
	require.NoError(t, err)

	require.Len(t, j.candles, 2)
	assert.Equal(t, market.Boundary(60), j.candles[0].Boundary)
	assert.Equal(t, market.Boundary(300), j.candles[1].Boundary)
	assert.Equal(t, 2.0, j.candles[1].Volume)

	assert.Zero(t, rep.Stats.Discarded)
	assert.Zero(t, rep.Stats.Synthetic)
	assert.Equal(t, 1, rep.Gaps.GapCount)
	assert.Equal(t, 3, rep.Gaps.Missing)
}

func TestRunSkipsBadRows(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"price,volume,time,buy/sell,market/limit,misc",
		"100,1,30,b,l,",
		"abc,1,31,b,l,",
		"101,1,NaN,s,m,",
		"102,-1,32,s,m,",
		"103,1,61,s,m,",
		"104,1,130,s,m,",
	}, "\n")

	j := &memJournal{}
	rep, err := Run(context.Background(), Options{
		Source:    feed.NewCSVTradesFeed(strings.NewReader(input)),
		Aggregate: m1(true),
		Journal:   j,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, rep.BadRows)
	assert.Equal(t, 3, rep.Stats.Skipped)
	assert.Equal(t, 3, j.finished[0].Skipped)

	require.Len(t, j.candles, 2)
	assert.Equal(t, market.Boundary(60), j.candles[0].Boundary)
	assert.Equal(t, market.Boundary(120), j.candles[1].Boundary)
	assert.Equal(t, 103.0, j.candles[1].Close)
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	j := &memJournal{}
	rep, err := Run(ctx, Options{
		Source:    &sliceSource{trades: []market.Trade{{Price: 1, Volume: 1, Time: 10}}},
		Aggregate: m1(true),
		Journal:   j,
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, j.candles)
	assert.Zero(t, rep.Stats.Trades)
	assert.Len(t, j.finished, 1)
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), Options{Aggregate: m1(true)})
	require.Error(t, err)

	j := &memJournal{}
	_, err = Run(context.Background(), Options{
		Source:    &sliceSource{},
		Aggregate: aggregate.Config{Granularity: market.Granularity(99)},
		Journal:   j,
	})
	require.ErrorIs(t, err, market.ErrUnsupportedGranularity)
	assert.Empty(t, j.begun)

	_, err = Run(context.Background(), Options{
		Input:     filepath.Join(t.TempDir(), "missing.csv"),
		Aggregate: m1(true),
		Journal:   j,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open input")

	failing := &memJournal{failOn: 1}
	_, err = Run(context.Background(), Options{
		Source: &sliceSource{trades: []market.Trade{
			{Price: 1, Volume: 1, Time: 10},
			{Price: 2, Volume: 1, Time: 70},
		}},
		Aggregate: m1(true),
		Journal:   failing,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRunFileToSQLite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "trades.csv")
	require.NoError(t, os.WriteFile(in, []byte("1,1,10\n2,1,70\n3,1,200\n4,1,201\n"), 0o644))

	j, err := journal.NewSQLite(filepath.Join(dir, "candles.db"))
	require.NoError(t, err)
	defer j.Close()

	rep, err := Run(context.Background(), Options{
		Input:     in,
		Pair:      "XXBTZUSD",
		Aggregate: m1(true),
		Journal:   j,
	})
	require.NoError(t, err)

	candles, err := j.ListCandles(context.Background(), rep.RunID)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, []market.Boundary{60, 120, 180}, []market.Boundary{candles[0].Boundary, candles[1].Boundary, candles[2].Boundary})
	assert.True(t, candles[2].Synthetic)
	assert.InDelta(t, 2.5, candles[2].Close, 1e-9)

	run, err := j.GetRun(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, in, run.Source)
	assert.Equal(t, 3, run.Candles)
	assert.Equal(t, 2, run.Discarded)

	var buf bytes.Buffer
	rep.Print(&buf)
	assert.Contains(t, buf.String(), rep.RunID)
	assert.Contains(t, buf.String(), "Synthetic: 1")
}

func TestRunCountsRejectedTrades(t *testing.T) {
	t.Parallel()

	j := &memJournal{}
	rep, err := Run(context.Background(), Options{
		Source: &sliceSource{trades: []market.Trade{
			{Price: 1, Volume: 1, Time: 10},
			{Price: 0, Volume: 1, Time: 20},
			{Price: 2, Volume: 1, Time: -5},
			{Price: 3, Volume: 1, Time: 70},
		}},
		Aggregate: m1(true),
		Journal:   j,
	})
	require.NoError(t, err)
	assert.Zero(t, rep.BadRows)
	assert.Equal(t, 2, rep.Stats.Skipped)
	require.Len(t, j.candles, 1)
	assert.Equal(t, 1.0, j.candles[0].Close)
}
