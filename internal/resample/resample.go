// Package resample drives one resampling run: trades in, candles out to a
// journal, with the run and its totals recorded alongside.
package resample

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/ohlcv/aggregate"
	"github.com/rustyeddy/ohlcv/internal/feed"
	"github.com/rustyeddy/ohlcv/journal"
	"github.com/rustyeddy/ohlcv/market"
	"github.com/rustyeddy/ohlcv/pkg/id"
)

// TradeSource yields trades in time order. *feed.CSVTradesFeed is one.
type TradeSource interface {
	Next() (market.Trade, bool, error)
}

type Options struct {
	// Input is a trades file, used when Source is nil.
	Input  string
	Source TradeSource

	Pair      string
	Aggregate aggregate.Config

	// Flush emits the trailing window instead of discarding it.
	Flush bool

	Journal journal.CandleJournal
	Log     logrus.FieldLogger

	IDs *id.Generator
	Now func() time.Time
}

// Report summarises a finished run.
type Report struct {
	RunID      string
	Stats      aggregate.Stats
	BadRows    int // input rows that never became trades, included in Stats.Skipped
	Gaps       market.GapStats
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r Report) Print(w io.Writer) {
	fmt.Fprintf(w, "run %s\n", r.RunID)
	fmt.Fprintf(w, "     Trades: %d\n", r.Stats.Trades)
	fmt.Fprintf(w, "    Candles: %d\n", r.Stats.Candles)
	fmt.Fprintf(w, "  Synthetic: %d\n", r.Stats.Synthetic)
	fmt.Fprintf(w, "    Skipped: %d\n", r.Stats.Skipped)
	fmt.Fprintf(w, "  Discarded: %d\n", r.Stats.Discarded)
	r.Gaps.Print(w)
}

// Run reads every trade from the source, aggregates it and records the
// candles. Bad rows and bad trades are logged, counted and skipped. When ctx
// is cancelled reading stops, the open window is dropped, the run is still
// recorded and ctx.Err() is returned with the partial report.
func Run(ctx context.Context, opts Options) (Report, error) {
	if opts.Journal == nil {
		return Report{}, errors.New("resample: no journal")
	}
	log := opts.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ids := opts.IDs
	if ids == nil {
		ids = id.NewGenerator()
	}

	agg, err := aggregate.New(opts.Aggregate, aggregate.WithLogger(log))
	if err != nil {
		return Report{}, err
	}

	src := opts.Source
	source := "stream"
	if src == nil {
		f, err := feed.Open(opts.Input)
		if err != nil {
			return Report{}, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		src, source = f, opts.Input
	}

	rep := Report{StartedAt: now().UTC()}
	if rep.RunID, err = ids.At(rep.StartedAt); err != nil {
		return Report{}, err
	}
	log = log.WithField("run_id", rep.RunID)

	run := journal.Run{
		RunID:       rep.RunID,
		Pair:        opts.Pair,
		Source:      source,
		Granularity: opts.Aggregate.Granularity,
		Interpolate: opts.Aggregate.Interpolate,
		StartedAt:   rep.StartedAt,
	}
	if err := opts.Journal.BeginRun(run); err != nil {
		return Report{}, fmt.Errorf("begin run: %w", err)
	}

	gaps := market.NewGapTracker(opts.Aggregate.Granularity)
	record := func(cs ...market.Candle) error {
		for _, c := range cs {
			gaps.Observe(c)
			if err := opts.Journal.RecordCandle(c); err != nil {
				return fmt.Errorf("record candle %d: %w", int64(c.Boundary), err)
			}
		}
		return nil
	}

	log.WithField("source", source).Info("resampling")

	var stop error
	for stop == nil {
		if err := ctx.Err(); err != nil {
			stop = err
			break
		}

		t, ok, err := src.Next()
		var rowErr *feed.RowError
		if errors.As(err, &rowErr) {
			rep.BadRows++
			log.WithFields(logrus.Fields{"line": rowErr.Line, "err": rowErr.Err}).Warn("skipping row")
			continue
		}
		if err != nil {
			return rep, fmt.Errorf("read trades: %w", err)
		}
		if !ok {
			break
		}

		candles, err := agg.Push(t)
		var recErr *aggregate.RecordError
		if err != nil && !errors.As(err, &recErr) {
			return rep, err
		}
		if err := record(candles...); err != nil {
			return rep, err
		}
	}

	if opts.Flush && stop == nil {
		if c, ok := agg.Flush(); ok {
			if err := record(c); err != nil {
				return rep, err
			}
		}
	}
	rep.Stats = agg.Finish()
	rep.Stats.Skipped += rep.BadRows
	rep.Gaps = gaps.Stats()
	rep.FinishedAt = now().UTC()

	run.FinishedAt = rep.FinishedAt
	run.Candles = rep.Stats.Candles
	run.Synthetic = rep.Stats.Synthetic
	run.Skipped = rep.Stats.Skipped
	run.Discarded = rep.Stats.Discarded
	if err := opts.Journal.FinishRun(run); err != nil {
		return rep, fmt.Errorf("finish run: %w", err)
	}

	log.WithFields(logrus.Fields{
		"candles":   rep.Stats.Candles,
		"synthetic": rep.Stats.Synthetic,
		"skipped":   rep.Stats.Skipped,
		"discarded": rep.Stats.Discarded,
		"gaps":      rep.Gaps.GapCount,
	}).Info("run finished")

	if stop != nil {
		return rep, stop
	}
	return rep, nil
}
