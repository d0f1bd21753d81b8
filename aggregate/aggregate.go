// Package aggregate turns an ordered trade stream into OHLCV candles, one per
// granularity window, filling empty windows by linear interpolation.
package aggregate

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/ohlcv/market"
)

// ErrDone is returned by Push once the aggregator has finished.
var ErrDone = errors.New("aggregator is done")

type State int

const (
	AwaitingFirstTrade State = iota
	Accumulating
	Done
)

func (s State) String() string {
	switch s {
	case AwaitingFirstTrade:
		return "awaiting-first-trade"
	case Accumulating:
		return "accumulating"
	case Done:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Config is the aggregator's configuration surface.
type Config struct {
	Granularity market.Granularity
	Interpolate bool
}

// Stats is the run summary available once the stream is finished.
type Stats struct {
	Trades    int // trades accepted into a window
	Candles   int // candles emitted, real and synthetic
	Synthetic int
	Skipped   int // records rejected by validation or alignment
	Discarded int // trades left in the unclosed trailing window
}

// RecordError describes a trade that was skipped. The aggregator stays usable.
type RecordError struct {
	Trade market.Trade
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("skip trade at %v: %v", e.Trade.Time, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

type Option func(*Aggregator)

// WithLogger sets where per-record diagnostics go. Each aggregator carries its
// own logger so independent runs never share logging state.
func WithLogger(l logrus.FieldLogger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// Aggregator is the single-pass candle state machine. It keeps only the open
// window in memory and must not be shared between goroutines; use one
// Aggregator per instrument or partition.
type Aggregator struct {
	cfg   Config
	width market.Boundary
	log   logrus.FieldLogger

	state    State
	boundary market.Boundary // closing edge of the open window
	window   market.CandleBuilder
	stats    Stats
}

// New validates cfg and returns an aggregator awaiting its first trade.
func New(cfg Config, opts ...Option) (*Aggregator, error) {
	if !cfg.Granularity.Valid() {
		return nil, fmt.Errorf("aggregate: %w: %d", market.ErrUnsupportedGranularity, int(cfg.Granularity))
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	a := &Aggregator{
		cfg:   cfg,
		width: market.Boundary(cfg.Granularity.Seconds()),
		log:   discard,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithFields(logrus.Fields{
		"granularity": cfg.Granularity.String(),
		"interpolate": cfg.Interpolate,
	})
	return a, nil
}

func (a *Aggregator) State() State {
	return a.state
}

func (a *Aggregator) Config() Config {
	return a.cfg
}

// Boundary is the closing edge of the currently open window. It is zero until
// the first trade arrives.
func (a *Aggregator) Boundary() market.Boundary {
	return a.boundary
}

func (a *Aggregator) Stats() Stats {
	return a.stats
}

// Push feeds the next trade and returns the candles whose windows it closed,
// in boundary order. A trade that fails validation is skipped and reported as
// a *RecordError; nothing else changes.
func (a *Aggregator) Push(t market.Trade) ([]market.Candle, error) {
	if a.state == Done {
		return nil, ErrDone
	}

	if err := t.Validate(); err != nil {
		return nil, a.skip(t, err)
	}
	next, err := market.Align(t.Time, a.cfg.Granularity)
	if err != nil {
		return nil, a.skip(t, err)
	}

	if a.state == AwaitingFirstTrade {
		a.state = Accumulating
		a.boundary = next
		a.add(t)
		return nil, nil
	}

	if a.boundary.Contains(t.Time) {
		a.add(t)
		return nil, nil
	}

	closed := a.window.Candle(a.boundary)
	out := []market.Candle{closed}

	a.window.Reset()
	a.add(t)

	if a.cfg.Interpolate && next > a.boundary+a.width {
		out = append(out, a.interpolate(closed, next, t.Price)...)
	}
	a.boundary = next

	a.stats.Candles += len(out)
	return out, nil
}

// interpolate ramps linearly from the close of the candle before the gap to
// the opening price of the trade after it. Neither end is touched.
func (a *Aggregator) interpolate(prev market.Candle, next market.Boundary, nextOpen float64) []market.Candle {
	skipped := int((next-prev.Boundary)/a.width) - 1
	jump := (nextOpen - prev.Close) / float64(skipped+1)

	a.log.WithFields(logrus.Fields{
		"after":   int64(prev.Boundary),
		"skipped": skipped,
		"from":    prev.Close,
		"to":      nextOpen,
	}).Debug("interpolating gap")

	out := make([]market.Candle, 0, skipped)
	b := prev.Boundary
	for i := 1; i <= skipped; i++ {
		b += a.width
		out = append(out, market.NewSyntheticCandle(b, prev.Close+float64(i)*jump))
	}
	a.stats.Synthetic += len(out)
	return out
}

// Finish ends the stream. The open trailing window is not emitted: its candle
// is only known to be complete once a later trade closes it.
func (a *Aggregator) Finish() Stats {
	if a.state != Done {
		a.stats.Discarded += a.window.Len()
		if a.window.Len() > 0 {
			a.log.WithFields(logrus.Fields{
				"boundary": int64(a.boundary),
				"trades":   a.window.Len(),
			}).Debug("discarding trailing window")
		}
		a.window.Reset()
		a.state = Done
	}
	return a.stats
}

// Flush ends the stream like Finish but emits the trailing window as a real
// candle instead of discarding it. ok is false when no window is open.
func (a *Aggregator) Flush() (c market.Candle, ok bool) {
	if a.state == Accumulating && a.window.Len() > 0 {
		c, ok = a.window.Candle(a.boundary), true
		a.stats.Candles++
		a.window.Reset()
	}
	a.Finish()
	return c, ok
}

func (a *Aggregator) add(t market.Trade) {
	a.window.Add(t)
	a.stats.Trades++
}

func (a *Aggregator) skip(t market.Trade, err error) error {
	a.stats.Skipped++
	a.log.WithError(err).WithField("time", t.Time).Warn("skipping trade")
	return &RecordError{Trade: t, Err: err}
}

// Aggregate runs a whole slice through a fresh aggregator. Skipped records
// are counted in Stats, not returned as an error.
func Aggregate(trades []market.Trade, cfg Config, opts ...Option) ([]market.Candle, Stats, error) {
	a, err := New(cfg, opts...)
	if err != nil {
		return nil, Stats{}, err
	}

	var candles []market.Candle
	for _, t := range trades {
		out, err := a.Push(t)
		var recErr *RecordError
		if err != nil && !errors.As(err, &recErr) {
			return candles, a.Stats(), err
		}
		candles = append(candles, out...)
	}
	return candles, a.Finish(), nil
}
