package market

import (
	"fmt"
	"math"
	"time"
)

// maxTimestamp is 9999-12-31T23:59:59Z, the last second a calendar date can
// represent.
const maxTimestamp = 253402300799

// Boundary is an epoch-seconds instant that is an exact multiple of a
// granularity width. It is the CLOSING edge of a window and doubles as the
// window's key: the candle keyed by b covers the width seconds ending at b.
type Boundary int64

// Align returns the first boundary strictly after ceil(ts):
//
//	c := ceil(ts); c - c%width + width
//
// The result is always greater than ts, so an already aligned boundary
// advances exactly one window. Align has no side effects.
func Align(ts float64, g Granularity) (Boundary, error) {
	width := g.Seconds()
	if width == 0 {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedGranularity, int(g))
	}
	if err := CheckTimestamp(ts); err != nil {
		return 0, err
	}

	c := int64(math.Ceil(ts))
	return Boundary(c - c%width + width), nil
}

// CheckTimestamp reports whether ts can be read as a UTC instant.
func CheckTimestamp(ts float64) error {
	switch {
	case math.IsNaN(ts), math.IsInf(ts, 0):
		return fmt.Errorf("%w: %v", ErrInvalidTimestamp, ts)
	case ts < 0:
		return fmt.Errorf("%w: %v is before the epoch", ErrInvalidTimestamp, ts)
	case ts > maxTimestamp:
		return fmt.Errorf("%w: %v is out of range", ErrInvalidTimestamp, ts)
	}
	return nil
}

func (b Boundary) Float() float64 {
	return float64(b)
}

func (b Boundary) Time() time.Time {
	return time.Unix(int64(b), 0).UTC()
}

// Next returns the boundary one window later.
func (b Boundary) Next(g Granularity) Boundary {
	return b + Boundary(g.Seconds())
}

// Contains reports whether ts still belongs to the window closing at b.
func (b Boundary) Contains(ts float64) bool {
	return ts <= float64(b)
}
