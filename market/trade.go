package market

import (
	"fmt"
	"math"
	"time"
)

// Trade is a single execution as delivered by the exchange. Side, OrderType
// and Misc are carried through untouched.
type Trade struct {
	Price     float64
	Volume    float64
	Time      float64 // seconds since epoch, UTC, fractional
	Side      string  // "b" or "s"
	OrderType string  // "m" or "l"
	Misc      string
}

// Validate checks the fields the aggregator relies on.
func (t Trade) Validate() error {
	if math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price <= 0 {
		return fmt.Errorf("%w: price %v", ErrMalformedRecord, t.Price)
	}
	if math.IsNaN(t.Volume) || math.IsInf(t.Volume, 0) || t.Volume < 0 {
		return fmt.Errorf("%w: volume %v", ErrMalformedRecord, t.Volume)
	}
	return CheckTimestamp(t.Time)
}

// Timestamp converts Time to a time.Time, keeping sub-second precision.
func (t Trade) Timestamp() time.Time {
	sec, frac := math.Modf(t.Time)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
