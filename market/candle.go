package market

import "math"

// Candle is the OHLCV summary of one window, keyed by the window's closing
// Boundary. Synthetic candles fill windows that saw no trades: all four
// prices hold the interpolated value and Volume is always zero.
type Candle struct {
	Boundary
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Synthetic bool
}

// NewSyntheticCandle returns a flat, zero-volume candle at price.
func NewSyntheticCandle(b Boundary, price float64) Candle {
	return Candle{
		Boundary:  b,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Synthetic: true,
	}
}

// CandleBuilder accumulates the trades of one window in input order.
type CandleBuilder struct {
	candle Candle
	count  int
}

func (cb *CandleBuilder) Add(t Trade) {
	if cb.count == 0 {
		cb.candle.Open = t.Price
		cb.candle.High = math.Inf(-1)
		cb.candle.Low = math.Inf(1)
	}
	cb.candle.High = math.Max(cb.candle.High, t.Price)
	cb.candle.Low = math.Min(cb.candle.Low, t.Price)
	cb.candle.Close = t.Price
	cb.candle.Volume += t.Volume
	cb.count++
}

// Len is the number of trades added since the last Reset.
func (cb *CandleBuilder) Len() int {
	return cb.count
}

// Candle returns the real candle for the trades added so far, keyed by b.
func (cb *CandleBuilder) Candle(b Boundary) Candle {
	c := cb.candle
	c.Boundary = b
	return c
}

func (cb *CandleBuilder) Reset() {
	cb.candle = Candle{}
	cb.count = 0
}
