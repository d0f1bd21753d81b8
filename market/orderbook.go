package market

import "time"

// Level is one price level of an order book snapshot.
type Level struct {
	Price  float64
	Volume float64
	Time   int64 // epoch seconds the level was last updated
}

type OrderBook struct {
	Pair     string
	Asks     []Level
	Bids     []Level
	Snapshot time.Time
}

func meanPrice(levels []Level) float64 {
	if len(levels) == 0 {
		return 0
	}
	var sum float64
	for _, l := range levels {
		sum += l.Price
	}
	return sum / float64(len(levels))
}

// MeanAsk and MeanBid average the level prices on each side; zero when the
// side is empty.
func (ob OrderBook) MeanAsk() float64 { return meanPrice(ob.Asks) }
func (ob OrderBook) MeanBid() float64 { return meanPrice(ob.Bids) }
