package kraken

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/buger/jsonparser"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/ohlcv/internal/feed"
	"github.com/rustyeddy/ohlcv/market"
)

// DefaultBackoff is how long DownloadTrades waits after being rate limited.
const DefaultBackoff = 15 * time.Second

// pairResult finds the entry for pair in a result object. The exchange
// answers with its canonical pair name (XBTUSD comes back as XXBTZUSD), so
// when the requested name is absent the first non-"last" key is used.
func pairResult(result []byte, pair string) ([]byte, error) {
	if v, _, _, err := jsonparser.Get(result, pair); err == nil {
		return v, nil
	}

	var found []byte
	err := jsonparser.ObjectEach(result, func(key, value []byte, _ jsonparser.ValueType, _ int) error {
		if found == nil && string(key) != "last" {
			found = value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("kraken: no data for pair %s", pair)
	}
	return found, nil
}

func number(row []byte, idx int) (float64, error) {
	v, _, _, err := jsonparser.Get(row, "["+strconv.Itoa(idx)+"]")
	if err != nil {
		return 0, err
	}
	d, err := decimal.NewFromString(string(v))
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

func text(row []byte, idx int) string {
	v, err := jsonparser.GetString(row, "["+strconv.Itoa(idx)+"]")
	if err != nil {
		return ""
	}
	return v
}

// Trades fetches one page of public trades after since (a nanosecond cursor,
// "0" for the beginning) and returns the cursor for the next page.
func (c *Client) Trades(ctx context.Context, pair, since string) ([]market.Trade, string, error) {
	params := url.Values{"pair": {pair}}
	if since != "" {
		params.Set("since", since)
	}
	result, err := c.QueryPublic(ctx, "Trades", params)
	if err != nil {
		return nil, "", err
	}

	last, err := jsonparser.GetString(result, "last")
	if err != nil {
		// Older responses carry last as a bare number.
		raw, _, _, err2 := jsonparser.Get(result, "last")
		if err2 != nil {
			return nil, "", fmt.Errorf("kraken Trades: missing last: %w", err)
		}
		last = string(raw)
	}

	rows, err := pairResult(result, pair)
	if err != nil {
		return nil, "", err
	}

	var trades []market.Trade
	var rowErr error
	_, err = jsonparser.ArrayEach(rows, func(row []byte, _ jsonparser.ValueType, _ int, _ error) {
		if rowErr != nil {
			return
		}
		var t market.Trade
		if t.Price, rowErr = number(row, 0); rowErr != nil {
			return
		}
		if t.Volume, rowErr = number(row, 1); rowErr != nil {
			return
		}
		if t.Time, rowErr = number(row, 2); rowErr != nil {
			return
		}
		t.Side, t.OrderType, t.Misc = text(row, 3), text(row, 4), text(row, 5)
		trades = append(trades, t)
	})
	if err == nil {
		err = rowErr
	}
	if err != nil {
		return nil, "", fmt.Errorf("kraken Trades: decode trades: %w", err)
	}
	return trades, last, nil
}

// Depth fetches the current order book for pair. count limits the levels
// per side; zero leaves it to the exchange.
func (c *Client) Depth(ctx context.Context, pair string, count int) (market.OrderBook, error) {
	params := url.Values{"pair": {pair}}
	if count > 0 {
		params.Set("count", strconv.Itoa(count))
	}
	result, err := c.QueryPublic(ctx, "Depth", params)
	if err != nil {
		return market.OrderBook{}, err
	}

	book, err := pairResult(result, pair)
	if err != nil {
		return market.OrderBook{}, err
	}

	ob := market.OrderBook{Pair: pair, Snapshot: time.Now().UTC()}
	if ob.Asks, err = levels(book, "asks"); err != nil {
		return market.OrderBook{}, err
	}
	if ob.Bids, err = levels(book, "bids"); err != nil {
		return market.OrderBook{}, err
	}

	c.Log.WithFields(logrus.Fields{
		"pair":     pair,
		"mean_bid": ob.MeanBid(),
		"mean_ask": ob.MeanAsk(),
	}).Info("order book snapshot")
	return ob, nil
}

func levels(book []byte, side string) ([]market.Level, error) {
	var out []market.Level
	var rowErr error
	_, err := jsonparser.ArrayEach(book, func(row []byte, _ jsonparser.ValueType, _ int, _ error) {
		if rowErr != nil {
			return
		}
		var l market.Level
		if l.Price, rowErr = number(row, 0); rowErr != nil {
			return
		}
		if l.Volume, rowErr = number(row, 1); rowErr != nil {
			return
		}
		ts, err := number(row, 2)
		if err != nil {
			rowErr = err
			return
		}
		l.Time = int64(ts)
		out = append(out, l)
	}, side)
	if err == nil {
		err = rowErr
	}
	if err != nil {
		return nil, fmt.Errorf("kraken Depth: decode %s: %w", side, err)
	}
	return out, nil
}

// DownloadOptions controls DownloadTrades.
type DownloadOptions struct {
	Pair    string
	Since   string        // resume cursor; "" or "0" starts at the beginning
	Backoff time.Duration // wait after a rate limit; DefaultBackoff when zero
}

// DownloadTrades pages through the trade history of a pair and writes every
// trade to w until the exchange returns an empty page. It returns the number
// of trades written and the cursor to resume from.
func (c *Client) DownloadTrades(ctx context.Context, opts DownloadOptions, w *feed.TradeWriter) (int, string, error) {
	c.init()
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	log := c.Log.WithField("pair", opts.Pair)
	since := opts.Since
	total := 0

	log.WithField("since", since).Info("starting trade download")
	for {
		trades, last, err := c.Trades(ctx, opts.Pair, since)
		if errors.Is(err, ErrRateLimited) {
			log.Warnf("rate limit hit, sleeping for %s", backoff)
			select {
			case <-ctx.Done():
				return total, since, ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}
		if err != nil {
			return total, since, err
		}
		if len(trades) == 0 {
			break
		}

		for _, t := range trades {
			if err := w.Write(t); err != nil {
				return total, since, err
			}
		}
		if err := w.Flush(); err != nil {
			return total, since, err
		}
		total += len(trades)
		log.WithField("total", total).Info("received trades")

		if last == since {
			break
		}
		since = last
	}

	log.WithField("total", total).Info("finished trade download")
	return total, since, nil
}
