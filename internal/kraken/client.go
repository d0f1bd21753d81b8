// Package kraken is a small client for the public and private Kraken REST
// API, limited to what trade-history and order-book collection need.
package kraken

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/buger/jsonparser"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.kraken.com"
	apiVersion     = "0"

	// The exchange grants a quota of calls that drains by one every few
	// seconds; exceeding it gets the key locked out for a while.
	DefaultMaxCalls  = 15
	DefaultCallDecay = 3 * time.Second
)

var ErrRateLimited = errors.New("kraken: rate limit exceeded")

const rateLimitMessage = "EAPI:Rate limit exceeded"

// APIError carries the messages from a non-empty "error" array.
type APIError struct {
	Method   string
	Messages []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kraken %s: %s", e.Method, strings.Join(e.Messages, "; "))
}

func (e *APIError) Unwrap() error {
	for _, m := range e.Messages {
		if m == rateLimitMessage {
			return ErrRateLimited
		}
	}
	return nil
}

// callCost is how much of the quota a method uses; unlisted methods cost 1.
var callCost = map[string]int{
	"Ledgers":       2,
	"TradesHistory": 2,
	"AddOrder":      0,
	"CancelOrder":   0,
}

type Client struct {
	BaseURL string
	Key     string
	Secret  string // base64 encoded, as issued
	HTTP    *http.Client
	Log     logrus.FieldLogger

	// Limiter tracks the local call quota. Nil means DefaultMaxCalls calls
	// with one returned every DefaultCallDecay.
	Limiter *rate.Limiter

	once sync.Once
	mu   sync.Mutex
	last int64 // last nonce handed out
}

func (c *Client) init() {
	c.once.Do(func() {
		if c.BaseURL == "" {
			c.BaseURL = DefaultBaseURL
		}
		if c.HTTP == nil {
			c.HTTP = &http.Client{Timeout: 30 * time.Second}
		}
		if c.Log == nil {
			l := logrus.New()
			l.SetOutput(io.Discard)
			c.Log = l
		}
		if c.Limiter == nil {
			c.Limiter = rate.NewLimiter(rate.Every(DefaultCallDecay), DefaultMaxCalls)
		}
	})
}

// LoadKey reads the key and secret from the first two lines of path.
func (c *Client) LoadKey(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := strings.Split(string(b), "\n")
	if len(lines) < 2 {
		return fmt.Errorf("key file %s: want key and secret on separate lines", path)
	}
	c.Key = strings.TrimSpace(lines[0])
	c.Secret = strings.TrimSpace(lines[1])
	return nil
}

// QueryPublic calls /0/public/<method> and returns the raw "result" JSON.
func (c *Client) QueryPublic(ctx context.Context, method string, params url.Values) ([]byte, error) {
	c.init()
	return c.query(ctx, method, "/"+apiVersion+"/public/"+method, params, nil)
}

// QueryPrivate signs and sends /0/private/<method>.
func (c *Client) QueryPrivate(ctx context.Context, method string, params url.Values) ([]byte, error) {
	c.init()
	if c.Key == "" || c.Secret == "" {
		return nil, errors.New("kraken: key or secret is not set")
	}

	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	nonce := strconv.FormatInt(c.nonce(), 10)
	form.Set("nonce", nonce)

	urlPath := "/" + apiVersion + "/private/" + method
	sig, err := Sign(urlPath, nonce, form.Encode(), c.Secret)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{
		"API-Key":  c.Key,
		"API-Sign": sig,
	}
	return c.query(ctx, method, urlPath, form, headers)
}

// Sign computes the API-Sign header:
// base64(HMAC-SHA512(secret, path + SHA256(nonce + postdata))).
func Sign(urlPath, nonce, postData, secret string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("kraken: decode secret: %w", err)
	}

	sum := sha256.Sum256([]byte(nonce + postData))
	mac := hmac.New(sha512.New, key)
	mac.Write([]byte(urlPath))
	mac.Write(sum[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// nonce is milliseconds since the epoch, bumped when two calls share one.
func (c *Client) nonce() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := time.Now().UnixMilli()
	if n <= c.last {
		n = c.last + 1
	}
	c.last = n
	return n
}

func (c *Client) query(ctx context.Context, method, urlPath string, form url.Values, headers map[string]string) ([]byte, error) {
	cost, ok := callCost[method]
	if !ok {
		cost = 1
	}
	if cost > 0 {
		if err := c.Limiter.WaitN(ctx, cost); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+urlPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "ohlcv")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	default:
		if len(body) > 512 {
			body = body[:512]
		}
		return nil, fmt.Errorf("kraken %s http %d: %s", method, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var msgs []string
	_, err = jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if dataType == jsonparser.String {
			msgs = append(msgs, string(value))
		}
	}, "error")
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, fmt.Errorf("kraken %s: decode error field: %w", method, err)
	}
	if len(msgs) > 0 {
		return nil, &APIError{Method: method, Messages: msgs}
	}

	result, _, _, err := jsonparser.Get(body, "result")
	if err != nil {
		return nil, fmt.Errorf("kraken %s: decode result: %w", method, err)
	}
	return result, nil
}
