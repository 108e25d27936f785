package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"LevelScan/internal/domain/models"
	domrepo "LevelScan/internal/domain/repository"
	"LevelScan/internal/service/ratelimit"
	pkghttp "LevelScan/pkg/http"
)

// Client talks to the Binance REST API: spot klines and the 24h ticker for
// the tradable universe, and the futures API for funding rates. All calls
// share one token bucket so collection bursts stay under the exchange limit.
type Client struct {
	restURL     string
	futuresURL  string
	quote       string
	candleLimit int

	http    *pkghttp.Client
	limiter *ratelimit.Limiter
	rps     float64
}

var (
	_ domrepo.UniverseSource = (*Client)(nil)
	_ domrepo.FundingSource  = (*Client)(nil)
)

type Option func(*Client)

func WithCandleLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.candleLimit = n
		}
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http = pkghttp.NewClient(pkghttp.WithTimeout(d))
	}
}

func WithFetchRPS(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.rps = rps
		}
	}
}

func New(restURL, futuresURL, quote string, opts ...Option) *Client {
	c := &Client{
		restURL:     strings.TrimRight(restURL, "/"),
		futuresURL:  strings.TrimRight(futuresURL, "/"),
		quote:       quote,
		candleLimit: 500,
		http:        pkghttp.NewClient(pkghttp.WithTimeout(10 * time.Second)),
		limiter:     ratelimit.New(),
		rps:         8,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Klines fetches up to limit candles for one (symbol, timeframe), ordered
// ascending.
func (c *Client) Klines(ctx context.Context, symbol string, tf domrepo.Timeframe, limit int) ([]models.Candle, error) {
	if limit <= 0 || limit > c.candleLimit {
		limit = c.candleLimit
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var raw [][]json.RawMessage
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    c.restURL + "/api/v3/klines",
		QueryParams: map[string][]string{
			"symbol":   {symbol},
			"interval": {string(tf)},
			"limit":    {strconv.Itoa(limit)},
		},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, tf, err)
	}

	out := make([]models.Candle, 0, len(raw))
	for _, k := range raw {
		candle, err := parseKline(symbol, k)
		if err != nil {
			return nil, fmt.Errorf("klines %s %s: %w", symbol, tf, err)
		}
		out = append(out, candle)
	}
	return out, nil
}

// FetchUniverse lists every tradable symbol quoted in the configured asset.
func (c *Client) FetchUniverse(ctx context.Context) ([]string, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var tickers []struct {
		Symbol string `json:"symbol"`
	}
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    c.restURL + "/api/v3/ticker/24hr",
	}, &tickers)
	if err != nil {
		return nil, fmt.Errorf("ticker 24hr: %w", err)
	}

	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if strings.HasSuffix(t.Symbol, c.quote) {
			out = append(out, t.Symbol)
		}
	}
	return out, nil
}

// FundingRate returns the latest perpetual funding rate for symbol.
func (c *Client) FundingRate(ctx context.Context, symbol string) (float64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}

	var premium struct {
		LastFundingRate string `json:"lastFundingRate"`
	}
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:      pkghttp.MethodGet,
		URL:         c.futuresURL + "/fapi/v1/premiumIndex",
		QueryParams: map[string][]string{"symbol": {symbol}},
	}, &premium)
	if err != nil {
		return 0, fmt.Errorf("funding rate %s: %w", symbol, err)
	}

	rate, err := strconv.ParseFloat(premium.LastFundingRate, 64)
	if err != nil {
		return 0, fmt.Errorf("funding rate %s: parse %q: %w", symbol, premium.LastFundingRate, err)
	}
	return rate, nil
}

// wait blocks until the shared token bucket grants one request.
func (c *Client) wait(ctx context.Context) error {
	for !c.limiter.Allow("binance", c.rps, c.rps) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

// parseKline decodes one kline row: open time, then OHLCV as strings.
func parseKline(symbol string, k []json.RawMessage) (models.Candle, error) {
	if len(k) < 6 {
		return models.Candle{}, fmt.Errorf("kline row too short: %d fields", len(k))
	}
	var openTime int64
	if err := json.Unmarshal(k[0], &openTime); err != nil {
		return models.Candle{}, fmt.Errorf("open time: %w", err)
	}
	vals := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		var s string
		if err := json.Unmarshal(k[i], &s); err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("field %d: parse %q: %w", i, s, err)
		}
		vals[i-1] = v
	}
	return models.Candle{
		Time:   openTime,
		Symbol: symbol,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
