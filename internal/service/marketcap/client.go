package marketcap

import (
	"context"
	"fmt"
	"time"

	"LevelScan/internal/domain/models"
	svccache "LevelScan/internal/service/cache"
	pkghttp "LevelScan/pkg/http"
)

const cacheKey = "global_market_cap"

// Client samples the global crypto capitalization. Responses are cached for
// the configured TTL so a sweep burst issues at most one upstream call.
type Client struct {
	url   string
	ttl   time.Duration
	http  *pkghttp.Client
	cache *svccache.TTLCache
}

func New(url string, ttl time.Duration) *Client {
	return &Client{
		url:   url,
		ttl:   ttl,
		http:  pkghttp.NewClient(pkghttp.WithTimeout(10 * time.Second)),
		cache: svccache.NewTTLCache(),
	}
}

type globalResponse struct {
	Data struct {
		TotalMarketCap map[string]float64 `json:"total_market_cap"`
	} `json:"data"`
}

// Fetch returns the current global capitalization in USD.
func (c *Client) Fetch(ctx context.Context) (models.MarketCapPoint, error) {
	if v, ok := c.cache.Get(cacheKey); ok {
		if p, ok := v.(models.MarketCapPoint); ok {
			return p, nil
		}
	}

	var resp globalResponse
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    c.url,
	}, &resp)
	if err != nil {
		return models.MarketCapPoint{}, fmt.Errorf("fetch market cap: %w", err)
	}

	usd, ok := resp.Data.TotalMarketCap["usd"]
	if !ok || usd <= 0 {
		return models.MarketCapPoint{}, fmt.Errorf("fetch market cap: no usd total in response")
	}

	p := models.MarketCapPoint{TotalCap: usd, FetchedAt: time.Now().Unix()}
	c.cache.Set(cacheKey, p, c.ttl)
	return p, nil
}
