package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"time26/metrics"
)

// Config configures the price feed
type Config struct {
	FeedURL          string
	TokenID          string
	NativeID         string
	CacheTTL         time.Duration
	RequestTimeout   time.Duration
	RefreshPerMinute int
}

// Quote is one pair of USD prices
type Quote struct {
	TokenUSD  decimal.Decimal
	NativeUSD decimal.Decimal
	FetchedAt time.Time
}

// Oracle fetches USD prices from a simple-price style JSON feed
// ({"<id>": {"usd": <price>}}) and caches them for CacheTTL.
// When a refresh fails the last quote keeps being served.
type Oracle struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	metrics metrics.Indicators
	now     func() time.Time

	mu    sync.RWMutex
	quote *Quote
	group singleflight.Group
}

// NewOracle creates an oracle
func NewOracle(cfg Config, indicators metrics.Indicators) *Oracle {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.RefreshPerMinute <= 0 {
		cfg.RefreshPerMinute = 6
	}
	return &Oracle{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RefreshPerMinute)), 1),
		metrics: indicators,
		now:     time.Now,
	}
}

// Prices returns the token and native USD prices
func (o *Oracle) Prices(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	q, err := o.Quote(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return q.TokenUSD, q.NativeUSD, nil
}

// Quote returns the cached quote, refreshing it when stale
func (o *Oracle) Quote(ctx context.Context) (*Quote, error) {
	o.mu.RLock()
	cached := o.quote
	o.mu.RUnlock()

	if cached != nil && o.now().Sub(cached.FetchedAt) < o.cfg.CacheTTL {
		return cached, nil
	}

	// Keep serving the stale quote instead of queueing behind the limiter
	if cached != nil && !o.limiter.Allow() {
		return cached, nil
	}
	if cached == nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to wait for price feed: %w", err)
		}
	}

	v, err, _ := o.group.Do("refresh", func() (interface{}, error) {
		return o.refresh(ctx)
	})
	if err != nil {
		o.metrics.IncPriceFetch("error")
		if cached != nil {
			log.WithError(err).WithField("age", o.now().Sub(cached.FetchedAt).String()).Warn("Price refresh failed, serving stale quote")
			return cached, nil
		}
		return nil, err
	}
	o.metrics.IncPriceFetch("ok")
	return v.(*Quote), nil
}

type feedEntry struct {
	USD decimal.Decimal `json:"usd"`
}

func (o *Oracle) refresh(ctx context.Context) (*Quote, error) {
	endpoint, err := url.Parse(o.cfg.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed url: %w", err)
	}
	params := endpoint.Query()
	params.Set("ids", o.cfg.TokenID+","+o.cfg.NativeID)
	params.Set("vs_currencies", "usd")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("price feed returned %d: %s", resp.StatusCode, body)
	}

	var payload map[string]feedEntry
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode prices: %w", err)
	}

	token, ok := payload[o.cfg.TokenID]
	if !ok || token.USD.Sign() <= 0 {
		return nil, fmt.Errorf("price feed has no usable price for %s", o.cfg.TokenID)
	}
	native, ok := payload[o.cfg.NativeID]
	if !ok || native.USD.Sign() <= 0 {
		return nil, fmt.Errorf("price feed has no usable price for %s", o.cfg.NativeID)
	}

	q := &Quote{TokenUSD: token.USD, NativeUSD: native.USD, FetchedAt: o.now()}

	o.mu.Lock()
	o.quote = q
	o.mu.Unlock()

	log.WithFields(log.Fields{
		"tokenUSD":  q.TokenUSD.String(),
		"nativeUSD": q.NativeUSD.String(),
	}).Debug("Refreshed prices")

	return q, nil
}
