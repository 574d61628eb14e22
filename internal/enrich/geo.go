package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const geoCachePrefix = "geo:"

// HTTPGeoLocator resolves locations via an external HTTP API with a redis
// cache in front. Every failure path degrades to an empty Location so a geo
// outage never rejects hits.
type HTTPGeoLocator struct {
	logger   *zap.Logger
	client   *http.Client
	redis    *redis.Client
	endpoint string
	cacheTTL time.Duration
}

// NewHTTPGeoLocator builds a locator. endpoint is a template where %s is
// replaced with the IP; redisClient may be nil to disable caching.
func NewHTTPGeoLocator(logger *zap.Logger, redisClient *redis.Client, endpoint string, timeout, cacheTTL time.Duration) *HTTPGeoLocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPGeoLocator{
		logger:   logger,
		client:   &http.Client{Timeout: timeout},
		redis:    redisClient,
		endpoint: endpoint,
		cacheTTL: cacheTTL,
	}
}

func (g *HTTPGeoLocator) Lookup(ctx context.Context, ip string) Location {
	if g.endpoint == "" || ip == "" {
		return Location{}
	}

	if loc, ok := g.cached(ctx, ip); ok {
		return loc
	}

	loc, err := g.fetch(ctx, ip)
	if err != nil {
		g.logger.Debug("geo lookup failed", zap.String("ip", ip), zap.Error(err))
		return Location{}
	}

	g.cache(ctx, ip, loc)
	return loc
}

func (g *HTTPGeoLocator) cached(ctx context.Context, ip string) (Location, bool) {
	if g.redis == nil {
		return Location{}, false
	}
	raw, err := g.redis.Get(ctx, geoCachePrefix+ip).Bytes()
	if err != nil {
		return Location{}, false
	}
	var loc Location
	if err := json.Unmarshal(raw, &loc); err != nil {
		return Location{}, false
	}
	return loc, true
}

func (g *HTTPGeoLocator) cache(ctx context.Context, ip string, loc Location) {
	if g.redis == nil {
		return
	}
	raw, err := json.Marshal(loc)
	if err != nil {
		return
	}
	if err := g.redis.Set(ctx, geoCachePrefix+ip, raw, g.cacheTTL).Err(); err != nil {
		g.logger.Debug("geo cache write failed", zap.String("ip", ip), zap.Error(err))
	}
}

func (g *HTTPGeoLocator) fetch(ctx context.Context, ip string) (Location, error) {
	url := fmt.Sprintf(g.endpoint, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Location{}, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geo endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Location{}, err
	}

	var loc Location
	if err := json.Unmarshal(body, &loc); err != nil {
		return Location{}, err
	}
	return loc, nil
}
