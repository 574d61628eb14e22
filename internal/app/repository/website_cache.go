package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/redis/go-redis/v9"
	"github.com/tovald/pageflow/internal/app/model"
	"go.uber.org/zap"
)

const (
	websiteCachePrefix = "website:"
	websiteCacheTTL    = 5 * time.Minute

	// Sized for a generous upper bound of registered websites.
	bloomCapacity = 1 << 20
	bloomFalsePos = 0.001
)

// CachedWebsiteRepository fronts the database with two layers: a bloom filter
// that rejects identifiers which are definitely unregistered (a public
// endpoint sees plenty of random UUID spray), and a redis cache for the rows
// that do exist. Bloom false positives fall through to redis/postgres, so
// they cost a lookup but never change an answer.
//
// The filter is rebuilt on an interval; a website registered after the last
// rebuild is rejected until the next one. Start/Stop follow the background
// worker shape used elsewhere in the service.
type CachedWebsiteRepository struct {
	inner  WebsiteRepository
	redis  *redis.Client
	logger *zap.Logger

	mu     sync.RWMutex
	filter *bloom.BloomFilter

	refreshEvery time.Duration
	stopChan     chan struct{}
	stopOnce     sync.Once
}

// NewCachedWebsiteRepository wraps inner. redisClient may be nil to skip the
// row cache; the bloom layer still applies once Warm has run.
func NewCachedWebsiteRepository(inner WebsiteRepository, redisClient *redis.Client, logger *zap.Logger, refreshEvery time.Duration) *CachedWebsiteRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if refreshEvery <= 0 {
		refreshEvery = time.Minute
	}
	return &CachedWebsiteRepository{
		inner:        inner,
		redis:        redisClient,
		logger:       logger,
		refreshEvery: refreshEvery,
		stopChan:     make(chan struct{}),
	}
}

// Warm loads the current set of website ids into the bloom filter. Until the
// first successful Warm, the filter is absent and every lookup falls through.
func (r *CachedWebsiteRepository) Warm(ctx context.Context) error {
	ids, err := r.inner.ListIDs(ctx)
	if err != nil {
		return err
	}

	filter := bloom.NewWithEstimates(bloomCapacity, bloomFalsePos)
	for _, id := range ids {
		filter.AddString(id)
	}

	r.mu.Lock()
	r.filter = filter
	r.mu.Unlock()

	r.logger.Debug("website bloom filter rebuilt", zap.Int("websites", len(ids)))
	return nil
}

// Start rebuilds the filter periodically until Stop is called.
func (r *CachedWebsiteRepository) Start() {
	go r.run()
}

// Stop halts the periodic rebuild.
func (r *CachedWebsiteRepository) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
}

func (r *CachedWebsiteRepository) run() {
	ticker := time.NewTicker(r.refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.Warm(context.Background()); err != nil {
				r.logger.Warn("website bloom filter rebuild failed", zap.Error(err))
			}
		case <-r.stopChan:
			return
		}
	}
}

func (r *CachedWebsiteRepository) GetByID(ctx context.Context, id string) (*model.Website, error) {
	if r.definitelyAbsent(id) {
		return nil, ErrWebsiteNotFound
	}

	if website, ok := r.cached(ctx, id); ok {
		return website, nil
	}

	website, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cache(ctx, website)
	return website, nil
}

func (r *CachedWebsiteRepository) ListIDs(ctx context.Context) ([]string, error) {
	return r.inner.ListIDs(ctx)
}

func (r *CachedWebsiteRepository) definitelyAbsent(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filter != nil && !r.filter.TestString(id)
}

func (r *CachedWebsiteRepository) cached(ctx context.Context, id string) (*model.Website, bool) {
	if r.redis == nil {
		return nil, false
	}
	raw, err := r.redis.Get(ctx, websiteCachePrefix+id).Bytes()
	if err != nil {
		return nil, false
	}
	var website model.Website
	if err := json.Unmarshal(raw, &website); err != nil {
		return nil, false
	}
	return &website, true
}

func (r *CachedWebsiteRepository) cache(ctx context.Context, website *model.Website) {
	if r.redis == nil {
		return
	}
	raw, err := json.Marshal(website)
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, websiteCachePrefix+website.ID, raw, websiteCacheTTL).Err(); err != nil {
		r.logger.Debug("website cache write failed", zap.String("id", website.ID), zap.Error(err))
	}
}
