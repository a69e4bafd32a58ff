package reviews

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/internal/cache"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/pkg/logger"
)

const DefaultTTL = time.Hour

// Response is what the reviews endpoint returns.
type Response struct {
	domain.ReviewSummary
	Stale bool `json:"stale"`
}

type Service struct {
	cache *cache.Resilient[domain.ReviewSummary]
}

// NewService builds the review reader. fetch is only used when cfg is Configured.
func NewService(cfg Config, fetch cache.FetchFunc[domain.ReviewSummary], ttl time.Duration, now func() time.Time) *Service {
	if _, ok := cfg.(Configured); !ok {
		return &Service{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{cache: cache.NewResilient("reviews", ttl, fetch, now)}
}

// NewFromConfig wires the upstream client for cfg.
func NewFromConfig(cfg Config, ttl, timeout time.Duration) *Service {
	c, ok := cfg.(Configured)
	if !ok {
		return NewService(cfg, nil, ttl, nil)
	}
	return NewService(cfg, NewClient(c, timeout).Fetch, ttl, nil)
}

// Get never fails: an unconfigured source or an upstream outage with nothing cached
// yields an empty summary.
func (s *Service) Get(ctx context.Context) Response {
	if s.cache == nil {
		metrics.CacheResults.WithLabelValues("reviews", "disabled").Inc()
		return Response{ReviewSummary: domain.EmptyReviewSummary()}
	}
	res, err := s.cache.Get(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrUpstreamUnavailable) {
			logger.FromContext(ctx).WithError(err).Error("unexpected reviews error")
		} else {
			logger.FromContext(ctx).WithError(err).Warn("reviews unavailable, returning empty summary")
		}
		return Response{ReviewSummary: domain.EmptyReviewSummary()}
	}
	return Response{ReviewSummary: res.Data, Stale: res.Stale}
}

func (s *Service) Invalidate() {
	if s.cache != nil {
		s.cache.Invalidate()
	}
}
