// Package fragmenter answers a segment's request for the fragments it must
// read. The full fragment list of a scan is enumerated once, cached for all
// segments of the scan, and filtered by the distribution strategy the request
// selects.
package fragmenter

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fedscan/fedscan/pkg/cache"
	"github.com/fedscan/fedscan/pkg/distribution"
	"github.com/fedscan/fedscan/pkg/enumerator"
	"github.com/fedscan/fedscan/pkg/fragment"
	util_log "github.com/fedscan/fedscan/pkg/util/log"
	"github.com/fedscan/fedscan/pkg/util/spanlogger"
)

// Resolver finds the enumerator factory serving a request.
type Resolver interface {
	Resolve(req *fragment.RequestContext) (enumerator.Factory, error)
}

// StrategyProvider selects the distribution strategy of a request.
type StrategyProvider interface {
	GetStrategy(req *fragment.RequestContext) (distribution.Strategy, error)
}

// Service computes per-segment fragment lists.
type Service struct {
	cfg         Config
	enumerators Resolver
	strategies  StrategyProvider
	fragments   *cache.Cache[[]fragment.Fragment]
	retry       *gssRetry
	logger      log.Logger

	requestDuration   *prometheus.HistogramVec
	fragmentsReturned *prometheus.CounterVec
}

// NewService makes a new Service.
func NewService(cfg Config, enumerators Resolver, strategies StrategyProvider, fragments *cache.Cache[[]fragment.Fragment], logger log.Logger, reg prometheus.Registerer) *Service {
	return &Service{
		cfg:         cfg,
		enumerators: enumerators,
		strategies:  strategies,
		fragments:   fragments,
		retry:       newGSSRetry(cfg.GSSRetry, logger, reg),
		logger:      logger,

		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fedscan",
			Subsystem: "fragmenter",
			Name:      "request_duration_seconds",
			Help:      "Time spent serving a segment's fragment request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		fragmentsReturned: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "fedscan",
			Subsystem: "fragmenter",
			Name:      "fragments_returned_total",
			Help:      "Total number of fragments handed to segments.",
		}, []string{"policy"}),
	}
}

// GetFragmentsForSegment returns the fragments the requesting segment must
// read. Segments of the same scan share one enumeration; errors from the
// enumerator are returned unchanged and are never cached.
func (s *Service) GetFragmentsForSegment(ctx context.Context, req *fragment.RequestContext) (_ []fragment.Fragment, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		s.requestDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "Fragmenter.GetFragmentsForSegment")
	defer span.Finish()
	span.SetTag("xid", req.TransactionID)
	span.SetTag("segment_id", req.SegmentID)

	strategy, err := s.strategies.GetStrategy(req)
	if err != nil {
		return nil, err
	}
	span.SetTag("policy", strategy.Policy().String())

	fragments, err := s.fragments.GetOrCompute(ctx, req.CacheKey(), func(ctx context.Context) ([]fragment.Fragment, error) {
		return s.enumerate(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	filtered, err := strategy.FilterFragments(fragments, req)
	if err != nil {
		return nil, err
	}
	span.SetTag("fragments_total", len(fragments))
	span.SetTag("fragments_returned", len(filtered))
	s.fragmentsReturned.WithLabelValues(strategy.Policy().String()).Add(float64(len(filtered)))

	level.Debug(util_log.WithRequest(req, s.logger)).Log("msg", "filtered fragments for segment",
		"policy", strategy.Policy(), "total", len(fragments), "returned", len(filtered), "cache_size", s.fragments.Size())
	return filtered, nil
}

// enumerate computes the full fragment list of a scan. It runs once per cache
// key at a time.
func (s *Service) enumerate(ctx context.Context, req *fragment.RequestContext) ([]fragment.Fragment, error) {
	start := time.Now()
	spanLog, ctx := spanlogger.New(ctx, util_log.WithRequest(req, s.logger), "Fragmenter.enumerate")
	defer spanLog.Finish()

	factory, err := s.enumerators.Resolve(req)
	if err != nil {
		return nil, spanLog.Error(err)
	}

	fragments, err := s.retry.do(ctx, req, func() ([]fragment.Fragment, error) {
		e, err := factory(req)
		if err != nil {
			return nil, err
		}
		return e.Fragments(ctx)
	})
	if err != nil {
		return nil, spanLog.Error(err)
	}

	fragments = fragment.Reindex(fragment.Sample(fragments, req.StatsMaxFragments))

	level.Info(spanLog).Log("msg", "enumerated fragments",
		"fragments", len(fragments), "duration", time.Since(start),
		"user", req.User, "resource", req.DataSource, "fragmenter", req.Fragmenter, "profile", req.Profile)
	return fragments, nil
}
