package fragmenter

import (
	"context"
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fedscan/fedscan/pkg/enumerator"
	"github.com/fedscan/fedscan/pkg/fragment"
	"github.com/fedscan/fedscan/pkg/util/backoff"
)

// gssRetry retries enumerations that fail on a transient Kerberos
// negotiation error. Any other error is returned after the first attempt.
type gssRetry struct {
	cfg    backoff.Config
	logger log.Logger

	attempts prometheus.Histogram
	retries  prometheus.Counter
}

func newGSSRetry(cfg backoff.Config, logger log.Logger, reg prometheus.Registerer) *gssRetry {
	return &gssRetry{
		cfg:    cfg,
		logger: logger,
		attempts: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "fedscan",
			Subsystem: "fragmenter",
			Name:      "enumeration_attempts",
			Help:      "Number of enumeration attempts per fragment list computation.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6},
		}),
		retries: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "fedscan",
			Subsystem: "fragmenter",
			Name:      "gss_retries_total",
			Help:      "Total number of enumerations retried after a transient GSS failure.",
		}),
	}
}

// maxRetries returns the retry budget for req. Only Kerberos secured servers
// are retried; their configuration may override the default budget.
func (r *gssRetry) maxRetries(req *fragment.RequestContext) (int, error) {
	if !req.IsKerberos() {
		return 0, nil
	}
	value, ok := req.Configuration[fragment.SASLConnectionRetriesProperty]
	if !ok || value == "" {
		return r.cfg.MaxRetries, nil
	}
	retries, err := strconv.Atoi(value)
	if err != nil || retries < 0 {
		return 0, fragment.ConfigErrorf("property %s has invalid value %q, it must be a non-negative integer",
			fragment.SASLConnectionRetriesProperty, value)
	}
	return retries, nil
}

// do calls f until it succeeds, fails with a non-retryable error, or the
// retry budget is spent. The last error is returned unchanged.
func (r *gssRetry) do(ctx context.Context, req *fragment.RequestContext, f func() ([]fragment.Fragment, error)) ([]fragment.Fragment, error) {
	maxRetries, err := r.maxRetries(req)
	if err != nil {
		return nil, err
	}

	tries := 0
	defer func() { r.attempts.Observe(float64(tries)) }()

	// The budget is enforced here; the backoff only paces the attempts.
	b := backoff.New(ctx, backoff.Config{MinBackoff: r.cfg.MinBackoff, MaxBackoff: r.cfg.MaxBackoff})
	for {
		tries++
		fragments, err := f()
		if err == nil {
			return fragments, nil
		}
		if !enumerator.IsTransientAuth(err) || b.NumRetries() >= maxRetries {
			return nil, err
		}

		r.retries.Inc()
		level.Warn(r.logger).Log("msg", "enumeration failed with a transient GSS error, retrying",
			"attempt", tries, "max_retries", maxRetries, "err", err)
		b.Wait()
		if b.Err() != nil {
			return nil, err
		}
	}
}
