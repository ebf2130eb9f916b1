// Package cache holds fragment lists shared by all segments of a scan.
//
// Entries expire after a period without access rather than a fixed time after
// they were written: every segment of a scan asks for the list within a short
// window, and the list is useless once the scan has moved on.
package cache

import (
	"context"
	"flag"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

// Config for a Cache.
type Config struct {
	Expiration      time.Duration `yaml:"expiration"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	MaxEntries      int           `yaml:"max_entries"`
}

// RegisterFlagsWithPrefix adds the flags required to config this to the given FlagSet.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.DurationVar(&cfg.Expiration, prefix+"cache.expiration", 10*time.Second, "How long an entry is kept after it was last accessed.")
	f.DurationVar(&cfg.CleanupInterval, prefix+"cache.cleanup-interval", 5*time.Second, "How often idle entries are removed.")
	f.IntVar(&cfg.MaxEntries, prefix+"cache.max-entries", 10000, "Maximum number of entries. The least recently used entry is evicted when full.")
}

// Validate the config.
func (cfg *Config) Validate() error {
	if cfg.Expiration <= 0 {
		return errors.New("cache expiration must be positive")
	}
	if cfg.CleanupInterval <= 0 {
		return errors.New("cache cleanup interval must be positive")
	}
	if cfg.MaxEntries <= 0 {
		return errors.New("cache max entries must be positive")
	}
	return nil
}

type entry[V any] struct {
	value      V
	lastAccess time.Time
}

// Cache is a string keyed, expire-after-access cache whose GetOrCompute runs
// at most one computation per key at a time.
type Cache[V any] struct {
	name   string
	cfg    Config
	clock  clockwork.Clock
	logger log.Logger

	mtx sync.Mutex
	// Ordered by last access: LRU recency and lastAccess move together.
	entries *simplelru.LRU[string, *entry[V]]

	flight singleflight.Group

	loopMtx sync.Mutex
	stop    chan struct{}
	done    chan struct{}

	totalGets           prometheus.Counter
	totalMisses         prometheus.Counter
	staleGets           prometheus.Counter
	entriesAdded        prometheus.Counter
	entriesEvicted      prometheus.Counter
	entriesCurrent      prometheus.Gauge
	computations        prometheus.Counter
	computationFailures prometheus.Counter
}

// New makes a new Cache. reg may be nil.
func New[V any](name string, cfg Config, clock clockwork.Clock, reg prometheus.Registerer, logger log.Logger) (*Cache[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config for cache %s", name)
	}

	labels := prometheus.Labels{"cache": name}
	factory := promauto.With(reg)
	c := &Cache[V]{
		name:   name,
		cfg:    cfg,
		clock:  clock,
		logger: log.With(logger, "cache", name),

		totalGets: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "fedscan",
			Subsystem:   "fragment_cache",
			Name:        "gets_total",
			Help:        "The total number of Get calls.",
			ConstLabels: labels,
		}),
		totalMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "fedscan",
			Subsystem:   "fragment_cache",
			Name:        "misses_total",
			Help:        "The total number of Get calls that had no valid entry.",
			ConstLabels: labels,
		}),
		staleGets: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "fedscan",
			Subsystem:   "fragment_cache",
			Name:        "stale_gets_total",
			Help:        "The total number of Get calls that had an entry which expired.",
			ConstLabels: labels,
		}),
		entriesAdded: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "fedscan",
			Subsystem:   "fragment_cache",
			Name:        "added_total",
			Help:        "The total number of entries added to the cache.",
			ConstLabels: labels,
		}),
		entriesEvicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "fedscan",
			Subsystem:   "fragment_cache",
			Name:        "evicted_total",
			Help:        "The total number of evicted entries.",
			ConstLabels: labels,
		}),
		entriesCurrent: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "fedscan",
			Subsystem:   "fragment_cache",
			Name:        "entries",
			Help:        "The total number of entries, including idle entries not cleaned up yet.",
			ConstLabels: labels,
		}),
		computations: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "fedscan",
			Subsystem:   "fragment_cache",
			Name:        "computations_total",
			Help:        "The total number of values computed on a miss.",
			ConstLabels: labels,
		}),
		computationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "fedscan",
			Subsystem:   "fragment_cache",
			Name:        "computation_failures_total",
			Help:        "The total number of computations that returned an error.",
			ConstLabels: labels,
		}),
	}

	lru, err := simplelru.NewLRU[string, *entry[V]](cfg.MaxEntries, func(string, *entry[V]) {
		c.entriesEvicted.Inc()
	})
	if err != nil {
		return nil, errors.Wrapf(err, "creating cache %s", name)
	}
	c.entries = lru
	return c, nil
}

// Get returns the value stored for key, refreshing its last access time. An
// entry idle for the expiration period or longer is treated as absent.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.totalGets.Inc()
	v, ok := c.get(key)
	if !ok {
		c.totalMisses.Inc()
	}
	return v, ok
}

func (c *Cache[V]) get(key string) (V, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	var zero V
	e, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	now := c.clock.Now()
	if c.expired(e, now) {
		c.staleGets.Inc()
		c.entries.Remove(key)
		c.entriesCurrent.Set(float64(c.entries.Len()))
		return zero, false
	}
	e.lastAccess = now
	return e.value, true
}

// GetOrCompute returns the value stored for key, or computes and stores it.
//
// Concurrent callers missing on the same key share a single call to compute
// and all receive its result. If compute fails, every waiting caller gets the
// same error and nothing is stored, so the next call computes again. compute
// runs on a context that is not cancelled when ctx is; a caller whose ctx ends
// stops waiting without affecting the others.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	computeCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (interface{}, error) {
		// Another flight may have stored the value since our miss.
		if v, ok := c.get(key); ok {
			return v, nil
		}
		c.computations.Inc()
		v, err := compute(computeCtx)
		if err != nil {
			c.computationFailures.Inc()
			return nil, err
		}
		c.put(key, v)
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

func (c *Cache[V]) put(key string, v V) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.entries.Add(key, &entry[V]{value: v, lastAccess: c.clock.Now()})
	c.entriesAdded.Inc()
	c.entriesCurrent.Set(float64(c.entries.Len()))
}

// Invalidate drops the entry for key, if any.
func (c *Cache[V]) Invalidate(key string) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.entries.Remove(key)
	c.entriesCurrent.Set(float64(c.entries.Len()))
}

// Size returns the number of stored entries, including idle ones that have
// not been cleaned up yet.
func (c *Cache[V]) Size() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.entries.Len()
}

// CleanUp removes every entry idle for the expiration period or longer and
// returns how many were removed.
func (c *Cache[V]) CleanUp() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	now := c.clock.Now()
	removed := 0
	for {
		_, e, ok := c.entries.GetOldest()
		if !ok || !c.expired(e, now) {
			break
		}
		c.entries.RemoveOldest()
		removed++
	}
	c.entriesCurrent.Set(float64(c.entries.Len()))
	if removed > 0 {
		level.Debug(c.logger).Log("msg", "removed idle entries", "removed", removed, "size", c.entries.Len())
	}
	return removed
}

func (c *Cache[V]) expired(e *entry[V], now time.Time) bool {
	return now.Sub(e.lastAccess) >= c.cfg.Expiration
}

// Start runs CleanUp every cleanup interval until Stop is called. Calling
// Start on a running cache does nothing.
func (c *Cache[V]) Start() {
	c.loopMtx.Lock()
	defer c.loopMtx.Unlock()
	if c.stop != nil {
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.loop(c.stop, c.done)
}

// Stop ends the cleanup loop started by Start and waits for it to exit.
func (c *Cache[V]) Stop() {
	c.loopMtx.Lock()
	defer c.loopMtx.Unlock()
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.stop, c.done = nil, nil
}

func (c *Cache[V]) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := c.clock.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			c.CleanUp()
		case <-stop:
			return
		}
	}
}
