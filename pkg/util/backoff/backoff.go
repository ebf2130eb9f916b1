// Package backoff paces retries with exponential backoff and jitter.
package backoff

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"time"
)

// Config configures a Backoff.
type Config struct {
	MinBackoff time.Duration `yaml:"min_backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
	MaxRetries int           `yaml:"max_retries"` // 0 means retry forever
}

// RegisterFlagsWithPrefix registers the backoff flags with the given prefix
// and defaults.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet, minBackoff, maxBackoff time.Duration, maxRetries int) {
	f.DurationVar(&cfg.MinBackoff, prefix+".min-backoff", minBackoff, "Minimum delay between retries.")
	f.DurationVar(&cfg.MaxBackoff, prefix+".max-backoff", maxBackoff, "Maximum delay between retries.")
	f.IntVar(&cfg.MaxRetries, prefix+".max-retries", maxRetries, "Maximum number of retries.")
}

// Validate the config.
func (cfg *Config) Validate() error {
	if cfg.MinBackoff < 0 || cfg.MaxBackoff < 0 {
		return fmt.Errorf("backoff durations cannot be negative")
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative, got %d", cfg.MaxRetries)
	}
	return nil
}

// Backoff implements exponential backoff with randomized wait times.
type Backoff struct {
	cfg          Config
	ctx          context.Context
	numRetries   int
	nextDelayMin time.Duration
	nextDelayMax time.Duration
	waitTimer    *time.Timer
}

// New creates a Backoff object. Pass a Context that can also terminate the operation.
func New(ctx context.Context, cfg Config) *Backoff {
	return &Backoff{
		cfg:          cfg,
		ctx:          ctx,
		nextDelayMin: cfg.MinBackoff,
		nextDelayMax: doubleDuration(cfg.MinBackoff, cfg.MaxBackoff),
	}
}

// Ongoing returns true if caller should keep going.
func (b *Backoff) Ongoing() bool {
	// Stop if Context has errored or max retry count is exceeded
	return b.ctx.Err() == nil && (b.cfg.MaxRetries == 0 || b.numRetries < b.cfg.MaxRetries)
}

// Err returns the reason for terminating the backoff, or nil if it didn't terminate.
func (b *Backoff) Err() error {
	if b.ctx.Err() != nil {
		return b.ctx.Err()
	}
	if b.cfg.MaxRetries != 0 && b.numRetries >= b.cfg.MaxRetries {
		return fmt.Errorf("terminated after %d retries", b.numRetries)
	}
	return nil
}

// NumRetries returns the number of retries so far.
func (b *Backoff) NumRetries() int {
	return b.numRetries
}

// Wait sleeps for the backoff time then increases the retry count and backoff time.
// Returns immediately if Context is terminated.
func (b *Backoff) Wait() {
	// Increase the number of retries and get the next delay.
	b.numRetries++

	if b.Ongoing() {
		sleepTime := b.NextDelay()
		if b.waitTimer == nil {
			b.waitTimer = time.NewTimer(sleepTime)
		} else {
			b.waitTimer.Reset(sleepTime)
		}

		select {
		case <-b.ctx.Done():
			b.waitTimer.Stop()
		case <-b.waitTimer.C:
		}
	}
}

// NextDelay returns the delay of the next retry and moves the jitter range
// one step up.
func (b *Backoff) NextDelay() time.Duration {
	// Min and max may be equal, or misconfigured with max below min.
	if b.nextDelayMin >= b.nextDelayMax {
		return b.nextDelayMin
	}

	sleepTime := b.nextDelayMin + time.Duration(rand.Int63n(int64(b.nextDelayMax-b.nextDelayMin)))

	if b.nextDelayMax < b.cfg.MaxBackoff {
		b.nextDelayMin = doubleDuration(b.nextDelayMin, b.cfg.MaxBackoff)
		b.nextDelayMax = doubleDuration(b.nextDelayMax, b.cfg.MaxBackoff)
	}

	return sleepTime
}

func doubleDuration(value time.Duration, max time.Duration) time.Duration {
	value = value * 2

	if value <= max {
		return value
	}

	return max
}
