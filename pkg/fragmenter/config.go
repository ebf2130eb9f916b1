package fragmenter

import (
	"flag"
	"time"

	"github.com/pkg/errors"

	"github.com/fedscan/fedscan/pkg/cache"
	"github.com/fedscan/fedscan/pkg/util/backoff"
)

// Config for the fragmenter service.
type Config struct {
	Cache cache.Config `yaml:"cache"`

	// GSSRetry.MaxRetries is the number of retries after the first attempt;
	// the backoff durations pace them.
	GSSRetry backoff.Config `yaml:"gss_retry"`
}

// RegisterFlags adds the flags required to config this to the given FlagSet.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.Cache.RegisterFlagsWithPrefix("fragmenter.", f)
	cfg.GSSRetry.RegisterFlagsWithPrefix("fragmenter.gss", f, 100*time.Millisecond, 2*time.Second, 5)
}

// Validate the config.
func (cfg *Config) Validate() error {
	if err := cfg.Cache.Validate(); err != nil {
		return errors.Wrap(err, "invalid fragment cache config")
	}
	if err := cfg.GSSRetry.Validate(); err != nil {
		return errors.Wrap(err, "invalid GSS retry config")
	}
	return nil
}
