package fedscan

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/weaveworks/common/logging"
	"github.com/weaveworks/common/server"
	"go.uber.org/atomic"
	"gopkg.in/yaml.v2"

	"github.com/fedscan/fedscan/pkg/api"
	"github.com/fedscan/fedscan/pkg/cache"
	"github.com/fedscan/fedscan/pkg/distribution"
	"github.com/fedscan/fedscan/pkg/enumerator"
	"github.com/fedscan/fedscan/pkg/enumerator/bucket"
	"github.com/fedscan/fedscan/pkg/enumerator/demo"
	"github.com/fedscan/fedscan/pkg/enumerator/file"
	"github.com/fedscan/fedscan/pkg/enumerator/jdbc"
	"github.com/fedscan/fedscan/pkg/fragment"
	"github.com/fedscan/fedscan/pkg/fragmenter"
)

// Config is the root config for the fragment service.
type Config struct {
	PrintConfig bool `yaml:"-"`

	Server      server.Config     `yaml:"server,omitempty"`
	API         api.Config        `yaml:"api,omitempty"`
	Fragmenter  fragmenter.Config `yaml:"fragmenter,omitempty"`
	Enumerators EnumeratorsConfig `yaml:"enumerators,omitempty"`

	// Servers maps a server name, selected by the SERVER request option, to
	// the configuration properties of the external system it points at.
	Servers map[string]map[string]string `yaml:"servers,omitempty"`
}

// EnumeratorsConfig configures the storage plugins that need settings.
type EnumeratorsConfig struct {
	File   file.Config   `yaml:"file,omitempty"`
	Bucket bucket.Config `yaml:"bucket,omitempty"`
	JDBC   jdbc.Config   `yaml:"jdbc,omitempty"`
}

// RegisterFlags registers flag.
func (c *Config) RegisterFlags(f *flag.FlagSet) {
	c.Server.MetricsNamespace = "fedscan"
	c.Server.ExcludeRequestInLog = true

	f.BoolVar(&c.PrintConfig, "print.config", false, "Print the config and exit.")

	c.Server.RegisterFlags(f)
	// The fragment service listens on 5888 unless told otherwise.
	c.Server.HTTPListenPort = defaultHTTPListenPort
	f.Lookup("server.http-listen-port").DefValue = strconv.Itoa(defaultHTTPListenPort)

	c.API.RegisterFlags(f)
	c.Fragmenter.RegisterFlags(f)
	c.Enumerators.File.RegisterFlagsWithPrefix("enumerators.", f)
	c.Enumerators.Bucket.RegisterFlagsWithPrefix("enumerators.", f)
	c.Enumerators.JDBC.RegisterFlagsWithPrefix("enumerators.", f)
}

// Validate the config and returns an error if the validation
// doesn't pass
func (c *Config) Validate() error {
	var errs *multierror.Error
	if err := c.Fragmenter.Validate(); err != nil {
		errs = multierror.Append(errs, errors.Wrap(err, "invalid fragmenter config"))
	}
	if err := c.Enumerators.File.Validate(); err != nil {
		errs = multierror.Append(errs, errors.Wrap(err, "invalid file enumerator config"))
	}
	if err := c.Enumerators.Bucket.Validate(); err != nil {
		errs = multierror.Append(errs, errors.Wrap(err, "invalid bucket enumerator config"))
	}
	if err := c.Enumerators.JDBC.Validate(); err != nil {
		errs = multierror.Append(errs, errors.Wrap(err, "invalid jdbc enumerator config"))
	}
	for name, props := range c.Servers {
		if v, ok := props[fragment.SASLConnectionRetriesProperty]; ok {
			if n, err := strconv.Atoi(v); err != nil || n < 0 {
				errs = multierror.Append(errs, fmt.Errorf("server %s: %s must be a non-negative integer, got %q", name, fragment.SASLConnectionRetriesProperty, v))
			}
		}
	}
	return errs.ErrorOrNil()
}

const defaultHTTPListenPort = 5888

// Fedscan is the root datastructure of the fragment service.
type Fedscan struct {
	cfg    Config
	logger log.Logger

	registry  *enumerator.Registry
	fragments *cache.Cache[[]fragment.Fragment]
	service   *fragmenter.Service

	server   *server.Server
	ready    *atomic.Bool
	stopOnce sync.Once
}

// New makes a new Fedscan, listening on the configured addresses. Server
// metrics are registered on reg, and served on /metrics when reg is also a
// prometheus.Gatherer.
func New(cfg Config, logger log.Logger, reg prometheus.Registerer) (*Fedscan, error) {
	if cfg.PrintConfig {
		if err := yaml.NewEncoder(os.Stdout).Encode(&cfg); err != nil {
			fmt.Println("Error encoding config:", err)
		}
		os.Exit(0)
	}

	t := &Fedscan{
		cfg:      cfg,
		logger:   logger,
		registry: enumerator.NewRegistry(),
		ready:    atomic.NewBool(false),
	}

	if err := t.initEnumerators(); err != nil {
		return nil, errors.Wrap(err, "error initialising enumerators")
	}

	fragments, err := cache.New[[]fragment.Fragment]("fragments", cfg.Fragmenter.Cache, clockwork.NewRealClock(), reg, logger)
	if err != nil {
		return nil, errors.Wrap(err, "error initialising fragment cache")
	}
	t.fragments = fragments
	t.service = fragmenter.NewService(cfg.Fragmenter, t.registry, distribution.NewDefaultProvider(logger), fragments, logger, reg)

	if err := t.initServer(reg); err != nil {
		return nil, errors.Wrap(err, "error initialising server")
	}

	a := api.New(cfg.API, t.server.HTTP, logger)
	a.RegisterFragmenter(t.service, t.serverConfig)
	a.RegisterReadiness(t.ready.Load)
	return t, nil
}

func (t *Fedscan) initServer(reg prometheus.Registerer) error {
	cfg := t.cfg.Server
	if cfg.Log == nil {
		cfg.Log = logging.GoKit(t.logger)
	}
	cfg.Registerer = reg
	if gatherer, ok := reg.(prometheus.Gatherer); ok {
		cfg.Gatherer = gatherer
	}

	serv, err := server.New(cfg)
	if err != nil {
		return err
	}
	t.server = serv
	return nil
}

func (t *Fedscan) initEnumerators() error {
	t.registry.Register(demo.Name, demo.NewFactory())
	t.registry.Register(jdbc.Name, jdbc.NewFactory(t.cfg.Enumerators.JDBC))
	t.registry.Register(file.Name, file.NewFactory(t.cfg.Enumerators.File, afero.NewOsFs()))
	level.Debug(t.logger).Log("msg", "file fragmenter configured", "root_dir", t.cfg.Enumerators.File.RootDir,
		"block_size", humanize.IBytes(uint64(t.cfg.Enumerators.File.BlockSize)))

	if t.cfg.Enumerators.Bucket.Enabled() {
		bkt, err := bucket.NewBucketClient(t.cfg.Enumerators.Bucket)
		if err != nil {
			return err
		}
		t.registry.Register(bucket.Name, bucket.NewFactory(bkt))
	}
	level.Info(t.logger).Log("msg", "registered fragmenters", "fragmenters", fmt.Sprint(t.registry.Names()))
	return nil
}

func (t *Fedscan) serverConfig(name string) (map[string]string, bool) {
	props, ok := t.cfg.Servers[name]
	return props, ok
}

// Registry returns the enumerator registry, so callers can plug in their own
// fragmenters before Run.
func (t *Fedscan) Registry() *enumerator.Registry {
	return t.registry
}

// Addr is the address the HTTP server listens on.
func (t *Fedscan) Addr() net.Addr {
	return t.server.HTTPListenAddr()
}

// Run serves requests, and blocks until a signal is received, Stop is called
// or the server fails.
func (t *Fedscan) Run() error {
	t.fragments.Start()
	defer t.fragments.Stop()

	level.Info(t.logger).Log("msg", "fragment service listening", "addr", t.Addr().String())
	t.ready.Store(true)
	defer t.ready.Store(false)
	return t.server.Run()
}

// Stop gracefully stops the service.
func (t *Fedscan) Stop() error {
	t.ready.Store(false)
	t.stopOnce.Do(func() {
		// Shutdown drains in-flight requests and unblocks Run.
		t.server.Shutdown()
		t.server.Stop()
	})
	level.Info(t.logger).Log("msg", "fragment service stopped")
	return nil
}
