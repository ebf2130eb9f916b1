package bucket

import (
	"flag"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/thanos-io/objstore"
	"github.com/thanos-io/objstore/providers/filesystem"
)

const (
	// Filesystem is the value for the filesystem storage backend.
	Filesystem = "filesystem"

	// InMemory is the value for the in-memory storage backend, mostly useful
	// for tests and demos.
	InMemory = "inmemory"
)

var (
	supportedBackends = []string{Filesystem, InMemory}

	ErrUnsupportedStorageBackend = errors.New("unsupported storage backend")
)

// FilesystemConfig configures the filesystem backend.
type FilesystemConfig struct {
	Directory string `yaml:"dir"`
}

// RegisterFlagsWithPrefix registers the filesystem backend flags.
func (cfg *FilesystemConfig) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Directory, prefix+"filesystem.dir", "", "Local filesystem storage directory.")
}

// Config holds configuration for accessing the object store.
type Config struct {
	Backend    string           `yaml:"backend"`
	Filesystem FilesystemConfig `yaml:"filesystem"`
}

// RegisterFlagsWithPrefix registers the bucket enumerator flags.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	cfg.Filesystem.RegisterFlagsWithPrefix(prefix+"bucket.", f)
	f.StringVar(&cfg.Backend, prefix+"bucket.backend", "", fmt.Sprintf("Backend storage to use. Supported backends are: %s. Empty disables the bucket fragmenter.", strings.Join(supportedBackends, ", ")))
}

// Enabled reports whether a backend is configured.
func (cfg *Config) Enabled() bool {
	return cfg.Backend != ""
}

// Validate the config.
func (cfg *Config) Validate() error {
	switch cfg.Backend {
	case "":
	case Filesystem:
		if cfg.Filesystem.Directory == "" {
			return errors.New("the filesystem backend needs a directory")
		}
	case InMemory:
	default:
		return errors.Wrap(ErrUnsupportedStorageBackend, cfg.Backend)
	}
	return nil
}

// NewBucketClient creates a new bucket client based on the configured backend.
func NewBucketClient(cfg Config) (objstore.Bucket, error) {
	switch cfg.Backend {
	case Filesystem:
		return filesystem.NewBucket(cfg.Filesystem.Directory)
	case InMemory:
		return objstore.NewInMemBucket(), nil
	default:
		return nil, ErrUnsupportedStorageBackend
	}
}
