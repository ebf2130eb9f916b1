// Package file enumerates fragments of files matched by a glob, one fragment
// per block of each file.
package file

import (
	"context"
	"flag"
	"fmt"
	"path"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/fedscan/fedscan/pkg/enumerator"
	"github.com/fedscan/fedscan/pkg/fragment"
)

// Name under which the file enumerator is registered.
const Name = "file"

// Config for the file enumerator.
type Config struct {
	RootDir   string `yaml:"root_dir"`
	BlockSize int64  `yaml:"block_size"`
}

// RegisterFlagsWithPrefix adds the flags required to config this to the given FlagSet.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.RootDir, prefix+"file.root-dir", "", "Directory data source paths are resolved against. Empty means the process working directory.")
	f.Int64Var(&cfg.BlockSize, prefix+"file.block-size", 128<<20, "Size in bytes of the block each fragment covers.")
}

// Validate the config.
func (cfg *Config) Validate() error {
	if cfg.BlockSize <= 0 {
		return errors.New("file block size must be positive")
	}
	return nil
}

// Metadata locates the block of a file covered by a fragment.
type Metadata struct {
	Path   string `json:"path"`
	Start  int64  `json:"start"`
	Length int64  `json:"length"`
	// FileSize lets readers tell the last block apart.
	FileSize int64 `json:"fileSize"`
}

// Enumerator splits the files matching a glob into blocks.
type Enumerator struct {
	fs        afero.Fs
	glob      string
	blockSize int64
}

// NewFactory returns a factory for enumerators reading from fs. When
// cfg.RootDir is set, paths are resolved inside it.
func NewFactory(cfg Config, fs afero.Fs) enumerator.Factory {
	if cfg.RootDir != "" {
		fs = afero.NewBasePathFs(fs, cfg.RootDir)
	}
	return func(req *fragment.RequestContext) (enumerator.Enumerator, error) {
		if req.DataSource == "" {
			return nil, fragment.ConfigErrorf("the file fragmenter needs a data source path")
		}
		return &Enumerator{fs: fs, glob: req.DataSource, blockSize: cfg.BlockSize}, nil
	}
}

// Fragments implements enumerator.Enumerator.
func (e *Enumerator) Fragments(ctx context.Context) ([]fragment.Fragment, error) {
	matches, err := afero.Glob(e.fs, e.glob)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	var fragments []fragment.Fragment
	for _, p := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := e.fs.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			continue
		}
		fragments = append(fragments, e.split(path.Clean(p), info.Size())...)
	}
	if len(fragments) == 0 {
		return nil, fmt.Errorf("glob %s produced 0 files", e.glob)
	}
	return fragments, nil
}

func (e *Enumerator) split(p string, size int64) []fragment.Fragment {
	if size == 0 {
		return []fragment.Fragment{fragment.New(p, Metadata{Path: p})}
	}
	out := make([]fragment.Fragment, 0, (size+e.blockSize-1)/e.blockSize)
	for start := int64(0); start < size; start += e.blockSize {
		length := e.blockSize
		if start+length > size {
			length = size - start
		}
		out = append(out, fragment.New(p, Metadata{Path: p, Start: start, Length: length, FileSize: size}))
	}
	return out
}
