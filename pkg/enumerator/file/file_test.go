package file

import (
	"context"
	"flag"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedscan/fedscan/pkg/fragment"
)

func writeFile(t *testing.T, fs afero.Fs, name string, size int) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, name, make([]byte, size), 0o644))
}

func TestConfig(t *testing.T) {
	cfg := Config{}
	cfg.RegisterFlagsWithPrefix("enumerators.", flag.NewFlagSet("", flag.PanicOnError))
	assert.Equal(t, int64(128<<20), cfg.BlockSize)
	assert.NoError(t, cfg.Validate())

	cfg.BlockSize = 0
	assert.Error(t, cfg.Validate())
}

func TestEnumerator_Fragments(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/data/sales/part-2.csv", 25)
	writeFile(t, fs, "/data/sales/part-1.csv", 10)
	writeFile(t, fs, "/data/sales/empty.csv", 0)
	writeFile(t, fs, "/data/sales/readme.txt", 5)
	require.NoError(t, fs.MkdirAll("/data/sales/dir.csv", 0o755))

	factory := NewFactory(Config{RootDir: "/data", BlockSize: 10}, fs)
	e, err := factory(&fragment.RequestContext{DataSource: "/sales/*.csv"})
	require.NoError(t, err)

	fragments, err := e.Fragments(context.Background())
	require.NoError(t, err)

	expected := []fragment.Fragment{
		fragment.New("/sales/empty.csv", Metadata{Path: "/sales/empty.csv"}),
		fragment.New("/sales/part-1.csv", Metadata{Path: "/sales/part-1.csv", Start: 0, Length: 10, FileSize: 10}),
		fragment.New("/sales/part-2.csv", Metadata{Path: "/sales/part-2.csv", Start: 0, Length: 10, FileSize: 25}),
		fragment.New("/sales/part-2.csv", Metadata{Path: "/sales/part-2.csv", Start: 10, Length: 10, FileSize: 25}),
		fragment.New("/sales/part-2.csv", Metadata{Path: "/sales/part-2.csv", Start: 20, Length: 5, FileSize: 25}),
	}
	assert.Equal(t, expected, fragments)
}

func TestEnumerator_NoMatches(t *testing.T) {
	fs := afero.NewMemMapFs()
	e, err := NewFactory(Config{BlockSize: 10}, fs)(&fragment.RequestContext{DataSource: "/missing/*.csv"})
	require.NoError(t, err)

	_, err = e.Fragments(context.Background())
	assert.EqualError(t, err, "glob /missing/*.csv produced 0 files")
}

func TestEnumerator_BadPattern(t *testing.T) {
	e, err := NewFactory(Config{BlockSize: 10}, afero.NewMemMapFs())(&fragment.RequestContext{DataSource: "/data/[.csv"})
	require.NoError(t, err)

	_, err = e.Fragments(context.Background())
	assert.Error(t, err)
}

func TestFactory_MissingDataSource(t *testing.T) {
	_, err := NewFactory(Config{BlockSize: 10}, afero.NewMemMapFs())(&fragment.RequestContext{})
	require.Error(t, err)
	assert.True(t, fragment.IsConfigError(err))
}
