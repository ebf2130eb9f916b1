package log

import (
	"bytes"
	"testing"

	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaveworks/common/logging"

	"github.com/fedscan/fedscan/pkg/fragment"
)

func newLogger(t *testing.T, lvl, format string) (*bytes.Buffer, func(...interface{}) error) {
	t.Helper()
	var (
		l logging.Level
		f logging.Format
	)
	require.NoError(t, l.Set(lvl))
	require.NoError(t, f.Set(format))

	buf := &bytes.Buffer{}
	logger, err := NewLogger(l, f, buf)
	require.NoError(t, err)
	return buf, logger.Log
}

func TestNewLogger_LevelFilter(t *testing.T) {
	tests := map[string]struct {
		level    string
		expected []string
	}{
		"debug": {level: "debug", expected: []string{"debug", "info", "warn", "error"}},
		"info":  {level: "info", expected: []string{"info", "warn", "error"}},
		"warn":  {level: "warn", expected: []string{"warn", "error"}},
		"error": {level: "error", expected: []string{"error"}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var l logging.Level
			require.NoError(t, l.Set(tc.level))
			var f logging.Format
			require.NoError(t, f.Set("logfmt"))

			buf := &bytes.Buffer{}
			logger, err := NewLogger(l, f, buf)
			require.NoError(t, err)

			require.NoError(t, level.Debug(logger).Log("msg", "debug"))
			require.NoError(t, level.Info(logger).Log("msg", "info"))
			require.NoError(t, level.Warn(logger).Log("msg", "warn"))
			require.NoError(t, level.Error(logger).Log("msg", "error"))

			for _, lvl := range []string{"debug", "info", "warn", "error"} {
				if contains(tc.expected, lvl) {
					assert.Contains(t, buf.String(), "msg="+lvl)
				} else {
					assert.NotContains(t, buf.String(), "msg="+lvl)
				}
			}
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	buf, log := newLogger(t, "info", "json")

	require.NoError(t, log("level", level.InfoValue(), "msg", "hello"))
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"level":"info"`)
}

func TestNewLogger_LevelNotSet(t *testing.T) {
	_, err := NewLogger(logging.Level{}, logging.Format{}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestWithRequest(t *testing.T) {
	var l logging.Level
	require.NoError(t, l.Set("info"))
	buf := &bytes.Buffer{}
	logger, err := NewLogger(l, logging.Format{}, buf)
	require.NoError(t, err)

	req := &fragment.RequestContext{TransactionID: "XID-1", SegmentID: 2, SchemaName: "public", TableName: "sales"}
	require.NoError(t, level.Info(WithRequest(req, logger)).Log("msg", "hello"))

	assert.Contains(t, buf.String(), "xid=XID-1 segment_id=2 schema=public table=sales")
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
