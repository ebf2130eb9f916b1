package log

import (
	"fmt"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/weaveworks/common/logging"
	"github.com/weaveworks/common/server"
)

var (
	// Logger is the process-wide logger. It discards everything until
	// InitLogger is called, which keeps tests quiet.
	Logger = log.NewNopLogger()
)

// InitLogger initialises the global logger according to the server config,
// writing to stderr, and makes the HTTP server log through it as well.
func InitLogger(cfg *server.Config) error {
	l, err := NewLogger(cfg.LogLevel, cfg.LogFormat, log.NewSyncWriter(os.Stderr))
	if err != nil {
		return err
	}
	Logger = l
	cfg.Log = logging.GoKit(l)
	return nil
}

// NewLogger returns a leveled logger writing to w, with a timestamp and the
// caller on every line. format is logfmt unless it is "json".
func NewLogger(lvl logging.Level, format logging.Format, w io.Writer) (log.Logger, error) {
	if lvl.Gokit == nil {
		return nil, errors.New("log level is not set")
	}

	var l log.Logger
	if format.String() == "json" {
		l = log.NewJSONLogger(w)
	} else {
		l = log.NewLogfmtLogger(w)
	}
	l = level.NewFilter(l, lvl.Gokit)
	return log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.Caller(5)), nil
}

// CheckFatal prints an error and exits with error code 1 if err is non-nil
func CheckFatal(location string, err error) {
	if err != nil {
		logger := level.Error(Logger)
		if location != "" {
			logger = log.With(logger, "msg", "error "+location)
		}
		// %+v gets the stack trace from errors using github.com/pkg/errors
		logger.Log("err", fmt.Sprintf("%+v", err))
		os.Exit(1)
	}
}
