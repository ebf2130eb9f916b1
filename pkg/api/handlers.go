package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	jsoniter "github.com/json-iterator/go"

	"github.com/fedscan/fedscan/pkg/enumerator"
	"github.com/fedscan/fedscan/pkg/fragment"
	util_log "github.com/fedscan/fedscan/pkg/util/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Fragmenter computes the fragments a segment must read.
type Fragmenter interface {
	GetFragmentsForSegment(ctx context.Context, req *fragment.RequestContext) ([]fragment.Fragment, error)
}

// FragmentsResponse is the body of a successful fragment request.
type FragmentsResponse struct {
	Fragments []fragment.Fragment `json:"fragments"`
}

// NewFragmentsHandler returns the handler answering fragment requests.
func NewFragmentsHandler(f Fragmenter, servers ServerConfigs, logger log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := ParseRequest(r, servers)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		fragments, err := f.GetFragmentsForSegment(r.Context(), req)
		if err != nil {
			writeError(w, util_log.WithRequest(req, logger), err)
			return
		}

		body, err := json.Marshal(FragmentsResponse{Fragments: fragments})
		if err != nil {
			writeError(w, logger, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("ETag", `"`+strconv.FormatUint(xxhash.Sum64(body), 16)+`"`)
		if _, err := w.Write(body); err != nil {
			level.Warn(logger).Log("msg", "failed to write fragments response", "err", err)
		}
	})
}

func writeError(w http.ResponseWriter, logger log.Logger, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		level.Error(logger).Log("msg", "fragment request failed", "err", err)
	} else {
		level.Debug(logger).Log("msg", "rejected fragment request", "err", err)
	}
	http.Error(w, err.Error(), code)
}

func statusCode(err error) int {
	switch {
	case fragment.IsConfigError(err), errors.Is(err, enumerator.ErrUnknownEnumerator):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
