package log

import (
	"github.com/go-kit/log"

	"github.com/fedscan/fedscan/pkg/fragment"
)

// WithRequest returns a Logger that has information about the scan and the
// segment asking for it in its details.
func WithRequest(req *fragment.RequestContext, l log.Logger) log.Logger {
	return log.With(l,
		"xid", req.TransactionID,
		"segment_id", req.SegmentID,
		"schema", req.SchemaName,
		"table", req.TableName,
	)
}
