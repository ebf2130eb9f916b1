package fragment

import (
	"fmt"
	"strings"
)

// Request options understood by the fragment distribution code.
const (
	DistributionPolicyOption = "FRAGMENT_DISTRIBUTION_POLICY"
	ActiveSegmentCountOption = "ACTIVE_SEGMENT_COUNT"
	StatsMaxFragmentsOption  = "STATS-MAX-FRAGMENTS"
	ServerOption             = "SERVER"
)

// Configuration properties read from the per-server configuration.
const (
	SecurityAuthenticationProperty = "hadoop.security.authentication"
	SASLConnectionRetriesProperty  = "pxf.sasl.connection.retries"

	kerberosAuthentication = "kerberos"
)

// DefaultServer is the server configuration used when a request names none.
const DefaultServer = "default"

// RequestContext carries the identity of a scan and of the segment asking for
// its fragments. It is built once per request and is read-only afterwards.
type RequestContext struct {
	TransactionID string
	SchemaName    string
	TableName     string
	DataSource    string
	FilterString  string
	Fragmenter    string
	User          string
	Profile       string

	SegmentID      int
	TotalSegments  int
	GPSessionID    int
	GPCommandCount int

	StatsMaxFragments int

	Options       map[string]string
	Configuration map[string]string
}

// AddOption records a request option. Option names are case-insensitive.
func (r *RequestContext) AddOption(name, value string) {
	if r.Options == nil {
		r.Options = map[string]string{}
	}
	r.Options[strings.ToUpper(name)] = value
}

// Option returns the value of a request option and whether it was set.
func (r *RequestContext) Option(name string) (string, bool) {
	v, ok := r.Options[strings.ToUpper(name)]
	return v, ok
}

// ShiftedIndex is the per-query rotation offset shared by every segment of a
// scan. It changes with the command count so that repeated executions of the
// same query within a session do not always land on the same segments.
func (r *RequestContext) ShiftedIndex() int {
	return r.GPSessionID%r.TotalSegments + r.GPCommandCount
}

// IsKerberos reports whether the request's server configuration uses
// Kerberos authentication.
func (r *RequestContext) IsKerberos() bool {
	return strings.EqualFold(strings.TrimSpace(r.Configuration[SecurityAuthenticationProperty]), kerberosAuthentication)
}

// HasFilter reports whether a pushed-down filter accompanies the request.
func (r *RequestContext) HasFilter() bool {
	return r.FilterString != ""
}

// CacheKey identifies the logical scan independently of the segment. A
// transaction id alone is not enough: a single query may scan the same table
// several times with different filters, and a table may be recreated in the
// same transaction pointing at another location.
func (r *RequestContext) CacheKey() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s",
		r.TransactionID,
		r.SchemaName,
		r.TableName,
		r.DataSource,
		r.FilterString)
}

// Validate checks the segment topology carried by the request.
func (r *RequestContext) Validate() error {
	switch {
	case r.TotalSegments < 1:
		return ConfigErrorf("total segments must be at least 1, got %d", r.TotalSegments)
	case r.SegmentID < 0 || r.SegmentID >= r.TotalSegments:
		return ConfigErrorf("segment id %d is out of range [0, %d)", r.SegmentID, r.TotalSegments)
	case r.GPSessionID < 0:
		return ConfigErrorf("session id cannot be negative, got %d", r.GPSessionID)
	case r.GPCommandCount < 0:
		return ConfigErrorf("command count cannot be negative, got %d", r.GPCommandCount)
	case r.Fragmenter == "":
		return ConfigErrorf("no fragmenter specified for data source %q", r.DataSource)
	}
	return nil
}
