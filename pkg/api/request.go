package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/fedscan/fedscan/pkg/fragment"
)

// Headers sent by the database with every fragment request.
const (
	headerPrefix        = "X-GP-"
	optionsHeaderPrefix = headerPrefix + "OPTIONS-"

	HeaderXID          = "X-GP-XID"
	HeaderSchemaName   = "X-GP-SCHEMA-NAME"
	HeaderTableName    = "X-GP-TABLE-NAME"
	HeaderDataDir      = "X-GP-DATA-DIR"
	HeaderHasFilter    = "X-GP-HAS-FILTER"
	HeaderFilter       = "X-GP-FILTER"
	HeaderUser         = "X-GP-USER"
	HeaderSegmentID    = "X-GP-SEGMENT-ID"
	HeaderSegmentCount = "X-GP-SEGMENT-COUNT"
	HeaderSessionID    = "X-GP-SESSION-ID"
	HeaderCommandCount = "X-GP-COMMAND-COUNT"

	fragmenterOption = "FRAGMENTER"
	profileOption    = "PROFILE"
)

// ServerConfigs returns the configuration properties of a named server.
type ServerConfigs func(name string) (map[string]string, bool)

// ParseRequest builds the request context from the X-GP-* headers of r.
// Missing or malformed values are configuration errors.
func ParseRequest(r *http.Request, servers ServerConfigs) (*fragment.RequestContext, error) {
	h := r.Header
	req := &fragment.RequestContext{
		TransactionID: h.Get(HeaderXID),
		SchemaName:    h.Get(HeaderSchemaName),
		TableName:     h.Get(HeaderTableName),
		DataSource:    h.Get(HeaderDataDir),
		User:          h.Get(HeaderUser),
	}
	if h.Get(HeaderHasFilter) == "1" {
		req.FilterString = h.Get(HeaderFilter)
	}

	for name, values := range h {
		name = strings.ToUpper(name)
		if strings.HasPrefix(name, optionsHeaderPrefix) && len(values) > 0 {
			req.AddOption(strings.TrimPrefix(name, optionsHeaderPrefix), values[0])
		}
	}
	req.Fragmenter, _ = req.Option(fragmenterOption)
	req.Profile, _ = req.Option(profileOption)

	var err error
	for _, field := range []struct {
		header string
		dst    *int
	}{
		{HeaderSegmentID, &req.SegmentID},
		{HeaderSegmentCount, &req.TotalSegments},
		{HeaderSessionID, &req.GPSessionID},
		{HeaderCommandCount, &req.GPCommandCount},
	} {
		if *field.dst, err = intHeader(h, field.header); err != nil {
			return nil, err
		}
	}

	if v, ok := req.Option(fragment.StatsMaxFragmentsOption); ok {
		if req.StatsMaxFragments, err = strconv.Atoi(v); err != nil || req.StatsMaxFragments < 0 {
			return nil, fragment.ConfigErrorf("option %s must be a non-negative integer, got %q", fragment.StatsMaxFragmentsOption, v)
		}
	}

	server, ok := req.Option(fragment.ServerOption)
	if !ok || server == "" {
		server = fragment.DefaultServer
	}
	configuration, ok := servers(server)
	if !ok && server != fragment.DefaultServer {
		return nil, fragment.ConfigErrorf("server configuration %q does not exist", server)
	}
	req.Configuration = configuration

	return req, nil
}

func intHeader(h http.Header, name string) (int, error) {
	v := h.Get(name)
	if v == "" {
		return 0, fragment.ConfigErrorf("missing header %s", name)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fragment.ConfigErrorf("header %s must be an integer, got %q", name, v)
	}
	return n, nil
}
