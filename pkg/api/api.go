package api

import (
	"flag"
	"net/http"

	"github.com/go-kit/log"
	"github.com/gorilla/mux"
)

// Config for the HTTP API.
type Config struct {
	PathPrefix string `yaml:"path_prefix"`
}

// RegisterFlags adds the flags required to config this to the given FlagSet.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.PathPrefix, "http.path-prefix", "/fedscan", "Base path of the fragment API.")
}

// API registers the fragment service's HTTP routes on a router.
type API struct {
	cfg    Config
	router *mux.Router
	logger log.Logger
}

// New makes a new API serving routes on router, usually the HTTP router of
// the weaveworks server.
func New(cfg Config, router *mux.Router, logger log.Logger) *API {
	return &API{
		cfg:    cfg,
		router: router,
		logger: logger,
	}
}

func (a *API) registerRoute(path string, handler http.Handler, methods ...string) {
	if len(methods) == 0 {
		a.router.Path(path).Handler(handler)
		return
	}
	a.router.Path(path).Methods(methods...).Handler(handler)
}

// RegisterFragmenter exposes the fragment endpoint queried by every segment.
func (a *API) RegisterFragmenter(f Fragmenter, servers ServerConfigs) {
	a.registerRoute(a.cfg.PathPrefix+"/v1/fragments", NewFragmentsHandler(f, servers, a.logger), http.MethodGet)
}

// RegisterReadiness exposes /ready, reporting 200 once ready returns true.
func (a *API) RegisterReadiness(ready func() bool) {
	a.registerRoute("/ready", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if !ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ready"))
	}), http.MethodGet)
}
