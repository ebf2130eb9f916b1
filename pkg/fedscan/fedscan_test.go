package fedscan

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/go-kit/log"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/fedscan/fedscan/pkg/api"
	"github.com/fedscan/fedscan/pkg/enumerator/bucket"
	"github.com/fedscan/fedscan/pkg/util/flagext"
)

func defaultConfig() Config {
	cfg := Config{}
	flagext.DefaultValues(&cfg)
	return cfg
}

func TestConfig_Defaults(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, 5888, cfg.Server.HTTPListenPort)
	assert.Equal(t, "info", cfg.Server.LogLevel.String())
	assert.Equal(t, "fedscan", cfg.Server.MetricsNamespace)
	assert.Equal(t, 10000, cfg.Enumerators.JDBC.MaxPartitions)
	assert.Equal(t, 10*time.Second, cfg.Fragmenter.Cache.Expiration)
	assert.Equal(t, 5*time.Second, cfg.Fragmenter.Cache.CleanupInterval)
	assert.Equal(t, 5, cfg.Fragmenter.GSSRetry.MaxRetries)
	assert.Equal(t, int64(128<<20), cfg.Enumerators.File.BlockSize)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_YAML(t *testing.T) {
	cfg := defaultConfig()
	input := `
server:
  log_level: debug
  http_listen_port: 6000
fragmenter:
  cache:
    expiration: 30s
  gss_retry:
    max_retries: 2
enumerators:
  bucket:
    backend: inmemory
servers:
  default:
    fs.defaultFS: hdfs://namenode:8020
  secure:
    hadoop.security.authentication: kerberos
    pxf.sasl.connection.retries: "3"
`
	require.NoError(t, yaml.UnmarshalStrict([]byte(input), &cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.Server.LogLevel.String())
	assert.Equal(t, 6000, cfg.Server.HTTPListenPort)
	assert.Equal(t, 30*time.Second, cfg.Fragmenter.Cache.Expiration)
	assert.Equal(t, 5*time.Second, cfg.Fragmenter.Cache.CleanupInterval, "unset keys keep their flag defaults")
	assert.Equal(t, 2, cfg.Fragmenter.GSSRetry.MaxRetries)
	assert.Equal(t, bucket.InMemory, cfg.Enumerators.Bucket.Backend)
	assert.Equal(t, "kerberos", cfg.Servers["secure"]["hadoop.security.authentication"])

	assert.Error(t, yaml.UnmarshalStrict([]byte("fragmenter:\n  unknown: 1\n"), &cfg))
}

func TestConfig_ValidateReportsEveryError(t *testing.T) {
	cfg := defaultConfig()
	cfg.Enumerators.JDBC.MaxPartitions = 0
	cfg.Fragmenter.Cache.Expiration = 0
	cfg.Enumerators.Bucket.Backend = "gcs"
	cfg.Servers = map[string]map[string]string{"secure": {"pxf.sasl.connection.retries": "many"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4 errors occurred")
	assert.Contains(t, err.Error(), "invalid jdbc enumerator config")
	assert.Contains(t, err.Error(), "invalid fragmenter config")
	assert.Contains(t, err.Error(), "invalid bucket enumerator config")
	assert.Contains(t, err.Error(), "server secure")
}

func TestFedscan_Run(t *testing.T) {
	tracer := mocktracer.New()
	previous := opentracing.GlobalTracer()
	opentracing.SetGlobalTracer(tracer)
	t.Cleanup(func() { opentracing.SetGlobalTracer(previous) })

	cfg := defaultConfig()
	cfg.Server.HTTPListenAddress = "127.0.0.1"
	cfg.Server.HTTPListenPort = 0
	cfg.Server.GRPCListenAddress = "127.0.0.1"
	cfg.Server.GRPCListenPort = 0
	cfg.Server.ServerGracefulShutdownTimeout = 5 * time.Second

	reg := prometheus.NewRegistry()
	f, err := New(cfg, log.NewNopLogger(), reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"demo", "file", "jdbc"}, f.Registry().Names())

	runErr := make(chan error, 1)
	go func() { runErr <- f.Run() }()

	base := "http://" + f.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/ready")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	for segment := 0; segment < 3; segment++ {
		req, err := http.NewRequest(http.MethodGet, base+"/fedscan/v1/fragments", nil)
		require.NoError(t, err)
		req.Header.Set(api.HeaderXID, "XID-1")
		req.Header.Set(api.HeaderSchemaName, "public")
		req.Header.Set(api.HeaderTableName, "demo")
		req.Header.Set(api.HeaderDataDir, "tmp/dummy")
		req.Header.Set(api.HeaderSegmentID, strconv.Itoa(segment))
		req.Header.Set(api.HeaderSegmentCount, "3")
		req.Header.Set(api.HeaderSessionID, "0")
		req.Header.Set(api.HeaderCommandCount, "0")
		req.Header.Set("X-GP-OPTIONS-FRAGMENTER", "demo")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())

		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		expected := fmt.Sprintf(`{"fragments":[{"sourceName":"tmp/dummy","index":%d,"metadata":{"path":"tmp/dummy.%d"}}]}`, segment, segment+1)
		assert.JSONEq(t, expected, string(body))
	}

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Contains(t, string(body), `fedscan_fragment_cache_computations_total{cache="fragments"} 1`)
	assert.Contains(t, string(body), "fedscan_request_duration_seconds", "requests go through the server's instrumentation")

	// Every fragment request is traced under the span opened by the HTTP middleware.
	require.Eventually(t, func() bool {
		spans := map[int]*mocktracer.MockSpan{}
		for _, s := range tracer.FinishedSpans() {
			spans[s.SpanContext.SpanID] = s
		}
		traced := 0
		for _, s := range spans {
			if s.OperationName != "Fragmenter.GetFragmentsForSegment" {
				continue
			}
			if _, ok := spans[s.ParentID]; ok && s.ParentID != 0 {
				traced++
			}
		}
		return traced == 3
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, f.Stop())
	require.NoError(t, <-runErr)
}
