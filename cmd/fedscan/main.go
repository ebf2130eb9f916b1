package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/common/version"
	"github.com/weaveworks/common/tracing"
	"gopkg.in/yaml.v2"

	"github.com/fedscan/fedscan/pkg/fedscan"
	"github.com/fedscan/fedscan/pkg/util/flagext"
	util_log "github.com/fedscan/fedscan/pkg/util/log"
)

const configFileOption = "config.file"

var testMode = false

func main() {
	var cfg fedscan.Config

	configFile := parseConfigFileParameter(os.Args[1:])

	// This sets default values from flags to the config.
	// It needs to be called before parsing the config file!
	flagext.RegisterFlags(&cfg)

	if configFile != "" {
		if err := LoadConfig(configFile, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "error loading config from %s: %v\n", configFile, err)
			if testMode {
				return
			}
			os.Exit(1)
		}
	}

	// Ignore -config.file here, since it was already parsed, but it's still present on command line.
	flagext.IgnoredFlag(flag.CommandLine, configFileOption, "Configuration file to load.")

	if testMode {
		// Don't exit on error in test mode. Just parse parameters, dump config and stop.
		flag.CommandLine.Init(flag.CommandLine.Name(), flag.ContinueOnError)
		flag.Parse()
		DumpYaml(&cfg)
		return
	}

	flag.Parse()

	// Validate the config once both the config file has been loaded
	// and CLI flags parsed.
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error validating config: %v\n", err)
		os.Exit(1)
	}

	util_log.CheckFatal("initializing logger", util_log.InitLogger(&cfg.Server))

	// Setting the environment variable JAEGER_AGENT_HOST enables tracing.
	if trace, err := tracing.NewFromEnv("fedscan"); err != nil {
		level.Error(util_log.Logger).Log("msg", "Failed to setup tracing", "err", err.Error())
	} else {
		defer trace.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		versioncollector.NewCollector("fedscan"),
	)

	t, err := fedscan.New(cfg, util_log.Logger, reg)
	util_log.CheckFatal("initializing fedscan", err)

	level.Info(util_log.Logger).Log("msg", "Starting fedscan", "version", version.Info())

	// Run returns once SIGINT or SIGTERM is received.
	if err := t.Run(); err != nil {
		level.Error(util_log.Logger).Log("msg", "error running fedscan", "err", err)
	}

	err = t.Stop()
	util_log.CheckFatal("stopping fedscan", err)
}

// Parse -config.file option via separate flag set, to avoid polluting default one and calling flag.Parse on it twice.
func parseConfigFileParameter(args []string) string {
	var configFile = ""
	// ignore errors and any output here. Any flag errors will be reported by main flag.Parse() call.
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&configFile, configFileOption, "", "") // usage not used in this function.

	// Try to find -config.file option in the flags. As Parsing stops on the first error, eg. unknown flag, we simply
	// try remaining parameters until we find config flag, or there are no params left.
	for len(args) > 0 {
		_ = fs.Parse(args)
		if configFile != "" {
			break
		}
		args = args[1:]
	}

	return configFile
}

// LoadConfig read YAML-formatted config from filename into cfg.
func LoadConfig(filename string, cfg *fedscan.Config) error {
	buf, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrap(err, "Error reading config file")
	}

	err = yaml.UnmarshalStrict(buf, cfg)
	if err != nil {
		return errors.Wrap(err, "Error parsing config file")
	}

	return nil
}

func DumpYaml(cfg *fedscan.Config) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	} else {
		fmt.Printf("%s\n", out)
	}
}
