// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

// Package app holds the command-line flags and the Config they bind to,
// in the AddFlags/InitFromViper split exercised by
// cmd/es-index-cleaner/app/flags_test.go: the Config struct is testable
// with a bare *flag.FlagSet, without constructing a cobra.Command.
package app

import (
	"flag"
	"time"

	"github.com/spf13/viper"

	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/config"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/graphsink/httpsink"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/spansource/opensearch"
)

const (
	flagStateDir            = "state.dir"
	flagPollPeriod          = "poll-period"
	flagSkewWindow          = "skew-window"
	flagStalenessWindow     = "staleness-window"
	flagLookback            = "lookback"
	flagESServerURLs        = "es.server-urls"
	flagESUsername          = "es.username"
	flagESPassword          = "es.password"
	flagESIndexPrefix       = "es.index-prefix"
	flagESMaxDocCount       = "es.max-doc-count"
	flagESTLSEnabled        = "es.tls.enabled"
	flagESTLSCA             = "es.tls.ca"
	flagESTLSCert           = "es.tls.cert"
	flagESTLSKey            = "es.tls.key"
	flagESTLSSkipHostVerify = "es.tls.skip-host-verify"
	flagGraphSinkEndpoint   = "graph-sink.endpoint"
	flagGraphSinkToken      = "graph-sink.token"
	flagGraphSinkTimeout    = "graph-sink.timeout"
	flagLogLevel            = "log-level"
	flagMetricsHTTPPort     = "metrics.http-port"
	flagHealthHTTPPort      = "health.http-port"
)

// Config is the fully-resolved configuration of the jaeger-discovery
// daemon: the pure discovery thresholds of internal/topodiscovery/config
// plus the concrete transport settings.
type Config struct {
	Discovery config.Config

	StateDir string

	ES        opensearch.Config
	GraphSink httpsink.Config
	LogLevel  string

	MetricsHTTPPort int
	HealthHTTPPort  int
}

// AddFlags registers every flag on fs. It never touches viper, so it can
// be exercised directly in tests.
func (c *Config) AddFlags(fs *flag.FlagSet) {
	fs.String(flagStateDir, "/var/jaeger-discovery", "Directory holding the persisted discovery state blob")
	fs.Duration(flagPollPeriod, config.DefaultPollPeriod, "Interval between discovery ticks")
	fs.Duration(flagSkewWindow, config.DefaultSkewWindow, "Maximum age of an unresolved trace fragment before eviction")
	fs.Duration(flagStalenessWindow, config.DefaultStalenessWindow, "Maximum age of a service/operation with no new spans before eviction")
	fs.Duration(flagLookback, config.DefaultLookback, "Initial query window used when no cursor has been persisted yet")

	fs.String(flagESServerURLs, "http://localhost:9200", "Comma-separated OpenSearch/Elasticsearch URLs")
	fs.String(flagESUsername, "", "OpenSearch/Elasticsearch username")
	fs.String(flagESPassword, "", "OpenSearch/Elasticsearch password")
	fs.String(flagESIndexPrefix, "jaeger", "Index prefix for the jaeger-span-* indices")
	fs.Int(flagESMaxDocCount, 1000, "Page size for span queries")
	fs.Bool(flagESTLSEnabled, false, "Enable TLS when connecting to OpenSearch/Elasticsearch")
	fs.String(flagESTLSCA, "", "Path to the CA certificate used to verify the OpenSearch/Elasticsearch server")
	fs.String(flagESTLSCert, "", "Path to the client certificate for mTLS")
	fs.String(flagESTLSKey, "", "Path to the client key for mTLS")
	fs.Bool(flagESTLSSkipHostVerify, false, "Skip TLS host verification (insecure, for development only)")

	fs.String(flagGraphSinkEndpoint, "", "Base URL of the relation-graph service topology endpoint")
	fs.String(flagGraphSinkToken, "", "Bearer token for the relation-graph service")
	fs.Duration(flagGraphSinkTimeout, 30*time.Second, "Timeout for a single relation-graph submission")

	fs.String(flagLogLevel, "info", "Minimum enabled log level (debug, info, warn, error)")
	fs.Int(flagMetricsHTTPPort, 8888, "Port serving /metrics")
	fs.Int(flagHealthHTTPPort, 8889, "Port serving /health")
}

// InitFromViper populates c from v, which must already have had the flags
// registered by AddFlags bound to it (e.g. via
// v.BindPFlags(cmd.Flags())).
func (c *Config) InitFromViper(v *viper.Viper) {
	c.StateDir = v.GetString(flagStateDir)

	c.Discovery = config.Config{
		PollPeriod:      v.GetDuration(flagPollPeriod),
		SkewWindow:      v.GetDuration(flagSkewWindow),
		StalenessWindow: v.GetDuration(flagStalenessWindow),
		Lookback:        v.GetDuration(flagLookback),
	}

	c.ES = opensearch.Config{
		ServerURLs:  splitNonEmpty(v.GetString(flagESServerURLs)),
		Username:    v.GetString(flagESUsername),
		Password:    v.GetString(flagESPassword),
		IndexPrefix: v.GetString(flagESIndexPrefix),
		MaxDocCount: v.GetInt(flagESMaxDocCount),
		TLS: opensearch.TLSConfig{
			Enabled:        v.GetBool(flagESTLSEnabled),
			CAPath:         v.GetString(flagESTLSCA),
			CertPath:       v.GetString(flagESTLSCert),
			KeyPath:        v.GetString(flagESTLSKey),
			SkipHostVerify: v.GetBool(flagESTLSSkipHostVerify),
		},
	}

	c.GraphSink = httpsink.Config{
		Endpoint: v.GetString(flagGraphSinkEndpoint),
		Token:    v.GetString(flagGraphSinkToken),
		Timeout:  v.GetDuration(flagGraphSinkTimeout),
	}

	c.LogLevel = v.GetString(flagLogLevel)
	c.MetricsHTTPPort = v.GetInt(flagMetricsHTTPPort)
	c.HealthHTTPPort = v.GetInt(flagHealthHTTPPort)
}

func splitNonEmpty(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
