// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/errs"
)

// Validate checks the fully-resolved Config for the fatal-at-startup
// conditions of spec.md §7 (ConfigError). It does not touch the network or
// filesystem; those failures surface later as StateIOError/TransportError.
func (c *Config) Validate() error {
	if err := c.Discovery.Validate(); err != nil {
		return &errs.ConfigError{What: err.Error()}
	}
	if c.StateDir == "" {
		return &errs.ConfigError{What: "state.dir must not be empty"}
	}
	if len(c.ES.ServerURLs) == 0 {
		return &errs.ConfigError{What: "es.server-urls must not be empty"}
	}
	if c.GraphSink.Endpoint == "" {
		return &errs.ConfigError{What: "graph-sink.endpoint must not be empty"}
	}
	if c.ES.TLS.Enabled && c.ES.TLS.CertPath != "" && c.ES.TLS.KeyPath == "" {
		return &errs.ConfigError{What: "es.tls.key must be set when es.tls.cert is set"}
	}
	return nil
}
