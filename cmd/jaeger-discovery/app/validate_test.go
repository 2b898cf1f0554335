// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/config"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/graphsink/httpsink"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/spansource/opensearch"
)

func validConfig() Config {
	return Config{
		Discovery: config.Default(),
		StateDir:  "/var/jaeger-discovery",
		ES:        opensearch.Config{ServerURLs: []string{"http://localhost:9200"}},
		GraphSink: httpsink.Config{Endpoint: "http://relation-graph/topology"},
	}
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	c := validConfig()
	assert.NoError(t, c.Validate())
}

func TestValidate_RejectsInvalidDiscoveryThresholds(t *testing.T) {
	c := validConfig()
	c.Discovery.PollPeriod = 0
	assert.Error(t, c.Validate())
}

func TestValidate_RejectsEmptyStateDir(t *testing.T) {
	c := validConfig()
	c.StateDir = ""
	assert.Error(t, c.Validate())
}

func TestValidate_RejectsNoESServerURLs(t *testing.T) {
	c := validConfig()
	c.ES.ServerURLs = nil
	assert.Error(t, c.Validate())
}

func TestValidate_RejectsEmptyGraphSinkEndpoint(t *testing.T) {
	c := validConfig()
	c.GraphSink.Endpoint = ""
	assert.Error(t, c.Validate())
}

func TestValidate_RejectsCertWithoutKey(t *testing.T) {
	c := validConfig()
	c.ES.TLS.Enabled = true
	c.ES.TLS.CertPath = "/cert.pem"
	assert.Error(t, c.Validate())
}

func TestValidate_AcceptsTLSWithoutClientCert(t *testing.T) {
	c := validConfig()
	c.ES.TLS.Enabled = true
	c.ES.TLS.CAPath = "/ca.pem"
	assert.NoError(t, c.Validate())
}
