// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

// Package opensearch implements the ingest.SpanSource contract against an
// OpenSearch/Elasticsearch index of Jaeger-format span documents, in the
// idiom of internal/storage/v1/elasticsearch/spanstore.SpanReader: index
// names built from a prefix + daily date suffix, and olivere/elastic/v7
// query/search-source builders. Source holds the *elastic.Client directly.
package opensearch

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/olivere/elastic/v7"
	"go.uber.org/zap"
)

const (
	spanIndexBaseName = "jaeger-span-"
	indexDateLayout   = "2006-01-02"
)

// TLSConfig mirrors the handful of TLS flags every jaeger storage backend
// exposes (internal/config/tlscfg).
type TLSConfig struct {
	Enabled            bool
	CAPath             string
	CertPath           string
	KeyPath            string
	SkipHostVerify     bool
}

// Config is the constructor configuration for Source, bound from CLI flags
// in cmd/jaeger-discovery/app.
type Config struct {
	ServerURLs  []string
	Username    string
	Password    string
	IndexPrefix string
	MaxDocCount int
	TLS         TLSConfig
}

func (c Config) httpClient() (*http.Client, error) {
	if !c.TLS.Enabled {
		return http.DefaultClient, nil
	}

	tlsCfg := &tls.Config{InsecureSkipVerify: c.TLS.SkipHostVerify} //nolint:gosec // operator opt-in only

	if c.TLS.CAPath != "" {
		pool := x509.NewCertPool()
		pem, err := os.ReadFile(c.TLS.CAPath)
		if err != nil {
			return nil, fmt.Errorf("read es.tls.ca: %w", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in es.tls.ca %q", c.TLS.CAPath)
		}
		tlsCfg.RootCAs = pool
	}
	if c.TLS.CertPath != "" || c.TLS.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(c.TLS.CertPath, c.TLS.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("load es.tls.cert/es.tls.key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsCfg},
		Timeout:   30 * time.Second,
	}, nil
}

// NewClient builds the olivere/elastic/v7 client for cfg.
func NewClient(cfg Config, logger *zap.Logger) (*elastic.Client, error) {
	httpClient, err := cfg.httpClient()
	if err != nil {
		return nil, err
	}

	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(cfg.ServerURLs...),
		elastic.SetHttpClient(httpClient),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
		elastic.SetErrorLog(zapErrorLogger{logger}),
	}
	if cfg.Username != "" {
		opts = append(opts, elastic.SetBasicAuth(cfg.Username, cfg.Password))
	}

	return elastic.NewClient(opts...)
}

type zapErrorLogger struct{ logger *zap.Logger }

func (l zapErrorLogger) Printf(format string, args ...any) {
	l.logger.Sugar().Errorf(format, args...)
}
