// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

// Package httpsink implements the render.GraphSink contract as an HTTP
// POST of the rendered topology to a relation-graph service, using
// github.com/go-resty/resty/v2 the way the OpenSearch-backed Jaeger query
// bridge (jaeger_service.go, retrieved alongside the teacher) drives its
// HTTP calls with a resty.Client.
package httpsink

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/render"
)

// Config is the constructor configuration for Sink.
type Config struct {
	Endpoint   string
	Token      string
	Timeout    time.Duration
	RetryCount int
}

// Sink posts a render.Topology to Config.Endpoint. Re-submission of the
// same Topology is safe: the endpoint is expected to treat each POST as
// authoritative for the current generation (spec.md §6), so Sink performs
// no diffing or dedup of its own.
type Sink struct {
	client   *resty.Client
	endpoint string
}

func New(cfg Config, logger *zap.Logger) *Sink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.RetryCount
	if retries <= 0 {
		retries = 3
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second)
	if cfg.Token != "" {
		client = client.SetAuthToken(cfg.Token)
	}
	client.OnError(func(req *resty.Request, err error) {
		logger.Warn("graph sink request failed", zap.String("url", req.URL), zap.Error(err))
	})

	return &Sink{client: client, endpoint: cfg.Endpoint}
}

var _ render.GraphSink = (*Sink)(nil)

// Submit implements render.GraphSink.
func (s *Sink) Submit(ctx context.Context, t render.Topology) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(t).
		Post(s.endpoint)
	if err != nil {
		return fmt.Errorf("post topology: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("graph sink responded %s: %s", resp.Status(), resp.String())
	}
	return nil
}
