// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package healthcheck

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ReflectsCurrentState(t *testing.T) {
	hc := New()
	server := httptest.NewServer(hc.Handler())
	defer server.Close()

	hc.Set(Ready)

	resp, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	hr := parseHealthCheckResponse(t, resp)
	assert.Equal(t, "Server available", hr.StatusMsg)
	if want, have := hc.getState().upSince, hr.UpSince; !assert.True(t, want.Equal(have)) {
		t.Logf("want=%v have=%v", want, have)
	}
	assert.NotEmpty(t, hr.Uptime)

	time.Sleep(time.Millisecond)
	hc.Set(Unavailable)

	resp, err = http.Get(server.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	hrNew := parseHealthCheckResponse(t, resp)
	assert.Empty(t, hrNew.Uptime)
	assert.Zero(t, hrNew.UpSince)
}

func TestSet_RepeatedReadyPreservesOriginalUpSince(t *testing.T) {
	hc := New()
	hc.Set(Ready)
	first := hc.getState().upSince

	time.Sleep(time.Millisecond)
	hc.Set(Ready)

	assert.True(t, first.Equal(hc.getState().upSince), "re-setting Ready while already Ready must not reset upSince")
}

func TestSet_BrokenClearsUpSince(t *testing.T) {
	hc := New()
	hc.Set(Ready)
	hc.Set(Broken)

	assert.Zero(t, hc.getState().upSince)
	assert.Equal(t, Broken, hc.getState().state)
}

func TestString(t *testing.T) {
	assert.Equal(t, "Server available", Ready.String())
	assert.Equal(t, "Server broken", Broken.String())
	assert.Equal(t, "Server not available", Unavailable.String())
}

func parseHealthCheckResponse(t *testing.T, resp *http.Response) healthCheckResponse {
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var hr healthCheckResponse
	require.NoError(t, json.Unmarshal(body, &hr))
	return hr
}
