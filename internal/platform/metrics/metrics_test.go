// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue gathers reg and returns the value of name with the given label pair.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if label == "" {
				return metric.GetCounter().GetValue()
			}
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}

	t.Fatalf("metric %s{%s=%q} not found", name, label, value)
	return 0
}

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSignup()
	c.RecordSignup()
	c.RecordLogin("success")
	c.RecordLogin("failure")
	c.RecordLogin("failure")
	c.RecordTokenFailure("expired")
	c.RecordResetEvent("requested")

	assert.Equal(t, 2.0, counterValue(t, reg, "ecgscan_auth_signups_total", "", ""))
	assert.Equal(t, 1.0, counterValue(t, reg, "ecgscan_auth_logins_total", "result", "success"))
	assert.Equal(t, 2.0, counterValue(t, reg, "ecgscan_auth_logins_total", "result", "failure"))
	assert.Equal(t, 1.0, counterValue(t, reg, "ecgscan_auth_token_failures_total", "kind", "expired"))
	assert.Equal(t, 1.0, counterValue(t, reg, "ecgscan_auth_reset_events_total", "event", "requested"))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSignup()

	server := httptest.NewServer(Handler(reg))
	defer server.Close()

	response, err := http.Get(server.URL)
	require.NoError(t, err)
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, string(body), "ecgscan_auth_signups_total 1")
}
