/*
Copyright 2024 The CloudNet Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package rpc

import (
	"time"

	"github.com/nuclio/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records RPC traffic. A nil *Metrics records nothing
type Metrics struct {
	callsSent          *prometheus.CounterVec
	invocationsHandled *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
}

func NewMetrics(metricRegistry *prometheus.Registry) (*Metrics, error) {
	newMetrics := &Metrics{
		callsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudnet_rpc_calls_sent_total",
			Help: "Number of RPC packets sent, by whether a result was awaited",
		}, []string{"mode"}),
		invocationsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudnet_rpc_invocations_total",
			Help: "Number of inbound invocations, by class and response status",
		}, []string{"class", "status"}),
		invocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cloudnet_rpc_invocation_duration_seconds",
			Help:    "Time spent invoking target methods",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"class"}),
	}

	for name, collector := range map[string]prometheus.Collector{
		"callsSent":          newMetrics.callsSent,
		"invocationsHandled": newMetrics.invocationsHandled,
		"invocationDuration": newMetrics.invocationDuration,
	} {
		if err := metricRegistry.Register(collector); err != nil {
			return nil, errors.Wrapf(err, "Failed to register %s", name)
		}
	}

	return newMetrics, nil
}

func (m *Metrics) callSent(expectsResult bool) {
	if m == nil {
		return
	}

	mode := "fire_and_forget"
	if expectsResult {
		mode = "query"
	}

	m.callsSent.WithLabelValues(mode).Inc()
}

func (m *Metrics) invocationHandled(className string, status ResponseStatus, duration time.Duration) {
	if m == nil {
		return
	}

	m.invocationsHandled.WithLabelValues(className, status.String()).Inc()
	m.invocationDuration.WithLabelValues(className).Observe(duration.Seconds())
}
