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

package chunk

import (
	"github.com/nuclio/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts chunk traffic. A nil *Metrics records nothing
type Metrics struct {
	chunksSent        prometheus.Counter
	chunksReceived    prometheus.Counter
	bytesReceived     prometheus.Counter
	sessionsCompleted prometheus.Counter
	sessionsFailed    *prometheus.CounterVec
}

func NewMetrics(metricRegistry *prometheus.Registry) (*Metrics, error) {
	newMetrics := &Metrics{
		chunksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cloudnet_chunk_sent_total",
			Help: "Number of chunks sent",
		}),
		chunksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cloudnet_chunk_received_total",
			Help: "Number of chunks received",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cloudnet_chunk_received_bytes_total",
			Help: "Payload bytes received through chunked transfers",
		}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cloudnet_chunk_sessions_completed_total",
			Help: "Number of chunk sessions completed",
		}),
		sessionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudnet_chunk_sessions_failed_total",
			Help: "Number of chunk sessions that failed, by reason",
		}, []string{"reason"}),
	}

	for name, collector := range map[string]prometheus.Collector{
		"chunksSent":        newMetrics.chunksSent,
		"chunksReceived":    newMetrics.chunksReceived,
		"bytesReceived":     newMetrics.bytesReceived,
		"sessionsCompleted": newMetrics.sessionsCompleted,
		"sessionsFailed":    newMetrics.sessionsFailed,
	} {
		if err := metricRegistry.Register(collector); err != nil {
			return nil, errors.Wrapf(err, "Failed to register %s", name)
		}
	}

	return newMetrics, nil
}

func (m *Metrics) chunkSent() {
	if m != nil {
		m.chunksSent.Inc()
	}
}

func (m *Metrics) chunkReceived(payloadLength int) {
	if m != nil {
		m.chunksReceived.Inc()
		m.bytesReceived.Add(float64(payloadLength))
	}
}

func (m *Metrics) sessionCompleted() {
	if m != nil {
		m.sessionsCompleted.Inc()
	}
}

func (m *Metrics) sessionFailed(reason string) {
	if m != nil {
		m.sessionsFailed.WithLabelValues(reason).Inc()
	}
}
