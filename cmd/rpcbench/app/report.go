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

package app

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/samber/lo"
)

type callReport struct {
	Mode           string  `json:"mode"`
	Calls          int     `json:"calls"`
	Failures       int     `json:"failures"`
	Handled        int64   `json:"handled"`
	Concurrency    int     `json:"concurrency"`
	ChainDepth     int     `json:"chainDepth"`
	Duration       string  `json:"duration"`
	CallsPerSecond float64 `json:"callsPerSecond"`
	LatencyMean    string  `json:"latencyMean"`
	LatencyP50     string  `json:"latencyP50"`
	LatencyP99     string  `json:"latencyP99"`
}

func newCallReport(options *callOptions, elapsed time.Duration, latencies []time.Duration, failures int) *callReport {
	mode := "echo"
	if options.chainDepth > 0 {
		mode = "chain"
	}

	report := &callReport{
		Mode:        mode,
		Calls:       options.calls,
		Failures:    failures,
		Concurrency: options.concurrency,
		ChainDepth:  options.chainDepth,
		Duration:    elapsed.String(),
	}

	if elapsed > 0 {
		report.CallsPerSecond = float64(options.calls) / elapsed.Seconds()
	}

	if len(latencies) > 0 {
		report.LatencyMean = (lo.Sum(latencies) / time.Duration(len(latencies))).String()
		report.LatencyP50 = percentile(latencies, 0.5).String()
		report.LatencyP99 = percentile(latencies, 0.99).String()
	}

	return report
}

func (cr *callReport) TableHeader() []interface{} {
	return []interface{}{"Mode", "Calls", "Failures", "Handled", "Duration", "Calls/s", "Mean", "P50", "P99"}
}

func (cr *callReport) TableRows() [][]interface{} {
	return [][]interface{}{{
		cr.Mode,
		cr.Calls,
		cr.Failures,
		cr.Handled,
		cr.Duration,
		fmt.Sprintf("%.1f", cr.CallsPerSecond),
		cr.LatencyMean,
		cr.LatencyP50,
		cr.LatencyP99,
	}}
}

type transferReport struct {
	SessionID    string `json:"sessionID"`
	TransferType int32  `json:"transferType"`
	Sink         string `json:"sink"`
	Bytes        int    `json:"bytes"`
	Chunks       int32  `json:"chunks"`
	Duration     string `json:"duration"`
	Location     string `json:"location,omitempty"`
	Verified     bool   `json:"verified"`
}

func (tr *transferReport) TableHeader() []interface{} {
	return []interface{}{"Session", "Type", "Sink", "Bytes", "Chunks", "Duration", "Location", "Verified"}
}

func (tr *transferReport) TableRows() [][]interface{} {
	return [][]interface{}{{
		tr.SessionID,
		tr.TransferType,
		tr.Sink,
		tr.Bytes,
		tr.Chunks,
		tr.Duration,
		tr.Location,
		tr.Verified,
	}}
}

// percentile uses the nearest-rank method on a sorted copy of durations
func percentile(durations []time.Duration, rank float64) time.Duration {
	sorted := append([]time.Duration(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := int(math.Ceil(rank*float64(len(sorted)))) - 1
	if index < 0 {
		index = 0
	}

	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
