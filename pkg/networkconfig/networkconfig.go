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

package networkconfig

import (
	"fmt"
	"sort"
	"time"

	"github.com/cloudnetservice/cloudnet/pkg/network/chunk"

	"github.com/mitchellh/mapstructure"
	"github.com/nuclio/errors"
)

type Config struct {
	Network  Network  `json:"network,omitempty"`
	RPC      RPC      `json:"rpc,omitempty"`
	Chunking Chunking `json:"chunking,omitempty"`
	Logger   Logger   `json:"logger,omitempty"`
	Metrics  Metrics  `json:"metrics,omitempty"`
}

func (config *Config) GetQueryTimeout() (time.Duration, error) {
	return parseDuration("network.queryTimeout", config.Network.QueryTimeout)
}

func (config *Config) GetSessionTimeout() (time.Duration, error) {
	return parseDuration("chunking.sessionTimeout", config.Chunking.SessionTimeout)
}

func (config *Config) NormalizePrimitives() bool {
	return config.RPC.NormalizePrimitives == nil || *config.RPC.NormalizePrimitives
}

func (config *Config) MetricsEnabled() bool {
	return config.Metrics.Enabled != nil && *config.Metrics.Enabled
}

// GetChunkSinks resolves the sink bound to every transfer type
func (config *Config) GetChunkSinks() (map[int32]ChunkSink, error) {
	result := map[int32]ChunkSink{}

	for _, sinkBinding := range config.Chunking.Bindings {
		sink, sinkFound := config.Chunking.Sinks[sinkBinding.Sink]
		if !sinkFound {
			return nil, fmt.Errorf("Failed to find chunk sink %s", sinkBinding.Sink)
		}

		if _, bound := result[sinkBinding.TransferType]; bound {
			return nil, fmt.Errorf("Transfer type %d is bound more than once", sinkBinding.TransferType)
		}

		result[sinkBinding.TransferType] = sink
	}

	return result, nil
}

// GetChunkSinkTransferTypes returns the bound transfer types, sorted
func (config *Config) GetChunkSinkTransferTypes() []int32 {
	var transferTypes []int32
	for _, sinkBinding := range config.Chunking.Bindings {
		transferTypes = append(transferTypes, sinkBinding.TransferType)
	}

	sort.Slice(transferTypes, func(i, j int) bool { return transferTypes[i] < transferTypes[j] })
	return transferTypes
}

// GetFileHandlerConfiguration decodes the attributes of a file sink
func (sink *ChunkSink) GetFileHandlerConfiguration() (*chunk.FileHandlerConfiguration, error) {
	if sink.Kind != ChunkSinkKindFile {
		return nil, errors.Errorf("Chunk sink of kind %s has no file configuration", sink.Kind)
	}

	fileHandlerConfiguration := chunk.FileHandlerConfiguration{}
	if err := mapstructure.Decode(sink.Attributes, &fileHandlerConfiguration); err != nil {
		return nil, errors.Wrap(err, "Failed to decode file sink attributes")
	}

	if fileHandlerConfiguration.Directory == "" {
		return nil, errors.New("File sink requires a directory")
	}

	return &fileHandlerConfiguration, nil
}

func parseDuration(name string, value string) (time.Duration, error) {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Wrapf(err, "Failed to parse %s", name)
	}

	return duration, nil
}
