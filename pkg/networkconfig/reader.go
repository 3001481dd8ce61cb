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
	"io"
	"os"
	"reflect"

	"github.com/cloudnetservice/cloudnet/pkg/network/chunk"
	"github.com/cloudnetservice/cloudnet/pkg/network/packet"

	"github.com/imdario/mergo"
	"github.com/nuclio/errors"
	"sigs.k8s.io/yaml"
)

type Reader struct{}

func NewReader() (*Reader, error) {
	return &Reader{}, nil
}

// Read parses a yaml configuration into config. Fields left empty are filled from the
// default configuration
func (r *Reader) Read(reader io.Reader, config *Config) error {
	configBytes, err := io.ReadAll(reader)
	if err != nil {
		return errors.Wrap(err, "Failed to read network configuration")
	}

	if err := yaml.Unmarshal(configBytes, config); err != nil {
		return errors.Wrap(err, "Failed to unmarshal network configuration")
	}

	if err := mergo.Merge(config,
		r.GetDefaultConfiguration(),
		mergo.WithTransformers(explicitSwitchTransformer{})); err != nil {
		return errors.Wrap(err, "Failed to merge default configuration")
	}

	return nil
}

// explicitSwitchTransformer keeps switches that were set in the configuration, including an
// explicit false, which mergo would otherwise consider empty
type explicitSwitchTransformer struct{}

func (est explicitSwitchTransformer) Transformer(typ reflect.Type) func(dst, src reflect.Value) error {
	if typ != reflect.TypeOf((*bool)(nil)) {
		return nil
	}

	// only called for a non-nil destination
	return func(dst, src reflect.Value) error {
		return nil
	}
}

func (r *Reader) ReadFileOrDefault(configurationPath string) (*Config, error) {
	var networkConfiguration Config

	// without a configuration file everything is default
	configurationFile, err := os.Open(configurationPath)
	if err != nil {
		return r.GetDefaultConfiguration(), nil
	}

	defer configurationFile.Close() // nolint: errcheck

	if err := r.Read(configurationFile, &networkConfiguration); err != nil {
		return nil, errors.Wrap(err, "Failed to read configuration file")
	}

	return &networkConfiguration, nil
}

func (r *Reader) GetDefaultConfiguration() *Config {
	trueValue := true
	falseValue := false
	defaultSinkName := "memory"

	return &Config{
		Network: Network{
			ListenAddress:  "127.0.0.1:1410",
			MaxFrameLength: packet.DefaultMaxFrameLength,
			QueryTimeout:   "30s",
		},
		RPC: RPC{
			NormalizePrimitives: &trueValue,
		},
		Chunking: Chunking{
			ChunkSize:      chunk.DefaultChunkSize,
			SessionTimeout: "5m",
			Sinks: map[string]ChunkSink{
				defaultSinkName: {Kind: ChunkSinkKindMemory},
			},
		},
		Logger: Logger{
			Level: "info",
		},
		Metrics: Metrics{
			Enabled:       &falseValue,
			ListenAddress: ":8090",
		},
	}
}
