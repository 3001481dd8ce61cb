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

type ChunkSinkKind string

const (
	ChunkSinkKindMemory ChunkSinkKind = "memory"
	ChunkSinkKindFile   ChunkSinkKind = "file"
)

// ChunkSink describes where the payload of a chunked transfer goes. Attributes are decoded
// according to Kind
type ChunkSink struct {
	Kind       ChunkSinkKind          `json:"kind,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// ChunkSinkBinding routes one transfer type to a named sink
type ChunkSinkBinding struct {
	TransferType int32  `json:"transferType"`
	Sink         string `json:"sink,omitempty"`
}

type Chunking struct {
	ChunkSize      int32                `json:"chunkSize,omitempty"`
	SessionTimeout string               `json:"sessionTimeout,omitempty"`
	Sinks          map[string]ChunkSink `json:"sinks,omitempty"`
	Bindings       []ChunkSinkBinding   `json:"bindings,omitempty"`
}

type Network struct {
	ListenAddress  string `json:"listenAddress,omitempty"`
	MaxFrameLength int    `json:"maxFrameLength,omitempty"`
	QueryTimeout   string `json:"queryTimeout,omitempty"`
}

type RPC struct {
	NormalizePrimitives *bool `json:"normalizePrimitives,omitempty"`
}

type Logger struct {
	Level string `json:"level,omitempty"`
}

type Metrics struct {
	Enabled       *bool  `json:"enabled,omitempty"`
	ListenAddress string `json:"listenAddress,omitempty"`
}
