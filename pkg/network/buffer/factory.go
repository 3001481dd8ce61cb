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

package buffer

import (
	"github.com/valyala/bytebufferpool"
)

// Factory creates pooled buffers bound to one object mapper
type Factory struct {
	pool   *bytebufferpool.Pool
	mapper ObjectMapper
}

// NewFactory returns a factory whose buffers read and write objects through mapper. A nil
// mapper is allowed; ReadObject and WriteObject then fail with ErrNoObjectMapper
func NewFactory(mapper ObjectMapper) *Factory {
	return &Factory{
		pool:   &bytebufferpool.Pool{},
		mapper: mapper,
	}
}

// ObjectMapper returns the mapper bound to buffers of this factory
func (f *Factory) ObjectMapper() ObjectMapper {
	return f.mapper
}

// CreateEmpty returns an empty mutable buffer
func (f *Factory) CreateEmpty() Mutable {
	return newPooledDataBuf(f.pool, f.mapper, 0)
}

// CreateWithExpectedSize returns an empty mutable buffer with room for expectedSize bytes
func (f *Factory) CreateWithExpectedSize(expectedSize int) Mutable {
	return newPooledDataBuf(f.pool, f.mapper, expectedSize)
}

// CreateFromBytes returns a buffer holding a copy of bytes, ready to be read
func (f *Factory) CreateFromBytes(bytes []byte) DataBuf {
	dataBuf := newPooledDataBuf(f.pool, f.mapper, len(bytes))
	dataBuf.storage.B = append(dataBuf.storage.B, bytes...)

	return dataBuf.AsImmutable()
}

// CopyOf returns an independent buffer holding the readable bytes of source
func (f *Factory) CopyOf(source DataBuf) DataBuf {
	return f.CreateFromBytes(source.ToByteArray())
}
