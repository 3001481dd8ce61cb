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
	"reflect"

	"github.com/google/uuid"
)

// ObjectMapper is the part of the object mapper a buffer needs in order to read and write
// arbitrary values. The full registry lives in the rpc/object package
type ObjectMapper interface {

	// WriteObject writes value (or a null marker) into target
	WriteObject(target Mutable, value interface{}) error

	// ReadObject reads a value of the given static type from source
	ReadObject(source DataBuf, typ reflect.Type) (interface{}, error)
}

// DataBuf is a read view over written bytes. Every read advances the read cursor and
// fails with an underflow error when not enough bytes were written
type DataBuf interface {
	ReadBool() (bool, error)
	ReadByte() (byte, error)
	ReadShort() (int16, error)
	ReadInt() (int32, error)
	ReadLong() (int64, error)
	ReadFloat() (float32, error)
	ReadDouble() (float64, error)
	ReadChar() (rune, error)
	ReadByteArray() ([]byte, error)
	ReadUniqueID() (uuid.UUID, error)
	ReadString() (string, error)

	// ReadDataBuf reads a length-prefixed nested buffer with its own read cursor
	ReadDataBuf() (DataBuf, error)

	// ReadObject delegates to the object mapper bound to this buffer
	ReadObject(typ reflect.Type) (interface{}, error)

	// ToByteArray returns a copy of the readable bytes without moving the read cursor
	ToByteArray() []byte

	// ReadableBytes returns the number of bytes left to read
	ReadableBytes() int

	// StartTransaction snapshots the read cursor
	StartTransaction() DataBuf

	// RedoTransaction rewinds the read cursor to the last snapshot
	RedoTransaction() DataBuf

	// AsMutable returns a writable view sharing the same storage
	AsMutable() Mutable

	// Accessible returns false once the backing memory was returned to the pool
	Accessible() bool

	// DisableReleasing makes Release a no-op until EnableReleasing is called. Used when a
	// buffer must outlive the call that produced it
	DisableReleasing() DataBuf

	// EnableReleasing reverts DisableReleasing
	EnableReleasing() DataBuf

	// Release returns the backing memory to the pool. Releasing twice is a no-op
	Release()

	// ForceRelease releases even if releasing was disabled
	ForceRelease()

	// Close is Release, for use with defer and io.Closer consumers
	Close() error
}

// Mutable is a DataBuf that can be appended to. Writes return the buffer for chaining
type Mutable interface {
	DataBuf

	WriteBool(value bool) Mutable
	WriteSingleByte(value byte) Mutable
	WriteShort(value int16) Mutable
	WriteInt(value int32) Mutable
	WriteLong(value int64) Mutable
	WriteFloat(value float32) Mutable
	WriteDouble(value float64) Mutable
	WriteChar(value rune) Mutable
	WriteByteArray(value []byte) Mutable
	WriteUniqueID(value uuid.UUID) Mutable
	WriteString(value string) Mutable

	// WriteDataBuf writes the readable bytes of value, length-prefixed
	WriteDataBuf(value DataBuf) Mutable

	// WriteObject delegates to the object mapper bound to this buffer
	WriteObject(value interface{}) error

	// AsImmutable returns a read-only view sharing the same storage
	AsImmutable() DataBuf
}
