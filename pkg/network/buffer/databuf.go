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
	"encoding/binary"
	"math"
	"reflect"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/valyala/bytebufferpool"
)

var byteOrder = binary.BigEndian

// pooledDataBuf is the one implementation behind both views. Writes append to the pooled
// byte buffer, reads move readIndex forward
type pooledDataBuf struct {
	pool      *bytebufferpool.Pool
	storage   *bytebufferpool.ByteBuffer
	mapper    ObjectMapper
	readIndex int
	markIndex int

	released          atomic.Bool
	releasingDisabled atomic.Bool
}

func newPooledDataBuf(pool *bytebufferpool.Pool, mapper ObjectMapper, expectedSize int) *pooledDataBuf {
	storage := pool.Get()
	if expectedSize > 0 && cap(storage.B) < expectedSize {
		storage.B = make([]byte, 0, expectedSize)
	}

	return &pooledDataBuf{
		pool:    pool,
		storage: storage,
		mapper:  mapper,
	}
}

func (b *pooledDataBuf) ReadBool() (bool, error) {
	value, err := b.ReadByte()
	if err != nil {
		return false, err
	}

	return value != 0, nil
}

func (b *pooledDataBuf) ReadByte() (byte, error) {
	bytes, err := b.take(1)
	if err != nil {
		return 0, err
	}

	return bytes[0], nil
}

func (b *pooledDataBuf) ReadShort() (int16, error) {
	bytes, err := b.take(2)
	if err != nil {
		return 0, err
	}

	return int16(byteOrder.Uint16(bytes)), nil
}

func (b *pooledDataBuf) ReadInt() (int32, error) {
	bytes, err := b.take(4)
	if err != nil {
		return 0, err
	}

	return int32(byteOrder.Uint32(bytes)), nil
}

func (b *pooledDataBuf) ReadLong() (int64, error) {
	bytes, err := b.take(8)
	if err != nil {
		return 0, err
	}

	return int64(byteOrder.Uint64(bytes)), nil
}

func (b *pooledDataBuf) ReadFloat() (float32, error) {
	bytes, err := b.take(4)
	if err != nil {
		return 0, err
	}

	return math.Float32frombits(byteOrder.Uint32(bytes)), nil
}

func (b *pooledDataBuf) ReadDouble() (float64, error) {
	bytes, err := b.take(8)
	if err != nil {
		return 0, err
	}

	return math.Float64frombits(byteOrder.Uint64(bytes)), nil
}

func (b *pooledDataBuf) ReadChar() (rune, error) {
	value, err := b.ReadInt()
	if err != nil {
		return 0, err
	}

	return rune(value), nil
}

func (b *pooledDataBuf) ReadByteArray() ([]byte, error) {
	bytes, err := b.readLengthPrefixed()
	if err != nil {
		return nil, err
	}

	// the backing storage goes back to the pool on release, so hand out a copy
	return append(make([]byte, 0, len(bytes)), bytes...), nil
}

func (b *pooledDataBuf) ReadUniqueID() (uuid.UUID, error) {
	bytes, err := b.take(16)
	if err != nil {
		return uuid.Nil, err
	}

	var uniqueID uuid.UUID
	copy(uniqueID[:], bytes)

	return uniqueID, nil
}

func (b *pooledDataBuf) ReadString() (string, error) {
	bytes, err := b.readLengthPrefixed()
	if err != nil {
		return "", err
	}

	return string(bytes), nil
}

func (b *pooledDataBuf) ReadDataBuf() (DataBuf, error) {
	bytes, err := b.readLengthPrefixed()
	if err != nil {
		return nil, err
	}

	nested := newPooledDataBuf(b.pool, b.mapper, len(bytes))
	nested.storage.B = append(nested.storage.B, bytes...)

	return nested.AsImmutable(), nil
}

func (b *pooledDataBuf) ReadObject(typ reflect.Type) (interface{}, error) {
	if b.mapper == nil {
		return nil, ErrNoObjectMapper
	}

	return b.mapper.ReadObject(b, typ)
}

func (b *pooledDataBuf) ToByteArray() []byte {
	if !b.Accessible() {
		return nil
	}

	readable := b.storage.B[b.readIndex:]
	return append(make([]byte, 0, len(readable)), readable...)
}

func (b *pooledDataBuf) ReadableBytes() int {
	if !b.Accessible() {
		return 0
	}

	return len(b.storage.B) - b.readIndex
}

func (b *pooledDataBuf) StartTransaction() DataBuf {
	b.markIndex = b.readIndex
	return b
}

func (b *pooledDataBuf) RedoTransaction() DataBuf {
	b.readIndex = b.markIndex
	return b
}

func (b *pooledDataBuf) AsMutable() Mutable {
	return b
}

func (b *pooledDataBuf) AsImmutable() DataBuf {
	return &readOnlyDataBuf{DataBuf: b}
}

func (b *pooledDataBuf) Accessible() bool {
	return !b.released.Load()
}

func (b *pooledDataBuf) DisableReleasing() DataBuf {
	b.releasingDisabled.Store(true)
	return b
}

func (b *pooledDataBuf) EnableReleasing() DataBuf {
	b.releasingDisabled.Store(false)
	return b
}

func (b *pooledDataBuf) Release() {
	if b.releasingDisabled.Load() {
		return
	}

	b.ForceRelease()
}

func (b *pooledDataBuf) ForceRelease() {

	// only the first caller gets to hand the storage back
	if !b.released.CompareAndSwap(false, true) {
		return
	}

	storage := b.storage
	b.storage = nil
	b.pool.Put(storage)
}

func (b *pooledDataBuf) Close() error {
	b.Release()
	return nil
}

func (b *pooledDataBuf) WriteBool(value bool) Mutable {
	if value {
		return b.WriteSingleByte(1)
	}

	return b.WriteSingleByte(0)
}

func (b *pooledDataBuf) WriteSingleByte(value byte) Mutable {
	b.ensureWritable()
	b.storage.B = append(b.storage.B, value)
	return b
}

func (b *pooledDataBuf) WriteShort(value int16) Mutable {
	b.ensureWritable()
	b.storage.B = byteOrder.AppendUint16(b.storage.B, uint16(value))
	return b
}

func (b *pooledDataBuf) WriteInt(value int32) Mutable {
	b.ensureWritable()
	b.storage.B = byteOrder.AppendUint32(b.storage.B, uint32(value))
	return b
}

func (b *pooledDataBuf) WriteLong(value int64) Mutable {
	b.ensureWritable()
	b.storage.B = byteOrder.AppendUint64(b.storage.B, uint64(value))
	return b
}

func (b *pooledDataBuf) WriteFloat(value float32) Mutable {
	b.ensureWritable()
	b.storage.B = byteOrder.AppendUint32(b.storage.B, math.Float32bits(value))
	return b
}

func (b *pooledDataBuf) WriteDouble(value float64) Mutable {
	b.ensureWritable()
	b.storage.B = byteOrder.AppendUint64(b.storage.B, math.Float64bits(value))
	return b
}

func (b *pooledDataBuf) WriteChar(value rune) Mutable {
	return b.WriteInt(int32(value))
}

func (b *pooledDataBuf) WriteByteArray(value []byte) Mutable {
	b.WriteInt(int32(len(value)))
	b.storage.B = append(b.storage.B, value...)
	return b
}

func (b *pooledDataBuf) WriteUniqueID(value uuid.UUID) Mutable {
	b.ensureWritable()
	b.storage.B = append(b.storage.B, value[:]...)
	return b
}

func (b *pooledDataBuf) WriteString(value string) Mutable {
	b.WriteInt(int32(len(value)))
	b.storage.B = append(b.storage.B, value...)
	return b
}

func (b *pooledDataBuf) WriteDataBuf(value DataBuf) Mutable {
	return b.WriteByteArray(value.ToByteArray())
}

func (b *pooledDataBuf) WriteObject(value interface{}) error {
	if b.mapper == nil {
		return ErrNoObjectMapper
	}

	return b.mapper.WriteObject(b, value)
}

func (b *pooledDataBuf) take(length int) ([]byte, error) {
	if !b.Accessible() {
		return nil, ErrReleased
	}

	available := len(b.storage.B) - b.readIndex
	if length > available {
		return nil, &UnderflowError{Requested: length, Available: available}
	}

	bytes := b.storage.B[b.readIndex : b.readIndex+length]
	b.readIndex += length

	return bytes, nil
}

func (b *pooledDataBuf) readLengthPrefixed() ([]byte, error) {
	startIndex := b.readIndex

	length, err := b.ReadInt()
	if err != nil {
		return nil, err
	}

	if length < 0 {
		b.readIndex = startIndex
		return nil, &MalformedError{Reason: "negative length prefix"}
	}

	bytes, err := b.take(int(length))
	if err != nil {

		// leave the cursor where it was before the length prefix
		b.readIndex = startIndex
		return nil, err
	}

	return bytes, nil
}

func (b *pooledDataBuf) ensureWritable() {
	if !b.Accessible() {
		panic(ErrReleased)
	}
}
