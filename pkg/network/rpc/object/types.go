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

package object

import (
	"reflect"

	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"
)

// ObjectSerializer reads and writes values of one type (or a family of types) from and to
// a buffer. Nested values that aren't primitives are delegated back to caller, so one mapper
// drives the whole object graph of a call
type ObjectSerializer interface {

	// Read reads a value of type typ from source. The returned value must be assignable or
	// convertible to typ
	Read(source buffer.DataBuf, typ reflect.Type, caller ObjectMapper) (interface{}, error)

	// Write writes value, whose runtime type is typ, into target
	Write(target buffer.Mutable, value interface{}, typ reflect.Type, caller ObjectMapper) error
}

// ObjectMapper resolves serializers by type and reads/writes nullable values through them
type ObjectMapper interface {
	buffer.ObjectMapper

	// RegisterBinding binds serializer to typ. The last registration for a type wins. With
	// includeSupertypes, typ also matches every type assignable to it (e.g. implementations
	// of an interface) when no exact binding exists
	RegisterBinding(typ reflect.Type, serializer ObjectSerializer, includeSupertypes bool) ObjectMapper

	// UnregisterBinding removes the exact binding of typ and, with superTypes, the
	// supertype-inclusive binding as well
	UnregisterBinding(typ reflect.Type, superTypes bool) ObjectMapper
}

// BufSerializable is implemented by types that know how to write and read themselves
type BufSerializable interface {
	WriteData(target buffer.Mutable) error
	ReadData(source buffer.DataBuf) error
}

// Document is a schemaless map, encoded as msgpack on the wire
type Document map[string]interface{}

// TypeOf returns the reflect.Type of T, including interface types
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Read reads a value of static type T through mapper
func Read[T any](mapper buffer.ObjectMapper, source buffer.DataBuf) (T, error) {
	var result T

	value, err := mapper.ReadObject(source, TypeOf[T]())
	if err != nil || value == nil {
		return result, err
	}

	return value.(T), nil
}
