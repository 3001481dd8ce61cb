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
	"sync"
	"sync/atomic"

	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

type supertypeBinding struct {
	typ        reflect.Type
	serializer ObjectSerializer
}

// DefaultObjectMapper resolves serializers by exact type, then through supertype-inclusive
// bindings in registration order, then through the kind codecs registered as defaults.
// Lookups never take a lock; registration copies the supertype list on write
type DefaultObjectMapper struct {
	logger            logger.Logger
	exactBindings     sync.Map
	supertypeBindings atomic.Value
	registrationLock  sync.Mutex
	kindBindings      map[reflect.Kind]ObjectSerializer
}

// NewObjectMapper creates an object mapper. With registerDefaults, all built-in codecs are
// bound: Go basic kinds, []byte, uuid.UUID, time types, Document, DataBuf, BufSerializable,
// slices, arrays, maps, pointers and structs
func NewObjectMapper(parentLogger logger.Logger, registerDefaults bool) *DefaultObjectMapper {
	newObjectMapper := &DefaultObjectMapper{
		logger:       parentLogger.GetChild("mapper"),
		kindBindings: map[reflect.Kind]ObjectSerializer{},
	}
	newObjectMapper.supertypeBindings.Store([]supertypeBinding{})

	if registerDefaults {
		newObjectMapper.registerDefaultBindings()
	}

	return newObjectMapper
}

func (m *DefaultObjectMapper) RegisterBinding(typ reflect.Type,
	serializer ObjectSerializer,
	includeSupertypes bool) ObjectMapper {

	m.exactBindings.Store(typ, serializer)

	if includeSupertypes {
		m.registrationLock.Lock()
		defer m.registrationLock.Unlock()

		current := m.loadSupertypeBindings()
		updated := make([]supertypeBinding, 0, len(current)+1)
		replaced := false

		// a re-registration keeps the original position in the resolution order
		for _, binding := range current {
			if binding.typ == typ {
				binding.serializer = serializer
				replaced = true
			}
			updated = append(updated, binding)
		}

		if !replaced {
			updated = append(updated, supertypeBinding{typ: typ, serializer: serializer})
		}

		m.supertypeBindings.Store(updated)
	}

	m.logger.DebugWith("Registered binding",
		"type", typ.String(),
		"includeSupertypes", includeSupertypes)

	return m
}

func (m *DefaultObjectMapper) UnregisterBinding(typ reflect.Type, superTypes bool) ObjectMapper {
	m.exactBindings.Delete(typ)

	if superTypes {
		m.registrationLock.Lock()
		defer m.registrationLock.Unlock()

		current := m.loadSupertypeBindings()
		updated := make([]supertypeBinding, 0, len(current))

		for _, binding := range current {
			if binding.typ != typ {
				updated = append(updated, binding)
			}
		}

		m.supertypeBindings.Store(updated)
	}

	m.logger.DebugWith("Unregistered binding", "type", typ.String(), "superTypes", superTypes)

	return m
}

// WriteObject writes a presence flag and, for non-nil values, the value through the serializer
// resolved for its runtime type
func (m *DefaultObjectMapper) WriteObject(target buffer.Mutable, value interface{}) error {
	if isNil(value) {
		target.WriteBool(false)
		return nil
	}

	typ := reflect.TypeOf(value)

	serializer := m.resolve(typ)
	if serializer == nil {
		return &NoSerializerFoundError{Type: typ}
	}

	target.WriteBool(true)
	if err := serializer.Write(target, value, typ, m); err != nil {
		return errors.Wrapf(err, "Failed to write value of type %s", typ)
	}

	return nil
}

// ReadObject reads a value written by WriteObject, resolving the serializer by the static type
// requested. A null marker yields the zero value of typ
func (m *DefaultObjectMapper) ReadObject(source buffer.DataBuf, typ reflect.Type) (interface{}, error) {
	present, err := source.ReadBool()
	if err != nil {
		return nil, err
	}

	if !present {
		return zeroValue(typ), nil
	}

	serializer := m.resolve(typ)
	if serializer == nil {
		return nil, &NoSerializerFoundError{Type: typ}
	}

	value, err := serializer.Read(source, typ, m)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read value of type %s", typ)
	}

	return coerce(value, typ)
}

func (m *DefaultObjectMapper) resolve(typ reflect.Type) ObjectSerializer {
	if serializer, found := m.exactBindings.Load(typ); found {
		return serializer.(ObjectSerializer)
	}

	for _, binding := range m.loadSupertypeBindings() {
		if typ.AssignableTo(binding.typ) {
			return binding.serializer
		}
	}

	return m.kindBindings[typ.Kind()]
}

func (m *DefaultObjectMapper) loadSupertypeBindings() []supertypeBinding {
	return m.supertypeBindings.Load().([]supertypeBinding)
}

func (m *DefaultObjectMapper) registerDefaultBindings() {
	primitives := &primitiveSerializer{}
	for _, kind := range []reflect.Kind{
		reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String,
	} {
		m.kindBindings[kind] = primitives
	}

	m.kindBindings[reflect.Slice] = &sliceSerializer{}
	m.kindBindings[reflect.Array] = &arraySerializer{}
	m.kindBindings[reflect.Map] = &mapSerializer{}
	m.kindBindings[reflect.Pointer] = &pointerSerializer{}
	m.kindBindings[reflect.Struct] = newDataClassSerializer()

	m.RegisterBinding(TypeOf[[]byte](), byteArraySerializer, false)
	m.RegisterBinding(TypeOf[uuidType](), uniqueIDSerializer, false)
	m.RegisterBinding(TypeOf[timeType](), timeSerializer, false)
	m.RegisterBinding(TypeOf[durationType](), durationSerializer, false)
	m.RegisterBinding(TypeOf[Document](), &documentSerializer{}, false)
	m.RegisterBinding(TypeOf[buffer.DataBuf](), dataBufSerializer, true)
	m.RegisterBinding(TypeOf[BufSerializable](), &bufSerializableSerializer{}, true)
}

func isNil(value interface{}) bool {
	if value == nil {
		return true
	}

	switch reflectValue := reflect.ValueOf(value); reflectValue.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return reflectValue.IsNil()
	default:
		return false
	}
}

func zeroValue(typ reflect.Type) interface{} {
	switch typ.Kind() {
	case reflect.Interface:
		return nil
	default:
		return reflect.Zero(typ).Interface()
	}
}

// coerce makes value carry the requested static type, so callers can type-assert or
// reflect.Set it directly
func coerce(value interface{}, typ reflect.Type) (interface{}, error) {
	if value == nil {
		return zeroValue(typ), nil
	}

	reflectValue := reflect.ValueOf(value)
	if reflectValue.Type() == typ || (typ.Kind() == reflect.Interface && reflectValue.Type().AssignableTo(typ)) {
		return value, nil
	}

	if reflectValue.Type().ConvertibleTo(typ) {
		return reflectValue.Convert(typ).Interface(), nil
	}

	return nil, errors.Errorf("Serializer returned %s, which can't be used as %s", reflectValue.Type(), typ)
}

// assign stores a value returned by ReadObject into target, leaving target zeroed for nil
func assign(target reflect.Value, value interface{}) {
	if value == nil {
		return
	}

	target.Set(reflect.ValueOf(value))
}
