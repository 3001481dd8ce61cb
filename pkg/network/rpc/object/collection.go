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

	"github.com/nuclio/errors"
)

// sliceSerializer writes the length followed by every element through the calling mapper
type sliceSerializer struct{}

func (ss *sliceSerializer) Write(target buffer.Mutable, value interface{}, typ reflect.Type, caller ObjectMapper) error {
	return writeElements(target, reflect.ValueOf(value), caller)
}

func (ss *sliceSerializer) Read(source buffer.DataBuf, typ reflect.Type, caller ObjectMapper) (interface{}, error) {
	length, err := readLength(source)
	if err != nil {
		return nil, err
	}

	result := reflect.MakeSlice(typ, length, length)
	if err := readElements(source, result, caller); err != nil {
		return nil, err
	}

	return result.Interface(), nil
}

type arraySerializer struct{}

func (as *arraySerializer) Write(target buffer.Mutable, value interface{}, typ reflect.Type, caller ObjectMapper) error {
	return writeElements(target, reflect.ValueOf(value), caller)
}

func (as *arraySerializer) Read(source buffer.DataBuf, typ reflect.Type, caller ObjectMapper) (interface{}, error) {
	length, err := readLength(source)
	if err != nil {
		return nil, err
	}

	if length != typ.Len() {
		return nil, &buffer.MalformedError{Reason: "array length mismatch"}
	}

	result := reflect.New(typ).Elem()
	if err := readElements(source, result, caller); err != nil {
		return nil, err
	}

	return result.Interface(), nil
}

// mapSerializer writes the entry count followed by key/value pairs
type mapSerializer struct{}

func (ms *mapSerializer) Write(target buffer.Mutable, value interface{}, typ reflect.Type, caller ObjectMapper) error {
	reflectValue := reflect.ValueOf(value)
	target.WriteInt(int32(reflectValue.Len()))

	iterator := reflectValue.MapRange()
	for iterator.Next() {
		if err := caller.WriteObject(target, iterator.Key().Interface()); err != nil {
			return errors.Wrap(err, "Failed to write map key")
		}

		if err := caller.WriteObject(target, iterator.Value().Interface()); err != nil {
			return errors.Wrap(err, "Failed to write map value")
		}
	}

	return nil
}

func (ms *mapSerializer) Read(source buffer.DataBuf, typ reflect.Type, caller ObjectMapper) (interface{}, error) {
	length, err := readLength(source)
	if err != nil {
		return nil, err
	}

	result := reflect.MakeMapWithSize(typ, length)
	for entryIndex := 0; entryIndex < length; entryIndex++ {
		key, err := caller.ReadObject(source, typ.Key())
		if err != nil {
			return nil, errors.Wrap(err, "Failed to read map key")
		}

		value, err := caller.ReadObject(source, typ.Elem())
		if err != nil {
			return nil, errors.Wrap(err, "Failed to read map value")
		}

		mapValue := reflect.Zero(typ.Elem())
		if value != nil {
			mapValue = reflect.ValueOf(value)
		}

		result.SetMapIndex(valueOrZero(key, typ.Key()), mapValue)
	}

	return result.Interface(), nil
}

// pointerSerializer writes the pointed-to value, so a pointer and its target share a format
type pointerSerializer struct{}

func (ps *pointerSerializer) Write(target buffer.Mutable, value interface{}, typ reflect.Type, caller ObjectMapper) error {
	return caller.WriteObject(target, reflect.ValueOf(value).Elem().Interface())
}

func (ps *pointerSerializer) Read(source buffer.DataBuf, typ reflect.Type, caller ObjectMapper) (interface{}, error) {
	value, err := caller.ReadObject(source, typ.Elem())
	if err != nil {
		return nil, err
	}

	result := reflect.New(typ.Elem())
	assign(result.Elem(), value)

	return result.Interface(), nil
}

func writeElements(target buffer.Mutable, reflectValue reflect.Value, caller ObjectMapper) error {
	target.WriteInt(int32(reflectValue.Len()))

	for elementIndex := 0; elementIndex < reflectValue.Len(); elementIndex++ {
		if err := caller.WriteObject(target, reflectValue.Index(elementIndex).Interface()); err != nil {
			return errors.Wrapf(err, "Failed to write element %d", elementIndex)
		}
	}

	return nil
}

func readElements(source buffer.DataBuf, result reflect.Value, caller ObjectMapper) error {
	elementType := result.Type().Elem()

	for elementIndex := 0; elementIndex < result.Len(); elementIndex++ {
		element, err := caller.ReadObject(source, elementType)
		if err != nil {
			return errors.Wrapf(err, "Failed to read element %d", elementIndex)
		}

		assign(result.Index(elementIndex), element)
	}

	return nil
}

func readLength(source buffer.DataBuf) (int, error) {
	length, err := source.ReadInt()
	if err != nil {
		return 0, err
	}

	if length < 0 {
		return 0, &buffer.MalformedError{Reason: "negative collection length"}
	}

	// every element carries at least its presence byte
	if int(length) > source.ReadableBytes() {
		return 0, &buffer.UnderflowError{Requested: int(length), Available: source.ReadableBytes()}
	}

	return int(length), nil
}

func valueOrZero(value interface{}, typ reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(typ)
	}

	return reflect.ValueOf(value)
}
