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
	"time"

	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"

	"github.com/google/uuid"
	"github.com/nuclio/errors"
)

type uuidType = uuid.UUID
type timeType = time.Time
type durationType = time.Duration

// FunctionalSerializer adapts a pair of functions to ObjectSerializer, for types that don't
// need the calling mapper
type FunctionalSerializer struct {
	Reader func(source buffer.DataBuf) (interface{}, error)
	Writer func(target buffer.Mutable, value interface{}) error
}

func (fs *FunctionalSerializer) Read(source buffer.DataBuf, typ reflect.Type, caller ObjectMapper) (interface{}, error) {
	return fs.Reader(source)
}

func (fs *FunctionalSerializer) Write(target buffer.Mutable, value interface{}, typ reflect.Type, caller ObjectMapper) error {
	return fs.Writer(target, value)
}

var byteArraySerializer = &FunctionalSerializer{
	Reader: func(source buffer.DataBuf) (interface{}, error) {
		return source.ReadByteArray()
	},
	Writer: func(target buffer.Mutable, value interface{}) error {
		target.WriteByteArray(value.([]byte))
		return nil
	},
}

var uniqueIDSerializer = &FunctionalSerializer{
	Reader: func(source buffer.DataBuf) (interface{}, error) {
		return source.ReadUniqueID()
	},
	Writer: func(target buffer.Mutable, value interface{}) error {
		target.WriteUniqueID(value.(uuid.UUID))
		return nil
	},
}

// times are sent as unix seconds + nanoseconds and read back in UTC
var timeSerializer = &FunctionalSerializer{
	Reader: func(source buffer.DataBuf) (interface{}, error) {
		seconds, err := source.ReadLong()
		if err != nil {
			return nil, err
		}

		nanoseconds, err := source.ReadInt()
		if err != nil {
			return nil, err
		}

		return time.Unix(seconds, int64(nanoseconds)).UTC(), nil
	},
	Writer: func(target buffer.Mutable, value interface{}) error {
		timeValue := value.(time.Time)
		target.WriteLong(timeValue.Unix()).WriteInt(int32(timeValue.Nanosecond()))
		return nil
	},
}

var durationSerializer = &FunctionalSerializer{
	Reader: func(source buffer.DataBuf) (interface{}, error) {
		nanoseconds, err := source.ReadLong()
		if err != nil {
			return nil, err
		}

		return time.Duration(nanoseconds), nil
	},
	Writer: func(target buffer.Mutable, value interface{}) error {
		target.WriteLong(int64(value.(time.Duration)))
		return nil
	},
}

var dataBufSerializer = &FunctionalSerializer{
	Reader: func(source buffer.DataBuf) (interface{}, error) {
		return source.ReadDataBuf()
	},
	Writer: func(target buffer.Mutable, value interface{}) error {
		target.WriteDataBuf(value.(buffer.DataBuf))
		return nil
	},
}

// primitiveSerializer handles every basic kind, including named types such as enums
type primitiveSerializer struct{}

func (ps *primitiveSerializer) Write(target buffer.Mutable,
	value interface{},
	typ reflect.Type,
	caller ObjectMapper) error {
	reflectValue := reflect.ValueOf(value)

	switch typ.Kind() {
	case reflect.Bool:
		target.WriteBool(reflectValue.Bool())
	case reflect.Int8:
		target.WriteSingleByte(byte(reflectValue.Int()))
	case reflect.Uint8:
		target.WriteSingleByte(byte(reflectValue.Uint()))
	case reflect.Int16:
		target.WriteShort(int16(reflectValue.Int()))
	case reflect.Uint16:
		target.WriteShort(int16(reflectValue.Uint()))
	case reflect.Int32:
		target.WriteInt(int32(reflectValue.Int()))
	case reflect.Uint32:
		target.WriteInt(int32(reflectValue.Uint()))
	case reflect.Int, reflect.Int64:
		target.WriteLong(reflectValue.Int())
	case reflect.Uint, reflect.Uint64:
		target.WriteLong(int64(reflectValue.Uint()))
	case reflect.Float32:
		target.WriteFloat(float32(reflectValue.Float()))
	case reflect.Float64:
		target.WriteDouble(reflectValue.Float())
	case reflect.String:
		target.WriteString(reflectValue.String())
	default:
		return &NoSerializerFoundError{Type: typ}
	}

	return nil
}

func (ps *primitiveSerializer) Read(source buffer.DataBuf, typ reflect.Type, caller ObjectMapper) (interface{}, error) {
	result := reflect.New(typ).Elem()

	switch typ.Kind() {
	case reflect.Bool:
		value, err := source.ReadBool()
		if err != nil {
			return nil, err
		}
		result.SetBool(value)
	case reflect.Int8, reflect.Uint8:
		value, err := source.ReadByte()
		if err != nil {
			return nil, err
		}
		setInteger(result, int64(int8(value)), uint64(value))
	case reflect.Int16, reflect.Uint16:
		value, err := source.ReadShort()
		if err != nil {
			return nil, err
		}
		setInteger(result, int64(value), uint64(uint16(value)))
	case reflect.Int32, reflect.Uint32:
		value, err := source.ReadInt()
		if err != nil {
			return nil, err
		}
		setInteger(result, int64(value), uint64(uint32(value)))
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		value, err := source.ReadLong()
		if err != nil {
			return nil, err
		}
		setInteger(result, value, uint64(value))
	case reflect.Float32:
		value, err := source.ReadFloat()
		if err != nil {
			return nil, err
		}
		result.SetFloat(float64(value))
	case reflect.Float64:
		value, err := source.ReadDouble()
		if err != nil {
			return nil, err
		}
		result.SetFloat(value)
	case reflect.String:
		value, err := source.ReadString()
		if err != nil {
			return nil, err
		}
		result.SetString(value)
	default:
		return nil, &NoSerializerFoundError{Type: typ}
	}

	return result.Interface(), nil
}

func setInteger(target reflect.Value, signed int64, unsigned uint64) {
	switch target.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		target.SetUint(unsigned)
	default:
		target.SetInt(signed)
	}
}

// bufSerializableSerializer delegates to the value's own WriteData / ReadData
type bufSerializableSerializer struct{}

func (bs *bufSerializableSerializer) Write(target buffer.Mutable,
	value interface{},
	typ reflect.Type,
	caller ObjectMapper) error {
	return value.(BufSerializable).WriteData(target)
}

func (bs *bufSerializableSerializer) Read(source buffer.DataBuf, typ reflect.Type, caller ObjectMapper) (interface{}, error) {
	var instance reflect.Value

	switch typ.Kind() {
	case reflect.Pointer:
		instance = reflect.New(typ.Elem())
	case reflect.Interface:
		return nil, errors.Errorf("Can't instantiate interface type %s", typ)
	default:
		instance = reflect.New(typ)
	}

	serializable, ok := instance.Interface().(BufSerializable)
	if !ok {
		return nil, errors.Errorf("Type %s doesn't implement BufSerializable on a pointer receiver", typ)
	}

	if err := serializable.ReadData(source); err != nil {
		return nil, errors.Wrapf(err, "Failed to read data of %s", typ)
	}

	if typ.Kind() == reflect.Pointer {
		return instance.Interface(), nil
	}

	return instance.Elem().Interface(), nil
}
