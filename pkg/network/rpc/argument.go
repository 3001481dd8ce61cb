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

package rpc

import (
	"fmt"
	"reflect"

	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"
	"github.com/cloudnetservice/cloudnet/pkg/network/rpc/object"

	"github.com/google/uuid"
	"github.com/nuclio/errors"
)

// ArgumentTag discriminates the wire representation of an argument or result
type ArgumentTag byte

const (
	TagNull ArgumentTag = iota
	TagBool
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagString
	TagBytes
	TagUUID
	TagObject
)

var tagNames = map[ArgumentTag]string{
	TagNull:   "null",
	TagBool:   "bool",
	TagByte:   "byte",
	TagShort:  "short",
	TagInt:    "int",
	TagLong:   "long",
	TagFloat:  "float",
	TagDouble: "double",
	TagString: "string",
	TagBytes:  "bytes",
	TagUUID:   "uuid",
	TagObject: "object",
}

func (at ArgumentTag) String() string {
	if name, found := tagNames[at]; found {
		return name
	}

	return fmt.Sprintf("unknown(%d)", byte(at))
}

var (
	bytesType = object.TypeOf[[]byte]()
	uuidType  = object.TypeOf[uuid.UUID]()
)

// Argument is one tagged value. Integers are held as int64 and floats as float64 whatever
// their wire width; objects hold their Go type name and the bytes the object mapper wrote
type Argument struct {
	Tag      ArgumentTag
	Value    interface{}
	TypeName string
}

// NewArgument tags value, serializing it through mapper if it isn't a wire primitive
func NewArgument(mapper buffer.ObjectMapper, bufferFactory *buffer.Factory, value interface{}) (Argument, error) {
	if value == nil {
		return Argument{Tag: TagNull}, nil
	}

	reflectValue := reflect.ValueOf(value)
	typ := reflectValue.Type()

	switch {
	case typ == bytesType:
		return Argument{Tag: TagBytes, Value: value.([]byte)}, nil
	case typ == uuidType:
		return Argument{Tag: TagUUID, Value: value.(uuid.UUID)}, nil
	}

	switch typ.Kind() {
	case reflect.Bool:
		return Argument{Tag: TagBool, Value: reflectValue.Bool()}, nil
	case reflect.Int8:
		return Argument{Tag: TagByte, Value: reflectValue.Int()}, nil
	case reflect.Uint8:
		return Argument{Tag: TagByte, Value: int64(reflectValue.Uint())}, nil
	case reflect.Int16:
		return Argument{Tag: TagShort, Value: reflectValue.Int()}, nil
	case reflect.Uint16:
		return Argument{Tag: TagShort, Value: int64(reflectValue.Uint())}, nil
	case reflect.Int32:
		return Argument{Tag: TagInt, Value: reflectValue.Int()}, nil
	case reflect.Uint32:
		return Argument{Tag: TagInt, Value: int64(reflectValue.Uint())}, nil
	case reflect.Int, reflect.Int64:
		return Argument{Tag: TagLong, Value: reflectValue.Int()}, nil
	case reflect.Uint, reflect.Uint64:
		return Argument{Tag: TagLong, Value: int64(reflectValue.Uint())}, nil
	case reflect.Float32:
		return Argument{Tag: TagFloat, Value: reflectValue.Float()}, nil
	case reflect.Float64:
		return Argument{Tag: TagDouble, Value: reflectValue.Float()}, nil
	case reflect.String:
		return Argument{Tag: TagString, Value: reflectValue.String()}, nil
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		if reflectValue.IsNil() {
			return Argument{Tag: TagNull}, nil
		}
	}

	payload := bufferFactory.CreateEmpty()
	defer payload.Release()

	if err := mapper.WriteObject(payload, value); err != nil {
		return Argument{}, errors.Wrapf(err, "Failed to serialize argument of type %s", typ)
	}

	return Argument{
		Tag:      TagObject,
		Value:    payload.ToByteArray(),
		TypeName: typ.String(),
	}, nil
}

// WriteArgument writes the tag followed by the value in its wire width
func WriteArgument(target buffer.Mutable, argument Argument) buffer.Mutable {
	target.WriteSingleByte(byte(argument.Tag))

	switch argument.Tag {
	case TagBool:
		target.WriteBool(argument.Value.(bool))
	case TagByte:
		target.WriteSingleByte(byte(argument.Value.(int64)))
	case TagShort:
		target.WriteShort(int16(argument.Value.(int64)))
	case TagInt:
		target.WriteInt(int32(argument.Value.(int64)))
	case TagLong:
		target.WriteLong(argument.Value.(int64))
	case TagFloat:
		target.WriteFloat(float32(argument.Value.(float64)))
	case TagDouble:
		target.WriteDouble(argument.Value.(float64))
	case TagString:
		target.WriteString(argument.Value.(string))
	case TagBytes:
		target.WriteByteArray(argument.Value.([]byte))
	case TagUUID:
		target.WriteUniqueID(argument.Value.(uuid.UUID))
	case TagObject:
		target.WriteString(argument.TypeName).WriteByteArray(argument.Value.([]byte))
	}

	return target
}

// ReadArgument reads an argument written by WriteArgument
func ReadArgument(source buffer.DataBuf) (Argument, error) {
	rawTag, err := source.ReadByte()
	if err != nil {
		return Argument{}, err
	}

	argument := Argument{Tag: ArgumentTag(rawTag)}

	switch argument.Tag {
	case TagNull:
	case TagBool:
		argument.Value, err = source.ReadBool()
	case TagByte:
		var value byte
		value, err = source.ReadByte()
		argument.Value = int64(int8(value))
	case TagShort:
		var value int16
		value, err = source.ReadShort()
		argument.Value = int64(value)
	case TagInt:
		var value int32
		value, err = source.ReadInt()
		argument.Value = int64(value)
	case TagLong:
		argument.Value, err = source.ReadLong()
	case TagFloat:
		var value float32
		value, err = source.ReadFloat()
		argument.Value = float64(value)
	case TagDouble:
		argument.Value, err = source.ReadDouble()
	case TagString:
		argument.Value, err = source.ReadString()
	case TagBytes:
		argument.Value, err = source.ReadByteArray()
	case TagUUID:
		argument.Value, err = source.ReadUniqueID()
	case TagObject:
		if argument.TypeName, err = source.ReadString(); err != nil {
			return Argument{}, err
		}
		argument.Value, err = source.ReadByteArray()
	default:
		return Argument{}, &buffer.MalformedError{Reason: fmt.Sprintf("unknown argument tag %d", rawTag)}
	}

	if err != nil {
		return Argument{}, err
	}

	return argument, nil
}

// WriteArguments writes the argument count followed by every argument
func WriteArguments(target buffer.Mutable, arguments []Argument) buffer.Mutable {
	target.WriteInt(int32(len(arguments)))
	for _, argument := range arguments {
		WriteArgument(target, argument)
	}

	return target
}

// ReadArguments reads arguments written by WriteArguments
func ReadArguments(source buffer.DataBuf) ([]Argument, error) {
	argumentCount, err := source.ReadInt()
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read argument count")
	}

	// every argument takes at least its tag byte
	if argumentCount < 0 || int(argumentCount) > source.ReadableBytes() {
		return nil, &buffer.MalformedError{Reason: fmt.Sprintf("invalid argument count %d", argumentCount)}
	}

	arguments := make([]Argument, 0, argumentCount)
	for argumentIndex := int32(0); argumentIndex < argumentCount; argumentIndex++ {
		argument, err := ReadArgument(source)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read argument %d", argumentIndex)
		}

		arguments = append(arguments, argument)
	}

	return arguments, nil
}
