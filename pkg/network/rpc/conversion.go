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
	"math"
	"reflect"

	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"

	"github.com/nuclio/errors"
)

const (
	incompatible = -1
	coercible    = 1
	exact        = 2
)

var exactKinds = map[ArgumentTag][]reflect.Kind{
	TagBool:   {reflect.Bool},
	TagByte:   {reflect.Int8, reflect.Uint8},
	TagShort:  {reflect.Int16, reflect.Uint16},
	TagInt:    {reflect.Int32, reflect.Uint32},
	TagLong:   {reflect.Int64, reflect.Uint64, reflect.Int, reflect.Uint},
	TagFloat:  {reflect.Float32},
	TagDouble: {reflect.Float64},
	TagString: {reflect.String},
}

// compatibility scores how well argument fits a parameter of type parameterType. Width and
// nullability mismatches count as coercible only when normalizePrimitives is set
func compatibility(argument Argument, parameterType reflect.Type, normalizePrimitives bool) int {
	coercion := incompatible
	if normalizePrimitives {
		coercion = coercible
	}

	// primitives can be boxed into an empty interface, objects need a concrete type to decode into
	if parameterType.Kind() == reflect.Interface && parameterType.NumMethod() == 0 {
		switch argument.Tag {
		case TagNull:
			return exact
		case TagObject:
			return incompatible
		default:
			return coercible
		}
	}

	switch argument.Tag {
	case TagNull:
		if isNilable(parameterType) {
			return exact
		}

		return coercion
	case TagBytes:
		if parameterType == bytesType {
			return exact
		}
	case TagUUID:
		if parameterType == uuidType {
			return exact
		}
	case TagObject:
		switch {
		case argument.TypeName == parameterType.String():
			return exact
		case parameterType.Kind() == reflect.Pointer && argument.TypeName == parameterType.Elem().String():
			return coercion
		case argument.TypeName == "*"+parameterType.String():
			return coercion
		case parameterType.Kind() == reflect.Interface:

			// decoded through the mapper's binding for the interface
			return coercible
		}
	default:
		for _, kind := range exactKinds[argument.Tag] {
			if parameterType.Kind() == kind {
				return exact
			}
		}

		if isNumericTag(argument.Tag) && isNumericKind(parameterType.Kind()) {
			return coercion
		}
	}

	return incompatible
}

// convertArgument turns argument into a value assignable to parameterType
func convertArgument(argument Argument,
	parameterType reflect.Type,
	normalizePrimitives bool,
	mapper buffer.ObjectMapper,
	bufferFactory *buffer.Factory) (reflect.Value, error) {
	if compatibility(argument, parameterType, normalizePrimitives) == incompatible {
		return reflect.Value{}, errors.Errorf("%s argument can't be passed as %s", argument.Tag, parameterType)
	}

	if argument.Tag == TagNull {
		return reflect.Zero(parameterType), nil
	}

	if argument.Tag == TagObject {
		return convertObject(argument, parameterType, mapper, bufferFactory)
	}

	// interfaces receive the natural Go value of the tag
	if parameterType.Kind() == reflect.Interface {
		natural := reflect.ValueOf(naturalValue(argument))
		if !natural.Type().AssignableTo(parameterType) {
			return reflect.Value{}, errors.Errorf("%s can't be assigned to %s", natural.Type(), parameterType)
		}

		converted := reflect.New(parameterType).Elem()
		converted.Set(natural)

		return converted, nil
	}

	converted := reflect.New(parameterType).Elem()

	switch argument.Tag {
	case TagBool:
		converted.SetBool(argument.Value.(bool))
	case TagString:
		converted.SetString(argument.Value.(string))
	case TagBytes, TagUUID:
		converted.Set(reflect.ValueOf(argument.Value).Convert(parameterType))
	default:
		if err := setNumber(converted, argument.Value); err != nil {
			return reflect.Value{}, errors.Wrapf(err, "%s argument can't be passed as %s", argument.Tag, parameterType)
		}
	}

	return converted, nil
}

func convertObject(argument Argument,
	parameterType reflect.Type,
	mapper buffer.ObjectMapper,
	bufferFactory *buffer.Factory) (reflect.Value, error) {
	payload := bufferFactory.CreateFromBytes(argument.Value.([]byte))
	defer payload.Release()

	readType := parameterType
	switch {
	case argument.TypeName == parameterType.String() || parameterType.Kind() == reflect.Interface:
	case parameterType.Kind() == reflect.Pointer && argument.TypeName == parameterType.Elem().String():
		readType = parameterType.Elem()
	default:
		readType = reflect.PointerTo(parameterType)
	}

	value, err := mapper.ReadObject(payload, readType)
	if err != nil {
		return reflect.Value{}, errors.Wrapf(err, "Failed to read %s", argument.TypeName)
	}

	converted := reflect.New(readType).Elem()
	if value != nil {
		converted.Set(reflect.ValueOf(value))
	}

	switch {
	case readType == parameterType:
		return converted, nil
	case readType.Kind() == reflect.Pointer:
		if converted.IsNil() {
			return reflect.Zero(parameterType), nil
		}

		return converted.Elem(), nil
	default:
		addressable := reflect.New(readType)
		addressable.Elem().Set(converted)

		return addressable, nil
	}
}

// naturalValue returns the Go value a tag decodes to when the target type doesn't constrain it
func naturalValue(argument Argument) interface{} {
	switch argument.Tag {
	case TagByte:
		return int8(argument.Value.(int64))
	case TagShort:
		return int16(argument.Value.(int64))
	case TagInt:
		return int32(argument.Value.(int64))
	case TagFloat:
		return float32(argument.Value.(float64))
	default:
		return argument.Value
	}
}

// setNumber stores value into target, refusing values the target kind can't represent
func setNumber(target reflect.Value, value interface{}) error {
	switch typedValue := value.(type) {
	case int64:
		switch target.Kind() {
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if typedValue < 0 || target.OverflowUint(uint64(typedValue)) {
				return errors.Errorf("Value %d overflows %s", typedValue, target.Type())
			}
			target.SetUint(uint64(typedValue))
		case reflect.Float32, reflect.Float64:
			target.SetFloat(float64(typedValue))
		default:
			if target.OverflowInt(typedValue) {
				return errors.Errorf("Value %d overflows %s", typedValue, target.Type())
			}
			target.SetInt(typedValue)
		}
	case float64:
		switch target.Kind() {
		case reflect.Float32, reflect.Float64:
			if target.OverflowFloat(typedValue) {
				return errors.Errorf("Value %g overflows %s", typedValue, target.Type())
			}
			target.SetFloat(typedValue)
		default:
			if math.IsNaN(typedValue) || math.IsInf(typedValue, 0) || typedValue != math.Trunc(typedValue) {
				return errors.Errorf("Value %g isn't integral", typedValue)
			}

			// the float range check keeps the int64 conversion below defined
			if typedValue < math.MinInt64 || typedValue >= math.MaxInt64 {
				return errors.Errorf("Value %g overflows %s", typedValue, target.Type())
			}

			return setNumber(target, int64(typedValue))
		}
	}

	return nil
}

func isNumericTag(tag ArgumentTag) bool {
	switch tag {
	case TagByte, TagShort, TagInt, TagLong, TagFloat, TagDouble:
		return true
	default:
		return false
	}
}

func isNumericKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func isNilable(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}

func describeArguments(arguments []Argument) string {
	description := "("
	for argumentIndex, argument := range arguments {
		if argumentIndex > 0 {
			description += ", "
		}

		if argument.Tag == TagObject {
			description += argument.TypeName
		} else {
			description += argument.Tag.String()
		}
	}

	return description + ")"
}
