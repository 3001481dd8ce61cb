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
	"context"
	"reflect"
	"strings"

	"github.com/cloudnetservice/cloudnet/pkg/common/task"
	"github.com/cloudnetservice/cloudnet/pkg/network/packet"

	"github.com/nuclio/errors"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	taskType    = reflect.TypeOf((*task.Task[interface{}])(nil))
)

// apiFireMode is how a bound function fires its call, derived from its results
type apiFireMode int

const (
	fireSyncWithResult apiFireMode = iota
	fireSyncWithoutResult
	fireAsync
	fireAndForget
)

// apiField is one function field of a bound API struct
type apiField struct {
	index        int
	methodName   string
	takesContext bool
	argumentType []reflect.Type
	resultType   reflect.Type
	mode         apiFireMode
}

// Bind implements the API described by api, a pointer to a struct of function fields, with
// calls of class methods through channel. Every exported function field calls the method of
// the same name, or of the name in its `rpc` tag; `rpc:"-"` skips a field and the
// `noresult` tag option sends the call without waiting for it.
//
// A function may take a context.Context first, bounding the wait for the result. It returns
// (T, error) to receive the result, error alone to wait for completion, or a
// *task.Task[interface{}] to fire asynchronously
func (f *Factory) Bind(class *Class, channel packet.NetworkChannel, api interface{}) error {
	sender := f.NewSender(class, channel)

	return f.bind(class, api, func(methodName string, args []interface{}) (firable, error) {
		return sender.InvokeMethod(methodName, args...)
	})
}

// BindChain is Bind for an API whose methods are invoked remotely on the result of base.
// Every call of a bound function sends base and the call as one chain
func (f *Factory) BindChain(base *RPC, api interface{}) error {
	if base.ResultType() == nil {
		return errors.Errorf("Can't bind an API on %s, it has no result", base.Method().Signature())
	}

	class, err := f.ClassOf(base.ResultType())
	if err != nil {
		return errors.Wrapf(err, "Failed to resolve class of %s", base.ResultType())
	}

	return f.bind(class, api, func(methodName string, args []interface{}) (firable, error) {
		return base.JoinMethod(methodName, args...)
	})
}

// firable is what RPC and Chain have in common
type firable interface {
	FireAndForget() error
	Fire(ctx context.Context) *task.Task[interface{}]
	FireSync(ctx context.Context) (interface{}, error)
}

type callBuilder func(methodName string, args []interface{}) (firable, error)

func (f *Factory) bind(class *Class, api interface{}, buildCall callBuilder) error {
	apiValue := reflect.ValueOf(api)
	if apiValue.Kind() != reflect.Pointer || apiValue.IsNil() || apiValue.Elem().Kind() != reflect.Struct {
		return errors.Errorf("Can only bind a non-nil pointer to a struct, got %T", api)
	}

	structValue := apiValue.Elem()
	structType := structValue.Type()

	var fields []*apiField
	for fieldIndex := 0; fieldIndex < structType.NumField(); fieldIndex++ {
		field, err := parseAPIField(structType.Field(fieldIndex), fieldIndex)
		if err != nil {
			return errors.Wrapf(err, "Failed to bind %s", structType)
		}

		if field == nil {
			continue
		}

		if len(class.candidatesByArity(field.methodName, len(field.argumentType))) == 0 {
			return &MethodNotFoundError{
				ClassName:     class.name,
				MethodName:    field.methodName,
				ArgumentCount: len(field.argumentType),
			}
		}

		fields = append(fields, field)
	}

	// assigned only once every field is valid
	for _, field := range fields {
		fieldValue := structValue.Field(field.index)
		fieldValue.Set(reflect.MakeFunc(fieldValue.Type(), apiFunction(field, buildCall)))
	}

	f.logger.DebugWith("Bound API",
		"api", structType.String(),
		"class", class.name,
		"functions", len(fields))

	return nil
}

func parseAPIField(structField reflect.StructField, fieldIndex int) (*apiField, error) {
	if !structField.IsExported() || structField.Type.Kind() != reflect.Func {
		return nil, nil
	}

	methodName := structField.Name
	noResult := false

	if tag, tagged := structField.Tag.Lookup("rpc"); tagged {
		if tag == "-" {
			return nil, nil
		}

		tagParts := strings.Split(tag, ",")
		if tagParts[0] != "" {
			methodName = tagParts[0]
		}

		for _, option := range tagParts[1:] {
			switch option {
			case "noresult":
				noResult = true
			default:
				return nil, errors.Errorf("Unknown option %q on field %s", option, structField.Name)
			}
		}
	}

	functionType := structField.Type
	if functionType.IsVariadic() {
		return nil, errors.Errorf("Field %s can't be variadic", structField.Name)
	}

	field := &apiField{
		index:      fieldIndex,
		methodName: methodName,
	}

	for parameterIndex := 0; parameterIndex < functionType.NumIn(); parameterIndex++ {
		parameterType := functionType.In(parameterIndex)
		if parameterIndex == 0 && parameterType == contextType {
			field.takesContext = true
			continue
		}

		field.argumentType = append(field.argumentType, parameterType)
	}

	switch {
	case functionType.NumOut() == 2 && functionType.Out(1) == errorType && !noResult:
		field.mode = fireSyncWithResult
		field.resultType = functionType.Out(0)
	case functionType.NumOut() == 1 && functionType.Out(0) == errorType:
		field.mode = fireSyncWithoutResult
		if noResult {
			field.mode = fireAndForget
		}
	case functionType.NumOut() == 1 && functionType.Out(0) == taskType && !noResult:
		field.mode = fireAsync
	default:
		return nil, errors.Errorf("Field %s must return (T, error), error or %s", structField.Name, taskType)
	}

	return field, nil
}

func apiFunction(field *apiField, buildCall callBuilder) func([]reflect.Value) []reflect.Value {
	return func(in []reflect.Value) []reflect.Value {
		ctx := context.Background()
		if field.takesContext {
			if callCtx, ok := in[0].Interface().(context.Context); ok && callCtx != nil {
				ctx = callCtx
			}

			in = in[1:]
		}

		args := make([]interface{}, 0, len(in))
		for _, argument := range in {
			args = append(args, argument.Interface())
		}

		call, err := buildCall(field.methodName, args)
		if err != nil {
			return apiResults(field, nil, err)
		}

		switch field.mode {
		case fireAsync:
			return []reflect.Value{reflect.ValueOf(call.Fire(ctx))}
		case fireAndForget:
			return apiResults(field, nil, call.FireAndForget())
		default:
			result, err := call.FireSync(ctx)
			return apiResults(field, result, err)
		}
	}
}

// apiResults converts the outcome of a call to the results of a bound function
func apiResults(field *apiField, result interface{}, err error) []reflect.Value {
	if field.mode == fireAsync {
		return []reflect.Value{reflect.ValueOf(task.Failed[interface{}](err))}
	}

	if field.mode != fireSyncWithResult {
		return []reflect.Value{errorValue(err)}
	}

	resultValue := reflect.Zero(field.resultType)
	if err == nil && result != nil {
		value := reflect.ValueOf(result)

		switch {
		case value.Type().AssignableTo(field.resultType):
			resultValue = reflect.New(field.resultType).Elem()
			resultValue.Set(value)
		case value.Type().ConvertibleTo(field.resultType):
			resultValue = value.Convert(field.resultType)
		default:
			err = errors.Errorf("Result of type %s can't be returned as %s", value.Type(), field.resultType)
		}
	}

	return []reflect.Value{resultValue, errorValue(err)}
}

func errorValue(err error) reflect.Value {
	if err == nil {
		return reflect.Zero(errorType)
	}

	return reflect.ValueOf(&err).Elem()
}
