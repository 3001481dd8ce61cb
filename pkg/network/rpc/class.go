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
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nuclio/errors"
	"github.com/samber/lo"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// MethodInformation describes one invocable method of a class
type MethodInformation struct {
	Owner          string
	Name           string
	ParameterTypes []reflect.Type

	// ReturnType is nil for methods that return nothing (or only an error)
	ReturnType   reflect.Type
	VoidMethod   bool
	ReturnsError bool

	// Static methods don't take a receiver
	Static bool

	function reflect.Value
}

// Signature renders the method the way it is reported in errors and logs
func (mi *MethodInformation) Signature() string {
	parameterNames := lo.Map(mi.ParameterTypes, func(parameterType reflect.Type, _ int) string {
		return parameterType.String()
	})

	signature := fmt.Sprintf("%s.%s(%s)", mi.Owner, mi.Name, strings.Join(parameterNames, ", "))
	if !mi.VoidMethod {
		signature += " " + mi.ReturnType.String()
	}

	return signature
}

// invoke calls the method and splits its outputs into the result and the returned error
func (mi *MethodInformation) invoke(instance reflect.Value, arguments []reflect.Value) (interface{}, error) {
	callArguments := arguments
	if !mi.Static {
		callArguments = append([]reflect.Value{instance}, arguments...)
	}

	outputs := mi.function.Call(callArguments)

	var result interface{}
	if !mi.VoidMethod {
		result = outputs[0].Interface()
	}

	if mi.ReturnsError {
		if returnedErr := outputs[len(outputs)-1]; !returnedErr.IsNil() {
			return nil, returnedErr.Interface().(error)
		}
	}

	return result, nil
}

// Class is the method resolution table of one handler type. Candidate lists are computed
// once per method name and never invalidated
type Class struct {
	name       string
	typ        reflect.Type
	methods    []*MethodInformation
	candidates sync.Map
	scans      atomic.Int64
}

// CanonicalName returns the package-qualified name of typ, ignoring pointer indirections
func CanonicalName(typ reflect.Type) string {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	if typ.PkgPath() == "" || typ.Name() == "" {
		return typ.String()
	}

	return typ.PkgPath() + "." + typ.Name()
}

// ClassOf builds the class of typ from its exported methods. Methods with unsupported
// result lists are left out
func ClassOf(typ reflect.Type) (*Class, error) {
	if typ == nil {
		return nil, errors.New("Can't build class of nil type")
	}

	class := &Class{
		name: CanonicalName(typ),
		typ:  typ,
	}

	for methodIndex := 0; methodIndex < typ.NumMethod(); methodIndex++ {
		method := typ.Method(methodIndex)

		var methodInformation *MethodInformation
		var err error

		// interface methods carry no receiver in their func type
		if typ.Kind() == reflect.Interface {
			methodInformation, err = newMethodInformation(class.name, method.Name, method.Type, false)
			if err == nil {
				methodInformation.function = interfaceMethodCaller(method.Name, method.Type)
			}
		} else {
			methodInformation, err = newMethodInformation(class.name, method.Name, method.Type, true)
			if err == nil {
				methodInformation.function = method.Func
			}
		}

		if err != nil {
			continue
		}

		class.methods = append(class.methods, methodInformation)
	}

	return class, nil
}

// Name returns the canonical name the class is registered and addressed by
func (c *Class) Name() string {
	return c.name
}

// Type returns the receiver type of the class, or nil for classes made of static functions only
func (c *Class) Type() reflect.Type {
	return c.typ
}

// Methods returns all methods of the class
func (c *Class) Methods() []*MethodInformation {
	return append([]*MethodInformation{}, c.methods...)
}

// Find returns the only method with the given name and argument count. A negative
// argument count matches any arity. More than one candidate is reported as ambiguous
func (c *Class) Find(methodName string, argumentCount int) (*MethodInformation, error) {
	candidates := c.candidatesByArity(methodName, argumentCount)

	switch len(candidates) {
	case 0:
		return nil, &MethodNotFoundError{
			ClassName:     c.name,
			MethodName:    methodName,
			ArgumentCount: argumentCount,
		}
	case 1:
		return candidates[0], nil
	default:
		return nil, c.ambiguous(methodName, candidates)
	}
}

// Resolve picks the overload of methodName that best fits arguments. A single candidate
// of the right arity is selected without scoring; conversion failures surface when the
// arguments are decoded
func (c *Class) Resolve(methodName string,
	arguments []Argument,
	normalizePrimitives bool) (*MethodInformation, error) {
	candidates := c.candidatesByArity(methodName, len(arguments))

	switch len(candidates) {
	case 0:
		return nil, &MethodNotFoundError{
			ClassName:     c.name,
			MethodName:    methodName,
			ArgumentCount: len(arguments),
		}
	case 1:
		return candidates[0], nil
	}

	bestScore := incompatible
	var best []*MethodInformation

	for _, candidate := range candidates {
		score := scoreArguments(candidate, arguments, normalizePrimitives)

		switch {
		case score == incompatible || score < bestScore:
			continue
		case score > bestScore:
			bestScore = score
			best = []*MethodInformation{candidate}
		default:
			best = append(best, candidate)
		}
	}

	switch len(best) {
	case 0:
		return nil, &MethodNotFoundError{
			ClassName:     c.name,
			MethodName:    methodName + describeArguments(arguments),
			ArgumentCount: len(arguments),
		}
	case 1:
		return best[0], nil
	default:
		return nil, c.ambiguous(methodName, best)
	}
}

func (c *Class) candidatesByArity(methodName string, argumentCount int) []*MethodInformation {
	return lo.Filter(c.candidatesByName(methodName), func(candidate *MethodInformation, _ int) bool {
		return argumentCount < 0 || len(candidate.ParameterTypes) == argumentCount
	})
}

func (c *Class) candidatesByName(methodName string) []*MethodInformation {
	if cached, found := c.candidates.Load(methodName); found {
		return cached.([]*MethodInformation)
	}

	c.scans.Add(1)
	candidates := lo.Filter(c.methods, func(method *MethodInformation, _ int) bool {
		return method.Name == methodName
	})

	cached, _ := c.candidates.LoadOrStore(methodName, candidates)
	return cached.([]*MethodInformation)
}

func (c *Class) ambiguous(methodName string, candidates []*MethodInformation) error {
	return &AmbiguousOverloadError{
		ClassName:  c.name,
		MethodName: methodName,
		Candidates: lo.Map(candidates, func(candidate *MethodInformation, _ int) string {
			return candidate.Signature()
		}),
	}
}

// scoreArguments sums the compatibility of every argument, or returns incompatible if any
// argument can't be passed
func scoreArguments(method *MethodInformation, arguments []Argument, normalizePrimitives bool) int {
	score := 0

	for argumentIndex, argument := range arguments {
		argumentScore := compatibility(argument, method.ParameterTypes[argumentIndex], normalizePrimitives)
		if argumentScore == incompatible {
			return incompatible
		}

		score += argumentScore
	}

	return score
}

// ClassBuilder assembles a class explicitly, which allows overloads (several functions
// under one method name) and static functions
type ClassBuilder struct {
	class *Class
	err   error
}

// NewClassBuilder starts a class with the given canonical name
func NewClassBuilder(name string) *ClassBuilder {
	return &ClassBuilder{
		class: &Class{name: name},
	}
}

// Method adds methodExpression, a function whose first parameter is the receiver
// (e.g. (*Service).Echo), under methodName
func (cb *ClassBuilder) Method(methodName string, methodExpression interface{}) *ClassBuilder {
	if cb.err != nil {
		return cb
	}

	function := reflect.ValueOf(methodExpression)
	if function.Kind() != reflect.Func || function.Type().NumIn() == 0 {
		cb.err = errors.Errorf("Method %s must be a function taking the receiver first", methodName)
		return cb
	}

	receiverType := function.Type().In(0)
	switch {
	case cb.class.typ == nil:
		cb.class.typ = receiverType
	case !cb.class.typ.AssignableTo(receiverType):
		cb.err = errors.Errorf("Method %s takes receiver %s, class receiver is %s",
			methodName,
			receiverType,
			cb.class.typ)
		return cb
	}

	return cb.add(methodName, function, true)
}

// StaticFunction adds function under methodName; it is invoked without an instance
func (cb *ClassBuilder) StaticFunction(methodName string, function interface{}) *ClassBuilder {
	if cb.err != nil {
		return cb
	}

	functionValue := reflect.ValueOf(function)
	if functionValue.Kind() != reflect.Func {
		cb.err = errors.Errorf("Static function %s is not a function", methodName)
		return cb
	}

	return cb.add(methodName, functionValue, false)
}

// Build returns the class, or the first error encountered while adding methods
func (cb *ClassBuilder) Build() (*Class, error) {
	if cb.err != nil {
		return nil, errors.Wrapf(cb.err, "Failed to build class %s", cb.class.name)
	}

	return cb.class, nil
}

func (cb *ClassBuilder) add(methodName string, function reflect.Value, hasReceiver bool) *ClassBuilder {
	methodInformation, err := newMethodInformation(cb.class.name, methodName, function.Type(), hasReceiver)
	if err != nil {
		cb.err = err
		return cb
	}

	methodInformation.Static = !hasReceiver
	methodInformation.function = function
	cb.class.methods = append(cb.class.methods, methodInformation)

	return cb
}

// newMethodInformation validates the shape of a function type. Supported results are
// (), (T), (error) and (T, error)
func newMethodInformation(owner string,
	methodName string,
	functionType reflect.Type,
	hasReceiver bool) (*MethodInformation, error) {
	if functionType.IsVariadic() {
		return nil, errors.Errorf("Variadic method %s is not supported", methodName)
	}

	firstParameter := 0
	if hasReceiver {
		firstParameter = 1
	}

	methodInformation := &MethodInformation{
		Owner: owner,
		Name:  methodName,
	}

	for parameterIndex := firstParameter; parameterIndex < functionType.NumIn(); parameterIndex++ {
		methodInformation.ParameterTypes = append(methodInformation.ParameterTypes, functionType.In(parameterIndex))
	}

	switch functionType.NumOut() {
	case 0:
		methodInformation.VoidMethod = true
	case 1:
		if functionType.Out(0) == errorType {
			methodInformation.VoidMethod = true
			methodInformation.ReturnsError = true
		} else {
			methodInformation.ReturnType = functionType.Out(0)
		}
	case 2:
		if functionType.Out(1) != errorType {
			return nil, errors.Errorf("Second result of method %s must be an error", methodName)
		}

		methodInformation.ReturnType = functionType.Out(0)
		methodInformation.ReturnsError = true
	default:
		return nil, errors.Errorf("Method %s returns too many results", methodName)
	}

	return methodInformation, nil
}

// interfaceMethodCaller returns a function taking the receiver first that calls the named
// method on it, so interface classes invoke the same way as concrete ones
func interfaceMethodCaller(methodName string, methodType reflect.Type) reflect.Value {
	parameterTypes := []reflect.Type{reflect.TypeOf((*interface{})(nil)).Elem()}
	for parameterIndex := 0; parameterIndex < methodType.NumIn(); parameterIndex++ {
		parameterTypes = append(parameterTypes, methodType.In(parameterIndex))
	}

	resultTypes := make([]reflect.Type, 0, methodType.NumOut())
	for resultIndex := 0; resultIndex < methodType.NumOut(); resultIndex++ {
		resultTypes = append(resultTypes, methodType.Out(resultIndex))
	}

	callerType := reflect.FuncOf(parameterTypes, resultTypes, false)

	return reflect.MakeFunc(callerType, func(arguments []reflect.Value) []reflect.Value {
		receiver := arguments[0]
		if receiver.Kind() == reflect.Interface {
			receiver = receiver.Elem()
		}

		return receiver.MethodByName(methodName).Call(arguments[1:])
	})
}
