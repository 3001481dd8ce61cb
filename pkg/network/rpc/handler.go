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
	"time"

	"github.com/cloudnetservice/cloudnet/pkg/common"
	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// InstanceFactory creates the instance methods are invoked on when a call brings none
type InstanceFactory func() (interface{}, error)

// HandlingResult is the outcome of one invocation
type HandlingResult struct {
	Status ResponseStatus
	Method *MethodInformation

	// Result is the returned value when Status is StatusOK
	Result interface{}

	// Err is what the method returned or panicked with (StatusException), or why it
	// couldn't be invoked
	Err   error
	Frame *Frame
}

// Succeeded returns whether the method was invoked and completed normally
func (hr *HandlingResult) Succeeded() bool {
	return hr.Status == StatusOK
}

// Handler invokes the methods of one class
type Handler struct {
	logger          logger.Logger
	class           *Class
	instance        interface{}
	instanceFactory InstanceFactory
	mapper          buffer.ObjectMapper
	bufferFactory   *buffer.Factory
	metrics         *Metrics
}

// Class returns the class this handler invokes
func (h *Handler) Class() *Class {
	return h.class
}

// Handle resolves the target method of invocationContext, decodes its arguments and
// invokes it. Failures never escape as errors; they are described by the result
func (h *Handler) Handle(invocationContext *InvocationContext) *HandlingResult {
	startTime := time.Now()

	handlingResult := h.handle(invocationContext)
	h.metrics.invocationHandled(h.class.name, handlingResult.Status, time.Since(startTime))

	if !handlingResult.Succeeded() {
		h.logger.DebugWith("Invocation failed",
			"method", invocationContext.MethodName,
			"status", handlingResult.Status.String(),
			"chainIndex", invocationContext.ChainIndex,
			"err", handlingResult.Err.Error())
	}

	return handlingResult
}

func (h *Handler) handle(invocationContext *InvocationContext) *HandlingResult {
	arguments, err := ReadArguments(invocationContext.ArgumentInformation)
	if err != nil {
		return badRequest(errors.Wrap(err, invalidRequestMessage))
	}

	if invocationContext.ArgumentCount >= 0 && invocationContext.ArgumentCount != len(arguments) {
		return badRequest(errors.Errorf("%s: expected %d arguments, got %d",
			invalidRequestMessage,
			invocationContext.ArgumentCount,
			len(arguments)))
	}

	method, err := h.class.Resolve(invocationContext.MethodName, arguments, invocationContext.NormalizePrimitives)
	if err != nil {
		return badRequest(err)
	}

	callArguments := make([]reflect.Value, 0, len(arguments))
	for argumentIndex, argument := range arguments {
		callArgument, err := convertArgument(argument,
			method.ParameterTypes[argumentIndex],
			invocationContext.NormalizePrimitives,
			h.mapper,
			h.bufferFactory)
		if err != nil {
			return &HandlingResult{
				Status: StatusBadRequest,
				Method: method,
				Err: &ArgumentMismatchError{
					Signature: method.Signature(),
					Position:  argumentIndex,
					Reason:    errors.RootCause(err).Error(),
				},
			}
		}

		callArguments = append(callArguments, callArgument)
	}

	var instance reflect.Value
	if !method.Static {
		if instance, err = h.resolveInstance(invocationContext, method); err != nil {
			return &HandlingResult{
				Status: StatusServerError,
				Method: method,
				Err:    err,
			}
		}
	}

	result, frame, err := h.invoke(method, instance, callArguments)
	if err != nil {
		return &HandlingResult{
			Status: StatusException,
			Method: method,
			Err:    err,
			Frame:  frame,
		}
	}

	return &HandlingResult{
		Status: StatusOK,
		Method: method,
		Result: result,
	}
}

// resolveInstance returns the working instance of the call or, unless strict instance usage
// was requested, the handler's own instance
func (h *Handler) resolveInstance(invocationContext *InvocationContext, method *MethodInformation) (reflect.Value, error) {
	instance := invocationContext.WorkingInstance
	if isNilInstance(instance) {
		instance = nil
	}

	if instance == nil && !invocationContext.StrictInstanceUsage {
		switch {
		case h.instance != nil:
			instance = h.instance
		case h.instanceFactory != nil:
			created, err := h.instanceFactory()
			if err != nil {
				return reflect.Value{}, errors.Wrap(err, "Failed to create instance")
			}

			instance = created
		}
	}

	if isNilInstance(instance) {
		return reflect.Value{}, ErrNoInstance
	}

	instanceValue := reflect.ValueOf(instance)

	receiverType := method.function.Type().In(0)
	if h.class.typ != nil && h.class.typ.Kind() == reflect.Interface {
		receiverType = h.class.typ
	}

	if !instanceValue.Type().AssignableTo(receiverType) {
		return reflect.Value{}, errors.Errorf("Instance of type %s can't receive %s",
			instanceValue.Type(),
			method.Signature())
	}

	return instanceValue, nil
}

// invoke calls method; a panic is reported like a returned error, located at the panic site
func (h *Handler) invoke(method *MethodInformation,
	instance reflect.Value,
	arguments []reflect.Value) (result interface{}, frame *Frame, invokeErr error) {
	defer common.CatchAndLogPanicWithOptions(context.Background(), // nolint: errcheck
		h.logger,
		"invoking "+method.Signature(),
		&common.CatchAndLogPanicOptions{
			CustomHandler: func(panicErr error) {
				result = nil
				invokeErr = panicErr
				frame = panicFrame()
			},
		})

	result, invokeErr = method.invoke(instance, arguments)
	if invokeErr != nil {
		frame = returnedErrorFrame(method, invokeErr)
	}

	return result, frame, invokeErr
}

// isNilInstance also treats typed nils, such as a nil pointer returned by a previous chain
// link, as missing
func isNilInstance(instance interface{}) bool {
	if instance == nil {
		return true
	}

	instanceValue := reflect.ValueOf(instance)
	return isNilable(instanceValue.Type()) && instanceValue.IsNil()
}

func badRequest(err error) *HandlingResult {
	return &HandlingResult{
		Status: StatusBadRequest,
		Err:    err,
	}
}
