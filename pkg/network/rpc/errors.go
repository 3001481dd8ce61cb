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
	"strings"

	"github.com/nuclio/errors"
)

// messages sent back for requests that couldn't be evaluated
const (
	invalidChainLengthMessage = "invalid chain length"
	invalidRequestMessage     = "invalid request"
	missingHandlerMessage     = "missing explicitly defined target handler to call"
	missingInstanceMessage    = "no instance to invoke the method on"
	methodNotFoundMessage     = "target method not found"
	argumentMismatchPrefix    = "provided arguments do not satisfy "
)

var (
	ErrNoInstance = errors.New(missingInstanceMessage)
)

// MethodNotFoundError is returned when no method of a class matches a name and arguments
type MethodNotFoundError struct {
	ClassName     string
	MethodName    string
	ArgumentCount int
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("No method %s with %d arguments in %s", e.MethodName, e.ArgumentCount, e.ClassName)
}

// AmbiguousOverloadError is returned when more than one overload fits equally well
type AmbiguousOverloadError struct {
	ClassName  string
	MethodName string
	Candidates []string
}

func (e *AmbiguousOverloadError) Error() string {
	return fmt.Sprintf("Cannot decide which overload of %s.%s to call: %s",
		e.ClassName,
		e.MethodName,
		strings.Join(e.Candidates, ", "))
}

// ArgumentMismatchError is returned when received arguments can't be passed to the resolved method
type ArgumentMismatchError struct {
	Signature string
	Position  int
	Reason    string
}

func (e *ArgumentMismatchError) Error() string {
	return fmt.Sprintf("Argument %d doesn't satisfy %s: %s", e.Position, e.Signature, e.Reason)
}

// MissingContextFieldError is returned when an invocation context is built without a required field
type MissingContextFieldError struct {
	Field string
}

func (e *MissingContextFieldError) Error() string {
	return "Invocation context is missing required field " + e.Field
}

// MissingHandlerError is returned when a request addresses a class without a registered handler
type MissingHandlerError struct {
	ClassName string
}

func (e *MissingHandlerError) Error() string {
	return "No handler registered for " + e.ClassName
}

// ExecutionError is a failure of the invoked method on the remote side
type ExecutionError struct {
	ClassName  string
	Message    *string
	Frame      *Frame
	ChainIndex int32
}

func (e *ExecutionError) Error() string {
	description := "Remote invocation failed with " + e.ClassName

	if e.Message != nil {
		description += ": " + *e.Message
	}

	if e.Frame != nil {
		description += " at " + e.Frame.String()
	}

	if e.ChainIndex > 0 {
		description += fmt.Sprintf(" (chain link %d)", e.ChainIndex)
	}

	return description
}

// RequestError is returned when the remote side rejected a request before invoking anything,
// or couldn't find what to invoke it on
type RequestError struct {
	Status     ResponseStatus
	Message    string
	ChainIndex int32
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("Remote rejected request (%s, chain link %d): %s", e.Status, e.ChainIndex, e.Message)
}

// AsExecutionError returns the remote execution error behind err, if there is one
func AsExecutionError(err error) (*ExecutionError, bool) {
	executionErr, ok := errors.RootCause(err).(*ExecutionError)
	return executionErr, ok
}

// AsRequestError returns the remote request error behind err, if there is one
func AsRequestError(err error) (*RequestError, bool) {
	requestErr, ok := errors.RootCause(err).(*RequestError)
	return requestErr, ok
}

func IsMethodNotFound(err error) bool {
	_, ok := errors.RootCause(err).(*MethodNotFoundError)
	return ok
}

func IsAmbiguousOverload(err error) bool {
	_, ok := errors.RootCause(err).(*AmbiguousOverloadError)
	return ok
}
