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
	"path/filepath"
	"reflect"
	"runtime"
	"strings"

	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"

	"github.com/nuclio/errors"
)

// Frame is the first stack element of a remote failure
type Frame struct {
	ClassName  string
	MethodName string
	FileName   *string
	LineNumber int32
}

func (f *Frame) String() string {
	location := "Unknown Source"
	if f.FileName != nil {
		location = fmt.Sprintf("%s:%d", *f.FileName, f.LineNumber)
	}

	return fmt.Sprintf("%s.%s(%s)", f.ClassName, f.MethodName, location)
}

// ClassNamer lets an error choose the class name reported to the remote caller
type ClassNamer interface {
	ClassName() string
}

// ErrorClassName returns the class name an error is reported with: ClassName() when
// implemented by the root cause, otherwise the simple name of its Go type
func ErrorClassName(err error) string {
	rootCause := errors.RootCause(err)
	if rootCause == nil {
		rootCause = err
	}

	if namer, ok := rootCause.(ClassNamer); ok {
		return namer.ClassName()
	}

	typ := reflect.TypeOf(rootCause)
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	if typ.Name() == "" {
		return typ.String()
	}

	return typ.Name()
}

// errorMessage returns the message of the root cause, nil if it has none
func errorMessage(err error) *string {
	rootCause := errors.RootCause(err)
	if rootCause == nil {
		rootCause = err
	}

	message := rootCause.Error()
	if message == "" {
		return nil
	}

	return &message
}

// returnedErrorFrame locates a returned error by the line info nuclio errors record
func returnedErrorFrame(method *MethodInformation, err error) *Frame {
	type lineInformer interface {
		LineInfo() (string, int)
	}

	candidates := []error{errors.RootCause(err), err}
	for _, candidate := range candidates {
		informer, ok := candidate.(lineInformer)
		if !ok {
			continue
		}

		fileName, lineNumber := informer.LineInfo()
		if fileName == "" {
			continue
		}

		baseName := filepath.Base(fileName)
		return &Frame{
			ClassName:  method.Owner,
			MethodName: method.Name,
			FileName:   &baseName,
			LineNumber: int32(lineNumber),
		}
	}

	return nil
}

// panicFrame returns the frame that panicked. Must be called while the panic unwinds,
// i.e. from a deferred function
func panicFrame() *Frame {
	programCounters := make([]uintptr, 32)
	frames := runtime.CallersFrames(programCounters[:runtime.Callers(2, programCounters)])

	panicking := false
	for {
		frame, more := frames.Next()

		switch {
		case frame.Function == "runtime.gopanic":
			panicking = true
		case panicking && !strings.HasPrefix(frame.Function, "runtime."):
			className, methodName := splitFunctionName(frame.Function)
			fileName := filepath.Base(frame.File)

			return &Frame{
				ClassName:  className,
				MethodName: methodName,
				FileName:   &fileName,
				LineNumber: int32(frame.Line),
			}
		}

		if !more {
			return nil
		}
	}
}

// splitFunctionName splits "pkg/path.(*Type).Method" into "pkg/path.(*Type)" and "Method"
func splitFunctionName(function string) (string, string) {
	packageStart := strings.LastIndex(function, "/") + 1

	separator := strings.LastIndex(function[packageStart:], ".")
	if separator < 0 {
		return function, function
	}

	separator += packageStart
	return function[:separator], function[separator+1:]
}

// SerializeError writes the class name, message and frame of err. Frame is optional
func SerializeError(target buffer.Mutable, err error, frame *Frame) buffer.Mutable {
	target.WriteString(ErrorClassName(err))
	buffer.WriteNullableString(target, errorMessage(err))

	buffer.WriteNullable(target, frame, func(target buffer.Mutable, frame Frame) error { // nolint: errcheck
		target.WriteString(frame.ClassName).WriteString(frame.MethodName)
		buffer.WriteNullableString(target, frame.FileName)
		target.WriteInt(frame.LineNumber)
		return nil
	})

	return target
}

// DeserializeError reads what SerializeError wrote into an execution error
func DeserializeError(source buffer.DataBuf) (*ExecutionError, error) {
	className, err := source.ReadString()
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read error class name")
	}

	message, err := buffer.ReadNullableString(source)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read error message")
	}

	frame, err := buffer.ReadNullable[*Frame](source, readFrame, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read error frame")
	}

	return &ExecutionError{
		ClassName: className,
		Message:   message,
		Frame:     frame,
	}, nil
}

func readFrame(source buffer.DataBuf) (*Frame, error) {
	className, err := source.ReadString()
	if err != nil {
		return nil, err
	}

	methodName, err := source.ReadString()
	if err != nil {
		return nil, err
	}

	fileName, err := buffer.ReadNullableString(source)
	if err != nil {
		return nil, err
	}

	lineNumber, err := source.ReadInt()
	if err != nil {
		return nil, err
	}

	return &Frame{
		ClassName:  className,
		MethodName: methodName,
		FileName:   fileName,
		LineNumber: lineNumber,
	}, nil
}
