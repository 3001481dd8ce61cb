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

	"github.com/nuclio/errors"
)

// ResponseStatus is the first byte of every RPC response
type ResponseStatus byte

const (
	StatusOK ResponseStatus = iota
	StatusException
	StatusBadRequest
	StatusServerError
)

func (rs ResponseStatus) String() string {
	switch rs {
	case StatusOK:
		return "ok"
	case StatusException:
		return "exception"
	case StatusBadRequest:
		return "bad_request"
	case StatusServerError:
		return "server_error"
	default:
		return fmt.Sprintf("unknown(%d)", byte(rs))
	}
}

// inboundLink is one decoded link of a request; the arguments stay encoded until the
// target method is resolved
type inboundLink struct {
	className           string
	methodName          string
	expectsResult       bool
	normalizePrimitives bool
	argumentInformation buffer.DataBuf
}

// invalidChainLengthError is returned when a request announces no links
type invalidChainLengthError struct {
	chainLength int32
}

func (e *invalidChainLengthError) Error() string {
	return fmt.Sprintf("Request announces %d chain links", e.chainLength)
}

// encodeRequest writes the chain length followed by every link
func encodeRequest(target buffer.Mutable, bufferFactory *buffer.Factory, links []*RPC) buffer.Mutable {
	target.WriteInt(int32(len(links)))

	for linkIndex, link := range links {

		// only the last link of a chain returns its result to the caller
		expectsResult := link.expectsResult
		if linkIndex < len(links)-1 {
			expectsResult = false
		}

		argumentInformation := WriteArguments(bufferFactory.CreateEmpty(), link.arguments)

		target.WriteString(link.className).
			WriteString(link.method.Name).
			WriteBool(expectsResult).
			WriteBool(link.normalizePrimitives).
			WriteDataBuf(argumentInformation)

		argumentInformation.Release()
	}

	return target
}

// decodeRequest reads the links written by encodeRequest. The argument buffers of the
// returned links must be released by the caller
func decodeRequest(source buffer.DataBuf) ([]*inboundLink, error) {
	chainLength, err := source.ReadInt()
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read chain length")
	}

	// a link takes at least its two string lengths, flags and argument buffer length
	if chainLength <= 0 || int(chainLength) > source.ReadableBytes() {
		return nil, &invalidChainLengthError{chainLength: chainLength}
	}

	links := make([]*inboundLink, 0, chainLength)
	for linkIndex := int32(0); linkIndex < chainLength; linkIndex++ {
		link, err := decodeLink(source)
		if err != nil {
			releaseLinks(links)
			return nil, errors.Wrapf(err, "Failed to read chain link %d", linkIndex)
		}

		links = append(links, link)
	}

	return links, nil
}

func decodeLink(source buffer.DataBuf) (*inboundLink, error) {
	link := &inboundLink{}
	var err error

	if link.className, err = source.ReadString(); err != nil {
		return nil, errors.Wrap(err, "Failed to read class name")
	}

	if link.methodName, err = source.ReadString(); err != nil {
		return nil, errors.Wrap(err, "Failed to read method name")
	}

	if link.expectsResult, err = source.ReadBool(); err != nil {
		return nil, errors.Wrap(err, "Failed to read result expectation")
	}

	if link.normalizePrimitives, err = source.ReadBool(); err != nil {
		return nil, errors.Wrap(err, "Failed to read primitive normalization")
	}

	if link.argumentInformation, err = source.ReadDataBuf(); err != nil {
		return nil, errors.Wrap(err, "Failed to read argument information")
	}

	return link, nil
}

func releaseLinks(links []*inboundLink) {
	for _, link := range links {
		link.argumentInformation.Release()
	}
}

// writeResult writes a successful response
func writeResult(target buffer.Mutable, result Argument) buffer.Mutable {
	target.WriteSingleByte(byte(StatusOK))
	return WriteArgument(target, result)
}

// writeException writes the response of a method that failed at chainIndex
func writeException(target buffer.Mutable, err error, frame *Frame, chainIndex int32) buffer.Mutable {
	target.WriteSingleByte(byte(StatusException))
	SerializeError(target, err, frame)
	return target.WriteInt(chainIndex)
}

// writeRequestFailure writes the response of a request that couldn't be invoked
func writeRequestFailure(target buffer.Mutable,
	status ResponseStatus,
	message string,
	chainIndex int32) buffer.Mutable {
	return target.WriteSingleByte(byte(status)).
		WriteString(message).
		WriteInt(chainIndex)
}

// decodeResponse reads a response and converts a successful result to resultType. A nil
// resultType discards the result. Failures are returned as *ExecutionError or *RequestError
func decodeResponse(source buffer.DataBuf,
	resultType reflect.Type,
	mapper buffer.ObjectMapper,
	bufferFactory *buffer.Factory) (interface{}, error) {
	rawStatus, err := source.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read response status")
	}

	switch status := ResponseStatus(rawStatus); status {
	case StatusOK:
		result, err := ReadArgument(source)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to read result")
		}

		if resultType == nil || result.Tag == TagNull {
			return nil, nil
		}

		converted, err := convertArgument(result, resultType, true, mapper, bufferFactory)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to convert result to %s", resultType)
		}

		return converted.Interface(), nil

	case StatusException:
		executionErr, err := DeserializeError(source)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to read remote exception")
		}

		if executionErr.ChainIndex, err = source.ReadInt(); err != nil {
			return nil, errors.Wrap(err, "Failed to read failing chain index")
		}

		return nil, executionErr

	case StatusBadRequest, StatusServerError:
		message, err := source.ReadString()
		if err != nil {
			return nil, errors.Wrap(err, "Failed to read failure message")
		}

		chainIndex, err := source.ReadInt()
		if err != nil {
			return nil, errors.Wrap(err, "Failed to read failing chain index")
		}

		return nil, &RequestError{
			Status:     status,
			Message:    message,
			ChainIndex: chainIndex,
		}

	default:
		return nil, &buffer.MalformedError{Reason: fmt.Sprintf("unknown response status %d", rawStatus)}
	}
}
