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
	"github.com/cloudnetservice/cloudnet/pkg/common"
	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"
	"github.com/cloudnetservice/cloudnet/pkg/network/packet"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/rs/xid"
)

// Listener evaluates RPC requests arriving on packet.RPCChannel against a handler registry
// and answers queries
type Listener struct {
	logger        logger.Logger
	registry      *HandlerRegistry
	mapper        buffer.ObjectMapper
	bufferFactory *buffer.Factory
}

// chainOutcome is the result of evaluating a request: the last handling result and the
// index of the link it belongs to
type chainOutcome struct {
	result     *HandlingResult
	chainIndex int32
	link       *inboundLink
}

func (l *Listener) HandlePacket(channel packet.NetworkChannel, receivedPacket *packet.Packet) error {
	requestLogger := l.logger.GetChild(xid.New().String())
	response := l.bufferFactory.CreateEmpty()
	defer func() {
		response.Release()
	}()

	links, err := decodeRequest(receivedPacket.Content)
	if err != nil {
		requestLogger.DebugWith("Received malformed request",
			"channel", channel.ID(),
			"err", errors.RootCause(err).Error())

		message := invalidRequestMessage
		if _, isChainLengthErr := errors.RootCause(err).(*invalidChainLengthError); isChainLengthErr {
			message = invalidChainLengthMessage
		}

		writeRequestFailure(response, StatusBadRequest, message, 0)
		return l.respond(channel, receivedPacket, response)
	}

	defer releaseLinks(links)

	outcome := l.evaluate(channel, links)
	if err := l.writeOutcome(response, outcome); err != nil {
		requestLogger.WarnWith("Failed to write invocation result",
			"method", outcome.link.methodName,
			"err", errors.RootCause(err).Error())

		response.Release()
		response = l.bufferFactory.CreateEmpty()
		writeRequestFailure(response, StatusServerError, err.Error(), outcome.chainIndex)
	}

	requestLogger.DebugWith("Evaluated request",
		"channel", channel.ID(),
		"links", len(links),
		"status", outcome.result.Status.String(),
		"chainIndex", outcome.chainIndex)

	return l.respond(channel, receivedPacket, response)
}

// evaluate invokes the links in order. Every link after the first is invoked on the result
// of the previous one; the first link that fails ends the evaluation
func (l *Listener) evaluate(channel packet.NetworkChannel, links []*inboundLink) *chainOutcome {
	var workingInstance interface{}

	for linkIndex, link := range links {
		chainIndex := int32(linkIndex)

		handler := l.registry.Handler(link.className)
		if handler == nil {
			return &chainOutcome{
				result: &HandlingResult{
					Status: StatusBadRequest,
					Err:    &MissingHandlerError{ClassName: link.className},
				},
				chainIndex: chainIndex,
				link:       link,
			}
		}

		contextBuilder := NewInvocationContextBuilder().
			MethodName(link.methodName).
			Channel(channel).
			ArgumentInformation(link.argumentInformation).
			ExpectsMethodResult(link.expectsResult).
			NormalizePrimitives(link.normalizePrimitives).
			ChainIndex(chainIndex)

		if linkIndex > 0 {
			contextBuilder.WorkingInstance(workingInstance).StrictInstanceUsage(true)
		}

		invocationContext, err := contextBuilder.Build()
		if err != nil {
			return &chainOutcome{
				result:     badRequest(err),
				chainIndex: chainIndex,
				link:       link,
			}
		}

		result := handler.Handle(invocationContext)
		if !result.Succeeded() || linkIndex == len(links)-1 {
			return &chainOutcome{
				result:     result,
				chainIndex: chainIndex,
				link:       link,
			}
		}

		workingInstance = result.Result
	}

	return nil
}

func (l *Listener) writeOutcome(response buffer.Mutable, outcome *chainOutcome) error {
	result := outcome.result

	switch result.Status {
	case StatusOK:
		if !outcome.link.expectsResult || result.Method.VoidMethod {
			writeResult(response, Argument{Tag: TagNull})
			return nil
		}

		resultArgument, err := NewArgument(l.mapper, l.bufferFactory, result.Result)
		if err != nil {
			return errors.Wrapf(err, "Failed to serialize result of %s", result.Method.Signature())
		}

		writeResult(response, resultArgument)

	case StatusException:
		writeException(response, result.Err, result.Frame, outcome.chainIndex)

	default:
		writeRequestFailure(response, result.Status, failureMessage(outcome), outcome.chainIndex)
	}

	return nil
}

// respond sends response if the request was a query
func (l *Listener) respond(channel packet.NetworkChannel, request *packet.Packet, response buffer.Mutable) error {
	if !request.IsQuery() {
		return nil
	}

	if err := channel.SendPacket(request.ConstructResponse(response)); err != nil {
		return errors.Wrap(err, string(common.FailedSendResponse))
	}

	return nil
}

// failureMessage is the message sent to the caller when a link couldn't be invoked
func failureMessage(outcome *chainOutcome) string {
	result := outcome.result

	switch typedErr := errors.RootCause(result.Err).(type) {
	case *AmbiguousOverloadError:
		return typedErr.Error()
	case *MethodNotFoundError:
		return methodNotFoundMessage
	case *ArgumentMismatchError:
		return argumentMismatchPrefix + typedErr.Signature
	case *MissingContextFieldError:
		return typedErr.Error()
	case *MissingHandlerError:
		return missingHandlerMessage
	}

	if result.Status == StatusServerError && errors.RootCause(result.Err) == ErrNoInstance {
		return missingInstanceMessage
	}

	return result.Err.Error()
}
