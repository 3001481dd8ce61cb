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

	"github.com/cloudnetservice/cloudnet/pkg/common/task"
	"github.com/cloudnetservice/cloudnet/pkg/network/packet"

	"github.com/nuclio/errors"
)

// Sender builds calls to the methods of one class on the remote side of a channel
type Sender struct {
	factory *Factory
	class   *Class
	channel packet.NetworkChannel
}

func (s *Sender) Class() *Class {
	return s.class
}

func (s *Sender) Channel() packet.NetworkChannel {
	return s.channel
}

// InvokeMethod returns a call of methodName with args. The overload is resolved locally
// from the argument types so the result type is known before anything is sent
func (s *Sender) InvokeMethod(methodName string, args ...interface{}) (*RPC, error) {
	arguments := make([]Argument, 0, len(args))
	for argumentIndex, arg := range args {
		argument, err := NewArgument(s.factory.mapper, s.factory.bufferFactory, arg)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to encode argument %d of %s", argumentIndex, methodName)
		}

		arguments = append(arguments, argument)
	}

	normalizePrimitives := s.factory.NormalizePrimitives()

	method, err := s.class.Resolve(methodName, arguments, normalizePrimitives)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to resolve %s.%s", s.class.name, methodName)
	}

	return &RPC{
		sender:              s,
		className:           s.class.name,
		method:              method,
		arguments:           arguments,
		expectsResult:       true,
		normalizePrimitives: normalizePrimitives,
	}, nil
}

// fire sends links as one request on the channel of the first link. Without a result to
// wait for the packet is sent one-way and the returned task is already completed
func fire(ctx context.Context, links []*RPC, oneWay bool) *task.Task[interface{}] {
	head := links[0]
	last := links[len(links)-1]
	factory := head.sender.factory
	channel := head.sender.channel

	content := encodeRequest(factory.bufferFactory.CreateEmpty(), factory.bufferFactory, links)
	defer content.Release()

	request := packet.NewPacket(packet.RPCChannel, content)

	if oneWay || !last.expectsResult {
		factory.metrics.callSent(false)

		if err := channel.SendPacket(request); err != nil {
			return task.Failed[interface{}](errors.Wrapf(err, "Failed to send %s", last.method.Signature()))
		}

		return task.Completed[interface{}](nil)
	}

	factory.metrics.callSent(true)
	responseTask := channel.SendQueryAsync(ctx, request)

	return task.Then(responseTask, func(response *packet.Packet) (interface{}, error) {
		defer response.Release()

		result, err := decodeResponse(response.Content, last.method.ReturnType, factory.mapper, factory.bufferFactory)
		if err != nil {
			return nil, errors.Wrapf(err, "Remote call of %s failed", last.method.Signature())
		}

		return result, nil
	})
}
