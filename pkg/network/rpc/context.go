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
	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"
	"github.com/cloudnetservice/cloudnet/pkg/network/packet"
)

// InvocationContext holds everything needed to execute one inbound call
type InvocationContext struct {
	MethodName          string
	Channel             packet.NetworkChannel
	ArgumentInformation buffer.DataBuf

	// ArgumentCount is -1 when the count is read from ArgumentInformation
	ArgumentCount       int
	WorkingInstance     interface{}
	ExpectsMethodResult bool
	NormalizePrimitives bool
	StrictInstanceUsage bool
	ChainIndex          int32
}

// InvocationContextBuilder validates that required fields were set before building
type InvocationContextBuilder struct {
	context InvocationContext

	hasMethodName          bool
	hasChannel             bool
	hasArgumentInformation bool
}

func NewInvocationContextBuilder() *InvocationContextBuilder {
	return &InvocationContextBuilder{
		context: InvocationContext{
			ArgumentCount:       -1,
			ExpectsMethodResult: true,
			NormalizePrimitives: true,
		},
	}
}

func (b *InvocationContextBuilder) MethodName(methodName string) *InvocationContextBuilder {
	b.context.MethodName = methodName
	b.hasMethodName = methodName != ""
	return b
}

func (b *InvocationContextBuilder) Channel(channel packet.NetworkChannel) *InvocationContextBuilder {
	b.context.Channel = channel
	b.hasChannel = channel != nil
	return b
}

func (b *InvocationContextBuilder) ArgumentInformation(argumentInformation buffer.DataBuf) *InvocationContextBuilder {
	b.context.ArgumentInformation = argumentInformation
	b.hasArgumentInformation = argumentInformation != nil
	return b
}

func (b *InvocationContextBuilder) ArgumentCount(argumentCount int) *InvocationContextBuilder {
	b.context.ArgumentCount = argumentCount
	return b
}

func (b *InvocationContextBuilder) WorkingInstance(instance interface{}) *InvocationContextBuilder {
	b.context.WorkingInstance = instance
	return b
}

func (b *InvocationContextBuilder) ExpectsMethodResult(expectsMethodResult bool) *InvocationContextBuilder {
	b.context.ExpectsMethodResult = expectsMethodResult
	return b
}

func (b *InvocationContextBuilder) NormalizePrimitives(normalizePrimitives bool) *InvocationContextBuilder {
	b.context.NormalizePrimitives = normalizePrimitives
	return b
}

func (b *InvocationContextBuilder) StrictInstanceUsage(strictInstanceUsage bool) *InvocationContextBuilder {
	b.context.StrictInstanceUsage = strictInstanceUsage
	return b
}

func (b *InvocationContextBuilder) ChainIndex(chainIndex int32) *InvocationContextBuilder {
	b.context.ChainIndex = chainIndex
	return b
}

// Build fails with a MissingContextFieldError naming the first required field not set
func (b *InvocationContextBuilder) Build() (*InvocationContext, error) {
	switch {
	case !b.hasMethodName:
		return nil, &MissingContextFieldError{Field: "methodName"}
	case !b.hasChannel:
		return nil, &MissingContextFieldError{Field: "channel"}
	case !b.hasArgumentInformation:
		return nil, &MissingContextFieldError{Field: "argumentInformation"}
	}

	context := b.context
	return &context, nil
}
