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

	"github.com/cloudnetservice/cloudnet/pkg/common/task"

	"github.com/nuclio/errors"
)

// RPC is one remote method call. It is immutable; the modifiers return changed copies
type RPC struct {
	sender              *Sender
	className           string
	method              *MethodInformation
	arguments           []Argument
	expectsResult       bool
	normalizePrimitives bool
}

func (r *RPC) ClassName() string {
	return r.className
}

func (r *RPC) MethodName() string {
	return r.method.Name
}

func (r *RPC) Method() *MethodInformation {
	return r.method
}

// Arguments returns a copy of the encoded arguments
func (r *RPC) Arguments() []Argument {
	return append([]Argument{}, r.arguments...)
}

// ResultType returns the type the result is decoded to, nil for void methods
func (r *RPC) ResultType() reflect.Type {
	return r.method.ReturnType
}

func (r *RPC) ExpectsResult() bool {
	return r.expectsResult
}

// DropResult returns a copy of the call whose result is neither sent back nor awaited
func (r *RPC) DropResult() *RPC {
	dropped := *r
	dropped.expectsResult = false
	return &dropped
}

// NormalizePrimitives returns a copy of the call with the given coercion mode for the
// remote argument decoding
func (r *RPC) NormalizePrimitives(normalizePrimitives bool) *RPC {
	normalized := *r
	normalized.normalizePrimitives = normalizePrimitives
	return &normalized
}

// Join returns a chain invoking next on the result of this call
func (r *RPC) Join(next *RPC) *Chain {
	return &Chain{
		head:  r,
		joins: []*RPC{next},
	}
}

// JoinMethod joins a call of methodName on the result of this call. The class of the next
// call is the result type of this one
func (r *RPC) JoinMethod(methodName string, args ...interface{}) (*Chain, error) {
	next, err := r.next(methodName, args...)
	if err != nil {
		return nil, err
	}

	return r.Join(next), nil
}

// FireAndForget sends the call without waiting for it to be handled
func (r *RPC) FireAndForget() error {
	_, err := fire(context.Background(), []*RPC{r.DropResult()}, true).Get(context.Background())
	return err
}

// Fire sends the call and returns a task completed with the decoded result. The task fails
// with an *ExecutionError if the remote method failed, a *RequestError if it couldn't be
// invoked, and with the transport error if the query failed
func (r *RPC) Fire(ctx context.Context) *task.Task[interface{}] {
	return fire(ctx, []*RPC{r}, false)
}

// FireSync is Fire, waiting for the result
func (r *RPC) FireSync(ctx context.Context) (interface{}, error) {
	return r.Fire(ctx).Get(ctx)
}

func (r *RPC) next(methodName string, args ...interface{}) (*RPC, error) {
	if r.method.ReturnType == nil {
		return nil, errors.Errorf("Can't join %s on %s, it has no result", methodName, r.method.Signature())
	}

	sender, err := r.sender.factory.NewSenderForType(r.method.ReturnType, r.sender.channel)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create sender for result of %s", r.method.Signature())
	}

	return sender.InvokeMethod(methodName, args...)
}
