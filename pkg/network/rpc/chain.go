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
)

// Chain is a list of calls evaluated remotely in order, each on the result of the previous
// one, sent as one request. Only the result of the last call is sent back
type Chain struct {
	head  *RPC
	joins []*RPC
}

// Links returns the calls of the chain in evaluation order
func (c *Chain) Links() []*RPC {
	return append([]*RPC{c.head}, c.joins...)
}

// Join returns a chain with next appended
func (c *Chain) Join(next *RPC) *Chain {
	joins := make([]*RPC, 0, len(c.joins)+1)
	joins = append(joins, c.joins...)

	return &Chain{
		head:  c.head,
		joins: append(joins, next),
	}
}

// JoinMethod appends a call of methodName on the result of the last call
func (c *Chain) JoinMethod(methodName string, args ...interface{}) (*Chain, error) {
	next, err := c.last().next(methodName, args...)
	if err != nil {
		return nil, err
	}

	return c.Join(next), nil
}

// FireAndForget sends the chain without waiting for it to be evaluated
func (c *Chain) FireAndForget() error {
	links := c.Links()
	links[len(links)-1] = c.last().DropResult()

	_, err := fire(context.Background(), links, true).Get(context.Background())
	return err
}

// Fire sends the chain and returns a task completed with the result of the last call. A
// failing link fails the task; the error carries the index of that link
func (c *Chain) Fire(ctx context.Context) *task.Task[interface{}] {
	return fire(ctx, c.Links(), false)
}

// FireSync is Fire, waiting for the result
func (c *Chain) FireSync(ctx context.Context) (interface{}, error) {
	return c.Fire(ctx).Get(ctx)
}

func (c *Chain) last() *RPC {
	if len(c.joins) == 0 {
		return c.head
	}

	return c.joins[len(c.joins)-1]
}
