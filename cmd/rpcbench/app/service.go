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

package app

import (
	"context"
	"sync/atomic"
)

// benchAPI is the client side of benchService
type benchAPI struct {
	Echo func(ctx context.Context, payload string) (string, error)
}

// benchService is the remote side of the call benchmark
type benchService struct {
	invocations atomic.Int64
}

func (bs *benchService) Echo(payload string) string {
	bs.invocations.Add(1)
	return payload
}

func (bs *benchService) Tally(start int64) *Tally {
	bs.invocations.Add(1)
	return &Tally{Value: start}
}

// Tally is the working instance of chained calls
type Tally struct {
	Value int64
}

func (t *Tally) Add(delta int64) *Tally {
	return &Tally{Value: t.Value + delta}
}

func (t *Tally) Current() int64 {
	return t.Value
}
