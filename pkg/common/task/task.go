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

package task

import (
	"context"
	"sync"
)

// Task is a result that is completed exactly once, by whoever owns the producing side.
// Consumers either block in Get or select on Done
type Task[T any] struct {
	done   chan struct{}
	once   sync.Once
	result T
	err    error
}

// NewTask returns an uncompleted task
func NewTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

// Completed returns a task already completed with value
func Completed[T any](value T) *Task[T] {
	task := NewTask[T]()
	task.Complete(value)
	return task
}

// Failed returns a task already failed with err
func Failed[T any](err error) *Task[T] {
	task := NewTask[T]()
	task.Fail(err)
	return task
}

// Complete resolves the task. Returns false if the task was already resolved
func (t *Task[T]) Complete(value T) bool {
	return t.resolve(value, nil)
}

// Fail rejects the task. Returns false if the task was already resolved
func (t *Task[T]) Fail(err error) bool {
	var zero T
	return t.resolve(zero, err)
}

// Done is closed once the task is resolved
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Get blocks until the task is resolved or ctx is done. Abandoning a task through ctx
// doesn't affect the producer
func (t *Task[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then returns a task resolved with the result of mapper applied to this task's value.
// Failures propagate without calling mapper
func Then[T any, R any](source *Task[T], mapper func(T) (R, error)) *Task[R] {
	mapped := NewTask[R]()

	go func() {
		<-source.done
		if source.err != nil {
			mapped.Fail(source.err)
			return
		}

		result, err := mapper(source.result)
		if err != nil {
			mapped.Fail(err)
			return
		}

		mapped.Complete(result)
	}()

	return mapped
}

func (t *Task[T]) resolve(value T, err error) bool {
	resolved := false

	t.once.Do(func() {
		t.result = value
		t.err = err
		resolved = true
		close(t.done)
	})

	return resolved
}
