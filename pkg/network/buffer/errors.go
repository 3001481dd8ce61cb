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

package buffer

import (
	"fmt"

	"github.com/nuclio/errors"
)

var (
	ErrReleased       = errors.New("Buffer was already released")
	ErrNoObjectMapper = errors.New("No object mapper bound to buffer")
)

// UnderflowError is returned when a read requests more bytes than were written
type UnderflowError struct {
	Requested int
	Available int
}

func (e *UnderflowError) Error() string {
	return fmt.Sprintf("Buffer underflow: requested %d bytes, %d readable", e.Requested, e.Available)
}

// MalformedError is returned when a length prefix or presence flag can't be valid
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "Malformed buffer content: " + e.Reason
}

// IsUnderflow returns whether the root cause of err is an underflow
func IsUnderflow(err error) bool {
	_, ok := errors.RootCause(err).(*UnderflowError)
	return ok
}

// IsMalformed returns whether the root cause of err is malformed content
func IsMalformed(err error) bool {
	_, ok := errors.RootCause(err).(*MalformedError)
	return ok
}
