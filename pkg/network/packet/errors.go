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

package packet

import (
	"fmt"

	"github.com/nuclio/errors"
)

var (
	ErrChannelClosed  = errors.New("Network channel closed")
	ErrDuplicateQuery = errors.New("A query with the same unique id is already pending")
)

// FrameTooLargeError is returned when a frame exceeds the configured maximum length
type FrameTooLargeError struct {
	Length    int
	MaxLength int
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("Frame of %d bytes exceeds maximum of %d", e.Length, e.MaxLength)
}
