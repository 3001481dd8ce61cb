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

package chunk

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/nuclio/errors"
)

var ErrInvalidChunkSize = errors.New("Chunk size must be positive")

// IncompleteTransferError is returned when the terminal chunk announces a different number of
// chunks than the session received
type IncompleteTransferError struct {
	SessionID uuid.UUID
	Announced int32
	Received  int32
}

func (e *IncompleteTransferError) Error() string {
	return fmt.Sprintf("Incomplete transfer of session %s: terminal chunk announced %d chunks, received %d",
		e.SessionID,
		e.Announced,
		e.Received)
}

// IsIncompleteTransfer returns whether the root cause of err is an incomplete transfer
func IsIncompleteTransfer(err error) bool {
	_, ok := errors.RootCause(err).(*IncompleteTransferError)
	return ok
}

// SessionClosedError is returned for a chunk of a session that was closed while the chunk
// was waiting for it, e.g. because the session expired
type SessionClosedError struct {
	SessionID uuid.UUID
}

func (e *SessionClosedError) Error() string {
	return fmt.Sprintf("Session %s was closed", e.SessionID)
}
