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
	"io"

	"github.com/google/uuid"
)

// DefaultChunkSize keeps chunks well below the default frame limit of the packet layer
const DefaultChunkSize int32 = 1024 * 1024

// SessionInformation is shared by all chunks of one transfer
type SessionInformation struct {
	TransferType        int32
	ChunkSize           int32
	SessionID           uuid.UUID
	TransferInformation []byte
}

func NewSessionInformation(transferType int32, chunkSize int32, transferInformation []byte) SessionInformation {
	return SessionInformation{
		TransferType:        transferType,
		ChunkSize:           chunkSize,
		SessionID:           uuid.New(),
		TransferInformation: transferInformation,
	}
}

// ChunkedPacket is one piece of a transfer. ChunkAmount is set on the terminal chunk only
type ChunkedPacket struct {
	Session     SessionInformation
	ChunkAmount *int32
	Data        []byte
}

func (cp *ChunkedPacket) IsTerminal() bool {
	return cp.ChunkAmount != nil
}

// Sink receives the payload of one session, in order
type Sink interface {
	io.Writer

	// Complete is called after the terminal chunk, once all announced chunks were written
	Complete() error

	// Abort is called when the session can't complete. The sink discards what it received
	Abort(reason error)
}

// Handler creates the sinks for the sessions of one transfer type
type Handler interface {
	CreateSink(session SessionInformation) (Sink, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(session SessionInformation) (Sink, error)

func (hf HandlerFunc) CreateSink(session SessionInformation) (Sink, error) {
	return hf(session)
}
