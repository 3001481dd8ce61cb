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
	"sync"
	"time"

	"github.com/cloudnetservice/cloudnet/pkg/network/packet"
	"github.com/cloudnetservice/cloudnet/pkg/registry"

	"github.com/google/uuid"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

type receiveSession struct {
	lock           sync.Mutex
	information    SessionInformation
	sink           Sink
	receivedChunks int32
	lastActivity   time.Time
}

// Receiver reassembles chunked transfers. Sessions are independent of each other; chunks of
// one session are expected in order
type Receiver struct {
	logger   logger.Logger
	handlers *registry.Registry[int32, Handler]
	sessions sync.Map
	metrics  *Metrics
	clock    func() time.Time
}

func NewReceiver(parentLogger logger.Logger, metrics *Metrics) *Receiver {
	return &Receiver{
		logger:   parentLogger.GetChild("chunk-receiver"),
		handlers: registry.NewRegistry[int32, Handler]("chunk handler"),
		metrics:  metrics,
		clock:    time.Now,
	}
}

// RegisterHandler binds handler to transferType. Panics if the type already has a handler
func (r *Receiver) RegisterHandler(transferType int32, handler Handler) {
	r.handlers.Register(transferType, handler)
}

func (r *Receiver) UnregisterHandler(transferType int32) bool {
	return r.handlers.Unregister(transferType)
}

// HandlePacket decodes a chunk from the chunked transfer channel
func (r *Receiver) HandlePacket(channel packet.NetworkChannel, receivedPacket *packet.Packet) error {
	chunk, err := DecodeChunkedPacket(receivedPacket.Content)
	if err != nil {
		return errors.Wrapf(err, "Failed to decode chunk from channel %s", channel.ID())
	}

	return r.HandleChunk(chunk)
}

// HandleChunk appends chunk to its session, opening the session on the first chunk. A terminal
// chunk closes the session; if the announced amount doesn't match, the sink is aborted and an
// IncompleteTransferError returned
func (r *Receiver) HandleChunk(chunk *ChunkedPacket) error {
	sessionID := chunk.Session.SessionID

	session, err := r.resolveSession(chunk.Session)
	if err != nil {
		r.metrics.sessionFailed("no_sink")
		return errors.Wrapf(err, "Failed to open session %s", sessionID)
	}

	return r.appendChunk(session, chunk)
}

// appendChunk writes chunk into session. The session may have been closed between resolving
// and locking it, in which case its sink is no longer usable
func (r *Receiver) appendChunk(session *receiveSession, chunk *ChunkedPacket) error {
	sessionID := chunk.Session.SessionID

	session.lock.Lock()
	defer session.lock.Unlock()

	if current, found := r.sessions.Load(sessionID); !found || current != session {
		return &SessionClosedError{SessionID: sessionID}
	}

	r.metrics.chunkReceived(len(chunk.Data))
	session.receivedChunks++
	session.lastActivity = r.clock()

	if _, err := session.sink.Write(chunk.Data); err != nil {
		r.sessions.Delete(sessionID)
		session.sink.Abort(err)
		r.metrics.sessionFailed("write")

		return errors.Wrapf(err, "Failed to write chunk %d of session %s", session.receivedChunks, sessionID)
	}

	if !chunk.IsTerminal() {
		return nil
	}

	r.sessions.Delete(sessionID)

	if *chunk.ChunkAmount != session.receivedChunks {
		incompleteErr := &IncompleteTransferError{
			SessionID: sessionID,
			Announced: *chunk.ChunkAmount,
			Received:  session.receivedChunks,
		}

		session.sink.Abort(incompleteErr)
		r.metrics.sessionFailed("incomplete")

		r.logger.WarnWith("Dropping incomplete transfer",
			"sessionID", sessionID.String(),
			"announced", incompleteErr.Announced,
			"received", incompleteErr.Received)

		return incompleteErr
	}

	if err := session.sink.Complete(); err != nil {
		r.metrics.sessionFailed("complete")
		return errors.Wrapf(err, "Failed to complete session %s", sessionID)
	}

	r.metrics.sessionCompleted()
	r.logger.DebugWith("Transfer received",
		"sessionID", sessionID.String(),
		"transferType", chunk.Session.TransferType,
		"chunks", session.receivedChunks)

	return nil
}

// ActiveSessions returns the number of sessions waiting for their terminal chunk
func (r *Receiver) ActiveSessions() int {
	activeSessions := 0
	r.sessions.Range(func(key, value interface{}) bool {
		activeSessions++
		return true
	})

	return activeSessions
}

// ExpireSessions aborts the sessions that received nothing for longer than maxIdle. Returns
// the number of sessions aborted
func (r *Receiver) ExpireSessions(maxIdle time.Duration) int {
	deadline := r.clock().Add(-maxIdle)
	expired := 0

	r.sessions.Range(func(key, value interface{}) bool {
		session := value.(*receiveSession)

		session.lock.Lock()
		defer session.lock.Unlock()

		if session.lastActivity.Before(deadline) {
			if _, loaded := r.sessions.LoadAndDelete(key); loaded {
				session.sink.Abort(errors.Errorf("Session %s expired", key.(uuid.UUID)))
				r.metrics.sessionFailed("expired")
				expired++
			}
		}

		return true
	})

	return expired
}

func (r *Receiver) resolveSession(information SessionInformation) (*receiveSession, error) {
	if existing, found := r.sessions.Load(information.SessionID); found {
		return existing.(*receiveSession), nil
	}

	handler, err := r.handlers.Get(information.TransferType)
	if err != nil {
		return nil, errors.Wrapf(err, "No handler for transfer type %d", information.TransferType)
	}

	sink, err := handler.CreateSink(information)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create sink")
	}

	newSession := &receiveSession{
		information:  information,
		sink:         sink,
		lastActivity: r.clock(),
	}

	actual, loaded := r.sessions.LoadOrStore(information.SessionID, newSession)
	if loaded {

		// another chunk of the session won the race, keep its sink
		sink.Abort(errors.New("Session opened twice"))
		return actual.(*receiveSession), nil
	}

	r.logger.DebugWith("Transfer started",
		"sessionID", information.SessionID.String(),
		"transferType", information.TransferType,
		"chunkSize", information.ChunkSize)

	return newSession, nil
}
