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
	"bufio"
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/cloudnetservice/cloudnet/pkg/common"
	"github.com/cloudnetservice/cloudnet/pkg/common/task"
	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/rs/xid"
)

// StreamChannel is a NetworkChannel over a byte stream (a TCP connection, a pipe). Frames are
// read by RunHandler and dispatched in arrival order
type StreamChannel struct {
	logger         logger.Logger
	id             string
	conn           io.ReadWriteCloser
	bufferFactory  *buffer.Factory
	listeners      *ListenerRegistry
	queryManager   *QueryManager
	maxFrameLength int

	writeLock sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

func NewStreamChannel(parentLogger logger.Logger,
	conn io.ReadWriteCloser,
	bufferFactory *buffer.Factory,
	listeners *ListenerRegistry) *StreamChannel {
	id := xid.New().String()
	channelLogger := parentLogger.GetChild("channel").GetChild(id)

	if listeners == nil {
		listeners = NewListenerRegistry(channelLogger)
	}

	return &StreamChannel{
		logger:         channelLogger,
		id:             id,
		conn:           conn,
		bufferFactory:  bufferFactory,
		listeners:      listeners,
		queryManager:   NewQueryManager(channelLogger),
		maxFrameLength: DefaultMaxFrameLength,
		done:           make(chan struct{}),
	}
}

// SetMaxFrameLength changes the longest frame accepted from the remote. Must be called before
// RunHandler
func (sc *StreamChannel) SetMaxFrameLength(maxFrameLength int) {
	sc.maxFrameLength = maxFrameLength
}

func (sc *StreamChannel) ID() string {
	return sc.id
}

func (sc *StreamChannel) Listeners() *ListenerRegistry {
	return sc.listeners
}

func (sc *StreamChannel) SendPacket(packet *Packet) error {
	if sc.closed.Load() {
		return ErrChannelClosed
	}

	sc.writeLock.Lock()
	defer sc.writeLock.Unlock()

	if err := WriteFrame(sc.conn, sc.bufferFactory, packet); err != nil {
		return errors.Wrapf(err, "Failed to send packet on channel %d", packet.Channel)
	}

	return nil
}

func (sc *StreamChannel) SendQueryAsync(ctx context.Context, packet *Packet) *task.Task[*Packet] {
	return sc.queryManager.SendQueryAsync(ctx, packet, sc.SendPacket)
}

// WaitingQueries returns the number of queries sent on this channel still waiting for a response
func (sc *StreamChannel) WaitingQueries() int {
	return sc.queryManager.WaitingQueries()
}

// Done is closed once the channel is closed
func (sc *StreamChannel) Done() <-chan struct{} {
	return sc.done
}

func (sc *StreamChannel) Close() error {
	var err error

	sc.closeOnce.Do(func() {
		sc.closed.Store(true)
		err = sc.conn.Close()
		sc.queryManager.FailAll(ErrChannelClosed)
		close(sc.done)

		sc.logger.Debug("Channel closed")
	})

	return err
}

// RunHandler reads frames until the stream ends or the channel is closed. Responses complete
// their queries, everything else goes to the listeners
func (sc *StreamChannel) RunHandler() {
	defer common.CatchAndLogPanicWithOptions(context.Background(), // nolint: errcheck
		sc.logger,
		"reading from stream channel",
		nil)
	defer sc.Close() // nolint: errcheck

	reader := bufio.NewReader(sc.conn)

	for {
		receivedPacket, err := ReadFrame(reader, sc.bufferFactory, sc.maxFrameLength)
		if err != nil {
			if sc.closed.Load() || isClosedStream(err) {
				sc.logger.Debug("Stream ended")
				return
			}

			// framing is lost after a bad frame, the stream can't be resumed
			sc.logger.WarnWith(string(common.FailedReadFromConnection), "err", errors.RootCause(err).Error())
			return
		}

		if sc.queryManager.HandleResponse(receivedPacket) {
			continue
		}

		sc.listeners.Handle(sc, receivedPacket) // nolint: errcheck
	}
}

func isClosedStream(err error) bool {
	switch rootCause := errors.RootCause(err); rootCause {
	case io.EOF, io.ErrUnexpectedEOF, io.ErrClosedPipe:
		return true
	default:
		_, isNetworkError := rootCause.(*net.OpError)
		return isNetworkError
	}
}

// NewLocalChannelPair returns two connected channels over an in-memory pipe, with their
// handlers already running. Closing either one closes both ends
func NewLocalChannelPair(parentLogger logger.Logger, bufferFactory *buffer.Factory) (*StreamChannel, *StreamChannel) {
	clientConn, serverConn := net.Pipe()

	client := NewStreamChannel(parentLogger.GetChild("client"), clientConn, bufferFactory, nil)
	server := NewStreamChannel(parentLogger.GetChild("server"), serverConn, bufferFactory, nil)

	go client.RunHandler()
	go server.RunHandler()

	return client, server
}
