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
	"context"
	"io"

	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"
	"github.com/cloudnetservice/cloudnet/pkg/network/packet"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// Split cuts payload into chunks of session.ChunkSize bytes. The last chunk is terminal and
// carries the chunk amount; an empty payload yields a single empty terminal chunk
func Split(session SessionInformation, payload []byte) ([]*ChunkedPacket, error) {
	if session.ChunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}

	chunkSize := int(session.ChunkSize)
	chunkAmount := int32((len(payload) + chunkSize - 1) / chunkSize)
	if chunkAmount == 0 {
		chunkAmount = 1
	}

	chunks := make([]*ChunkedPacket, 0, chunkAmount)
	for chunkIndex := int32(0); chunkIndex < chunkAmount; chunkIndex++ {
		start := int(chunkIndex) * chunkSize
		end := start + chunkSize
		if end > len(payload) {
			end = len(payload)
		}

		chunk := &ChunkedPacket{
			Session: session,
			Data:    payload[start:end],
		}

		if chunkIndex == chunkAmount-1 {
			chunk.ChunkAmount = &chunkAmount
		}

		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

// Sender streams payloads to a network channel as chunked transfers
type Sender struct {
	logger        logger.Logger
	bufferFactory *buffer.Factory
	channel       packet.NetworkChannel
	metrics       *Metrics
}

func NewSender(parentLogger logger.Logger,
	bufferFactory *buffer.Factory,
	channel packet.NetworkChannel,
	metrics *Metrics) *Sender {
	return &Sender{
		logger:        parentLogger.GetChild("chunk-sender"),
		bufferFactory: bufferFactory,
		channel:       channel,
		metrics:       metrics,
	}
}

// Transfer reads source to its end and sends it as one session. One chunk is read ahead so
// the last data chunk is the terminal one. Returns the number of chunks sent
func (s *Sender) Transfer(ctx context.Context, session SessionInformation, source io.Reader) (int32, error) {
	if session.ChunkSize <= 0 {
		return 0, ErrInvalidChunkSize
	}

	current := make([]byte, session.ChunkSize)
	next := make([]byte, session.ChunkSize)

	currentLength, err := readChunk(source, current)
	if err != nil {
		return 0, errors.Wrap(err, "Failed to read first chunk")
	}

	sentChunks := int32(0)
	for {
		if err := ctx.Err(); err != nil {
			return sentChunks, errors.Wrapf(err, "Transfer of session %s interrupted", session.SessionID)
		}

		// a short chunk is always the last one, otherwise peek at the source
		nextLength := 0
		if currentLength == len(current) {
			if nextLength, err = readChunk(source, next); err != nil {
				return sentChunks, errors.Wrap(err, "Failed to read chunk")
			}
		}

		chunk := &ChunkedPacket{
			Session: session,
			Data:    current[:currentLength],
		}

		terminal := nextLength == 0
		if terminal {
			chunkAmount := sentChunks + 1
			chunk.ChunkAmount = &chunkAmount
		}

		if err := s.sendChunk(chunk); err != nil {
			return sentChunks, errors.Wrapf(err, "Failed to send chunk %d of session %s", sentChunks, session.SessionID)
		}

		sentChunks++
		s.metrics.chunkSent()

		if terminal {
			s.logger.DebugWith("Transfer sent",
				"sessionID", session.SessionID.String(),
				"transferType", session.TransferType,
				"chunks", sentChunks)
			return sentChunks, nil
		}

		current, next = next, current
		currentLength = nextLength
	}
}

// readChunk fills target as far as source allows. A length below len(target) means source ended
// sendChunk hands chunk to the channel, which is done with the content once SendPacket returns
func (s *Sender) sendChunk(chunk *ChunkedPacket) error {
	chunkPacket := chunk.ToPacket(s.bufferFactory)
	defer chunkPacket.Release()

	return s.channel.SendPacket(chunkPacket)
}

func readChunk(source io.Reader, target []byte) (int, error) {
	length, err := io.ReadFull(source, target)
	switch err {
	case nil, io.EOF, io.ErrUnexpectedEOF:
		return length, nil
	default:
		return length, err
	}
}
