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
	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"
	"github.com/cloudnetservice/cloudnet/pkg/network/packet"

	"github.com/nuclio/errors"
)

// Encode writes the chunk: session information, the terminal flag, the chunk amount if
// terminal, then the payload
func (cp *ChunkedPacket) Encode(target buffer.Mutable) buffer.Mutable {
	target.WriteInt(cp.Session.TransferType).
		WriteInt(cp.Session.ChunkSize).
		WriteUniqueID(cp.Session.SessionID).
		WriteByteArray(cp.Session.TransferInformation).
		WriteBool(cp.IsTerminal())

	if cp.IsTerminal() {
		target.WriteInt(*cp.ChunkAmount)
	}

	return target.WriteByteArray(cp.Data)
}

// ToPacket encodes the chunk into a packet on the chunked transfer channel
func (cp *ChunkedPacket) ToPacket(bufferFactory *buffer.Factory) *packet.Packet {
	content := bufferFactory.CreateWithExpectedSize(len(cp.Data) + len(cp.Session.TransferInformation) + 64)
	return packet.NewPacket(packet.ChunkedTransferChannel, cp.Encode(content))
}

// DecodeChunkedPacket reads a chunk written by Encode
func DecodeChunkedPacket(source buffer.DataBuf) (*ChunkedPacket, error) {
	decoded := &ChunkedPacket{}
	var err error

	if decoded.Session.TransferType, err = source.ReadInt(); err != nil {
		return nil, errors.Wrap(err, "Failed to read transfer type")
	}

	if decoded.Session.ChunkSize, err = source.ReadInt(); err != nil {
		return nil, errors.Wrap(err, "Failed to read chunk size")
	}

	if decoded.Session.SessionID, err = source.ReadUniqueID(); err != nil {
		return nil, errors.Wrap(err, "Failed to read session id")
	}

	if decoded.Session.TransferInformation, err = source.ReadByteArray(); err != nil {
		return nil, errors.Wrap(err, "Failed to read transfer information")
	}

	terminal, err := source.ReadBool()
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read terminal flag")
	}

	if terminal {
		chunkAmount, err := source.ReadInt()
		if err != nil {
			return nil, errors.Wrap(err, "Failed to read chunk amount")
		}

		decoded.ChunkAmount = &chunkAmount
	}

	if decoded.Data, err = source.ReadByteArray(); err != nil {
		return nil, errors.Wrap(err, "Failed to read chunk payload")
	}

	return decoded, nil
}
