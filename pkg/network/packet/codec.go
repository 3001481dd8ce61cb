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
	"io"

	"github.com/cloudnetservice/cloudnet/pkg/common"
	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"

	"github.com/nuclio/errors"
)

// DefaultMaxFrameLength bounds the frames ReadFrame accepts
const DefaultMaxFrameLength = 16 * 1024 * 1024

const frameHeaderLength = 4

// EncodePacket writes channel, prioritized flag, optional unique id and content into target
func EncodePacket(target buffer.Mutable, packet *Packet) buffer.Mutable {
	target.WriteInt(packet.Channel).
		WriteBool(packet.Prioritized).
		WriteBool(packet.UniqueID != nil)

	if packet.UniqueID != nil {
		target.WriteUniqueID(*packet.UniqueID)
	}

	if packet.Content == nil {
		return target.WriteByteArray(nil)
	}

	return target.WriteDataBuf(packet.Content)
}

// DecodePacket reads a packet written by EncodePacket. The content is a new buffer owned by
// the returned packet
func DecodePacket(source buffer.DataBuf) (*Packet, error) {
	decoded := &Packet{}
	var err error

	if decoded.Channel, err = source.ReadInt(); err != nil {
		return nil, errors.Wrap(err, "Failed to read channel")
	}

	if decoded.Prioritized, err = source.ReadBool(); err != nil {
		return nil, errors.Wrap(err, "Failed to read priority")
	}

	hasUniqueID, err := source.ReadBool()
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read unique id presence")
	}

	if hasUniqueID {
		uniqueID, err := source.ReadUniqueID()
		if err != nil {
			return nil, errors.Wrap(err, "Failed to read unique id")
		}

		decoded.UniqueID = &uniqueID
	}

	if decoded.Content, err = source.ReadDataBuf(); err != nil {
		return nil, errors.Wrap(err, "Failed to read content")
	}

	return decoded, nil
}

// WriteFrame writes packet to writer, prefixed with the encoded length
func WriteFrame(writer io.Writer, bufferFactory *buffer.Factory, packet *Packet) error {
	body := EncodePacket(bufferFactory.CreateEmpty(), packet)
	defer body.Release()

	frame := bufferFactory.CreateWithExpectedSize(frameHeaderLength + body.ReadableBytes()).WriteDataBuf(body)
	defer frame.Release()

	if _, err := writer.Write(frame.ToByteArray()); err != nil {
		return errors.Wrap(err, "Failed to write frame")
	}

	return nil
}

// ReadFrame reads one length-prefixed frame from reader and decodes the packet in it
func ReadFrame(reader io.Reader, bufferFactory *buffer.Factory, maxFrameLength int) (*Packet, error) {
	header := make([]byte, frameHeaderLength)
	if _, err := io.ReadFull(reader, header); err != nil {
		return nil, err
	}

	headerBuf := bufferFactory.CreateFromBytes(header)
	length, err := headerBuf.ReadInt()
	headerBuf.Release()

	if err != nil {
		return nil, errors.Wrap(err, "Failed to read frame length")
	}

	if length < 0 || int(length) > maxFrameLength {
		return nil, &FrameTooLargeError{Length: int(length), MaxLength: maxFrameLength}
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(reader, body); err != nil {
		return nil, errors.Wrap(err, "Failed to read frame body")
	}

	bodyBuf := bufferFactory.CreateFromBytes(body)
	defer bodyBuf.Release()

	decoded, err := DecodePacket(bodyBuf)
	if err != nil {
		return nil, errors.Wrap(err, string(common.FailedDecodePacket))
	}

	if bodyBuf.ReadableBytes() != 0 {
		decoded.Release()
		return nil, errors.Errorf("Frame has %d trailing bytes", bodyBuf.ReadableBytes())
	}

	return decoded, nil
}
