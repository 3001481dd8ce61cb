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
	"context"

	"github.com/cloudnetservice/cloudnet/pkg/common/task"
	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"

	"github.com/google/uuid"
)

const (

	// ResponseChannel carries responses to queries, correlated by unique id
	ResponseChannel int32 = -1

	RPCChannel             int32 = 3
	ChunkedTransferChannel int32 = 5
)

// Packet is one framed message. UniqueID is set for queries and their responses
type Packet struct {
	Channel     int32
	UniqueID    *uuid.UUID
	Content     buffer.DataBuf
	Prioritized bool
}

func NewPacket(channel int32, content buffer.DataBuf) *Packet {
	return &Packet{
		Channel: channel,
		Content: content,
	}
}

// ConstructResponse creates the response packet to this query
func (p *Packet) ConstructResponse(content buffer.DataBuf) *Packet {
	return &Packet{
		Channel:  ResponseChannel,
		UniqueID: p.UniqueID,
		Content:  content,
	}
}

// IsQuery returns whether the sender waits for a response
func (p *Packet) IsQuery() bool {
	return p.UniqueID != nil && p.Channel != ResponseChannel
}

// Release releases the packet content
func (p *Packet) Release() {
	if p.Content != nil {
		p.Content.Release()
	}
}

// Listener handles the packets arriving on the channels it was registered for. The packet
// belongs to the dispatching registry and is released once HandlePacket returns
type Listener interface {
	HandlePacket(channel NetworkChannel, packet *Packet) error
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(channel NetworkChannel, packet *Packet) error

func (lf ListenerFunc) HandlePacket(channel NetworkChannel, packet *Packet) error {
	return lf(channel, packet)
}

// NetworkChannel is one established connection to a remote component
type NetworkChannel interface {

	// ID returns the identifier of this channel, unique in this process
	ID() string

	// SendPacket writes packet to the remote. Returns once the packet was handed to the transport
	SendPacket(packet *Packet) error

	// SendQueryAsync sends packet with a unique id (assigned if missing) and returns a task
	// completed with the response packet. ctx only bounds the wait, not the send. Like
	// SendPacket, it is done with the packet content once it returns
	SendQueryAsync(ctx context.Context, packet *Packet) *task.Task[*Packet]

	// Listeners returns the registry dispatching inbound packets of this channel
	Listeners() *ListenerRegistry

	// Close closes the channel and fails all pending queries
	Close() error
}
