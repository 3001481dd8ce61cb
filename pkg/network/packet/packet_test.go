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
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"

	"github.com/google/uuid"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type PacketTestSuite struct {
	suite.Suite
	logger        logger.Logger
	bufferFactory *buffer.Factory
}

func (suite *PacketTestSuite) SetupTest() {
	var err error

	suite.logger, err = nucliozap.NewNuclioZapTest("test")
	suite.Require().NoError(err)

	suite.bufferFactory = buffer.NewFactory(nil)
}

func (suite *PacketTestSuite) TestEncodeDecode() {
	uniqueID := uuid.New()

	for _, testCase := range []struct {
		name   string
		packet *Packet
	}{
		{
			name:   "plain",
			packet: NewPacket(RPCChannel, suite.bufferFactory.CreateEmpty().WriteString("plain")),
		},
		{
			name: "query",
			packet: &Packet{
				Channel:     ChunkedTransferChannel,
				UniqueID:    &uniqueID,
				Content:     suite.bufferFactory.CreateEmpty().WriteInt(42),
				Prioritized: true,
			},
		},
	} {
		suite.Run(testCase.name, func() {
			encoded := EncodePacket(suite.bufferFactory.CreateEmpty(), testCase.packet)

			decoded, err := DecodePacket(encoded)
			suite.Require().NoError(err)
			suite.Require().Equal(0, encoded.ReadableBytes())

			suite.Require().Equal(testCase.packet.Channel, decoded.Channel)
			suite.Require().Equal(testCase.packet.UniqueID, decoded.UniqueID)
			suite.Require().Equal(testCase.packet.Prioritized, decoded.Prioritized)
			suite.Require().Equal(testCase.packet.Content.ToByteArray(), decoded.Content.ToByteArray())
		})
	}
}

func (suite *PacketTestSuite) TestFrames() {
	stream := bytes.Buffer{}

	suite.Require().NoError(WriteFrame(&stream, suite.bufferFactory, NewPacket(RPCChannel,
		suite.bufferFactory.CreateEmpty().WriteString("first"))))
	suite.Require().NoError(WriteFrame(&stream, suite.bufferFactory, NewPacket(RPCChannel,
		suite.bufferFactory.CreateEmpty().WriteString("second"))))

	for _, expected := range []string{"first", "second"} {
		decoded, err := ReadFrame(&stream, suite.bufferFactory, DefaultMaxFrameLength)
		suite.Require().NoError(err)

		content, err := decoded.Content.ReadString()
		suite.Require().NoError(err)
		suite.Require().Equal(expected, content)
	}

	suite.Require().NoError(WriteFrame(&stream, suite.bufferFactory, NewPacket(RPCChannel,
		suite.bufferFactory.CreateEmpty().WriteByteArray(make([]byte, 100)))))

	_, err := ReadFrame(&stream, suite.bufferFactory, 10)
	suite.Require().Error(err)
	suite.Require().IsType(&FrameTooLargeError{}, err)
}

func (suite *PacketTestSuite) TestListenerRegistry() {
	registry := NewListenerRegistry(suite.logger)
	channel, _ := NewLocalChannelPair(suite.logger, suite.bufferFactory)
	defer channel.Close() // nolint: errcheck

	var calls []string
	registry.AddListener(RPCChannel,
		ListenerFunc(func(channel NetworkChannel, packet *Packet) error {
			calls = append(calls, "first")
			panic("listener failure")
		}),
		ListenerFunc(func(channel NetworkChannel, packet *Packet) error {
			calls = append(calls, "second")
			return errors.New("second failed")
		}),
		ListenerFunc(func(channel NetworkChannel, packet *Packet) error {
			calls = append(calls, "third")
			return nil
		}))
	registry.AddListener(ChunkedTransferChannel, ListenerFunc(func(channel NetworkChannel, packet *Packet) error {
		return nil
	}))

	err := registry.Handle(channel, NewPacket(RPCChannel, suite.bufferFactory.CreateEmpty()))
	suite.Require().Error(err)
	suite.Require().Contains(err.Error(), "Listener panicked")
	suite.Require().Equal([]string{"first", "second", "third"}, calls)

	suite.Require().Equal([]int32{RPCChannel, ChunkedTransferChannel}, registry.Channels())

	registry.RemoveListeners(RPCChannel)
	suite.Require().False(registry.HasListeners(RPCChannel))
	suite.Require().NoError(registry.Handle(channel, NewPacket(RPCChannel, suite.bufferFactory.CreateEmpty())))
}

func (suite *PacketTestSuite) TestListenersShareContent() {
	registry := NewListenerRegistry(suite.logger)
	channel, _ := NewLocalChannelPair(suite.logger, suite.bufferFactory)
	defer channel.Close() // nolint: errcheck

	var readValues []int32
	readListener := ListenerFunc(func(channel NetworkChannel, packet *Packet) error {
		suite.Require().True(packet.Content.Accessible())

		value, err := packet.Content.ReadInt()
		if err != nil {
			return err
		}

		readValues = append(readValues, value)
		return nil
	})

	registry.AddListener(RPCChannel, readListener, readListener)

	content := suite.bufferFactory.CreateEmpty().WriteInt(42).WriteInt(7)
	receivedPacket := NewPacket(RPCChannel, content)

	suite.Require().NoError(registry.Handle(channel, receivedPacket))
	suite.Require().Equal([]int32{42, 42}, readValues)

	// released once, after the last listener
	suite.Require().False(content.Accessible())

	// packets without listeners are released as well
	dropped := suite.bufferFactory.CreateEmpty().WriteInt(1)
	suite.Require().NoError(registry.Handle(channel, NewPacket(ChunkedTransferChannel, dropped)))
	suite.Require().False(dropped.Accessible())
}

func (suite *PacketTestSuite) TestQueryManager() {
	queryManager := NewQueryManager(suite.logger)
	var sent []*Packet
	send := func(packet *Packet) error {
		sent = append(sent, packet)
		return nil
	}

	// completed by the response
	queryTask := queryManager.SendQueryAsync(context.Background(), NewPacket(RPCChannel, nil), send)
	suite.Require().NotNil(sent[0].UniqueID)
	suite.Require().Equal(1, queryManager.WaitingQueries())

	response := sent[0].ConstructResponse(suite.bufferFactory.CreateEmpty().WriteBool(true))
	suite.Require().True(queryManager.HandleResponse(response))

	received, err := queryTask.Get(context.Background())
	suite.Require().NoError(err)
	suite.Require().Equal(response, received)
	suite.Require().Equal(0, queryManager.WaitingQueries())

	// not a response
	suite.Require().False(queryManager.HandleResponse(NewPacket(RPCChannel, nil)))

	// abandoned through ctx
	ctx, cancel := context.WithCancel(context.Background())
	queryTask = queryManager.SendQueryAsync(ctx, NewPacket(RPCChannel, nil), send)
	cancel()

	_, err = queryTask.Get(context.Background())
	suite.Require().ErrorIs(err, context.Canceled)
	suite.Require().Equal(0, queryManager.WaitingQueries())

	// failed send
	queryTask = queryManager.SendQueryAsync(context.Background(), NewPacket(RPCChannel, nil), func(packet *Packet) error {
		return errors.New("transport down")
	})

	_, err = queryTask.Get(context.Background())
	suite.Require().Error(err)
	suite.Require().Equal(0, queryManager.WaitingQueries())

	// failed on close
	queryTask = queryManager.SendQueryAsync(context.Background(), NewPacket(RPCChannel, nil), send)
	queryManager.FailAll(ErrChannelClosed)

	_, err = queryTask.Get(context.Background())
	suite.Require().Equal(ErrChannelClosed, err)
}

func (suite *PacketTestSuite) TestLocalChannelPair() {
	client, server := NewLocalChannelPair(suite.logger, suite.bufferFactory)
	defer client.Close() // nolint: errcheck

	notifications := make(chan string, 1)
	server.Listeners().AddListener(RPCChannel, ListenerFunc(func(channel NetworkChannel, packet *Packet) error {
		content, err := packet.Content.ReadString()
		if err != nil {
			return err
		}

		if !packet.IsQuery() {
			notifications <- content
			return nil
		}

		return channel.SendPacket(packet.ConstructResponse(suite.bufferFactory.CreateEmpty().WriteString("pong:" + content)))
	}))

	suite.Require().NoError(client.SendPacket(NewPacket(RPCChannel, suite.bufferFactory.CreateEmpty().WriteString("hello"))))
	suite.Require().Equal("hello", <-notifications)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	response, err := client.SendQueryAsync(ctx, NewPacket(RPCChannel, suite.bufferFactory.CreateEmpty().WriteString("ping"))).Get(ctx)
	suite.Require().NoError(err)
	suite.Require().Equal(ResponseChannel, response.Channel)

	content, err := response.Content.ReadString()
	suite.Require().NoError(err)
	suite.Require().Equal("pong:ping", content)

	// closing one end closes the other and fails what's pending there
	pending := server.SendQueryAsync(ctx, NewPacket(ChunkedTransferChannel, suite.bufferFactory.CreateEmpty()))
	suite.Require().NoError(client.Close())

	<-server.Done()
	_, err = pending.Get(ctx)
	suite.Require().Equal(ErrChannelClosed, err)
	suite.Require().Equal(ErrChannelClosed, server.SendPacket(NewPacket(RPCChannel, nil)))
}

func TestPacketTestSuite(t *testing.T) {
	suite.Run(t, new(PacketTestSuite))
}
