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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloudnetservice/cloudnet/pkg/common/task"
	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"
	"github.com/cloudnetservice/cloudnet/pkg/network/packet"

	"github.com/mholt/archiver/v3"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
)

const testTransferType int32 = 7

type completedTransfer struct {
	session SessionInformation
	payload []byte
}

type recordingSink struct {
	written   [][]byte
	completed bool
	aborted   error
}

func (rs *recordingSink) Write(data []byte) (int, error) {
	if rs.aborted != nil {
		return 0, errors.Wrap(rs.aborted, "Write after abort")
	}

	rs.written = append(rs.written, data)
	return len(data), nil
}

func (rs *recordingSink) Complete() error {
	rs.completed = true
	return nil
}

func (rs *recordingSink) Abort(reason error) {
	rs.aborted = reason
}

// recordingChannel keeps the packets sent to it, failing from failAfter sends on
type recordingChannel struct {
	sent      []*packet.Packet
	failAfter int
}

func (rc *recordingChannel) ID() string {
	return "recording"
}

func (rc *recordingChannel) SendPacket(sentPacket *packet.Packet) error {
	rc.sent = append(rc.sent, sentPacket)
	if rc.failAfter > 0 && len(rc.sent) >= rc.failAfter {
		return errors.New("transport down")
	}

	return nil
}

func (rc *recordingChannel) SendQueryAsync(ctx context.Context, sentPacket *packet.Packet) *task.Task[*packet.Packet] {
	return task.Failed[*packet.Packet](errors.New("queries aren't supported"))
}

func (rc *recordingChannel) Listeners() *packet.ListenerRegistry {
	return nil
}

func (rc *recordingChannel) Close() error {
	return nil
}

type ChunkTestSuite struct {
	suite.Suite
	logger        logger.Logger
	bufferFactory *buffer.Factory
	metrics       *Metrics
	receiver      *Receiver
	completed     chan completedTransfer
}

func (suite *ChunkTestSuite) SetupTest() {
	var err error

	suite.logger, err = nucliozap.NewNuclioZapTest("test")
	suite.Require().NoError(err)

	suite.metrics, err = NewMetrics(prometheus.NewRegistry())
	suite.Require().NoError(err)

	suite.bufferFactory = buffer.NewFactory(nil)
	suite.completed = make(chan completedTransfer, 10)

	suite.receiver = NewReceiver(suite.logger, suite.metrics)
	suite.receiver.RegisterHandler(testTransferType, NewMemoryHandler(func(session SessionInformation, payload []byte) error {
		suite.completed <- completedTransfer{session: session, payload: payload}
		return nil
	}))
}

func (suite *ChunkTestSuite) TestSplitAndReassemble() {
	payload := suite.createPayload(10000)
	session := NewSessionInformation(testTransferType, 1000, []byte("info"))

	chunks, err := Split(session, payload)
	suite.Require().NoError(err)
	suite.Require().Len(chunks, 10)

	for chunkIndex, chunk := range chunks[:9] {
		suite.Require().False(chunk.IsTerminal(), "chunk %d", chunkIndex)
		suite.Require().Len(chunk.Data, 1000)
	}

	suite.Require().True(chunks[9].IsTerminal())
	suite.Require().Equal(int32(10), *chunks[9].ChunkAmount)

	for _, chunk := range chunks {
		suite.Require().NoError(suite.receiver.HandleChunk(suite.roundTrip(chunk)))
	}

	transfer := <-suite.completed
	suite.Require().Equal(session.SessionID, transfer.session.SessionID)
	suite.Require().Equal([]byte("info"), transfer.session.TransferInformation)
	suite.Require().Equal(payload, transfer.payload)
	suite.Require().Equal(0, suite.receiver.ActiveSessions())

	suite.Require().Equal(10.0, testutil.ToFloat64(suite.metrics.chunksReceived))
	suite.Require().Equal(10000.0, testutil.ToFloat64(suite.metrics.bytesReceived))
	suite.Require().Equal(1.0, testutil.ToFloat64(suite.metrics.sessionsCompleted))
}

func (suite *ChunkTestSuite) TestSplitEdgeCases() {
	chunks, err := Split(NewSessionInformation(testTransferType, 1000, nil), nil)
	suite.Require().NoError(err)
	suite.Require().Len(chunks, 1)
	suite.Require().Equal(int32(1), *chunks[0].ChunkAmount)
	suite.Require().Empty(chunks[0].Data)

	chunks, err = Split(NewSessionInformation(testTransferType, 1000, nil), suite.createPayload(2500))
	suite.Require().NoError(err)
	suite.Require().Len(chunks, 3)
	suite.Require().Len(chunks[2].Data, 500)

	_, err = Split(NewSessionInformation(testTransferType, 0, nil), nil)
	suite.Require().Equal(ErrInvalidChunkSize, err)
}

func (suite *ChunkTestSuite) TestWireLayout() {
	chunkAmount := int32(3)
	chunk := &ChunkedPacket{
		Session:     NewSessionInformation(testTransferType, 1000, []byte{1}),
		ChunkAmount: &chunkAmount,
		Data:        []byte{9, 9},
	}

	encoded := chunk.Encode(suite.bufferFactory.CreateEmpty())

	transferType, _ := encoded.ReadInt()
	chunkSize, _ := encoded.ReadInt()
	sessionID, _ := encoded.ReadUniqueID()
	transferInformation, _ := encoded.ReadByteArray()
	terminal, _ := encoded.ReadBool()
	readChunkAmount, _ := encoded.ReadInt()
	data, err := encoded.ReadByteArray()
	suite.Require().NoError(err)

	suite.Require().Equal(testTransferType, transferType)
	suite.Require().Equal(int32(1000), chunkSize)
	suite.Require().Equal(chunk.Session.SessionID, sessionID)
	suite.Require().Equal([]byte{1}, transferInformation)
	suite.Require().True(terminal)
	suite.Require().Equal(chunkAmount, readChunkAmount)
	suite.Require().Equal([]byte{9, 9}, data)
	suite.Require().Equal(0, encoded.ReadableBytes())
}

func (suite *ChunkTestSuite) TestIncompleteTransfer() {
	session := NewSessionInformation(testTransferType, 1000, nil)
	chunks, err := Split(session, suite.createPayload(10000))
	suite.Require().NoError(err)

	otherSession := NewSessionInformation(testTransferType, 1000, nil)
	otherChunks, err := Split(otherSession, suite.createPayload(1500))
	suite.Require().NoError(err)

	// interleave another session, which must not be affected
	suite.Require().NoError(suite.receiver.HandleChunk(otherChunks[0]))

	// chunk 5 gets lost, the terminal chunk still announces 10
	for chunkIndex, chunk := range chunks {
		if chunkIndex == 5 {
			continue
		}

		err = suite.receiver.HandleChunk(chunk)
	}

	suite.Require().Error(err)
	suite.Require().True(IsIncompleteTransfer(err))

	incompleteErr := err.(*IncompleteTransferError)
	suite.Require().Equal(int32(10), incompleteErr.Announced)
	suite.Require().Equal(int32(9), incompleteErr.Received)

	suite.Require().NoError(suite.receiver.HandleChunk(otherChunks[1]))

	transfer := <-suite.completed
	suite.Require().Equal(otherSession.SessionID, transfer.session.SessionID)
	suite.Require().Len(transfer.payload, 1500)
	suite.Require().Empty(suite.completed)
	suite.Require().Equal(1.0, testutil.ToFloat64(suite.metrics.sessionsFailed.WithLabelValues("incomplete")))
}

func (suite *ChunkTestSuite) TestUnknownTransferType() {
	chunks, err := Split(NewSessionInformation(99, 1000, nil), []byte{1})
	suite.Require().NoError(err)

	suite.Require().Error(suite.receiver.HandleChunk(chunks[0]))
	suite.Require().Equal(0, suite.receiver.ActiveSessions())
}

func (suite *ChunkTestSuite) TestExpireSessions() {
	now := time.Now()
	suite.receiver.clock = func() time.Time { return now }

	chunks, err := Split(NewSessionInformation(testTransferType, 10, nil), suite.createPayload(100))
	suite.Require().NoError(err)
	suite.Require().NoError(suite.receiver.HandleChunk(chunks[0]))
	suite.Require().Equal(1, suite.receiver.ActiveSessions())

	suite.Require().Equal(0, suite.receiver.ExpireSessions(time.Minute))

	now = now.Add(2 * time.Minute)
	suite.Require().Equal(1, suite.receiver.ExpireSessions(time.Minute))
	suite.Require().Equal(0, suite.receiver.ActiveSessions())
}

func (suite *ChunkTestSuite) TestChunkForClosedSession() {
	now := time.Now()
	suite.receiver.clock = func() time.Time { return now }

	sink := &recordingSink{}
	suite.receiver.RegisterHandler(testTransferType+1, HandlerFunc(func(session SessionInformation) (Sink, error) {
		return sink, nil
	}))

	chunks, err := Split(NewSessionInformation(testTransferType+1, 10, nil), suite.createPayload(30))
	suite.Require().NoError(err)
	suite.Require().NoError(suite.receiver.HandleChunk(chunks[0]))

	// the session expires after the next chunk resolved it, but before it was written
	session, err := suite.receiver.resolveSession(chunks[1].Session)
	suite.Require().NoError(err)

	now = now.Add(2 * time.Minute)
	suite.Require().Equal(1, suite.receiver.ExpireSessions(time.Minute))
	suite.Require().Error(sink.aborted)

	err = suite.receiver.appendChunk(session, chunks[1])
	suite.Require().Error(err)

	_, isSessionClosed := errors.RootCause(err).(*SessionClosedError)
	suite.Require().True(isSessionClosed)
	suite.Require().Len(sink.written, 1)
	suite.Require().False(sink.completed)
}

func (suite *ChunkTestSuite) TestSenderReleasesChunks() {
	payload := suite.createPayload(2500)

	channel := &recordingChannel{}
	sender := NewSender(suite.logger, suite.bufferFactory, channel, suite.metrics)

	sentChunks, err := sender.Transfer(context.Background(),
		NewSessionInformation(testTransferType, 1000, nil),
		bytes.NewReader(payload))
	suite.Require().NoError(err)
	suite.Require().Equal(int32(3), sentChunks)
	suite.Require().Len(channel.sent, 3)

	for _, sentPacket := range channel.sent {
		suite.Require().False(sentPacket.Content.Accessible())
	}

	// released on failed sends too
	failingChannel := &recordingChannel{failAfter: 2}
	sender = NewSender(suite.logger, suite.bufferFactory, failingChannel, suite.metrics)

	sentChunks, err = sender.Transfer(context.Background(),
		NewSessionInformation(testTransferType, 1000, nil),
		bytes.NewReader(payload))
	suite.Require().Error(err)
	suite.Require().Equal(int32(1), sentChunks)
	suite.Require().Len(failingChannel.sent, 2)

	for _, sentPacket := range failingChannel.sent {
		suite.Require().False(sentPacket.Content.Accessible())
	}
}

func (suite *ChunkTestSuite) TestSenderOverChannel() {
	client, server := packet.NewLocalChannelPair(suite.logger, suite.bufferFactory)
	defer client.Close() // nolint: errcheck

	server.Listeners().AddListener(packet.ChunkedTransferChannel, suite.receiver)

	payload := suite.createPayload(10000)
	session := NewSessionInformation(testTransferType, 1000, nil)

	sender := NewSender(suite.logger, suite.bufferFactory, client, suite.metrics)
	sentChunks, err := sender.Transfer(context.Background(), session, bytes.NewReader(payload))
	suite.Require().NoError(err)
	suite.Require().Equal(int32(10), sentChunks)

	select {
	case transfer := <-suite.completed:
		suite.Require().Equal(payload, transfer.payload)
	case <-time.After(5 * time.Second):
		suite.Fail("Transfer didn't complete")
	}

	// an empty source still produces one terminal chunk
	sentChunks, err = sender.Transfer(context.Background(),
		NewSessionInformation(testTransferType, 1000, nil),
		bytes.NewReader(nil))
	suite.Require().NoError(err)
	suite.Require().Equal(int32(1), sentChunks)

	transfer := <-suite.completed
	suite.Require().Empty(transfer.payload)
	suite.Require().Equal(11.0, testutil.ToFloat64(suite.metrics.chunksSent))
}

func (suite *ChunkTestSuite) TestFileSinkExtractsArchive() {
	sourceDir := suite.T().TempDir()
	targetDir := suite.T().TempDir()

	sourceFile := filepath.Join(sourceDir, "service.properties")
	suite.Require().NoError(os.WriteFile(sourceFile, []byte("port=25565"), 0644))

	archivePath := filepath.Join(sourceDir, "template.zip")
	suite.Require().NoError(archiver.Archive([]string{sourceFile}, archivePath))

	archiveBytes, err := os.ReadFile(archivePath)
	suite.Require().NoError(err)

	extracted := make(chan string, 1)
	handler, err := NewFileHandler(suite.logger, FileHandlerConfiguration{
		Directory:     targetDir,
		ArchiveFormat: "zip",
	}, func(session SessionInformation, path string) error {
		extracted <- path
		return nil
	})
	suite.Require().NoError(err)

	suite.receiver.RegisterHandler(testTransferType+1, handler)

	session := NewSessionInformation(testTransferType+1, 64, nil)
	chunks, err := Split(session, archiveBytes)
	suite.Require().NoError(err)

	for _, chunk := range chunks {
		suite.Require().NoError(suite.receiver.HandleChunk(chunk))
	}

	targetPath := <-extracted
	suite.Require().Equal(filepath.Join(targetDir, session.SessionID.String()), targetPath)

	content, err := os.ReadFile(filepath.Join(targetPath, "service.properties"))
	suite.Require().NoError(err)
	suite.Require().Equal("port=25565", string(content))

	// neither the archive nor the temporary file is left behind
	entries, err := os.ReadDir(targetDir)
	suite.Require().NoError(err)
	suite.Require().Len(entries, 1)
}

func (suite *ChunkTestSuite) TestFileSinkRejectsUnknownFormat() {
	_, err := NewFileHandler(suite.logger, FileHandlerConfiguration{
		Directory:     suite.T().TempDir(),
		ArchiveFormat: "nope",
	}, nil)
	suite.Require().Error(err)
}

func (suite *ChunkTestSuite) roundTrip(chunk *ChunkedPacket) *ChunkedPacket {
	encoded := chunk.ToPacket(suite.bufferFactory)
	suite.Require().Equal(packet.ChunkedTransferChannel, encoded.Channel)

	decoded, err := DecodeChunkedPacket(encoded.Content)
	suite.Require().NoError(err)

	return decoded
}

func (suite *ChunkTestSuite) createPayload(length int) []byte {
	payload := make([]byte, length)
	for index := range payload {
		payload[index] = byte(index % 251)
	}

	return payload
}

func TestChunkTestSuite(t *testing.T) {
	suite.Run(t, new(ChunkTestSuite))
}
