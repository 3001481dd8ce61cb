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

package app

import (
	"bytes"
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudnetservice/cloudnet/pkg/common"
	"github.com/cloudnetservice/cloudnet/pkg/network/chunk"
	"github.com/cloudnetservice/cloudnet/pkg/networkconfig"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/spf13/cobra"
)

type transferOptions struct {
	transferType int32
	size         int
	chunkSize    int32
	sourcePath   string
}

// transferCompletion is what a sink reports once the last chunk arrived. Memory sinks set
// payload, file sinks set path
type transferCompletion struct {
	session chunk.SessionInformation
	payload []byte
	path    string
}

type transferCommandeer struct {
	cmd            *cobra.Command
	rootCommandeer *RootCommandeer
	options        transferOptions
}

func newTransferCommandeer(rootCommandeer *RootCommandeer) *transferCommandeer {
	commandeer := &transferCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Send a payload as a chunked transfer into the sink bound to its transfer type",
		RunE: func(cmd *cobra.Command, args []string) error {
			if commandeer.options.sourcePath == "" && commandeer.options.size < 0 {
				return errors.New("Payload size can't be negative")
			}

			// initialize root
			if err := rootCommandeer.initialize(); err != nil {
				return errors.Wrap(err, "Failed to initialize root")
			}

			benchEnvironment, err := newEnvironment(rootCommandeer.loggerInstance, rootCommandeer.configuration)
			if err != nil {
				return errors.Wrap(err, "Failed to create environment")
			}

			defer benchEnvironment.Close()

			report, err := runTransfer(cmd.Context(), rootCommandeer.loggerInstance, benchEnvironment, &commandeer.options)
			if err != nil {
				return errors.Wrap(err, "Failed to run transfer")
			}

			return rootCommandeer.render(cmd, report)
		},
	}

	cmd.Flags().Int32VarP(&commandeer.options.transferType, "transfer-type", "t", 0, "Transfer type of the session")
	cmd.Flags().IntVarP(&commandeer.options.size, "size", "s", 4*1024*1024, "Length of the generated payload")
	cmd.Flags().Int32VarP(&commandeer.options.chunkSize,
		"chunk-size",
		"",
		0,
		"Chunk size, the configured one is used when zero")
	cmd.Flags().StringVarP(&commandeer.options.sourcePath,
		"source",
		"f",
		"",
		"Send this file instead of a generated payload")

	commandeer.cmd = cmd

	return commandeer
}

func runTransfer(ctx context.Context,
	parentLogger logger.Logger,
	benchEnvironment *environment,
	options *transferOptions) (*transferReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	completions := make(chan transferCompletion, 1)

	sink, err := resolveSink(benchEnvironment.configuration, options.transferType)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to resolve sink")
	}

	handler, err := createChunkHandler(parentLogger, sink, completions)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create %s sink handler", sink.Kind)
	}

	benchEnvironment.receiver.RegisterHandler(options.transferType, handler)
	defer benchEnvironment.receiver.UnregisterHandler(options.transferType)

	payload, err := readPayload(options)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read payload")
	}

	chunkSize := options.chunkSize
	if chunkSize == 0 {
		chunkSize = benchEnvironment.configuration.Chunking.ChunkSize
	}

	// the file name travels with the session, generated payloads have none
	var transferInformation []byte
	if options.sourcePath != "" {
		transferInformation = []byte(filepath.Base(options.sourcePath))
	}

	session := chunk.NewSessionInformation(options.transferType, chunkSize, transferInformation)

	sender := chunk.NewSender(parentLogger,
		benchEnvironment.bufferFactory,
		benchEnvironment.client,
		benchEnvironment.chunkMetrics)

	sessionTimeout, err := benchEnvironment.configuration.GetSessionTimeout()
	if err != nil {
		return nil, errors.Wrap(err, "Failed to get session timeout")
	}

	transferCtx, cancel := context.WithTimeout(ctx, sessionTimeout)
	defer cancel()

	started := time.Now()

	sentChunks, err := sender.Transfer(transferCtx, session, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "Failed to send transfer")
	}

	var completion transferCompletion
	select {
	case completion = <-completions:
	case <-transferCtx.Done():
		return nil, errors.Wrapf(transferCtx.Err(), "Session %s didn't complete", session.SessionID)
	}

	report := &transferReport{
		SessionID:    session.SessionID.String(),
		TransferType: options.transferType,
		Sink:         string(sink.Kind),
		Bytes:        len(payload),
		Chunks:       sentChunks,
		Duration:     time.Since(started).String(),
		Location:     completion.path,
	}

	report.Verified, err = verifyCompletion(completion, payload)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to verify transfer")
	}

	parentLogger.DebugWith("Transfer completed",
		"sessionID", report.SessionID,
		"chunks", report.Chunks,
		"verified", report.Verified)

	return report, nil
}

// resolveSink returns the sink bound to transferType, or an in-memory one when nothing is
// bound
func resolveSink(configuration *networkconfig.Config, transferType int32) (networkconfig.ChunkSink, error) {
	sinks, err := configuration.GetChunkSinks()
	if err != nil {
		return networkconfig.ChunkSink{}, err
	}

	if sink, bound := sinks[transferType]; bound {
		return sink, nil
	}

	return networkconfig.ChunkSink{Kind: networkconfig.ChunkSinkKindMemory}, nil
}

func createChunkHandler(parentLogger logger.Logger,
	sink networkconfig.ChunkSink,
	completions chan<- transferCompletion) (chunk.Handler, error) {
	switch sink.Kind {
	case networkconfig.ChunkSinkKindMemory:
		return chunk.NewMemoryHandler(func(session chunk.SessionInformation, payload []byte) error {
			completions <- transferCompletion{session: session, payload: payload}
			return nil
		}), nil

	case networkconfig.ChunkSinkKindFile:
		fileHandlerConfiguration, err := sink.GetFileHandlerConfiguration()
		if err != nil {
			return nil, err
		}

		return chunk.NewFileHandler(parentLogger,
			*fileHandlerConfiguration,
			func(session chunk.SessionInformation, path string) error {
				completions <- transferCompletion{session: session, path: path}
				return nil
			})

	default:
		return nil, errors.Errorf("Unknown sink kind %s", sink.Kind)
	}
}

func readPayload(options *transferOptions) ([]byte, error) {
	if options.sourcePath != "" {
		if !common.IsFile(options.sourcePath) {
			return nil, errors.Errorf("Source %s is not a file", options.sourcePath)
		}

		return os.ReadFile(options.sourcePath)
	}

	payload := make([]byte, options.size)
	rand.New(rand.NewSource(time.Now().UnixNano())).Read(payload) // nolint: errcheck

	return payload, nil
}

// verifyCompletion compares what the sink received with what was sent. Extracted archives
// are only checked for existence
func verifyCompletion(completion transferCompletion, payload []byte) (bool, error) {
	if completion.path == "" {
		return bytes.Equal(completion.payload, payload), nil
	}

	if common.IsDir(completion.path) {
		return true, nil
	}

	received, err := os.ReadFile(completion.path)
	if err != nil {
		return false, errors.Wrapf(err, "Failed to read %s", completion.path)
	}

	return bytes.Equal(received, payload), nil
}
