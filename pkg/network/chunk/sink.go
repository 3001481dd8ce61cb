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
	"os"
	"path/filepath"

	"github.com/cloudnetservice/cloudnet/pkg/common"

	"github.com/mholt/archiver/v3"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/valyala/bytebufferpool"
)

// MemorySink collects the payload of a session in memory
type MemorySink struct {
	session    SessionInformation
	payload    *bytebufferpool.ByteBuffer
	onComplete func(session SessionInformation, payload []byte) error
}

// NewMemoryHandler returns a handler whose sinks hand the complete payload to onComplete
func NewMemoryHandler(onComplete func(session SessionInformation, payload []byte) error) Handler {
	return HandlerFunc(func(session SessionInformation) (Sink, error) {
		return &MemorySink{
			session:    session,
			payload:    bytebufferpool.Get(),
			onComplete: onComplete,
		}, nil
	})
}

func (ms *MemorySink) Write(data []byte) (int, error) {
	return ms.payload.Write(data)
}

func (ms *MemorySink) Complete() error {
	payload := append([]byte(nil), ms.payload.B...)
	bytebufferpool.Put(ms.payload)

	return ms.onComplete(ms.session, payload)
}

func (ms *MemorySink) Abort(reason error) {
	bytebufferpool.Put(ms.payload)
}

// FileHandlerConfiguration configures where file sinks store their payload
type FileHandlerConfiguration struct {
	Directory string `json:"directory"`

	// ArchiveFormat is the extension of the archive format the payload is in (zip, tar.gz, ...).
	// When set, the payload is extracted into a directory named after the session
	ArchiveFormat string `json:"archiveFormat,omitempty"`
}

type fileHandler struct {
	logger        logger.Logger
	configuration FileHandlerConfiguration
	onComplete    func(session SessionInformation, path string) error
}

// NewFileHandler returns a handler writing each session to Directory/<session id>
func NewFileHandler(parentLogger logger.Logger,
	configuration FileHandlerConfiguration,
	onComplete func(session SessionInformation, path string) error) (Handler, error) {
	if configuration.ArchiveFormat != "" {
		if _, err := archiver.ByExtension("payload." + configuration.ArchiveFormat); err != nil {
			return nil, errors.Wrapf(err, "Unsupported archive format %s", configuration.ArchiveFormat)
		}
	}

	if !common.IsDir(configuration.Directory) {
		if err := os.MkdirAll(configuration.Directory, 0755); err != nil {
			return nil, errors.Wrapf(err, "Failed to create directory %s", configuration.Directory)
		}
	}

	return &fileHandler{
		logger:        parentLogger.GetChild("file-sink"),
		configuration: configuration,
		onComplete:    onComplete,
	}, nil
}

func (fh *fileHandler) CreateSink(session SessionInformation) (Sink, error) {
	file, err := os.CreateTemp(fh.configuration.Directory, session.SessionID.String()+"-*.part")
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create temporary file")
	}

	return &FileSink{
		handler: fh,
		session: session,
		file:    file,
	}, nil
}

// FileSink writes the payload of a session to a temporary file, moved in place on completion
type FileSink struct {
	handler *fileHandler
	session SessionInformation
	file    *os.File
}

func (fs *FileSink) Write(data []byte) (int, error) {
	return fs.file.Write(data)
}

func (fs *FileSink) Complete() error {
	if err := fs.file.Close(); err != nil {
		return errors.Wrap(err, "Failed to close temporary file")
	}

	targetPath := filepath.Join(fs.handler.configuration.Directory, fs.session.SessionID.String())

	if fs.handler.configuration.ArchiveFormat == "" {
		if err := os.Rename(fs.file.Name(), targetPath); err != nil {
			return errors.Wrap(err, "Failed to move payload in place")
		}

		return fs.handler.onComplete(fs.session, targetPath)
	}

	// the format is detected by extension
	archivePath := targetPath + "." + fs.handler.configuration.ArchiveFormat
	if err := os.Rename(fs.file.Name(), archivePath); err != nil {
		return errors.Wrap(err, "Failed to move archive in place")
	}

	defer os.Remove(archivePath) // nolint: errcheck

	if err := archiver.Unarchive(archivePath, targetPath); err != nil {
		return errors.Wrapf(err, "Failed to extract session %s", fs.session.SessionID)
	}

	fs.handler.logger.DebugWith("Extracted transfer",
		"sessionID", fs.session.SessionID.String(),
		"target", targetPath)

	return fs.handler.onComplete(fs.session, targetPath)
}

func (fs *FileSink) Abort(reason error) {
	fs.file.Close()           // nolint: errcheck
	os.Remove(fs.file.Name()) // nolint: errcheck

	fs.handler.logger.DebugWith("Discarded transfer",
		"sessionID", fs.session.SessionID.String(),
		"reason", reason.Error())
}
