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
	"sync"

	"github.com/cloudnetservice/cloudnet/pkg/common/task"

	"github.com/google/uuid"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// QueryManager correlates responses with the queries waiting for them. Transports own one
// per channel
type QueryManager struct {
	logger  logger.Logger
	pending sync.Map
}

func NewQueryManager(parentLogger logger.Logger) *QueryManager {
	return &QueryManager{
		logger: parentLogger.GetChild("queries"),
	}
}

// SendQueryAsync registers packet as pending query and sends it through send. The returned
// task fails if sending fails, if ctx is done before the response arrives or if FailAll
// is called
func (qm *QueryManager) SendQueryAsync(ctx context.Context,
	packet *Packet,
	send func(packet *Packet) error) *task.Task[*Packet] {
	if packet.UniqueID == nil {
		uniqueID := uuid.New()
		packet.UniqueID = &uniqueID
	}

	uniqueID := *packet.UniqueID
	queryTask := task.NewTask[*Packet]()

	if _, loaded := qm.pending.LoadOrStore(uniqueID, queryTask); loaded {
		return task.Failed[*Packet](ErrDuplicateQuery)
	}

	if err := send(packet); err != nil {
		qm.pending.Delete(uniqueID)
		queryTask.Fail(errors.Wrap(err, "Failed to send query"))
		return queryTask
	}

	go func() {
		select {
		case <-queryTask.Done():
		case <-ctx.Done():

			// a late response is dropped by HandleResponse
			if _, found := qm.pending.LoadAndDelete(uniqueID); found {
				qm.logger.DebugWith("Query abandoned", "uniqueID", uniqueID.String())
				queryTask.Fail(ctx.Err())
			}
		}
	}()

	return queryTask
}

// HandleResponse completes the query packet answers. Returns false if packet is not a
// response to a pending query
func (qm *QueryManager) HandleResponse(packet *Packet) bool {
	if packet.Channel != ResponseChannel || packet.UniqueID == nil {
		return false
	}

	pending, found := qm.pending.LoadAndDelete(*packet.UniqueID)
	if !found {
		qm.logger.DebugWith("Dropping response without pending query", "uniqueID", packet.UniqueID.String())
		packet.Release()
		return true
	}

	pending.(*task.Task[*Packet]).Complete(packet)
	return true
}

// WaitingQueries returns the number of queries still waiting for a response
func (qm *QueryManager) WaitingQueries() int {
	waiting := 0
	qm.pending.Range(func(key, value interface{}) bool {
		waiting++
		return true
	})

	return waiting
}

// FailAll fails every pending query with err
func (qm *QueryManager) FailAll(err error) {
	qm.pending.Range(func(key, value interface{}) bool {
		if pending, found := qm.pending.LoadAndDelete(key); found {
			pending.(*task.Task[*Packet]).Fail(err)
		}

		return true
	})
}
