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
	"fmt"
	"sort"
	"sync"

	"github.com/cloudnetservice/cloudnet/pkg/common"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/samber/lo"
)

// ListenerRegistry maps channel ids to the listeners handling them. Registration and
// dispatch may happen concurrently
type ListenerRegistry struct {
	logger    logger.Logger
	lock      sync.RWMutex
	listeners map[int32][]Listener
}

func NewListenerRegistry(parentLogger logger.Logger) *ListenerRegistry {
	return &ListenerRegistry{
		logger:    parentLogger.GetChild("listeners"),
		listeners: map[int32][]Listener{},
	}
}

func (lr *ListenerRegistry) AddListener(channel int32, listeners ...Listener) {
	lr.lock.Lock()
	defer lr.lock.Unlock()

	lr.listeners[channel] = append(lr.listeners[channel], listeners...)
}

func (lr *ListenerRegistry) RemoveListeners(channel int32) {
	lr.lock.Lock()
	defer lr.lock.Unlock()

	delete(lr.listeners, channel)
}

func (lr *ListenerRegistry) HasListeners(channel int32) bool {
	lr.lock.RLock()
	defer lr.lock.RUnlock()

	return len(lr.listeners[channel]) > 0
}

// Channels returns the channel ids with at least one listener, sorted
func (lr *ListenerRegistry) Channels() []int32 {
	lr.lock.RLock()
	defer lr.lock.RUnlock()

	channels := lo.Keys(lr.listeners)
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })

	return channels
}

// Handle passes packet to every listener of its channel, in registration order. Every listener
// reads the content from where it started, and the packet is released once all of them ran.
// A failing or panicking listener doesn't stop the others; the first error is returned
func (lr *ListenerRegistry) Handle(networkChannel NetworkChannel, packet *Packet) error {
	defer packet.Release()

	lr.lock.RLock()
	listeners := append([]Listener(nil), lr.listeners[packet.Channel]...)
	lr.lock.RUnlock()

	if len(listeners) == 0 {
		lr.logger.DebugWith("No listener for channel, dropping packet",
			"channel", packet.Channel,
			"networkChannel", networkChannel.ID())
		return nil
	}

	var firstErr error
	for _, listener := range listeners {
		if packet.Content != nil {
			packet.Content.StartTransaction()
		}

		err := lr.handleSafely(networkChannel, listener, packet)

		if packet.Content != nil && packet.Content.Accessible() {
			packet.Content.RedoTransaction()
		}

		if err != nil {
			lr.logger.WarnWith(string(common.FailedHandlePacket),
				"channel", packet.Channel,
				"networkChannel", networkChannel.ID(),
				"err", errors.RootCause(err).Error())

			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func (lr *ListenerRegistry) handleSafely(networkChannel NetworkChannel, listener Listener, packet *Packet) (err error) {
	defer common.CatchAndLogPanicWithOptions(context.Background(), // nolint: errcheck
		lr.logger,
		fmt.Sprintf("handling packet on channel %d", packet.Channel),
		&common.CatchAndLogPanicOptions{
			Args: []interface{}{"networkChannel", networkChannel.ID()},
			CustomHandler: func(panicErr error) {
				err = errors.Wrap(panicErr, "Listener panicked")
			},
		})

	return listener.HandlePacket(networkChannel, packet)
}
