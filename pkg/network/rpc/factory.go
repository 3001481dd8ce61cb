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

package rpc

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"
	"github.com/cloudnetservice/cloudnet/pkg/network/packet"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// Factory creates the senders, handlers and listeners of one process. They share the
// object mapper, buffer factory and class cache of the factory
type Factory struct {
	logger        logger.Logger
	mapper        buffer.ObjectMapper
	bufferFactory *buffer.Factory
	metrics       *Metrics
	classes       sync.Map

	normalizePrimitives atomic.Bool
}

// NewFactory creates a factory. metrics may be nil
func NewFactory(parentLogger logger.Logger,
	mapper buffer.ObjectMapper,
	bufferFactory *buffer.Factory,
	metrics *Metrics) *Factory {
	newFactory := &Factory{
		logger:        parentLogger.GetChild("rpc"),
		mapper:        mapper,
		bufferFactory: bufferFactory,
		metrics:       metrics,
	}

	newFactory.normalizePrimitives.Store(true)

	return newFactory
}

// SetNormalizePrimitives sets the coercion mode of calls created by the senders of the
// factory from now on. Calls can still override it with RPC.NormalizePrimitives
func (f *Factory) SetNormalizePrimitives(normalizePrimitives bool) {
	f.normalizePrimitives.Store(normalizePrimitives)
}

func (f *Factory) NormalizePrimitives() bool {
	return f.normalizePrimitives.Load()
}

// ClassOf returns the class of typ, built once per type
func (f *Factory) ClassOf(typ reflect.Type) (*Class, error) {
	if cached, found := f.classes.Load(typ); found {
		return cached.(*Class), nil
	}

	class, err := ClassOf(typ)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to build class of %s", typ)
	}

	cached, _ := f.classes.LoadOrStore(typ, class)
	return cached.(*Class), nil
}

// NewSender returns a sender calling methods of class through channel
func (f *Factory) NewSender(class *Class, channel packet.NetworkChannel) *Sender {
	return &Sender{
		factory: f,
		class:   class,
		channel: channel,
	}
}

// NewSenderForType returns a sender calling methods of typ's class through channel
func (f *Factory) NewSenderForType(typ reflect.Type, channel packet.NetworkChannel) (*Sender, error) {
	class, err := f.ClassOf(typ)
	if err != nil {
		return nil, err
	}

	return f.NewSender(class, channel), nil
}

// NewHandler returns a handler invoking methods of class on instance, unless a call brings
// its own working instance
func (f *Factory) NewHandler(class *Class, instance interface{}) *Handler {
	return f.newHandler(class, instance, nil)
}

// NewHandlerWithFactory returns a handler creating the instance to invoke on per call
func (f *Factory) NewHandlerWithFactory(class *Class, instanceFactory InstanceFactory) *Handler {
	return f.newHandler(class, nil, instanceFactory)
}

// NewListener returns the packet listener evaluating requests against registry
func (f *Factory) NewListener(registry *HandlerRegistry) *Listener {
	return &Listener{
		logger:        f.logger.GetChild("listener"),
		registry:      registry,
		mapper:        f.mapper,
		bufferFactory: f.bufferFactory,
	}
}

func (f *Factory) newHandler(class *Class, instance interface{}, instanceFactory InstanceFactory) *Handler {
	return &Handler{
		logger:          f.logger.GetChild("handler"),
		class:           class,
		instance:        instance,
		instanceFactory: instanceFactory,
		mapper:          f.mapper,
		bufferFactory:   f.bufferFactory,
		metrics:         f.metrics,
	}
}
