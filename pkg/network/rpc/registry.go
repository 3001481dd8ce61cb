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
	"sort"
	"sync"

	"github.com/nuclio/logger"
)

// HandlerRegistry maps canonical class names to their handlers. Lookups never block on
// registration
type HandlerRegistry struct {
	logger   logger.Logger
	handlers sync.Map
}

func NewHandlerRegistry(parentLogger logger.Logger) *HandlerRegistry {
	return &HandlerRegistry{
		logger: parentLogger.GetChild("handlers"),
	}
}

// RegisterHandler registers handler under the name of its class, replacing any handler
// previously registered for that name
func (hr *HandlerRegistry) RegisterHandler(handler *Handler) {
	_, replaced := hr.handlers.Load(handler.class.name)
	hr.handlers.Store(handler.class.name, handler)

	if replaced {
		hr.logger.DebugWith("Replaced handler", "class", handler.class.name)
		return
	}

	hr.logger.DebugWith("Registered handler", "class", handler.class.name)
}

// UnregisterHandler removes the handler of className. Returns false if none was registered
func (hr *HandlerRegistry) UnregisterHandler(className string) bool {
	_, removed := hr.handlers.LoadAndDelete(className)
	return removed
}

// UnregisterHandlerForType removes the handler of typ's class
func (hr *HandlerRegistry) UnregisterHandlerForType(typ reflect.Type) bool {
	return hr.UnregisterHandler(CanonicalName(typ))
}

func (hr *HandlerRegistry) HasHandler(className string) bool {
	_, found := hr.handlers.Load(className)
	return found
}

func (hr *HandlerRegistry) HasHandlerForType(typ reflect.Type) bool {
	return hr.HasHandler(CanonicalName(typ))
}

// Handler returns the handler registered for className, or nil
func (hr *HandlerRegistry) Handler(className string) *Handler {
	if handler, found := hr.handlers.Load(className); found {
		return handler.(*Handler)
	}

	return nil
}

// HandlerForType returns the handler registered for typ's class, or nil
func (hr *HandlerRegistry) HandlerForType(typ reflect.Type) *Handler {
	return hr.Handler(CanonicalName(typ))
}

// Handlers returns the registered class names, sorted
func (hr *HandlerRegistry) Handlers() []string {
	var classNames []string

	hr.handlers.Range(func(key, value interface{}) bool {
		classNames = append(classNames, key.(string))
		return true
	})

	sort.Strings(classNames)
	return classNames
}
