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

package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps kinds to registerees. Registration is expected at startup, lookups at any time
type Registry[K comparable, V any] struct {
	className  string
	Lock       sync.Locker
	Registered map[K]V
}

func NewRegistry[K comparable, V any](className string) *Registry[K, V] {
	return &Registry[K, V]{
		className:  className,
		Lock:       &sync.Mutex{},
		Registered: map[K]V{},
	}
}

func (r *Registry[K, V]) Register(kind K, registeree V) {
	r.Lock.Lock()
	defer r.Lock.Unlock()

	_, found := r.Registered[kind]
	if found {

		// registries register things on initialization; no place for error handling
		panic(fmt.Sprintf("Already registered: %v", kind))
	}

	r.Registered[kind] = registeree
}

// Unregister removes kind. Returns false if nothing was registered for it
func (r *Registry[K, V]) Unregister(kind K) bool {
	r.Lock.Lock()
	defer r.Lock.Unlock()

	_, found := r.Registered[kind]
	delete(r.Registered, kind)

	return found
}

func (r *Registry[K, V]) Get(kind K) (V, error) {
	r.Lock.Lock()
	defer r.Lock.Unlock()

	registree, found := r.Registered[kind]
	if !found {
		return registree, fmt.Errorf("Registry for %s failed to find: %v", r.className, kind)
	}

	return registree, nil
}

// GetKinds returns the registered kinds, sorted by their printed form
func (r *Registry[K, V]) GetKinds() []K {
	r.Lock.Lock()
	defer r.Lock.Unlock()

	keys := make([]K, 0, len(r.Registered))

	for key := range r.Registered {
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
	})

	return keys
}
