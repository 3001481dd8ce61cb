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

package object

import (
	"fmt"
	"reflect"

	"github.com/nuclio/errors"
)

// NoSerializerFoundError is returned when no binding resolves for a type
type NoSerializerFoundError struct {
	Type reflect.Type
}

func (e *NoSerializerFoundError) Error() string {
	return fmt.Sprintf("No serializer found for type %s", e.Type)
}

// IsNoSerializerFound returns whether the root cause of err is a missing serializer
func IsNoSerializerFound(err error) bool {
	_, ok := errors.RootCause(err).(*NoSerializerFoundError)
	return ok
}
