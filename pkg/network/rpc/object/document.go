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
	"bytes"
	"reflect"

	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"

	"github.com/nuclio/errors"
	"github.com/vmihailenco/msgpack/v4"
)

// documentSerializer encodes a Document as one msgpack byte array
type documentSerializer struct{}

func (ds *documentSerializer) Write(target buffer.Mutable, value interface{}, typ reflect.Type, caller ObjectMapper) error {
	encoded, err := msgpack.Marshal(map[string]interface{}(value.(Document)))
	if err != nil {
		return errors.Wrap(err, "Failed to encode document")
	}

	target.WriteByteArray(encoded)
	return nil
}

func (ds *documentSerializer) Read(source buffer.DataBuf, typ reflect.Type, caller ObjectMapper) (interface{}, error) {
	encoded, err := source.ReadByteArray()
	if err != nil {
		return nil, err
	}

	decoder := msgpack.NewDecoder(bytes.NewReader(encoded))
	decoder.UseDecodeInterfaceLoose(true)

	var decoded map[string]interface{}
	if err := decoder.Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "Failed to decode document")
	}

	return Document(decoded), nil
}
