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

package buffer

// ReadNullable reads a presence flag and, when the value is present, invokes reader. When
// absent, reader is not called and valueWhenNull is returned
func ReadNullable[T any](source DataBuf, reader func(DataBuf) (T, error), valueWhenNull T) (T, error) {
	present, err := source.ReadBool()
	if err != nil {
		return valueWhenNull, err
	}

	if !present {
		return valueWhenNull, nil
	}

	return reader(source)
}

// WriteNullable writes a presence flag followed by the value, if value is not nil
func WriteNullable[T any](target Mutable, value *T, writer func(Mutable, T) error) error {
	if value == nil {
		target.WriteBool(false)
		return nil
	}

	target.WriteBool(true)
	return writer(target, *value)
}

// ReadNullableString reads a string written by WriteNullableString
func ReadNullableString(source DataBuf) (*string, error) {
	return ReadNullable[*string](source, func(dataBuf DataBuf) (*string, error) {
		value, err := dataBuf.ReadString()
		if err != nil {
			return nil, err
		}

		return &value, nil
	}, nil)
}

// WriteNullableString writes value or a null marker
func WriteNullableString(target Mutable, value *string) Mutable {
	WriteNullable(target, value, func(dataBuf Mutable, value string) error { // nolint: errcheck
		dataBuf.WriteString(value)
		return nil
	})

	return target
}
