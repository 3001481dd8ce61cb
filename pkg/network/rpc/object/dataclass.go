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
	"reflect"
	"sync"

	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"

	"github.com/nuclio/errors"
)

// dataClassSerializer writes the exported fields of a struct in declaration order. Fields
// tagged `buf:"-"` are skipped
type dataClassSerializer struct {
	fieldTables sync.Map
}

func newDataClassSerializer() *dataClassSerializer {
	return &dataClassSerializer{}
}

func (ds *dataClassSerializer) Write(target buffer.Mutable, value interface{}, typ reflect.Type, caller ObjectMapper) error {
	reflectValue := reflect.ValueOf(value)

	for _, field := range ds.fieldTable(typ) {
		if err := caller.WriteObject(target, reflectValue.FieldByIndex(field.Index).Interface()); err != nil {
			return errors.Wrapf(err, "Failed to write field %s of %s", field.Name, typ)
		}
	}

	return nil
}

func (ds *dataClassSerializer) Read(source buffer.DataBuf, typ reflect.Type, caller ObjectMapper) (interface{}, error) {
	result := reflect.New(typ).Elem()

	for _, field := range ds.fieldTable(typ) {
		value, err := caller.ReadObject(source, field.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read field %s of %s", field.Name, typ)
		}

		assign(result.FieldByIndex(field.Index), value)
	}

	return result.Interface(), nil
}

// fieldTable is computed once per struct type; struct shapes don't change at runtime
func (ds *dataClassSerializer) fieldTable(typ reflect.Type) []reflect.StructField {
	if cached, found := ds.fieldTables.Load(typ); found {
		return cached.([]reflect.StructField)
	}

	var fields []reflect.StructField
	for fieldIndex := 0; fieldIndex < typ.NumField(); fieldIndex++ {
		field := typ.Field(fieldIndex)
		if !field.IsExported() || field.Tag.Get("buf") == "-" {
			continue
		}

		fields = append(fields, field)
	}

	cached, _ := ds.fieldTables.LoadOrStore(typ, fields)
	return cached.([]reflect.StructField)
}
