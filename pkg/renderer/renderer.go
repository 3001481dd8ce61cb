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

package renderer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nuclio/errors"
	"sigs.k8s.io/yaml"
)

const (
	OutputFormatText = "text"
	OutputFormatJSON = "json"
	OutputFormatYAML = "yaml"
)

// Tabular is implemented by reports that can be shown as a table
type Tabular interface {
	TableHeader() []interface{}
	TableRows() [][]interface{}
}

// Renderer writes reports in one of the supported output formats
type Renderer struct {
	output io.Writer
}

func NewRenderer(output io.Writer) *Renderer {
	return &Renderer{
		output: output,
	}
}

// Render writes report in format. The text format needs report to be Tabular
func (r *Renderer) Render(format string, report interface{}) error {
	switch format {
	case OutputFormatText, "":
		tabular, ok := report.(Tabular)
		if !ok {
			return errors.Errorf("Report of type %T can't be rendered as a table", report)
		}

		r.RenderTable(tabular.TableHeader(), tabular.TableRows())
		return nil
	case OutputFormatJSON:
		return r.RenderJSON(report)
	case OutputFormatYAML:
		return r.RenderYAML(report)
	default:
		return errors.Errorf("Unsupported output format %s", format)
	}
}

func (r *Renderer) RenderTable(header []interface{}, records [][]interface{}) {
	tableWriter := table.NewWriter()
	tableWriter.SetOutputMirror(r.output)
	tableWriter.SetStyle(table.Style{
		Name: "CloudNet",
		Box: table.BoxStyle{
			MiddleVertical: "|",
			PaddingLeft:    " ",
			PaddingRight:   " ",
		},
		Options: table.Options{
			DoNotColorBordersAndSeparators: true,
			SeparateColumns:                true,
		},
		Color:  table.ColorOptionsDefault,
		Format: table.FormatOptionsDefault,
		HTML:   table.DefaultHTMLOptions,
		Title:  table.TitleOptionsDefault,
	})

	tableWriter.AppendHeader(toTableRow(header))
	for _, record := range records {
		tableWriter.AppendRow(toTableRow(record))
	}

	tableWriter.Render()
}

func (r *Renderer) RenderYAML(items interface{}) error {
	body, err := yaml.Marshal(items)
	if err != nil {
		return errors.Wrap(err, "Failed to render YAML")
	}

	fmt.Fprint(r.output, string(body)) // nolint: errcheck

	return nil
}

func (r *Renderer) RenderJSON(items interface{}) error {
	body, err := json.Marshal(items)
	if err != nil {
		return errors.Wrap(err, "Failed to render JSON")
	}

	var indentedBody bytes.Buffer
	if err := json.Indent(&indentedBody, body, "", "\t"); err != nil {
		return errors.Wrap(err, "Failed to indent JSON")
	}

	fmt.Fprintln(r.output, indentedBody.String()) // nolint: errcheck

	return nil
}

func toTableRow(row []interface{}) table.Row {
	tableRow := make(table.Row, len(row))
	copy(tableRow, row)
	return tableRow
}
