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
	"testing"

	"github.com/stretchr/testify/suite"
	"sigs.k8s.io/yaml"
)

type callReport struct {
	Calls    int    `json:"calls"`
	Method   string `json:"method"`
	Failures int    `json:"failures"`
}

func (cr *callReport) TableHeader() []interface{} {
	return []interface{}{"Method", "Calls", "Failures"}
}

func (cr *callReport) TableRows() [][]interface{} {
	return [][]interface{}{{cr.Method, cr.Calls, cr.Failures}}
}

type RendererTestSuite struct {
	suite.Suite
	output   *bytes.Buffer
	renderer *Renderer
	report   *callReport
}

func (suite *RendererTestSuite) SetupTest() {
	suite.output = &bytes.Buffer{}
	suite.renderer = NewRenderer(suite.output)
	suite.report = &callReport{Calls: 128, Method: "Echo", Failures: 1}
}

func (suite *RendererTestSuite) TestText() {
	suite.Require().NoError(suite.renderer.Render(OutputFormatText, suite.report))

	rendered := suite.output.String()
	suite.Require().Contains(rendered, "METHOD")
	suite.Require().Contains(rendered, "Echo")
	suite.Require().Contains(rendered, "128")
}

func (suite *RendererTestSuite) TestTextRequiresTabular() {
	suite.Require().Error(suite.renderer.Render(OutputFormatText, map[string]int{"calls": 1}))
}

func (suite *RendererTestSuite) TestJSON() {
	suite.Require().NoError(suite.renderer.Render(OutputFormatJSON, suite.report))

	decoded := callReport{}
	suite.Require().NoError(json.Unmarshal(suite.output.Bytes(), &decoded))
	suite.Require().Equal(*suite.report, decoded)
}

func (suite *RendererTestSuite) TestYAML() {
	suite.Require().NoError(suite.renderer.Render(OutputFormatYAML, suite.report))

	decoded := callReport{}
	suite.Require().NoError(yaml.Unmarshal(suite.output.Bytes(), &decoded))
	suite.Require().Equal(*suite.report, decoded)
}

func (suite *RendererTestSuite) TestUnsupportedFormat() {
	suite.Require().Error(suite.renderer.Render("xml", suite.report))
	suite.Require().Empty(suite.output.String())
}

func TestRendererTestSuite(t *testing.T) {
	suite.Run(t, new(RendererTestSuite))
}
