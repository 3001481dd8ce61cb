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

package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/suite"
)

type VersionTestSuite struct {
	suite.Suite
}

func (suite *VersionTestSuite) TearDownTest() {
	Set(&Info{})
}

func (suite *VersionTestSuite) TestLinkedLabel() {
	Set(&Info{Label: "4.0.0", GitCommit: "abcdef"})

	versionInfo := Get()
	suite.Require().Equal("4.0.0", versionInfo.Label)
	suite.Require().Equal("abcdef", versionInfo.GitCommit)
	suite.Require().Equal(runtime.GOOS, versionInfo.OS)
	suite.Require().Equal(runtime.Version(), versionInfo.GoVersion)
}

func (suite *VersionTestSuite) TestBuildInfoFallback() {
	versionInfo := Get()
	suite.Require().NotEmpty(versionInfo.Label)
	suite.Require().Equal(runtime.GOARCH, versionInfo.Arch)
	suite.Require().Len(versionInfo.TableRows()[0], len(versionInfo.TableHeader()))
}

func TestVersionTestSuite(t *testing.T) {
	suite.Run(t, new(VersionTestSuite))
}
