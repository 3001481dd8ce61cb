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

package common

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type HelperTestSuite struct {
	suite.Suite
	tempDir string
}

func (suite *HelperTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
}

func (suite *HelperTestSuite) TestIsFile() {
	filePath := filepath.Join(suite.tempDir, "payload")
	suite.Require().NoError(os.WriteFile(filePath, []byte("chunk"), 0644))

	suite.Require().True(IsFile(filePath))
	suite.Require().False(IsFile(suite.tempDir))
	suite.Require().False(IsFile(filepath.Join(suite.tempDir, "missing")))
}

func (suite *HelperTestSuite) TestIsDir() {
	filePath := filepath.Join(suite.tempDir, "payload")
	suite.Require().NoError(os.WriteFile(filePath, []byte("chunk"), 0644))

	suite.Require().True(IsDir(suite.tempDir))
	suite.Require().False(IsDir(filePath))
	suite.Require().False(IsDir(filepath.Join(suite.tempDir, "missing")))
}

func (suite *HelperTestSuite) TestRetryUntilSuccessful() {
	var attempts atomic.Int32

	err := RetryUntilSuccessful(time.Second, time.Millisecond, func() bool {
		return attempts.Add(1) == 3
	})
	suite.Require().NoError(err)
	suite.Require().Equal(int32(3), attempts.Load())

	err = RetryUntilSuccessful(20*time.Millisecond, 5*time.Millisecond, func() bool {
		return false
	})
	suite.Require().Error(err)
}

func TestHelperTestSuite(t *testing.T) {
	suite.Run(t, new(HelperTestSuite))
}
