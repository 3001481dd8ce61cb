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
	"context"
	"testing"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type PanicTestSuite struct {
	suite.Suite
	logger logger.Logger
}

func (suite *PanicTestSuite) SetupTest() {
	var err error

	suite.logger, err = nucliozap.NewNuclioZapTest("test")
	suite.Require().NoError(err)
}

func (suite *PanicTestSuite) TestCustomHandlerReceivesError() {
	var handledErr error

	func() {
		defer CatchAndLogPanicWithOptions(context.Background(), // nolint: errcheck
			suite.logger,
			"testing",
			&CatchAndLogPanicOptions{
				Args: []interface{}{"channel", 3},
				CustomHandler: func(err error) {
					handledErr = err
				},
			})

		panic("something broke")
	}()

	suite.Require().EqualError(handledErr, "something broke")
}

func (suite *PanicTestSuite) TestErrorFromRecoveredError() {
	original := errors.New("original")

	suite.Require().Equal(original, ErrorFromRecoveredError(original))
	suite.Require().EqualError(ErrorFromRecoveredError("text"), "text")
	suite.Require().EqualError(ErrorFromRecoveredError(42), "Unknown error type: 42")
}

func TestPanicTestSuite(t *testing.T) {
	suite.Run(t, new(PanicTestSuite))
}
