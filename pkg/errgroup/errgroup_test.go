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

package errgroup

import (
	"context"
	"sync"
	"testing"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type ErrGroupTestSuite struct {
	suite.Suite
	logger logger.Logger
	ctx    context.Context
	lock   sync.Mutex
}

func (suite *ErrGroupTestSuite) SetupTest() {
	suite.logger, _ = nucliozap.NewNuclioZapTest("test")
	suite.ctx = context.Background()
}

func (suite *ErrGroupTestSuite) TestConcurrencyLimit() {
	for _, testCase := range []struct {
		name          string
		concurrency   int
		goroutinesNum int
	}{
		{
			name:          "DefaultConcurrency",
			concurrency:   DefaultConcurrency,
			goroutinesNum: 10,
		},
		{
			name:          "ZeroConcurrency",
			concurrency:   0,
			goroutinesNum: 10,
		},
		{
			name:          "NegativeConcurrency",
			concurrency:   -45,
			goroutinesNum: 10,
		},
		{
			name:          "ManyGoroutines",
			concurrency:   7,
			goroutinesNum: 30,
		},
	} {
		suite.Run(testCase.name, func() {
			var concurrentCallCount, maxConcurrentCallCount, totalCallCount int
			errGroup, _ := WithContext(suite.ctx, suite.logger, testCase.concurrency)

			for i := 0; i < testCase.goroutinesNum; i++ {
				errGroup.Go(testCase.name, func() error {
					suite.lock.Lock()
					concurrentCallCount++
					totalCallCount++
					if concurrentCallCount > maxConcurrentCallCount {
						maxConcurrentCallCount = concurrentCallCount
					}
					suite.lock.Unlock()

					suite.lock.Lock()
					concurrentCallCount--
					suite.lock.Unlock()
					return nil
				})
			}

			suite.Require().NoError(errGroup.Wait())

			expectedLimit := testCase.concurrency
			if expectedLimit <= 0 {
				expectedLimit = DefaultConcurrency
			}

			suite.Require().LessOrEqual(maxConcurrentCallCount, expectedLimit)
			suite.Require().Equal(0, concurrentCallCount)
			suite.Require().Equal(testCase.goroutinesNum, totalCallCount)
		})
	}
}

func (suite *ErrGroupTestSuite) TestFirstErrorCancelsContext() {
	errGroup, groupCtx := WithContext(suite.ctx, suite.logger, 2)
	expectedErr := errors.New("call failed")

	errGroup.Go("failing", func() error {
		return expectedErr
	})

	errGroup.Go("waiting", func() error {
		<-groupCtx.Done()
		return nil
	})

	suite.Require().Equal(expectedErr, errGroup.Wait())
}

func (suite *ErrGroupTestSuite) TestPanicBecomesError() {
	errGroup, _ := WithContext(suite.ctx, suite.logger, 1)

	errGroup.Go("panicking", func() error {
		panic("boom")
	})

	err := errGroup.Wait()
	suite.Require().Error(err)
	suite.Require().Equal("boom", errors.RootCause(err).Error())
}

func TestErrGroupTestSuite(t *testing.T) {
	suite.Run(t, new(ErrGroupTestSuite))
}
