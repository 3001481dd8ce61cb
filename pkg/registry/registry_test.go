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

package registry

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type RegistryTestSuite struct {
	suite.Suite
	registry *Registry[int32, string]
}

func (suite *RegistryTestSuite) SetupTest() {
	suite.registry = NewRegistry[int32, string]("test")
}

func (suite *RegistryTestSuite) TestRegisterAndGet() {
	suite.registry.Register(2, "two")
	suite.registry.Register(1, "one")

	registeree, err := suite.registry.Get(2)
	suite.Require().NoError(err)
	suite.Require().Equal("two", registeree)

	_, err = suite.registry.Get(3)
	suite.Require().EqualError(err, "Registry for test failed to find: 3")

	suite.Require().Equal([]int32{1, 2}, suite.registry.GetKinds())
}

func (suite *RegistryTestSuite) TestDuplicateRegistrationPanics() {
	suite.registry.Register(1, "one")

	suite.Require().Panics(func() {
		suite.registry.Register(1, "uno")
	})
}

func (suite *RegistryTestSuite) TestUnregister() {
	suite.registry.Register(1, "one")

	suite.Require().True(suite.registry.Unregister(1))
	suite.Require().False(suite.registry.Unregister(1))

	_, err := suite.registry.Get(1)
	suite.Require().Error(err)
}

func TestRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}
