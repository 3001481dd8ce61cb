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
	"testing"
	"time"

	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type serviceLifeCycle int16

const (
	lifeCyclePrepared serviceLifeCycle = iota
	lifeCycleRunning
)

type shape interface {
	area() float64
}

type circle struct {
	Radius float64
}

func (c *circle) area() float64 {
	return c.Radius * c.Radius * 3
}

type serviceSnapshot struct {
	ServiceID    uuid.UUID
	Name         string
	LifeCycle    serviceLifeCycle
	Port         uint16
	Groups       []string
	Properties   map[string]int64
	Environment  Document
	Parent       *serviceSnapshot
	CreationTime time.Time
	Uptime       time.Duration
	Template     [2]string
	internal     string
	Ignored      string `buf:"-"`
}

type processSnapshot struct {
	pid     int64
	threads []string
}

func (ps *processSnapshot) WriteData(target buffer.Mutable) error {
	target.WriteLong(ps.pid)
	return target.WriteObject(ps.threads)
}

func (ps *processSnapshot) ReadData(source buffer.DataBuf) error {
	var err error
	if ps.pid, err = source.ReadLong(); err != nil {
		return err
	}

	threads, err := source.ReadObject(TypeOf[[]string]())
	if err != nil {
		return err
	}

	ps.threads, _ = threads.([]string)
	return nil
}

type ObjectMapperTestSuite struct {
	suite.Suite
	logger        logger.Logger
	mapper        *DefaultObjectMapper
	bufferFactory *buffer.Factory
}

func (suite *ObjectMapperTestSuite) SetupTest() {
	var err error

	suite.logger, err = nucliozap.NewNuclioZapTest("test")
	suite.Require().NoError(err)

	suite.mapper = NewObjectMapper(suite.logger, true)
	suite.bufferFactory = buffer.NewFactory(suite.mapper)
}

func (suite *ObjectMapperTestSuite) TestPrimitivesAndNamedTypes() {
	values := []interface{}{
		true, int8(-3), uint8(250), int16(-300), uint16(65000), int32(-70000), uint32(4000000000),
		int64(-1 << 40), uint64(1 << 63), -42, uint(42), float32(1.5), 2.25, "text",
		lifeCycleRunning, []byte{9, 8, 7}, uuid.New(), 3 * time.Second,
	}

	dataBuf := suite.bufferFactory.CreateEmpty()
	for _, value := range values {
		suite.Require().NoError(dataBuf.WriteObject(value))
	}

	for _, value := range values {
		read, err := dataBuf.ReadObject(reflect.TypeOf(value))
		suite.Require().NoError(err)
		suite.Require().Equal(value, read)
	}
}

func (suite *ObjectMapperTestSuite) TestDataClass() {
	creationTime := time.Date(2024, 3, 1, 12, 30, 0, 500, time.UTC)
	snapshot := serviceSnapshot{
		ServiceID:    uuid.New(),
		Name:         "Lobby-1",
		LifeCycle:    lifeCycleRunning,
		Port:         25565,
		Groups:       []string{"Lobby", "Global"},
		Properties:   map[string]int64{"maxPlayers": 50},
		Environment:  Document{"javaCommand": "java", "debug": "false"},
		Parent:       &serviceSnapshot{Name: "Proxy-1", LifeCycle: lifeCyclePrepared},
		CreationTime: creationTime,
		Uptime:       time.Minute,
		Template:     [2]string{"Lobby", "default"},
		internal:     "not sent",
		Ignored:      "not sent either",
	}

	dataBuf := suite.bufferFactory.CreateEmpty()
	suite.Require().NoError(dataBuf.WriteObject(snapshot))

	read, err := Read[serviceSnapshot](suite.mapper, dataBuf)
	suite.Require().NoError(err)

	expected := snapshot
	expected.internal = ""
	expected.Ignored = ""

	diff := cmp.Diff(expected, read, cmp.AllowUnexported(serviceSnapshot{}))
	suite.Require().Empty(diff)
	suite.Require().Equal(0, dataBuf.ReadableBytes())
}

func (suite *ObjectMapperTestSuite) TestNullValues() {
	var nilSnapshot *serviceSnapshot
	var nilSlice []string

	dataBuf := suite.bufferFactory.CreateEmpty()
	suite.Require().NoError(dataBuf.WriteObject(nil))
	suite.Require().NoError(dataBuf.WriteObject(nilSnapshot))
	suite.Require().NoError(dataBuf.WriteObject(nilSlice))

	// three presence bytes, nothing else
	suite.Require().Equal(3, dataBuf.ReadableBytes())

	readString, err := Read[string](suite.mapper, dataBuf)
	suite.Require().NoError(err)
	suite.Require().Equal("", readString)

	readSnapshot, err := Read[*serviceSnapshot](suite.mapper, dataBuf)
	suite.Require().NoError(err)
	suite.Require().Nil(readSnapshot)

	readSlice, err := Read[[]string](suite.mapper, dataBuf)
	suite.Require().NoError(err)
	suite.Require().Nil(readSlice)
}

func (suite *ObjectMapperTestSuite) TestSupertypeBinding() {
	mapper := NewObjectMapper(suite.logger, false)
	dataBuf := buffer.NewFactory(mapper).CreateEmpty()

	serializer := &FunctionalSerializer{
		Reader: func(source buffer.DataBuf) (interface{}, error) {
			radius, err := source.ReadDouble()
			return &circle{Radius: radius}, err
		},
		Writer: func(target buffer.Mutable, value interface{}) error {
			target.WriteDouble(value.(*circle).Radius)
			return nil
		},
	}

	// a subtype (implementation) resolves the supertype-inclusive binding
	mapper.RegisterBinding(TypeOf[shape](), serializer, true)
	suite.Require().NoError(mapper.WriteObject(dataBuf, &circle{Radius: 2}))

	read, err := Read[shape](mapper, dataBuf)
	suite.Require().NoError(err)
	suite.Require().Equal(12.0, read.area())

	// unregistering removes resolvability
	mapper.UnregisterBinding(TypeOf[shape](), true)
	err = mapper.WriteObject(dataBuf, &circle{Radius: 2})
	suite.Require().Error(err)
	suite.Require().True(IsNoSerializerFound(err))

	// nothing may be written for a value that failed to resolve
	suite.Require().Equal(0, dataBuf.ReadableBytes())
}

func (suite *ObjectMapperTestSuite) TestExactBindingWins() {
	calls := []string{}
	newSerializer := func(name string) ObjectSerializer {
		return &FunctionalSerializer{
			Reader: func(source buffer.DataBuf) (interface{}, error) {
				return &circle{}, nil
			},
			Writer: func(target buffer.Mutable, value interface{}) error {
				calls = append(calls, name)
				return nil
			},
		}
	}

	suite.mapper.RegisterBinding(TypeOf[shape](), newSerializer("supertype"), true)
	suite.mapper.RegisterBinding(TypeOf[*circle](), newSerializer("first"), false)
	suite.mapper.RegisterBinding(TypeOf[*circle](), newSerializer("exact"), false)

	suite.Require().NoError(suite.mapper.WriteObject(suite.bufferFactory.CreateEmpty(), &circle{}))
	suite.Require().Equal([]string{"exact"}, calls)

	// without the exact binding the supertype binding applies before the pointer kind codec
	suite.mapper.UnregisterBinding(TypeOf[*circle](), false)
	suite.Require().NoError(suite.mapper.WriteObject(suite.bufferFactory.CreateEmpty(), &circle{}))
	suite.Require().Equal([]string{"exact", "supertype"}, calls)
}

func (suite *ObjectMapperTestSuite) TestBufSerializableAndDataBuf() {
	nested := suite.bufferFactory.CreateEmpty().WriteString("inner")

	dataBuf := suite.bufferFactory.CreateEmpty()
	suite.Require().NoError(dataBuf.WriteObject(&processSnapshot{pid: 1234, threads: []string{"main", "netty"}}))
	suite.Require().NoError(dataBuf.WriteObject(nested))

	snapshot, err := Read[*processSnapshot](suite.mapper, dataBuf)
	suite.Require().NoError(err)
	suite.Require().Equal(int64(1234), snapshot.pid)
	suite.Require().Equal([]string{"main", "netty"}, snapshot.threads)

	readNested, err := Read[buffer.DataBuf](suite.mapper, dataBuf)
	suite.Require().NoError(err)

	inner, err := readNested.ReadString()
	suite.Require().NoError(err)
	suite.Require().Equal("inner", inner)
}

func (suite *ObjectMapperTestSuite) TestUnsupportedType() {
	err := suite.mapper.WriteObject(suite.bufferFactory.CreateEmpty(), make(chan int))
	suite.Require().True(IsNoSerializerFound(err))

	dataBuf := suite.bufferFactory.CreateEmpty().WriteBool(true)
	_, err = suite.mapper.ReadObject(dataBuf, TypeOf[func()]())
	suite.Require().True(IsNoSerializerFound(err))
}

func (suite *ObjectMapperTestSuite) TestRegistrationDuringLookups() {
	waitGroup := sync.WaitGroup{}

	for workerIndex := 0; workerIndex < 4; workerIndex++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()

			dataBuf := suite.bufferFactory.CreateEmpty()
			for iteration := 0; iteration < 200; iteration++ {
				suite.Require().NoError(suite.mapper.WriteObject(dataBuf, "value"))
			}
		}()
	}

	for iteration := 0; iteration < 200; iteration++ {
		suite.mapper.RegisterBinding(TypeOf[shape](), byteArraySerializer, true)
		suite.mapper.UnregisterBinding(TypeOf[shape](), true)
	}

	waitGroup.Wait()
}

func TestObjectMapperTestSuite(t *testing.T) {
	suite.Run(t, new(ObjectMapperTestSuite))
}
