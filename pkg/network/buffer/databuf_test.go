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

import (
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type DataBufTestSuite struct {
	suite.Suite
	factory *Factory
}

func (suite *DataBufTestSuite) SetupTest() {
	suite.factory = NewFactory(nil)
}

func (suite *DataBufTestSuite) TestPrimitivesRoundTrip() {
	uniqueID := uuid.New()
	nested := suite.factory.CreateEmpty().WriteString("nested").WriteInt(7)

	dataBuf := suite.factory.CreateEmpty().
		WriteBool(true).
		WriteSingleByte(0xfe).
		WriteShort(-1234).
		WriteInt(123456789).
		WriteLong(-9876543210).
		WriteFloat(3.5).
		WriteDouble(-0.125).
		WriteChar('ß').
		WriteByteArray([]byte{1, 2, 3}).
		WriteUniqueID(uniqueID).
		WriteString("hello wörld").
		WriteDataBuf(nested).
		WriteString("after nested")

	boolValue, err := dataBuf.ReadBool()
	suite.Require().NoError(err)
	suite.Require().True(boolValue)

	byteValue, err := dataBuf.ReadByte()
	suite.Require().NoError(err)
	suite.Require().Equal(byte(0xfe), byteValue)

	shortValue, err := dataBuf.ReadShort()
	suite.Require().NoError(err)
	suite.Require().Equal(int16(-1234), shortValue)

	intValue, err := dataBuf.ReadInt()
	suite.Require().NoError(err)
	suite.Require().Equal(int32(123456789), intValue)

	longValue, err := dataBuf.ReadLong()
	suite.Require().NoError(err)
	suite.Require().Equal(int64(-9876543210), longValue)

	floatValue, err := dataBuf.ReadFloat()
	suite.Require().NoError(err)
	suite.Require().Equal(float32(3.5), floatValue)

	doubleValue, err := dataBuf.ReadDouble()
	suite.Require().NoError(err)
	suite.Require().Equal(-0.125, doubleValue)

	charValue, err := dataBuf.ReadChar()
	suite.Require().NoError(err)
	suite.Require().Equal('ß', charValue)

	byteArray, err := dataBuf.ReadByteArray()
	suite.Require().NoError(err)
	suite.Require().Equal([]byte{1, 2, 3}, byteArray)

	readUniqueID, err := dataBuf.ReadUniqueID()
	suite.Require().NoError(err)
	suite.Require().Equal(uniqueID, readUniqueID)

	stringValue, err := dataBuf.ReadString()
	suite.Require().NoError(err)
	suite.Require().Equal("hello wörld", stringValue)

	nestedBuf, err := dataBuf.ReadDataBuf()
	suite.Require().NoError(err)

	// the nested buffer has its own cursor, the outer one continues after it
	afterNested, err := dataBuf.ReadString()
	suite.Require().NoError(err)
	suite.Require().Equal("after nested", afterNested)

	nestedString, err := nestedBuf.ReadString()
	suite.Require().NoError(err)
	suite.Require().Equal("nested", nestedString)

	nestedInt, err := nestedBuf.ReadInt()
	suite.Require().NoError(err)
	suite.Require().Equal(int32(7), nestedInt)

	suite.Require().Equal(0, dataBuf.ReadableBytes())
}

func (suite *DataBufTestSuite) TestBigEndianLayout() {
	dataBuf := suite.factory.CreateEmpty().WriteInt(0x01020304).WriteShort(0x0506)
	suite.Require().Equal([]byte{1, 2, 3, 4, 5, 6}, dataBuf.ToByteArray())
}

func (suite *DataBufTestSuite) TestUnderflow() {
	dataBuf := suite.factory.CreateEmpty().WriteShort(1)

	_, err := dataBuf.ReadLong()
	suite.Require().Error(err)
	suite.Require().True(IsUnderflow(err))

	// the failed read must not move the cursor
	suite.Require().Equal(2, dataBuf.ReadableBytes())
	shortValue, err := dataBuf.ReadShort()
	suite.Require().NoError(err)
	suite.Require().Equal(int16(1), shortValue)

	// a length prefix announcing more bytes than written
	truncated := suite.factory.CreateEmpty().WriteInt(100).WriteSingleByte(1)
	_, err = truncated.ReadString()
	suite.Require().True(IsUnderflow(err))
	suite.Require().Equal(5, truncated.ReadableBytes())

	negative := suite.factory.CreateEmpty().WriteInt(-5)
	_, err = negative.ReadByteArray()
	suite.Require().True(IsMalformed(err))
}

func (suite *DataBufTestSuite) TestNullable() {
	value := "present"
	dataBuf := suite.factory.CreateEmpty()
	WriteNullableString(dataBuf, &value)
	WriteNullableString(dataBuf, nil)
	err := WriteNullable(dataBuf, nil, func(target Mutable, value int32) error {
		target.WriteInt(value)
		return nil
	})
	suite.Require().NoError(err)

	present, err := ReadNullableString(dataBuf)
	suite.Require().NoError(err)
	suite.Require().Equal("present", *present)

	absent, err := ReadNullableString(dataBuf)
	suite.Require().NoError(err)
	suite.Require().Nil(absent)

	readerCalled := false
	defaultValue, err := ReadNullable(dataBuf, func(source DataBuf) (int32, error) {
		readerCalled = true
		return source.ReadInt()
	}, int32(42))
	suite.Require().NoError(err)
	suite.Require().False(readerCalled)
	suite.Require().Equal(int32(42), defaultValue)
}

func (suite *DataBufTestSuite) TestTransaction() {
	dataBuf := suite.factory.CreateEmpty().WriteBool(false).WriteInt(99)

	dataBuf.StartTransaction()
	flag, err := dataBuf.ReadBool()
	suite.Require().NoError(err)
	suite.Require().False(flag)

	dataBuf.RedoTransaction()
	suite.Require().Equal(5, dataBuf.ReadableBytes())

	// a transaction survives nested length-prefixed reads
	withString := suite.factory.CreateEmpty().WriteString("a").WriteString("b")
	withString.StartTransaction()
	_, err = withString.ReadString()
	suite.Require().NoError(err)
	_, err = withString.ReadString()
	suite.Require().NoError(err)
	withString.RedoTransaction()
	first, err := withString.ReadString()
	suite.Require().NoError(err)
	suite.Require().Equal("a", first)
}

func (suite *DataBufTestSuite) TestViewsShareStorage() {
	dataBuf := suite.factory.CreateEmpty().WriteInt(1)
	immutable := dataBuf.AsImmutable()

	immutable.AsMutable().WriteInt(2)
	suite.Require().Equal(8, immutable.ReadableBytes())

	// the immutable view can't be asserted back into a writable one
	_, isMutable := immutable.(Mutable)
	suite.Require().False(isMutable)

	// reads through either view move the same cursor
	value, err := immutable.StartTransaction().ReadInt()
	suite.Require().NoError(err)
	suite.Require().Equal(int32(1), value)
	suite.Require().Equal(4, dataBuf.ReadableBytes())

	_, isMutable = immutable.RedoTransaction().(Mutable)
	suite.Require().False(isMutable)
	suite.Require().Equal(8, dataBuf.ReadableBytes())

	// buffers handed out for reading are immutable views as well
	fromBytes := suite.factory.CreateFromBytes([]byte{0, 0, 0, 3})
	_, isMutable = fromBytes.(Mutable)
	suite.Require().False(isMutable)

	nested, err := suite.factory.CreateEmpty().WriteDataBuf(fromBytes).ReadDataBuf()
	suite.Require().NoError(err)
	_, isMutable = nested.(Mutable)
	suite.Require().False(isMutable)

	// WriteSingleByte chains, buffers don't pose as io.ByteWriter
	_, isByteWriter := interface{}(dataBuf).(io.ByteWriter)
	suite.Require().False(isByteWriter)

	immutable.Release()
	suite.Require().False(dataBuf.Accessible())
}

func (suite *DataBufTestSuite) TestRelease() {
	dataBuf := suite.factory.CreateEmpty().WriteInt(1)

	dataBuf.DisableReleasing()
	dataBuf.Release()
	suite.Require().True(dataBuf.Accessible())

	dataBuf.EnableReleasing()
	dataBuf.Release()
	suite.Require().False(dataBuf.Accessible())

	// double release and close are no-ops
	dataBuf.Release()
	suite.Require().NoError(dataBuf.Close())

	_, err := dataBuf.ReadInt()
	suite.Require().ErrorIs(err, ErrReleased)

	suite.Require().Panics(func() { dataBuf.WriteInt(1) })
}

func (suite *DataBufTestSuite) TestReadObjectWithoutMapper() {
	dataBuf := suite.factory.CreateEmpty()
	suite.Require().ErrorIs(dataBuf.WriteObject("value"), ErrNoObjectMapper)
}

func TestDataBufTestSuite(t *testing.T) {
	suite.Run(t, new(DataBufTestSuite))
}
