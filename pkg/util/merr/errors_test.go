// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"context"
	"os"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrTopicNotFound("/camera/depth")
	errors.Wrap(err, "failed to lookup topic")
	s.ErrorIs(err, ErrTopicNotFound)
	s.Equal(Code(ErrTopicNotFound), Code(err))
	s.Equal(TimeoutCode, Code(context.DeadlineExceeded))
	s.Equal(CanceledCode, Code(context.Canceled))
	s.Equal(errUnexpected.errCode, Code(errUnexpected))
	s.Equal(errUnexpected.errCode, Code(errors.New("plain")))
	s.Equal(int32(0), Code(nil))

	sameCodeErr := newXtrosError("new error", ErrTopicNotFound.errCode, false)
	s.True(sameCodeErr.Is(ErrTopicNotFound))
}

func (s *ErrSuite) TestErrorRestore() {
	err := WrapErrHandshake("/points", "md5sum mismatch")
	restored := Error(Code(err), err.Error())

	s.ErrorIs(restored, ErrHandshakeFailed)
	s.Nil(Error(0, ""))
}

func (s *ErrSuite) TestRetryable() {
	s.True(IsRetryableErr(WrapErrTopicNotFound("/points")))
	s.True(IsRetryableErr(errors.Wrap(ErrSessionQueueFull, "publish")))
	s.False(IsRetryableErr(WrapErrStreamOverrun(8, 2)))
	s.False(IsRetryableErr(errors.New("plain")))
}

func (s *ErrSuite) TestInputError() {
	err := WrapErrAsInputError(ErrParameterInvalid)
	s.Equal(InputError, GetErrorType(err))
	s.Equal(SystemError, GetErrorType(ErrIoFailed))

	err = WrapErrAsInputErrorWhen(ErrTypeMismatch, ErrTypeMismatch)
	s.Equal(InputError, GetErrorType(err))
	s.Equal("input_error", InputError.String())
}

func (s *ErrSuite) TestWrap() {
	// Service 相关错误。
	s.ErrorIs(WrapErrServiceNotReady("publisher", "Initializing"), ErrServiceNotReady)
	s.ErrorIs(WrapErrServiceInternal("never throw out"), ErrServiceInternal)

	// Stream 相关错误。
	s.ErrorIs(WrapErrStreamOverrun(8, 3, "read shape"), ErrStreamOverrun)
	s.ErrorIs(WrapErrStreamTrailing(4), ErrStreamTrailing)

	// 类型与数组相关错误。
	s.ErrorIs(WrapErrTypeUnsupported("complex128"), ErrTypeUnsupported)
	s.ErrorIs(WrapErrTypeMismatch("xtensor_ros/F64", "xtensor_ros/F32"), ErrTypeMismatch)
	s.ErrorIs(WrapErrShapeMismatch([]uint64{2, 3}, 5), ErrShapeMismatch)
	s.ErrorIs(WrapErrIndexOutOfRange([]uint64{2}, []uint64{2}), ErrIndexOutOfRange)

	// Codec 相关错误。
	s.ErrorIs(WrapErrCodec("compress", os.ErrClosed), ErrCodecFailed)
	s.Nil(WrapErrCodec("compress", nil))
	s.ErrorIs(WrapErrFrameTooLarge(1<<25, 1<<24), ErrFrameTooLarge)
	s.ErrorIs(WrapErrFrameCorrupted("short header"), ErrFrameCorrupted)

	// Topic 与会话相关错误。
	s.ErrorIs(WrapErrTopicNotFound("/imu", "no publisher"), ErrTopicNotFound)
	s.ErrorIs(WrapErrTopicClosed("/imu"), ErrTopicClosed)
	s.ErrorIs(WrapErrHandshake("/imu", "version"), ErrHandshakeFailed)
	s.ErrorIs(WrapErrSessionClosed(7), ErrSessionClosed)
	s.ErrorIs(WrapErrSessionQueueFull(7, 128), ErrSessionQueueFull)

	// IO 相关错误。
	s.ErrorIs(WrapErrIoKeyNotFound("test_key", "failed to read"), ErrIoKeyNotFound)
	s.ErrorIs(WrapErrIoFailed("test_key", os.ErrClosed), ErrIoFailed)
	s.ErrorIs(WrapErrIoUnexpectEOF("test_key", os.ErrClosed), ErrIoUnexpectEOF)

	// 参数相关错误。
	s.ErrorIs(WrapErrParameterInvalid(8, 1, "failed to create"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterInvalidRange(1, 1<<16, 0, "rank should be in range"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterInvalidMsg("bad shape %v", []int{1}), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterMissing("topic", "no topic parameter"), ErrParameterMissing)
	s.ErrorIs(WrapErrParameterTooLarge("unit test"), ErrParameterTooLarge)
}

func (s *ErrSuite) TestCombine() {
	var (
		errFirst  = errors.New("first")
		errSecond = errors.New("second")
		errThird  = errors.New("third")
	)

	err := Combine(errFirst, errSecond)
	s.True(errors.Is(err, errFirst))
	s.True(errors.Is(err, errSecond))
	s.False(errors.Is(err, errThird))

	s.Equal("first: second", err.Error())
}

func (s *ErrSuite) TestCombineWithNil() {
	err := errors.New("non-nil")

	err = Combine(nil, err)
	s.NotNil(err)
}

func (s *ErrSuite) TestCombineOnlyNil() {
	err := Combine(nil, nil)
	s.Nil(err)
}

func (s *ErrSuite) TestCombineCode() {
	err := Combine(WrapErrSessionClosed(1), WrapErrTopicNotFound("/a"))
	s.Equal(Code(ErrTopicNotFound), Code(err))
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
