package router

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RoboStack/xtensor-ros/internal/network/framer"
	"github.com/RoboStack/xtensor-ros/internal/network/serializer"
	"github.com/RoboStack/xtensor-ros/internal/network/session"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

// recorder 是只记录 SendRaw 的假会话。
type recorder struct {
	session.Session
	sent map[uint32][]byte
}

func (r *recorder) SendRaw(op uint32, body []byte) error {
	r.sent[op] = body
	return nil
}

func (r *recorder) RemoteAddr() net.Addr { return &net.TCPAddr{} }

func TestRouter(t *testing.T) {
	ser := serializer.ProtoSerializer{}
	r := New(ser)

	require.NoError(t, r.Register(1, Route{
		NewRequest: func() any { return &structpb.Struct{} },
		Handler: func(_ session.Session, _ *framer.MessageHeader, req any) (any, error) {
			topic := req.(*structpb.Struct).Fields["topic"].GetStringValue()
			return structpb.NewStruct(map[string]any{"ack": topic})
		},
		RespOp: 2,
	}))
	require.NoError(t, r.Register(3, Route{
		NewRequest: func() any { return &structpb.Struct{} },
		Handler: func(session.Session, *framer.MessageHeader, any) (any, error) {
			return nil, merr.WrapErrTopicNotFound("x")
		},
	}))

	assert.Error(t, r.Register(1, Route{NewRequest: func() any { return nil }, Handler: func(session.Session, *framer.MessageHeader, any) (any, error) { return nil, nil }}))
	assert.Error(t, r.Register(0, Route{}))
	assert.Error(t, r.Register(9, Route{NewRequest: func() any { return nil }}))

	req, err := structpb.NewStruct(map[string]any{"topic": "points"})
	require.NoError(t, err)
	payload, err := ser.Marshal(req)
	require.NoError(t, err)

	sess := &recorder{sent: map[uint32][]byte{}}
	require.NoError(t, r.Handle(sess, &framer.MessageHeader{Op: 1}, payload))

	resp := &structpb.Struct{}
	require.NoError(t, ser.Unmarshal(sess.sent[2], resp))
	assert.Equal(t, "points", resp.Fields["ack"].GetStringValue())

	assert.ErrorIs(t, r.Handle(sess, &framer.MessageHeader{Op: 3}, payload), merr.ErrTopicNotFound)
	assert.ErrorIs(t, r.Handle(sess, &framer.MessageHeader{Op: 42}, payload), merr.ErrOperationNotSupported)
	assert.ErrorIs(t, r.Handle(sess, &framer.MessageHeader{Op: 1}, []byte{0xff}), merr.ErrCodecFailed)
	assert.ErrorIs(t, r.Handle(nil, &framer.MessageHeader{Op: 1}, payload), merr.ErrParameterMissing)
}
