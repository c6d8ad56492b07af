package acceptor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/RoboStack/xtensor-ros/internal/network/codec"
	"github.com/RoboStack/xtensor-ros/internal/network/connector"
	"github.com/RoboStack/xtensor-ros/internal/network/framer"
	"github.com/RoboStack/xtensor-ros/internal/network/serializer"
	"github.com/RoboStack/xtensor-ros/internal/network/session"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
	"github.com/RoboStack/xtensor-ros/pkg/util/retry"
)

type AcceptorSuite struct {
	suite.Suite
	codec   codec.Codec
	release func()
}

func (s *AcceptorSuite) SetupSuite() {
	c, release, err := codec.Build(codec.Settings{Compression: codec.CompressionZstd}, serializer.WireSerializer{})
	s.Require().NoError(err)
	s.codec, s.release = c, release
}

func (s *AcceptorSuite) TearDownSuite() {
	s.release()
}

func (s *AcceptorSuite) TestEcho() {
	a, err := NewTCPAcceptor("127.0.0.1:0", s.codec, nil, session.Options{Label: "echo"})
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connected := make(chan uint64, 1)
	served := make(chan error, 1)
	go func() {
		served <- a.Serve(ctx, session.HandlerFuncs{
			Connected: func(sess session.Session) { connected <- sess.ID() },
			Message: func(sess session.Session, h *framer.MessageHeader, p []byte) {
				_ = sess.SendRaw(h.Op+1, append([]byte("echo:"), p...))
			},
		})
	}()

	conn, err := connector.New(connector.Config{}, s.codec)
	s.Require().NoError(err)
	sess, err := conn.Dial(ctx, a.Addr().String())
	s.Require().NoError(err)
	defer sess.Close()

	s.Require().NoError(sess.SendSync(10, []byte("ping")))
	h, p, err := sess.Recv()
	s.Require().NoError(err)
	s.Equal(uint32(11), h.Op)
	s.Equal([]byte("echo:ping"), p)

	select {
	case id := <-connected:
		s.Equal(uint64(1), id)
	case <-time.After(5 * time.Second):
		s.Fail("no connection")
	}
	s.Eventually(func() bool { return a.Sessions().Count() == 1 }, 5*time.Second, 10*time.Millisecond)

	// 对端断开后会话被移除。
	s.Require().NoError(sess.Close())
	s.Eventually(func() bool { return a.Sessions().Count() == 0 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-served:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("acceptor did not stop")
	}
}

func (s *AcceptorSuite) TestCloseStopsSessions() {
	a, err := NewTCPAcceptor("127.0.0.1:0", s.codec, session.NewBaseSessionManager(), session.Options{})
	s.Require().NoError(err)

	served := make(chan error, 1)
	go func() { served <- a.Serve(context.Background(), session.HandlerFuncs{}) }()

	conn, err := connector.New(connector.Config{}, s.codec)
	s.Require().NoError(err)
	sess, err := conn.Dial(context.Background(), a.Addr().String())
	s.Require().NoError(err)

	closed := make(chan struct{})
	go func() {
		_ = sess.Serve(session.HandlerFuncs{Closed: func(session.Session, error) { close(closed) }})
	}()
	s.Eventually(func() bool { return a.Sessions().Count() == 1 }, 5*time.Second, 10*time.Millisecond)

	s.Require().NoError(a.Close())
	s.NoError(<-served)
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		s.Fail("client session still open")
	}
}

func (s *AcceptorSuite) TestDialFailure() {
	a, err := NewTCPAcceptor("127.0.0.1:0", s.codec, nil, session.Options{})
	s.Require().NoError(err)
	addr := a.Addr().String()
	s.Require().NoError(a.Close())

	conn, err := connector.New(connector.Config{
		DialTimeout: 200 * time.Millisecond,
		Retry:       []retry.Option{retry.Attempts(2), retry.Sleep(10 * time.Millisecond)},
	}, s.codec)
	s.Require().NoError(err)
	_, err = conn.Dial(context.Background(), addr)
	s.ErrorIs(err, merr.ErrServiceUnavailable)
}

func (s *AcceptorSuite) TestWebSocketEcho() {
	a, err := NewWSAcceptor("127.0.0.1:0", "/topics", s.codec, nil, session.Options{Label: "ws"}, nil)
	s.Require().NoError(err)
	s.True(connector.IsWebSocket(a.Endpoint()))
	s.Contains(a.Endpoint(), "/topics")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() {
		served <- a.Serve(ctx, session.HandlerFuncs{
			Message: func(sess session.Session, h *framer.MessageHeader, p []byte) {
				_ = sess.SendRaw(h.Op, p)
			},
		})
	}()

	conn, err := connector.New(connector.Config{}, s.codec)
	s.Require().NoError(err)
	sess, err := conn.Dial(ctx, a.Endpoint())
	s.Require().NoError(err)
	defer sess.Close()

	// 大帧同样按单条 WebSocket 消息收发。
	big := make([]byte, 64<<10)
	for i := range big {
		big[i] = byte(i % 7)
	}
	for _, body := range [][]byte{[]byte("a"), big} {
		s.Require().NoError(sess.SendSync(3, body))
		h, p, err := sess.Recv()
		s.Require().NoError(err)
		s.Equal(uint32(3), h.Op)
		s.Equal(body, p)
	}
	s.Eventually(func() bool { return a.Sessions().Count() == 1 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-served:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("acceptor did not stop")
	}
	s.Equal(0, a.Sessions().Count())
}

func (s *AcceptorSuite) TestParams() {
	_, err := NewBaseAcceptor(nil, s.codec, nil, session.Options{})
	s.ErrorIs(err, merr.ErrParameterMissing)
	_, err = NewTCPAcceptor("", s.codec, nil, session.Options{})
	s.ErrorIs(err, merr.ErrParameterMissing)
	_, err = connector.New(connector.Config{}, nil)
	s.ErrorIs(err, merr.ErrParameterMissing)
}

func TestAcceptor(t *testing.T) {
	suite.Run(t, new(AcceptorSuite))
}
