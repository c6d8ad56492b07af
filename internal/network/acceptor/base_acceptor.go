package acceptor

import (
	"context"
	"net"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/RoboStack/xtensor-ros/internal/network"
	"github.com/RoboStack/xtensor-ros/internal/network/codec"
	"github.com/RoboStack/xtensor-ros/internal/network/session"
	"github.com/RoboStack/xtensor-ros/pkg/log"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

// BaseAcceptor 是 Acceptor 接口的基础 TCP 实现。
//
// 每个连接使用独立的 goroutine 读取，保证同一 Session 上 Handler 串行执行。
type BaseAcceptor struct {
	ln       net.Listener
	codec    codec.Codec
	sessions session.SessionManager
	opts     session.Options

	nextID    atomic.Uint64
	closeOnce sync.Once
}

// 确保 BaseAcceptor 实现了 Acceptor 接口。
var _ Acceptor = (*BaseAcceptor)(nil)

// NewBaseAcceptor 使用已有的 Listener 创建一个基础接入器。
//
// sm 为 nil 时使用 BaseSessionManager。
func NewBaseAcceptor(ln net.Listener, c codec.Codec, sm session.SessionManager, opts session.Options) (*BaseAcceptor, error) {
	if ln == nil {
		return nil, merr.WrapErrParameterMissing("listener")
	}
	if c == nil {
		return nil, merr.WrapErrParameterMissing("codec")
	}
	if sm == nil {
		sm = session.NewBaseSessionManager()
	}
	return &BaseAcceptor{
		ln:       ln,
		codec:    c,
		sessions: sm,
		opts:     opts,
	}, nil
}

// NewTCPAcceptor 在给定地址上监听 TCP，并创建一个基础接入器。
//
// addr 端口为 0 时由系统分配，实际地址通过 Addr 获取。
func NewTCPAcceptor(addr string, c codec.Codec, sm session.SessionManager, opts session.Options) (*BaseAcceptor, error) {
	if addr == "" {
		return nil, merr.WrapErrParameterMissing("listen addr")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, merr.WrapErrServiceUnavailable(err.Error(), "listen "+addr)
	}
	return NewBaseAcceptor(ln, c, sm, opts)
}

// Addr 实现 Acceptor.Addr。
func (a *BaseAcceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// Endpoint 实现 Acceptor.Endpoint。
func (a *BaseAcceptor) Endpoint() string {
	return a.ln.Addr().String()
}

// Sessions 实现 Acceptor.Sessions。
func (a *BaseAcceptor) Sessions() session.SessionManager {
	return a.sessions
}

// Serve 实现 Acceptor.Serve。
func (a *BaseAcceptor) Serve(ctx context.Context, h session.Handler) error {
	if h == nil {
		return merr.WrapErrParameterMissing("handler")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { _ = a.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer func() {
		a.sessions.CloseAll()
		wg.Wait()
	}()

	for {
		conn, err := a.ln.Accept()
		if err != nil {
			// 上层取消或主动 Close 视为正常退出。
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				h.OnError(nil, network.StageHandshake, err)
				continue
			}
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			a.serveConn(ctx, conn, h)
		}()
	}
}

// serveConn 为 conn 创建会话并阻塞处理，直到会话结束。
func (a *BaseAcceptor) serveConn(ctx context.Context, conn net.Conn, h session.Handler) {
	sess := session.NewBaseSession(ctx, a.nextID.Inc(), conn, a.codec, a.opts)
	if err := a.sessions.Register(sess); err != nil {
		h.OnError(sess, network.StageHandshake, err)
		_ = sess.Close()
		return
	}
	defer func() {
		_ = a.sessions.Unregister(sess.ID())
	}()
	if err := sess.Serve(h); err != nil {
		log.Debug("session ended with error",
			log.FieldSession(sess.ID()),
			log.FieldRemote(sess.RemoteAddr().String()),
			zap.Error(err))
	}
}

// Close 实现 Acceptor.Close。
func (a *BaseAcceptor) Close() error {
	var err error
	a.closeOnce.Do(func() {
		err = a.ln.Close()
	})
	return err
}
