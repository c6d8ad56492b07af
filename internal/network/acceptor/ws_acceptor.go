package acceptor

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"

	"github.com/RoboStack/xtensor-ros/internal/network"
	"github.com/RoboStack/xtensor-ros/internal/network/codec"
	"github.com/RoboStack/xtensor-ros/internal/network/session"
	"github.com/RoboStack/xtensor-ros/internal/network/wsconn"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

// DefaultWSPath 为默认的 WebSocket 升级路径。
const DefaultWSPath = "/ws"

// WSAcceptor 在 HTTP 服务上完成 WebSocket 升级，之后的会话处理与 BaseAcceptor 相同。
type WSAcceptor struct {
	*BaseAcceptor

	path     string
	upgrader *websocket.Upgrader
}

var _ Acceptor = (*WSAcceptor)(nil)

// NewWSAcceptor 在 addr 上监听 HTTP，并在 path 上接受 WebSocket 连接。
//
// path 为空时使用 DefaultWSPath；upgrader 为 nil 时使用默认配置且不校验 Origin。
func NewWSAcceptor(addr, path string, c codec.Codec, sm session.SessionManager, opts session.Options, upgrader *websocket.Upgrader) (*WSAcceptor, error) {
	base, err := NewTCPAcceptor(addr, c, sm, opts)
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = DefaultWSPath
	}
	if upgrader == nil {
		upgrader = &websocket.Upgrader{
			HandshakeTimeout: 5 * time.Second,
			CheckOrigin:      func(*http.Request) bool { return true },
		}
	}
	return &WSAcceptor{BaseAcceptor: base, path: path, upgrader: upgrader}, nil
}

// Endpoint 实现 Acceptor.Endpoint。
func (a *WSAcceptor) Endpoint() string {
	return "ws://" + a.Addr().String() + a.path
}

// Serve 实现 Acceptor.Serve。
func (a *WSAcceptor) Serve(ctx context.Context, h session.Handler) error {
	if h == nil {
		return merr.WrapErrParameterMissing("handler")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	mux := http.NewServeMux()
	mux.HandleFunc(a.path, func(w http.ResponseWriter, r *http.Request) {
		ws, err := a.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.OnError(nil, network.StageHandshake, err)
			return
		}
		if ctx.Err() != nil {
			_ = ws.Close()
			return
		}
		wg.Add(1)
		defer wg.Done()
		a.serveConn(ctx, wsconn.New(ws), h)
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: a.upgrader.HandshakeTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	stop := context.AfterFunc(ctx, func() { _ = srv.Close() })
	defer stop()
	defer func() {
		a.sessions.CloseAll()
		wg.Wait()
	}()

	err := srv.Serve(a.ln)
	if ctx.Err() != nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
