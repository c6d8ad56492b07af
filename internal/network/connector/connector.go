package connector

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/RoboStack/xtensor-ros/internal/network/codec"
	"github.com/RoboStack/xtensor-ros/internal/network/session"
	"github.com/RoboStack/xtensor-ros/internal/network/wsconn"
	"github.com/RoboStack/xtensor-ros/pkg/log"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
	"github.com/RoboStack/xtensor-ros/pkg/util/retry"
)

// Config 描述客户端连接的基础配置。
type Config struct {
	// DialTimeout 为单次拨号超时，为 0 时使用 3s。
	DialTimeout time.Duration
	// Session 为建立后会话的收发参数。
	Session session.Options
	// Retry 为拨号失败时的重试策略，为空时只尝试一次。
	Retry []retry.Option
}

// Connector 负责拨号并创建客户端会话。
type Connector struct {
	cfg    Config
	codec  codec.Codec
	dialer net.Dialer
	nextID atomic.Uint64
}

// New 创建 Connector。
func New(cfg Config, c codec.Codec) (*Connector, error) {
	if c == nil {
		return nil, merr.WrapErrParameterMissing("codec")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	if len(cfg.Retry) == 0 {
		cfg.Retry = []retry.Option{retry.Attempts(1)}
	}
	return &Connector{
		cfg:    cfg,
		codec:  c,
		dialer: net.Dialer{Timeout: cfg.DialTimeout},
	}, nil
}

// Dial 拨号 addr 并返回会话，会话尚未开始读取：
// 调用方可先用 Recv/SendSync 完成握手，再调用 Serve。
//
// addr 以 ws:// 或 wss:// 开头时走 WebSocket，否则为 TCP 的 host:port。
// 会话的生命周期受 ctx 约束。
func (c *Connector) Dial(ctx context.Context, addr string) (*session.BaseSession, error) {
	var conn net.Conn
	err := retry.Do(ctx, func() error {
		var err error
		conn, err = c.dial(ctx, addr)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Unrecoverable(err)
			}
			return merr.WrapErrServiceUnavailable(err.Error(), "dial "+addr)
		}
		return nil
	}, c.cfg.Retry...)
	if err != nil {
		return nil, err
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			log.Ctx(ctx).Warn("set tcp nodelay failed", zap.String("addr", addr), zap.Error(err))
		}
	}
	return session.NewBaseSession(ctx, c.nextID.Inc(), conn, c.codec, c.cfg.Session), nil
}

func (c *Connector) dial(ctx context.Context, addr string) (net.Conn, error) {
	if !IsWebSocket(addr) {
		return c.dialer.DialContext(ctx, "tcp", addr)
	}
	d := websocket.Dialer{
		NetDial: func(proto, hostport string) (net.Conn, error) {
			return c.dialer.DialContext(ctx, proto, hostport)
		},
		HandshakeTimeout: c.cfg.DialTimeout,
	}
	ws, resp, err := d.DialContext(ctx, addr, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return wsconn.New(ws), nil
}

// IsWebSocket 判断 addr 是否为 WebSocket URL。
func IsWebSocket(addr string) bool {
	return strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://")
}
