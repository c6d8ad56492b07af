package acceptor

import (
	"context"
	"net"

	"github.com/RoboStack/xtensor-ros/internal/network/session"
)

// Acceptor 抽象了服务器侧的接入层，TCP 与 WebSocket 各有一个实现。
//
// 职责：
//   - 在 listener 上接受连接；
//   - 为每个连接创建 Session，并驱动 Handler 的各阶段回调；
//   - 维护当前活跃会话，便于广播。
type Acceptor interface {
	// Serve 启动接入循环，阻塞直至 ctx 取消、Close 被调用或出现致命错误。
	Serve(ctx context.Context, h session.Handler) error

	// Addr 返回实际监听地址。
	Addr() net.Addr

	// Endpoint 返回客户端拨号使用的地址：TCP 为 host:port，WebSocket 为 ws:// URL。
	Endpoint() string

	// Sessions 返回活跃会话索引。
	Sessions() session.SessionManager

	// Close 停止监听并关闭所有会话。
	Close() error
}
