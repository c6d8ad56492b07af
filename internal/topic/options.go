package topic

import (
	"time"

	"github.com/RoboStack/xtensor-ros/internal/network/codec"
	"github.com/RoboStack/xtensor-ros/internal/network/session"
	"github.com/RoboStack/xtensor-ros/internal/registry"
)

type options struct {
	// listen 为发布端监听地址。
	listen string
	// wsPath 非空时发布端通过 WebSocket 接入，订阅端使用 ws:// 地址。
	wsPath string
	// address 为订阅端直连的发布端地址，为空时通过 registry 查找。
	address  string
	registry registry.Registry

	codec   codec.Settings
	session session.Options

	dialTimeout      time.Duration
	handshakeTimeout time.Duration
	minBackoff       time.Duration
	maxBackoff       time.Duration

	// workers 为订阅端回调池大小，为 1 时回调按接收顺序串行执行。
	workers  int
	callerID string
	latch    bool
}

func defaultOptions() *options {
	return &options{
		listen:           "127.0.0.1:0",
		dialTimeout:      3 * time.Second,
		handshakeTimeout: 5 * time.Second,
		minBackoff:       100 * time.Millisecond,
		maxBackoff:       5 * time.Second,
		workers:          1,
	}
}

// Option 用于配置发布端与订阅端。
type Option func(*options)

// WithListen 设置发布端监听地址。
func WithListen(addr string) Option {
	return func(o *options) {
		o.listen = addr
	}
}

// WithWebSocket 让发布端在 path 上接受 WebSocket 连接，供浏览器等无法直连 TCP 的订阅端使用。
func WithWebSocket(path string) Option {
	return func(o *options) {
		o.wsPath = path
	}
}

// WithAddress 让订阅端直连指定发布端，不经过 registry。
// addr 为 host:port 或 ws:// URL。
func WithAddress(addr string) Option {
	return func(o *options) {
		o.address = addr
	}
}

// WithRegistry 设置 topic 发现服务。
func WithRegistry(r registry.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithCodec 设置帧编解码参数，两端的 encryption_key 必须一致。
func WithCodec(s codec.Settings) Option {
	return func(o *options) {
		o.codec = s
	}
}

// WithSession 设置会话收发参数，Label 会被替换为 topic 名。
func WithSession(s session.Options) Option {
	return func(o *options) {
		o.session = s
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}

func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) {
		o.handshakeTimeout = d
	}
}

// WithBackoff 设置订阅端重连的退避区间。
func WithBackoff(minBackoff, maxBackoff time.Duration) Option {
	return func(o *options) {
		o.minBackoff = minBackoff
		o.maxBackoff = maxBackoff
	}
}

// WithWorkers 设置订阅端回调池大小。
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithCallerID 设置连接头中的 callerid。
func WithCallerID(id string) Option {
	return func(o *options) {
		o.callerID = id
	}
}

// WithLatch 让发布端保留最后一条消息，并在新订阅者握手后立即发送。
func WithLatch(latch bool) Option {
	return func(o *options) {
		o.latch = latch
	}
}

func buildOptions(name string, opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	o.session.Label = name
	return o
}
