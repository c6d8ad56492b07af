package topic

import (
	"context"
	"net"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RoboStack/xtensor-ros/internal/network"
	"github.com/RoboStack/xtensor-ros/internal/network/acceptor"
	"github.com/RoboStack/xtensor-ros/internal/network/codec"
	"github.com/RoboStack/xtensor-ros/internal/network/framer"
	"github.com/RoboStack/xtensor-ros/internal/network/router"
	"github.com/RoboStack/xtensor-ros/internal/network/serializer"
	"github.com/RoboStack/xtensor-ros/internal/network/session"
	"github.com/RoboStack/xtensor-ros/internal/registry"
	"github.com/RoboStack/xtensor-ros/pkg/log"
	"github.com/RoboStack/xtensor-ros/pkg/metrics"
	"github.com/RoboStack/xtensor-ros/pkg/msgs"
	"github.com/RoboStack/xtensor-ros/pkg/ndarray"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
	"github.com/RoboStack/xtensor-ros/pkg/util/typeutil"
)

// Publisher 在一个 TCP 端口上发布 Array[T] 消息。
//
// 订阅端连接后先交换连接头，校验通过的会话才会收到后续 Publish 的消息；
// 某个订阅端发送队列已满时，该订阅端丢弃本条消息，不影响其他订阅端。
type Publisher[T msgs.Element] struct {
	log.Binder

	name   string
	opts   *options
	header ConnectionHeader

	wire     serializer.WireSerializer
	release  func()
	acceptor acceptor.Acceptor
	router   router.Router

	// mu 保证握手时的补发与 Publish 的投递顺序一致。
	mu      sync.Mutex
	ready   *typeutil.ConcurrentSet[uint64]
	latched []byte

	unregister func()
	cancel     context.CancelFunc
	g          *errgroup.Group
	closed     atomic.Bool
}

// NewPublisher 在 opts 指定的地址上开始监听 topic name，设置了 registry 时同时注册该端点。
func NewPublisher[T msgs.Element](ctx context.Context, name string, opts ...Option) (*Publisher[T], error) {
	if name == "" {
		return nil, merr.WrapErrParameterMissing("topic")
	}
	o := buildOptions(name, opts)

	c, release, err := codec.Build(o.codec, serializer.WireSerializer{})
	if err != nil {
		return nil, err
	}
	var acc acceptor.Acceptor
	if o.wsPath != "" {
		acc, err = acceptor.NewWSAcceptor(o.listen, o.wsPath, c, session.NewBaseSessionManager(), o.session, nil)
	} else {
		acc, err = acceptor.NewTCPAcceptor(o.listen, c, session.NewBaseSessionManager(), o.session)
	}
	if err != nil {
		release()
		return nil, err
	}

	p := &Publisher[T]{
		name:       name,
		opts:       o,
		header:     NewHeader(name, msgs.DescriptorOf[T](), o.callerID),
		release:    release,
		acceptor:   acc,
		router:     router.New(serializer.ProtoSerializer{}),
		ready:      typeutil.NewConcurrentSet[uint64](),
		unregister: func() {},
	}
	p.header.Latching = o.latch
	p.SetLogger(log.With(log.FieldTopic(name), log.FieldDataType(p.header.Type)))

	if err := p.registerRoutes(); err != nil {
		p.shutdown()
		return nil, err
	}

	if o.registry != nil {
		unregister, err := o.registry.Register(ctx, registry.Endpoint{
			Topic:    name,
			Addr:     acc.Endpoint(),
			DataType: p.header.Type,
			MD5Sum:   p.header.MD5Sum,
			CallerID: o.callerID,
		})
		if err != nil {
			p.shutdown()
			return nil, err
		}
		p.unregister = unregister
	}

	// 发布端的生命周期由 Close 控制，不随构造时的 ctx 结束。
	ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(ctx)
	p.g = g
	g.Go(func() error {
		return acc.Serve(gctx, p.handler())
	})

	p.Logger().Info("publisher started", zap.String("endpoint", acc.Endpoint()))
	return p, nil
}

func (p *Publisher[T]) registerRoutes() error {
	err := p.router.Register(OpHeader, router.Route{
		NewRequest: func() any { return &structpb.Struct{} },
		Handler:    p.onHeader,
	})
	if err != nil {
		return err
	}
	return p.router.Register(OpPing, router.Route{
		NewRequest: func() any { return &structpb.Struct{} },
		Handler: func(_ session.Session, _ *framer.MessageHeader, req any) (any, error) {
			return req, nil
		},
		RespOp: OpPong,
	})
}

// onHeader 校验订阅端连接头，不兼容时回复错误帧并关闭会话。
func (p *Publisher[T]) onHeader(sess session.Session, _ *framer.MessageHeader, req any) (any, error) {
	peer, err := HeaderFromStruct(req.(*structpb.Struct))
	if err != nil {
		p.reject(sess, reasonMalformed, err)
		return nil, nil
	}
	if reason := p.header.mismatch(peer); reason != "" {
		p.reject(sess, reason, p.header.Check(peer))
		return nil, nil
	}
	return nil, p.accept(sess, peer)
}

func (p *Publisher[T]) accept(sess session.Session, peer ConnectionHeader) error {
	reply, err := p.header.Marshal()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready.Contain(sess.ID()) {
		return nil
	}
	if err := sess.SendRaw(OpHeader, reply); err != nil {
		return err
	}
	if p.latched != nil {
		if err := sess.SendRaw(OpData, p.latched); err != nil {
			return err
		}
	}
	p.ready.Insert(sess.ID())
	metrics.ActiveSessions.WithLabelValues(p.name).Inc()

	p.Logger().Info("subscriber connected",
		log.FieldSession(sess.ID()),
		log.FieldRemote(sess.RemoteAddr().String()),
		zap.String("callerid", peer.CallerID))
	return nil
}

func (p *Publisher[T]) handler() session.Handler {
	return session.HandlerFuncs{
		Message: func(sess session.Session, header *framer.MessageHeader, payload []byte) {
			if err := p.router.Handle(sess, header, payload); err != nil {
				p.reject(sess, reasonMalformed, err)
			}
		},
		Closed: func(sess session.Session, err error) {
			if p.ready.TryRemove(sess.ID()) {
				metrics.ActiveSessions.WithLabelValues(p.name).Dec()
				p.Logger().Info("subscriber disconnected", log.FieldSession(sess.ID()), zap.Error(err))
			}
		},
		Error: func(sess session.Session, stage network.Stage, err error) {
			fields := []zap.Field{zap.Stringer("stage", stage), zap.Error(err)}
			if sess != nil {
				fields = append(fields, log.FieldSession(sess.ID()))
			}
			p.Logger().Warn("session error", fields...)
		},
	}
}

// reject 回复错误帧并关闭会话。
func (p *Publisher[T]) reject(sess session.Session, reason string, err error) {
	metrics.HandshakeFailures.WithLabelValues(p.name, reason).Inc()
	p.Logger().Warn("reject subscriber",
		log.FieldSession(sess.ID()),
		log.FieldRemote(sess.RemoteAddr().String()),
		zap.String("reason", reason),
		zap.Error(err))

	if sendErr := sess.SendSync(OpError, marshalError(err)); sendErr != nil {
		p.Logger().Debug("send error frame failed", log.FieldSession(sess.ID()), zap.Error(sendErr))
	}
	_ = sess.Close()
}

// Publish 将 a 编码一次后投递给所有已完成握手的订阅端。
func (p *Publisher[T]) Publish(ctx context.Context, a *ndarray.Array[T]) error {
	if p.closed.Load() {
		return merr.WrapErrTopicClosed(p.name)
	}
	if a == nil {
		return merr.WrapErrParameterMissing("array")
	}
	body, err := p.wire.Marshal(a)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opts.latch {
		p.latched = body
	}
	sessions := p.acceptor.Sessions()
	for _, id := range p.ready.Collect() {
		sess, ok := sessions.Get(id)
		if !ok {
			continue
		}
		if err := sess.SendRaw(OpData, body); err != nil {
			if errors.Is(err, merr.ErrSessionQueueFull) {
				log.Ctx(ctx).RatedWarn(1, "subscriber too slow, drop message",
					log.FieldTopic(p.name), log.FieldSession(id))
				continue
			}
			p.Logger().Debug("publish to session failed", log.FieldSession(id), zap.Error(err))
		}
	}
	return nil
}

// Addr 返回实际监听地址。
func (p *Publisher[T]) Addr() net.Addr {
	return p.acceptor.Addr()
}

// Endpoint 返回订阅端拨号使用的地址。
func (p *Publisher[T]) Endpoint() string {
	return p.acceptor.Endpoint()
}

// Header 返回本端连接头。
func (p *Publisher[T]) Header() ConnectionHeader {
	return p.header
}

// NumSubscribers 返回已完成握手的订阅端数量。
func (p *Publisher[T]) NumSubscribers() int {
	return p.ready.Len()
}

// Close 注销端点、断开所有订阅端并停止监听。
func (p *Publisher[T]) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.unregister()
	p.cancel()
	err := p.g.Wait()
	p.release()
	p.Logger().Info("publisher closed")
	return err
}

// shutdown 释放构造中途失败时已经创建的资源。
func (p *Publisher[T]) shutdown() {
	_ = p.acceptor.Close()
	p.release()
}
