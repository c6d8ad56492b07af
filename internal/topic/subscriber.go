package topic

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/RoboStack/xtensor-ros/internal/network"
	"github.com/RoboStack/xtensor-ros/internal/network/codec"
	"github.com/RoboStack/xtensor-ros/internal/network/connector"
	"github.com/RoboStack/xtensor-ros/internal/network/framer"
	"github.com/RoboStack/xtensor-ros/internal/network/router"
	"github.com/RoboStack/xtensor-ros/internal/network/serializer"
	"github.com/RoboStack/xtensor-ros/internal/network/session"
	"github.com/RoboStack/xtensor-ros/pkg/log"
	"github.com/RoboStack/xtensor-ros/pkg/msgs"
	"github.com/RoboStack/xtensor-ros/pkg/ndarray"
	"github.com/RoboStack/xtensor-ros/pkg/util/conc"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

// Callback 处理一条收到的消息，a 归回调所有。
type Callback[T msgs.Element] func(ctx context.Context, a *ndarray.Array[T])

// Subscriber 连接一个发布端并把收到的每条消息交给回调。
//
// 连接断开后按指数退避重连；握手被发布端拒绝视为永久失败，Done 随之关闭，Err 返回原因。
type Subscriber[T msgs.Element] struct {
	log.Binder

	name   string
	opts   *options
	header ConnectionHeader
	cb     Callback[T]

	release   func()
	connector *connector.Connector
	router    router.Router
	pool      *conc.Pool[struct{}]

	// rr 用于在多个发布端之间轮询。
	rr atomic.Uint64

	connectedOnce sync.Once
	connected     chan struct{}
	peer          atomic.Pointer[ConnectionHeader]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	err    error

	closeOnce sync.Once
}

// NewSubscriber 订阅 topic name，在后台连接发布端并开始接收。
// ctx 的取消不会结束订阅，订阅持续到 Close 或握手被拒绝。
func NewSubscriber[T msgs.Element](ctx context.Context, name string, cb Callback[T], opts ...Option) (*Subscriber[T], error) {
	if name == "" {
		return nil, merr.WrapErrParameterMissing("topic")
	}
	if cb == nil {
		return nil, merr.WrapErrParameterMissing("callback")
	}
	o := buildOptions(name, opts)
	if o.address == "" && o.registry == nil {
		return nil, merr.WrapErrParameterMissing("address or registry")
	}

	c, release, err := codec.Build(o.codec, serializer.WireSerializer{})
	if err != nil {
		return nil, err
	}
	conn, err := connector.New(connector.Config{
		DialTimeout: o.dialTimeout,
		Session:     o.session,
	}, c)
	if err != nil {
		release()
		return nil, err
	}

	s := &Subscriber[T]{
		name:      name,
		opts:      o,
		header:    NewHeader(name, msgs.DescriptorOf[T](), o.callerID),
		cb:        cb,
		release:   release,
		connector: conn,
		router:    router.New(serializer.WireSerializer{}),
		connected: make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.SetLogger(log.With(log.FieldTopic(name), log.FieldDataType(s.header.Type)))
	if o.workers > 1 {
		s.pool = conc.NewPool[struct{}](o.workers, conc.WithConcealPanic(true))
	}

	err = s.router.Register(OpData, router.Route{
		NewRequest: func() any { return &ndarray.Array[T]{} },
		Handler:    s.onData,
	})
	if err != nil {
		s.shutdown()
		return nil, err
	}

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(s.ctx)
	g.Go(func() error {
		return s.run(gctx)
	})
	go func() {
		s.err = g.Wait()
		close(s.done)
	}()
	return s, nil
}

func (s *Subscriber[T]) onData(_ session.Session, _ *framer.MessageHeader, req any) (any, error) {
	a := req.(*ndarray.Array[T])
	if s.pool == nil {
		s.cb(s.ctx, a)
		return nil, nil
	}
	s.pool.Submit(func() (struct{}, error) {
		s.cb(s.ctx, a)
		return struct{}{}, nil
	})
	return nil, nil
}

// run 循环连接发布端，直到 ctx 结束或握手被拒绝。
func (s *Subscriber[T]) run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.minBackoff
	bo.MaxInterval = s.opts.maxBackoff
	bo.MaxElapsedTime = 0

	for {
		err := s.connectOnce(ctx, bo)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, merr.ErrHandshakeFailed) {
			s.Logger().Error("subscription rejected", zap.Error(err))
			return err
		}

		wait := bo.NextBackOff()
		s.Logger().Info("reconnecting", zap.Duration("backoff", wait), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// connectOnce 完成一次拨号、握手与接收，返回时会话已关闭。
func (s *Subscriber[T]) connectOnce(ctx context.Context, bo backoff.BackOff) error {
	addr, err := s.resolve(ctx)
	if err != nil {
		return err
	}
	sess, err := s.connector.Dial(ctx, addr)
	if err != nil {
		return err
	}
	peer, err := s.handshake(sess)
	if err != nil {
		_ = sess.Close()
		return err
	}

	bo.Reset()
	s.peer.Store(&peer)
	s.connectedOnce.Do(func() { close(s.connected) })
	s.Logger().Info("subscribed",
		zap.String("addr", addr),
		zap.String("publisher", peer.CallerID),
		zap.Bool("latching", peer.Latching))

	return sess.Serve(session.HandlerFuncs{
		Message: func(sess session.Session, header *framer.MessageHeader, payload []byte) {
			switch header.Op {
			case OpData:
				if err := s.router.Handle(sess, header, payload); err != nil {
					s.Logger().RatedWarn(1, "drop undecodable message", zap.Error(err))
				}
			case OpError:
				s.Logger().Warn("publisher reported error", zap.Error(unmarshalError(s.name, payload)))
				_ = sess.Close()
			case OpPong:
			default:
				s.Logger().RatedWarn(1, "unexpected op", zap.Uint32("op", header.Op))
			}
		},
		Error: func(_ session.Session, stage network.Stage, err error) {
			s.Logger().Warn("session error", zap.Stringer("stage", stage), zap.Error(err))
		},
	})
}

// handshake 发送本端连接头并校验发布端的应答。
func (s *Subscriber[T]) handshake(sess *session.BaseSession) (ConnectionHeader, error) {
	body, err := s.header.Marshal()
	if err != nil {
		return ConnectionHeader{}, err
	}
	if err := sess.SendSync(OpHeader, body); err != nil {
		return ConnectionHeader{}, err
	}

	sess.SetReadTimeout(s.opts.handshakeTimeout)
	defer sess.SetReadTimeout(s.opts.session.ReadTimeout)

	header, payload, err := sess.Recv()
	if err != nil {
		return ConnectionHeader{}, err
	}
	switch header.Op {
	case OpHeader:
	case OpError:
		return ConnectionHeader{}, unmarshalError(s.name, payload)
	default:
		return ConnectionHeader{}, merr.WrapErrHandshake(s.name, reasonMalformed, "unexpected op")
	}

	peer, err := UnmarshalHeader(payload)
	if err != nil {
		return ConnectionHeader{}, err
	}
	if err := s.header.Check(peer); err != nil {
		return ConnectionHeader{}, err
	}
	return peer, nil
}

// resolve 返回要连接的发布端地址，多个匹配的发布端之间轮询。
func (s *Subscriber[T]) resolve(ctx context.Context) (string, error) {
	if s.opts.address != "" {
		return s.opts.address, nil
	}
	eps, err := s.opts.registry.Lookup(ctx, s.name)
	if err != nil {
		return "", err
	}
	var addrs []string
	for _, ep := range eps {
		if ep.MD5Sum == s.header.MD5Sum || ep.MD5Sum == AnyMD5Sum {
			addrs = append(addrs, ep.Addr)
		}
	}
	if len(addrs) == 0 {
		return "", merr.WrapErrTopicNotFound(s.name, "no publisher of "+s.header.Type)
	}
	return addrs[int(s.rr.Inc()-1)%len(addrs)], nil
}

// WaitConnected 阻塞到第一次握手成功、订阅终止或 ctx 结束。
func (s *Subscriber[T]) WaitConnected(ctx context.Context) error {
	select {
	case <-s.connected:
		return nil
	case <-s.done:
		if s.err != nil {
			return s.err
		}
		return merr.WrapErrTopicClosed(s.name)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publisher 返回最近一次握手得到的发布端连接头。
func (s *Subscriber[T]) Publisher() (ConnectionHeader, bool) {
	h := s.peer.Load()
	if h == nil {
		return ConnectionHeader{}, false
	}
	return *h, true
}

// Done 在订阅终止后关闭。
func (s *Subscriber[T]) Done() <-chan struct{} {
	return s.done
}

// Err 返回订阅终止的原因，主动 Close 时为 nil。
func (s *Subscriber[T]) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close 断开连接并等待后台协程退出。
func (s *Subscriber[T]) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		s.shutdown()
	})
	return nil
}

func (s *Subscriber[T]) shutdown() {
	if s.pool != nil {
		s.pool.Release()
	}
	s.release()
}
