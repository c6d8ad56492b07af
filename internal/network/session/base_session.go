package session

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"

	"github.com/RoboStack/xtensor-ros/internal/network"
	"github.com/RoboStack/xtensor-ros/internal/network/codec"
	"github.com/RoboStack/xtensor-ros/internal/network/framer"
	"github.com/RoboStack/xtensor-ros/pkg/metrics"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

// Options 描述单个会话的收发参数。
type Options struct {
	// SendQueueSize 为发送队列容量，<= 0 时使用 DefaultSendQueueSize。
	SendQueueSize int
	// ReadTimeout/WriteTimeout 为单次读写超时，为 0 表示不设置 deadline。
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Label 用作帧指标的 topic 标签。
	Label string
}

// DefaultSendQueueSize 为每个会话的默认发送队列容量。
const DefaultSendQueueSize = 256

// BaseSession 是基于 net.Conn 的 Session 实现。
//
// 发送：Send/SendRaw 只负责投递到有界队列，独立的写协程按顺序编码并写出；
// 接收：Serve 在调用方协程中循环读帧并回调 Handler。
type BaseSession struct {
	id uint64

	ctx    context.Context
	cancel context.CancelFunc

	conn  net.Conn
	codec codec.Codec
	opts  Options

	remoteAddr net.Addr
	localAddr  net.Addr

	// sendQueue 为待发送消息的对象级队列，容量固定，满时拒绝新消息。
	sendQueue chan outboundMessage
	// writeMu 保证写协程与 SendSync 不会交叉写 conn。
	writeMu sync.Mutex

	seq atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// 确保 BaseSession 实现了 Session 接口。
var _ Session = (*BaseSession)(nil)

// outboundMessage 表示一条待发送的协议消息，msg 与 body 二选一。
type outboundMessage struct {
	op   uint32
	msg  any
	body []byte
}

// NewBaseSession 创建会话并启动写协程。
//
// parent 取消时会话随之关闭；parent 为 nil 时使用 context.Background()。
func NewBaseSession(parent context.Context, id uint64, conn net.Conn, c codec.Codec, opts Options) *BaseSession {
	if parent == nil {
		parent = context.Background()
	}
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = DefaultSendQueueSize
	}
	ctx, cancel := context.WithCancel(parent)

	s := &BaseSession{
		id:         id,
		ctx:        ctx,
		cancel:     cancel,
		conn:       conn,
		codec:      c,
		opts:       opts,
		remoteAddr: conn.RemoteAddr(),
		localAddr:  conn.LocalAddr(),
		sendQueue:  make(chan outboundMessage, opts.SendQueueSize),
	}

	go s.sendLoop()
	// 上层取消时关闭连接，以打断阻塞中的读。
	context.AfterFunc(ctx, func() { _ = s.Close() })

	return s
}

// ID 实现 Session.ID。
func (s *BaseSession) ID() uint64 {
	return s.id
}

// Context 实现 Session.Context。
func (s *BaseSession) Context() context.Context {
	return s.ctx
}

// RemoteAddr 实现 Session.RemoteAddr。
func (s *BaseSession) RemoteAddr() net.Addr {
	return s.remoteAddr
}

// LocalAddr 实现 Session.LocalAddr。
func (s *BaseSession) LocalAddr() net.Addr {
	return s.localAddr
}

// Send 实现 Session.Send。
func (s *BaseSession) Send(op uint32, msg any) error {
	if msg == nil {
		return merr.WrapErrParameterMissing("msg")
	}
	return s.enqueue(outboundMessage{op: op, msg: msg})
}

// SendRaw 实现 Session.SendRaw。
func (s *BaseSession) SendRaw(op uint32, body []byte) error {
	return s.enqueue(outboundMessage{op: op, body: body})
}

func (s *BaseSession) enqueue(m outboundMessage) error {
	if s.ctx.Err() != nil {
		return merr.WrapErrSessionClosed(s.id)
	}
	select {
	case <-s.ctx.Done():
		return merr.WrapErrSessionClosed(s.id)
	case s.sendQueue <- m:
		return nil
	default:
		return merr.WrapErrSessionQueueFull(s.id, cap(s.sendQueue))
	}
}

// SendSync 实现 Session.SendSync。
func (s *BaseSession) SendSync(op uint32, body []byte) error {
	if s.ctx.Err() != nil {
		return merr.WrapErrSessionClosed(s.id)
	}
	return s.write(outboundMessage{op: op, body: body})
}

// Recv 同步读取一帧，仅用于 Serve 启动之前的握手阶段。
func (s *BaseSession) Recv() (*framer.MessageHeader, []byte, error) {
	if s.opts.ReadTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout)); err != nil {
			return nil, nil, err
		}
	}
	header, payload, err := s.codec.DecodeRaw(s.conn)
	if err != nil {
		return nil, nil, err
	}
	s.observe(metrics.DirectionIn, len(payload))
	return header, payload, nil
}

// SetReadTimeout 调整后续读取的超时时间。
func (s *BaseSession) SetReadTimeout(d time.Duration) {
	s.opts.ReadTimeout = d
	if d == 0 {
		_ = s.conn.SetReadDeadline(time.Time{})
	}
}

// Close 实现 Session.Close。
func (s *BaseSession) Close() error {
	s.closeOnce.Do(func() {
		// 先取消上下文，再关闭连接。
		s.cancel()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Serve 循环读取并回调 h，直到连接关闭或出现读/解码错误。
//
// 返回时会话已关闭，且 h.OnClosed 已被调用；对端正常断开或本端主动关闭时返回 nil。
func (s *BaseSession) Serve(h Handler) (cause error) {
	h.OnConnected(s)
	defer func() {
		_ = s.Close()
		h.OnClosed(s, cause)
	}()

	for {
		header, payload, err := s.Recv()
		if err != nil {
			if s.ctx.Err() != nil || isClosedErr(err) {
				return nil
			}
			h.OnError(s, stageOf(err), err)
			return err
		}
		h.OnMessage(s, header, payload)
	}
}

// sendLoop 为每个会话启动的专职发送协程。
func (s *BaseSession) sendLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case m := <-s.sendQueue:
			if err := s.write(m); err != nil {
				// 写失败视为会话异常，关闭以触发读协程退出。
				_ = s.Close()
				return
			}
		}
	}
}

func (s *BaseSession) write(m outboundMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.opts.WriteTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
			return err
		}
	}

	header := s.buildHeader(m.op)
	var err error
	n := len(m.body)
	if m.msg != nil {
		err = s.codec.Encode(s.conn, header, m.msg)
		n = int(header.Size)
	} else {
		err = s.codec.EncodeRaw(s.conn, header, m.body)
	}
	if err != nil {
		return err
	}
	s.observe(metrics.DirectionOut, n)
	return nil
}

// buildHeader 根据协议号构造报文头，seq 在会话内单调递增。
func (s *BaseSession) buildHeader(op uint32) *framer.MessageHeader {
	return &framer.MessageHeader{
		Op:        op,
		Seq:       s.seq.Inc(),
		Timestamp: time.Now().UnixNano(),
	}
}

func (s *BaseSession) observe(direction string, n int) {
	metrics.FramesTotal.WithLabelValues(s.opts.Label, direction).Inc()
	metrics.FrameBytes.WithLabelValues(s.opts.Label, direction).Add(float64(n))
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, merr.ErrIoUnexpectEOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func stageOf(err error) network.Stage {
	if errors.Is(err, merr.ErrFrameTooLarge) ||
		errors.Is(err, merr.ErrFrameCorrupted) ||
		errors.Is(err, merr.ErrCodecFailed) {
		return network.StageDecode
	}
	return network.StageRecvRaw
}
