package session

import (
	"context"
	"net"

	"github.com/RoboStack/xtensor-ros/internal/network"
	"github.com/RoboStack/xtensor-ros/internal/network/framer"
)

// Session 抽象了一条 TCP 会话。
//
// 约定：
//   - 每个 Session 对应一条底层连接；
//   - Session ID 在所属的 acceptor/connector 内唯一；
//   - 发送路径只有一个写协程，调用方可以并发调用 Send/SendRaw。
type Session interface {
	// ID 返回会话标识。
	ID() uint64

	// Context 返回与该会话关联的上下文，会话关闭时触发 Done()。
	Context() context.Context

	// RemoteAddr 返回远端地址。
	RemoteAddr() net.Addr

	// LocalAddr 返回本端地址。
	LocalAddr() net.Addr

	// Send 通过 Codec 的完整 pipeline 异步发送一条消息。
	//
	// 发送队列已满时立即返回 merr.ErrSessionQueueFull，不阻塞调用方。
	Send(op uint32, msg any) error

	// SendRaw 异步发送已序列化的负载，跳过 serializer。
	//
	// 同一份 body 可以投递给多个会话，发送期间调用方不得修改 body。
	SendRaw(op uint32, body []byte) error

	// SendSync 绕过发送队列，在当前协程内完成编码与写出。
	//
	// 用于握手与错误应答等需要在关闭连接前确保写出的帧。
	SendSync(op uint32, body []byte) error

	// Close 关闭会话，多次调用是幂等的。
	Close() error
}

// Handler 描述会话各阶段的回调。
//
// 同一会话上的回调在其读协程中串行执行，耗时逻辑应交给 worker 池。
type Handler interface {
	// OnConnected 在开始读取前被调用一次。
	OnConnected(sess Session)

	// OnMessage 在成功解码出一帧后被调用，payload 已完成解密与解压。
	OnMessage(sess Session, header *framer.MessageHeader, payload []byte)

	// OnClosed 在会话结束时被调用一次，err 为 nil 表示正常关闭。
	OnClosed(sess Session, err error)

	// OnError 在各阶段发生错误时被调用。
	OnError(sess Session, stage network.Stage, err error)
}

// HandlerFuncs 允许只实现部分回调。
type HandlerFuncs struct {
	Connected func(sess Session)
	Message   func(sess Session, header *framer.MessageHeader, payload []byte)
	Closed    func(sess Session, err error)
	Error     func(sess Session, stage network.Stage, err error)
}

var _ Handler = HandlerFuncs{}

func (h HandlerFuncs) OnConnected(sess Session) {
	if h.Connected != nil {
		h.Connected(sess)
	}
}

func (h HandlerFuncs) OnMessage(sess Session, header *framer.MessageHeader, payload []byte) {
	if h.Message != nil {
		h.Message(sess, header, payload)
	}
}

func (h HandlerFuncs) OnClosed(sess Session, err error) {
	if h.Closed != nil {
		h.Closed(sess, err)
	}
}

func (h HandlerFuncs) OnError(sess Session, stage network.Stage, err error) {
	if h.Error != nil {
		h.Error(sess, stage, err)
	}
}
