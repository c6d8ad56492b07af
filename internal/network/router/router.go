package router

import (
	"github.com/RoboStack/xtensor-ros/internal/network/framer"
	"github.com/RoboStack/xtensor-ros/internal/network/serializer"
	"github.com/RoboStack/xtensor-ros/internal/network/session"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

// Handler 是一条路由的处理函数。
//
//   - sess：当前会话；
//   - req ：已经反序列化的请求对象，具体类型由 Route.NewRequest 决定；
//   - 返回 resp 非 nil 且 Route.RespOp 非 0 时，Router 自动发送响应。
type Handler func(sess session.Session, header *framer.MessageHeader, req any) (resp any, err error)

// Route 描述一条路由规则：请求操作码 -> 请求类型 + Handler + 响应操作码。
type Route struct {
	// NewRequest 创建一个空的请求对象，必须返回指针。
	NewRequest func() any

	// Handler 为处理函数。
	Handler Handler

	// RespOp 为响应消息使用的操作码，为 0 时不自动发送响应。
	RespOp uint32
}

// Router 维护操作码到路由规则的映射，并负责从“原始帧”到 Handler 的调度。
//
// 调用链：
//  1. session 读出 header + payload 后调用 Router.Handle；
//  2. Router 根据 header.Op 找到 Route，用 Serializer 反序列化请求；
//  3. 调用 Handler；
//  4. 如有需要，用同一个 Serializer 序列化响应并通过 sess.SendRaw 发送。
type Router interface {
	// Register 为操作码 op 注册一条路由规则，同一操作码不允许重复注册。
	Register(op uint32, route Route) error

	// Handle 处理一条已经解析出的消息。
	Handle(sess session.Session, header *framer.MessageHeader, payload []byte) error
}

// defaultRouter 基于 map[op]Route 进行路由，使用注入的 Serializer 完成请求与响应的编解码。
type defaultRouter struct {
	ser    serializer.Serializer
	routes map[uint32]Route
}

// 编译期断言：确保 defaultRouter 实现了 Router 接口。
var _ Router = (*defaultRouter)(nil)

// New 创建一个基于给定 Serializer 的 Router 实例。
//
// Register 应在开始处理消息之前完成。
func New(ser serializer.Serializer) Router {
	return &defaultRouter{
		ser:    ser,
		routes: make(map[uint32]Route),
	}
}

// Register 实现 Router.Register。
func (r *defaultRouter) Register(op uint32, route Route) error {
	if op == 0 {
		return merr.WrapErrParameterInvalidMsg("router: op must not be 0")
	}
	if route.NewRequest == nil {
		return merr.WrapErrParameterInvalidMsg("router: NewRequest is nil for op=%d", op)
	}
	if route.Handler == nil {
		return merr.WrapErrParameterInvalidMsg("router: Handler is nil for op=%d", op)
	}
	if _, exists := r.routes[op]; exists {
		return merr.WrapErrParameterInvalidMsg("router: op=%d already registered", op)
	}
	r.routes[op] = route
	return nil
}

// Handle 实现 Router.Handle。
func (r *defaultRouter) Handle(sess session.Session, header *framer.MessageHeader, payload []byte) error {
	if sess == nil {
		return merr.WrapErrParameterMissing("session")
	}
	if header == nil {
		return merr.WrapErrParameterMissing("header")
	}

	route, ok := r.routes[header.Op]
	if !ok {
		return merr.WrapErrOperationNotSupported("op", header.Op)
	}

	req := route.NewRequest()
	if err := r.ser.Unmarshal(payload, req); err != nil {
		return merr.WrapErrCodec("route", err)
	}

	resp, err := route.Handler(sess, header, req)
	if err != nil {
		return err
	}
	if route.RespOp == 0 || resp == nil {
		return nil
	}

	body, err := r.ser.Marshal(resp)
	if err != nil {
		return merr.WrapErrCodec("route", err)
	}
	return sess.SendRaw(route.RespOp, body)
}
