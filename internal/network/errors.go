// Package network 包含帧传输链路：序列化、压缩、加密、分帧、会话与路由。
package network

// Stage 表示网络收发链路中的处理阶段。
//
// 主要用于在回调与错误中标记错误发生的位置，便于监控与排查。
type Stage string

const (
	StageHandshake Stage = "handshake"
	StageRecvRaw   Stage = "recv_raw" // 读取底层连接
	StageDecode    Stage = "decode"   // 帧 -> 业务对象
	StageDispatch  Stage = "dispatch" // 业务回调
	StageEncode    Stage = "encode"   // 业务对象 -> 帧
	StageSend      Stage = "send"     // 写入底层连接
)

func (s Stage) String() string {
	return string(s)
}
