package topic

import (
	"github.com/blang/semver/v4"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RoboStack/xtensor-ros/internal/network/serializer"
	"github.com/RoboStack/xtensor-ros/pkg/msgs"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

// 帧操作码。
const (
	// OpHeader 为连接头，订阅端先发，发布端校验后回复自己的连接头。
	OpHeader uint32 = iota + 1
	// OpData 为一条序列化后的数组消息。
	OpData
	// OpError 为握手被拒绝时的错误应答，发送后连接即关闭。
	OpError
	OpPing
	OpPong
)

// AnyMD5Sum 匹配任意 md5sum。
const AnyMD5Sum = "*"

// ProtocolVersion 为连接头中的协议版本，主版本号不同的两端拒绝连接。
var ProtocolVersion = semver.MustParse("1.0.0")

const (
	headerTopic      = "topic"
	headerMD5Sum     = "md5sum"
	headerType       = "type"
	headerDefinition = "message_definition"
	headerCallerID   = "callerid"
	headerVersion    = "version"
	headerLatching   = "latching"
	headerError      = "error"
)

// 握手失败原因，用作指标标签。
const (
	reasonMalformed = "malformed"
	reasonTopic     = "topic"
	reasonMD5Sum    = "md5sum"
	reasonVersion   = "version"
)

var headerSerializer = serializer.ProtoSerializer{}

// ConnectionHeader 是握手时交换的连接头。
type ConnectionHeader struct {
	Topic      string
	MD5Sum     string
	Type       string
	Definition string
	CallerID   string
	Version    semver.Version
	Latching   bool
}

// NewHeader 按消息描述生成本端连接头。
func NewHeader(topic string, desc msgs.Descriptor, callerID string) ConnectionHeader {
	return ConnectionHeader{
		Topic:      topic,
		MD5Sum:     desc.MD5Sum,
		Type:       desc.DataType,
		Definition: desc.Definition,
		CallerID:   callerID,
		Version:    ProtocolVersion,
	}
}

// Struct 将连接头转换为 structpb.Struct。
func (h ConnectionHeader) Struct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		headerTopic:      structpb.NewStringValue(h.Topic),
		headerMD5Sum:     structpb.NewStringValue(h.MD5Sum),
		headerType:       structpb.NewStringValue(h.Type),
		headerDefinition: structpb.NewStringValue(h.Definition),
		headerCallerID:   structpb.NewStringValue(h.CallerID),
		headerVersion:    structpb.NewStringValue(h.Version.String()),
		headerLatching:   structpb.NewBoolValue(h.Latching),
	}}
}

// Marshal 返回连接头的 protobuf 编码。
func (h ConnectionHeader) Marshal() ([]byte, error) {
	return headerSerializer.Marshal(h.Struct())
}

// HeaderFromStruct 解析连接头，缺少 topic、md5sum 或 version 时返回错误。
func HeaderFromStruct(s *structpb.Struct) (ConnectionHeader, error) {
	fields := s.GetFields()
	str := func(key string) string { return fields[key].GetStringValue() }

	h := ConnectionHeader{
		Topic:      str(headerTopic),
		MD5Sum:     str(headerMD5Sum),
		Type:       str(headerType),
		Definition: str(headerDefinition),
		CallerID:   str(headerCallerID),
		Latching:   fields[headerLatching].GetBoolValue(),
	}
	if h.Topic == "" || h.MD5Sum == "" {
		return h, merr.WrapErrHandshake(h.Topic, reasonMalformed, "missing topic or md5sum")
	}
	v, err := semver.Parse(str(headerVersion))
	if err != nil {
		return h, merr.WrapErrHandshake(h.Topic, reasonMalformed, "bad version: "+err.Error())
	}
	h.Version = v
	return h, nil
}

// UnmarshalHeader 解析 protobuf 编码的连接头。
func UnmarshalHeader(b []byte) (ConnectionHeader, error) {
	s := &structpb.Struct{}
	if err := headerSerializer.Unmarshal(b, s); err != nil {
		return ConnectionHeader{}, merr.WrapErrHandshake("", reasonMalformed, err.Error())
	}
	return HeaderFromStruct(s)
}

// mismatch 返回 peer 与本端不兼容的原因，兼容时返回空串。
func (h ConnectionHeader) mismatch(peer ConnectionHeader) string {
	switch {
	case peer.Topic != h.Topic:
		return reasonTopic
	case peer.MD5Sum != h.MD5Sum && peer.MD5Sum != AnyMD5Sum && h.MD5Sum != AnyMD5Sum:
		return reasonMD5Sum
	case peer.Version.Major != h.Version.Major:
		return reasonVersion
	}
	return ""
}

// Check 校验 peer 是否可以与本端通信。
func (h ConnectionHeader) Check(peer ConnectionHeader) error {
	reason := h.mismatch(peer)
	if reason == "" {
		return nil
	}
	switch reason {
	case reasonMD5Sum:
		return merr.WrapErrHandshake(h.Topic, reason,
			"expected "+h.Type+"/"+h.MD5Sum+", got "+peer.Type+"/"+peer.MD5Sum)
	case reasonVersion:
		return merr.WrapErrHandshake(h.Topic, reason,
			"expected version "+h.Version.String()+", got "+peer.Version.String())
	default:
		return merr.WrapErrHandshake(h.Topic, reason, "peer topic "+peer.Topic)
	}
}

func marshalError(err error) []byte {
	b, _ := headerSerializer.Marshal(&structpb.Struct{Fields: map[string]*structpb.Value{
		headerError: structpb.NewStringValue(err.Error()),
	}})
	return b
}

func unmarshalError(topic string, b []byte) error {
	s := &structpb.Struct{}
	if err := headerSerializer.Unmarshal(b, s); err != nil {
		return merr.WrapErrHandshake(topic, reasonMalformed, err.Error())
	}
	return merr.WrapErrHandshake(topic, "rejected", s.GetFields()[headerError].GetStringValue())
}
