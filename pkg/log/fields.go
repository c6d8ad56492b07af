package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
	FieldNameTopic     = "topic"
	FieldNameDataType  = "dataType"
	FieldNameSession   = "session"
	FieldNameRemote    = "remote"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

func FieldTopic(topic string) zap.Field {
	return zap.String(FieldNameTopic, topic)
}

func FieldDataType(dataType string) zap.Field {
	return zap.String(FieldNameDataType, dataType)
}

func FieldSession(id uint64) zap.Field {
	return zap.Uint64(FieldNameSession, id)
}

func FieldRemote(addr string) zap.Field {
	return zap.String(FieldNameRemote, addr)
}

// FieldMessage 返回一个包含消息对象的 zap 字段。
func FieldMessage(msg zapcore.ObjectMarshaler) zap.Field {
	return zap.Object("message", msg)
}
