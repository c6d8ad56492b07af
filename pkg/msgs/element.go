// Package msgs 定义数组消息的类型注册表：元素类型到线上消息描述的封闭映射。
//
// 支持的元素类型在编译期固定为十种标量，任何其他类型都无法实例化
// Message[T] 或 DescriptorOf[T]，因此不存在运行期的“未知类型”分支。
package msgs

import "fmt"

// Element 是允许出现在数组消息中的标量元素类型集合。
//
// 约束刻意不使用 ~：命名类型即使底层是 float64，也没有对应的线上描述。
type Element interface {
	int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float32 | float64
}

// Kind 枚举支持的元素类型，用作描述表的下标。
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64

	numKinds = int(KindFloat64) + 1
)

var kindNames = [numKinds]string{
	KindInvalid: "invalid",
	KindInt8:    "int8",
	KindInt16:   "int16",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindUint8:   "uint8",
	KindUint16:  "uint16",
	KindUint32:  "uint32",
	KindUint64:  "uint64",
	KindFloat32: "float32",
	KindFloat64: "float64",
}

var kindSizes = [numKinds]int{
	KindInt8:    1,
	KindInt16:   2,
	KindInt32:   4,
	KindInt64:   8,
	KindUint8:   1,
	KindUint16:  2,
	KindUint32:  4,
	KindUint64:  8,
	KindFloat32: 4,
	KindFloat64: 8,
}

// String 返回元素类型在消息定义中使用的 ROS 基本类型名。
func (k Kind) String() string {
	if int(k) >= numKinds {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Size 返回单个元素的字节数，KindInvalid 返回 0。
func (k Kind) Size() int {
	if int(k) >= numKinds {
		return 0
	}
	return kindSizes[k]
}

// KindOf 返回 T 对应的 Kind。switch 对 Element 的十个成员是穷尽的。
func KindOf[T Element]() Kind {
	var zero T
	switch any(zero).(type) {
	case int8:
		return KindInt8
	case int16:
		return KindInt16
	case int32:
		return KindInt32
	case int64:
		return KindInt64
	case uint8:
		return KindUint8
	case uint16:
		return KindUint16
	case uint32:
		return KindUint32
	case uint64:
		return KindUint64
	case float32:
		return KindFloat32
	case float64:
		return KindFloat64
	}
	panic("unreachable")
}

// IsElement 判断任意类型 T 是否属于支持的元素集合。
//
// 供无法直接使用 Element 约束的泛型代码（例如 T any 的容器）在入口处做检查。
func IsElement[T any]() bool {
	var zero T
	switch any(zero).(type) {
	case int8, int16, int32, int64,
		uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}
