package msgs

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Package 是所有数组消息类型名的公共前缀。
const Package = "xtensor_ros"

// Descriptor 描述一种数组消息类型的身份信息。
//
// 同一元素类型的所有数组共享同一个 Descriptor：shape 在消息体内传输，
// 不参与类型身份。
type Descriptor struct {
	Kind Kind
	// Name 为消息短名，例如 f64。
	Name string
	// DataType 为完整类型名，例如 xtensor_ros/f64。
	DataType string
	// Definition 为消息定义文本。
	Definition string
	// MD5Sum 为定义文本的 MD5 十六进制摘要。
	MD5Sum string
	// ElemSize 为 data 字段中单个元素的字节数。
	ElemSize int
}

// IsFixedSize 对数组消息恒为 false：三个字段都是变长序列。
func (d Descriptor) IsFixedSize() bool { return false }

// IsSimple 对数组消息恒为 false。
func (d Descriptor) IsSimple() bool { return false }

var shortNames = [numKinds]string{
	KindInt8:    "i8",
	KindInt16:   "i16",
	KindInt32:   "i32",
	KindInt64:   "i64",
	KindUint8:   "u8",
	KindUint16:  "u16",
	KindUint32:  "u32",
	KindUint64:  "u64",
	KindFloat32: "f32",
	KindFloat64: "f64",
}

// descriptors 在包初始化时生成，此后只读。
var descriptors = func() [numKinds]Descriptor {
	var table [numKinds]Descriptor
	for k := KindInt8; k <= KindFloat64; k++ {
		table[k] = newDescriptor(k)
	}
	return table
}()

func newDescriptor(k Kind) Descriptor {
	def := definitionOf(k)
	sum := md5.Sum([]byte(strings.TrimSpace(def)))
	return Descriptor{
		Kind:       k,
		Name:       shortNames[k],
		DataType:   Package + "/" + shortNames[k],
		Definition: def,
		MD5Sum:     hex.EncodeToString(sum[:]),
		ElemSize:   k.Size(),
	}
}

// definitionOf 生成消息定义文本，字段顺序即线上顺序。
func definitionOf(k Kind) string {
	var b strings.Builder
	b.WriteString("uint64[] shape\n")
	b.WriteString("uint64[] strides\n")
	b.WriteString(k.String())
	b.WriteString("[] data\n")
	return b.String()
}

// DescriptorOf 返回元素类型 T 对应的消息描述。
func DescriptorOf[T Element]() Descriptor {
	return descriptors[KindOf[T]()]
}

// Descriptors 按 Kind 顺序返回全部描述的副本。
func Descriptors() []Descriptor {
	out := make([]Descriptor, 0, numKinds-1)
	for k := KindInt8; k <= KindFloat64; k++ {
		out = append(out, descriptors[k])
	}
	return out
}

// Lookup 按完整类型名或短名查找描述，用于解析线上收到的类型名。
func Lookup(name string) (Descriptor, bool) {
	for k := KindInt8; k <= KindFloat64; k++ {
		d := descriptors[k]
		if d.DataType == name || d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// LookupMD5 按 MD5 摘要查找描述。
func LookupMD5(sum string) (Descriptor, bool) {
	for k := KindInt8; k <= KindFloat64; k++ {
		if descriptors[k].MD5Sum == sum {
			return descriptors[k], true
		}
	}
	return Descriptor{}, false
}
