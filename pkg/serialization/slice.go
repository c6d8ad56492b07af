package serialization

import (
	"math"
	"unsafe"

	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

// Pod 为可按内存块整体拷贝的标量类型集合。
type Pod interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// lengthFieldSize 为序列长度前缀的字节数。
const lengthFieldSize = 4

func sizeOf[T Pod]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// asBytes 把 v 的底层存储重新解释为字节切片，不拷贝。
func asBytes[T Pod](v []T) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(v))), len(v)*sizeOf[T]())
}

// SliceLength 返回 WriteSlice(v) 写出的字节数：4 + len(v)*sizeof(T)。
func SliceLength[T Pod](v []T) int {
	return lengthFieldSize + len(v)*sizeOf[T]()
}

// WriteSlice 写出 uint32 元素个数，元素个数大于 0 时再写出一整块原始内存。
func WriteSlice[T Pod](s *OStream, v []T) error {
	if uint64(len(v)) > math.MaxUint32 {
		return merr.WrapErrParameterTooLarge("sequence", "element count exceeds uint32")
	}
	if err := s.NextUint32(uint32(len(v))); err != nil {
		return err
	}
	if len(v) == 0 {
		return nil
	}
	dst, err := s.Advance(len(v) * sizeOf[T]())
	if err != nil {
		return err
	}
	copy(dst, asBytes(v))
	return nil
}

// ReadSlice 读取元素个数，把 *dst 调整为恰好该长度，再拷贝对应字节。
// *dst 容量足够时复用其存储。
func ReadSlice[T Pod](s *IStream, dst *[]T) error {
	n, err := s.NextUint32()
	if err != nil {
		return err
	}
	count := int(n)
	if cap(*dst) >= count {
		*dst = (*dst)[:count]
	} else {
		// 先检查剩余字节，避免恶意长度触发大块分配。
		if count*sizeOf[T]() > s.Left() {
			return merr.WrapErrStreamOverrun(count*sizeOf[T](), s.Left(), "read sequence")
		}
		*dst = make([]T, count)
	}
	if count == 0 {
		return nil
	}
	src, err := s.Advance(count * sizeOf[T]())
	if err != nil {
		return err
	}
	copy(asBytes(*dst), src)
	return nil
}

// ViewSlice 读取一个定长前缀序列，并尽量直接别名源缓冲区中的元素块。
//
// 元素块地址满足 T 的对齐要求时返回的切片与 IStream 的底层缓冲区共享内存，
// 否则退化为拷贝。第二个返回值表示是否发生了别名。
func ViewSlice[T Pod](s *IStream) ([]T, bool, error) {
	n, err := s.NextUint32()
	if err != nil {
		return nil, false, err
	}
	count := int(n)
	if count == 0 {
		return []T{}, false, nil
	}
	src, err := s.Advance(count * sizeOf[T]())
	if err != nil {
		return nil, false, err
	}
	var zero T
	if uintptr(unsafe.Pointer(unsafe.SliceData(src)))%unsafe.Alignof(zero) == 0 {
		return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(src))), count), true, nil
	}
	out := make([]T, count)
	copy(asBytes(out), src)
	return out, false, nil
}
