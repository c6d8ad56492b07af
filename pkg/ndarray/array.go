// Package ndarray 提供带 shape/strides 的多维数组容器，以及它与线上消息之间的转换。
//
// strides 以元素为单位。数组可以拥有自己的缓冲区，也可以通过 Adapt/FromMsg
// 借用外部缓冲区；借用得到的视图不得比被借用的存储活得更久。
package ndarray

import (
	"math"
	"slices"

	"github.com/RoboStack/xtensor-ros/pkg/msgs"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
	"github.com/RoboStack/xtensor-ros/pkg/util/typeutil"
)

// Array 是元素类型为 T 的 N 维数组。
type Array[T msgs.Element] struct {
	shape   []uint64
	strides []uint64
	data    []T
}

// ContiguousStrides 返回 shape 的行优先连续 strides。
func ContiguousStrides(shape []uint64) []uint64 {
	strides := make([]uint64, len(shape))
	acc := uint64(1)
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

// sizeOf 返回 shape 描述的元素个数，空 shape 表示标量，大小为 1。
func sizeOf(shape []uint64) uint64 {
	return typeutil.Product(shape)
}

// New 创建一个元素全为零值的行优先数组。
func New[T msgs.Element](shape ...uint64) *Array[T] {
	return &Array[T]{
		shape:   slices.Clone(shape),
		strides: ContiguousStrides(shape),
		data:    make([]T, sizeOf(shape)),
	}
}

// FromSlice 以 data 为缓冲区创建行优先数组，不拷贝 data。
func FromSlice[T msgs.Element](data []T, shape ...uint64) (*Array[T], error) {
	if sizeOf(shape) != uint64(len(data)) {
		return nil, merr.WrapErrShapeMismatch(shape, len(data))
	}
	return &Array[T]{
		shape:   slices.Clone(shape),
		strides: ContiguousStrides(shape),
		data:    data,
	}, nil
}

// Adapt 在外部缓冲区上构造视图，shape 与 strides 按原样采用，不做校验也不重算。
// 返回的数组与 data、shape、strides 共享内存。strides 为 nil 时按行优先补齐。
func Adapt[T msgs.Element](data []T, shape, strides []uint64) *Array[T] {
	if strides == nil && len(shape) > 0 {
		strides = ContiguousStrides(shape)
	}
	return &Array[T]{shape: shape, strides: strides, data: data}
}

// Shape 返回 shape，调用方不应修改。
func (a *Array[T]) Shape() []uint64 { return a.shape }

// Strides 返回以元素为单位的 strides，调用方不应修改。
func (a *Array[T]) Strides() []uint64 { return a.strides }

// Data 返回底层缓冲区。
func (a *Array[T]) Data() []T { return a.data }

// Rank 返回维数。
func (a *Array[T]) Rank() int { return len(a.shape) }

// Size 返回 shape 描述的逻辑元素个数。
func (a *Array[T]) Size() int { return int(sizeOf(a.shape)) }

// IsContiguous 判断 strides 是否为 shape 的行优先连续布局。
func (a *Array[T]) IsContiguous() bool {
	return slices.Equal(a.strides, ContiguousStrides(a.shape))
}

func (a *Array[T]) offset(idx []uint64) (int, error) {
	if len(idx) != len(a.shape) || len(a.strides) != len(a.shape) {
		return 0, merr.WrapErrIndexOutOfRange(idx, a.shape, "rank mismatch")
	}
	var off uint64
	for i, v := range idx {
		if v >= a.shape[i] {
			return 0, merr.WrapErrIndexOutOfRange(idx, a.shape)
		}
		step, ok := typeutil.CheckedProduct([]uint64{v, a.strides[i]})
		if !ok || off > math.MaxUint64-step {
			return 0, merr.WrapErrIndexOutOfRange(idx, a.shape, "offset overflows")
		}
		off += step
	}
	if off >= uint64(len(a.data)) {
		return 0, merr.WrapErrIndexOutOfRange(idx, a.shape, "offset beyond buffer")
	}
	return int(off), nil
}

// At 按多维下标读取元素。
func (a *Array[T]) At(idx ...uint64) (T, error) {
	off, err := a.offset(idx)
	if err != nil {
		var zero T
		return zero, err
	}
	return a.data[off], nil
}

// Set 按多维下标写入元素。
func (a *Array[T]) Set(v T, idx ...uint64) error {
	off, err := a.offset(idx)
	if err != nil {
		return err
	}
	a.data[off] = v
	return nil
}

// Reshape 在元素个数不变的前提下更换 shape，并重算行优先 strides。
func (a *Array[T]) Reshape(shape ...uint64) error {
	if sizeOf(shape) != uint64(len(a.data)) {
		return merr.WrapErrShapeMismatch(shape, len(a.data))
	}
	a.shape = slices.Clone(shape)
	a.strides = ContiguousStrides(shape)
	return nil
}

// Resize 更换 shape 并把缓冲区调整为恰好容纳新的元素个数。
// 容量足够时复用原缓冲区，原有元素不保证保留。
func (a *Array[T]) Resize(shape ...uint64) {
	n := int(sizeOf(shape))
	if cap(a.data) >= n {
		a.data = a.data[:n]
	} else {
		a.data = make([]T, n)
	}
	a.shape = slices.Clone(shape)
	a.strides = ContiguousStrides(shape)
}

// Clone 返回不共享任何存储的深拷贝。
func (a *Array[T]) Clone() *Array[T] {
	return &Array[T]{
		shape:   slices.Clone(a.shape),
		strides: slices.Clone(a.strides),
		data:    slices.Clone(a.data),
	}
}

// Equal 比较 shape、strides 与缓冲区内容。
func (a *Array[T]) Equal(b *Array[T]) bool {
	if a == nil || b == nil {
		return a == b
	}
	return slices.Equal(a.shape, b.shape) &&
		slices.Equal(a.strides, b.strides) &&
		slices.Equal(a.data, b.data)
}

// Values 按行优先的逻辑顺序返回全部元素的拷贝，遵循 strides 寻址。
func (a *Array[T]) Values() ([]T, error) {
	n := a.Size()
	out := make([]T, 0, n)
	if n == 0 {
		return out, nil
	}
	idx := make([]uint64, len(a.shape))
	for {
		v, err := a.At(idx...)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		// 末维先进位。
		d := len(idx) - 1
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < a.shape[d] {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			return out, nil
		}
	}
}
