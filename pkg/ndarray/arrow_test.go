package ndarray

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

func TestToArrowTensor(t *testing.T) {
	a, err := FromSlice([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)

	tt := ToArrowTensor(a, "row", "col")
	defer tt.Release()

	assert.Equal(t, arrow.FLOAT64, tt.DataType().ID())
	assert.Equal(t, []int64{2, 3}, tt.Shape())
	assert.Equal(t, []int64{24, 8}, tt.Strides())
	assert.Equal(t, []string{"row", "col"}, tt.DimNames())
	assert.True(t, tt.IsRowMajor())

	f64, ok := tt.(*tensor.Float64)
	require.True(t, ok)
	assert.Equal(t, float64(6), f64.Value([]int64{1, 2}))

	// 张量与数组共享存储。
	require.NoError(t, a.Set(60, 1, 2))
	assert.Equal(t, float64(60), f64.Value([]int64{1, 2}))
}

func TestArrowRoundTrip(t *testing.T) {
	a := Adapt([]int16{1, 4, 2, 5, 3, 6}, []uint64{2, 3}, []uint64{1, 2})
	tt := ToArrowTensor(a)
	defer tt.Release()
	assert.True(t, tt.IsColMajor())

	back, err := FromArrowTensor[int16](tt)
	require.NoError(t, err)
	assert.True(t, a.Equal(back))

	_, err = FromArrowTensor[uint16](tt)
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)
}

func TestArrowEmpty(t *testing.T) {
	a := New[uint8](0)
	tt := ToArrowTensor(a)
	defer tt.Release()

	back, err := FromArrowTensor[uint8](tt)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, back.Shape())
	assert.Empty(t, back.Data())
}
