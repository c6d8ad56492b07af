package serializer

import (
	"fmt"
	"time"

	"github.com/RoboStack/xtensor-ros/pkg/metrics"
	"github.com/RoboStack/xtensor-ros/pkg/serialization"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

// WireSerializer 按消息自身的线上格式编解码，v 必须实现 serialization.Serializable。
// 同时实现 serialization.Traits 的消息会按 DataType 记录大小与耗时指标。
type WireSerializer struct{}

var _ Serializer = (*WireSerializer)(nil)

func (WireSerializer) Marshal(v any) ([]byte, error) {
	m, ok := v.(serialization.Serializable)
	if !ok {
		return nil, merr.WrapErrTypeMismatch("serialization.Serializable", fmt.Sprintf("%T", v))
	}
	start := time.Now()
	b, err := serialization.Serialize(m)
	observe(v, metrics.DirectionOut, len(b), start, err)
	return b, err
}

func (WireSerializer) Unmarshal(data []byte, v any) error {
	m, ok := v.(serialization.Serializable)
	if !ok {
		return merr.WrapErrTypeMismatch("serialization.Serializable", fmt.Sprintf("%T", v))
	}
	start := time.Now()
	err := serialization.Deserialize(data, m)
	observe(v, metrics.DirectionIn, len(data), start, err)
	return err
}

func observe(v any, direction string, n int, start time.Time, err error) {
	traits, ok := v.(serialization.Traits)
	if !ok {
		return
	}
	dataType := traits.DataType()
	if err != nil {
		metrics.SerializeFailures.WithLabelValues(dataType, direction).Inc()
		return
	}
	metrics.SerializedBytes.WithLabelValues(dataType, direction).Observe(float64(n))
	metrics.SerializeLatency.WithLabelValues(dataType, direction).Observe(float64(time.Since(start).Microseconds()))
}
