package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/RoboStack/xtensor-ros/internal/json"
	"github.com/RoboStack/xtensor-ros/internal/topic"
	"github.com/RoboStack/xtensor-ros/pkg/msgs"
	"github.com/RoboStack/xtensor-ros/pkg/ndarray"
	"github.com/RoboStack/xtensor-ros/pkg/serialization"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
	"github.com/RoboStack/xtensor-ros/pkg/util/typeutil"
)

// arrayOps 把按类型名选择的元素类型绑定到各子命令的实现上。
type arrayOps interface {
	encode(shape []uint64, values []string, framed bool) ([]byte, error)
	decode(b []byte, framed bool) (arrayView, error)
	publish(ctx context.Context, e *env, name string, opts []topic.Option,
		shape []uint64, values []string, rate time.Duration, count int) error
	subscribe(ctx context.Context, e *env, name string, opts []topic.Option, count int) error
}

// arrayView 是数组的 JSON 输出格式。
type arrayView struct {
	Type    string   `json:"type"`
	Shape   []uint64 `json:"shape"`
	Strides []uint64 `json:"strides"`
	Data    any      `json:"data"`
}

type typed[T msgs.Element] struct{}

func opsFor(name string) (arrayOps, error) {
	if name == "" {
		return nil, merr.WrapErrParameterMissing("--type")
	}
	desc, ok := msgs.Lookup(name)
	if !ok {
		return nil, merr.WrapErrTypeUnsupported(name)
	}
	switch desc.Kind {
	case msgs.KindInt8:
		return typed[int8]{}, nil
	case msgs.KindInt16:
		return typed[int16]{}, nil
	case msgs.KindInt32:
		return typed[int32]{}, nil
	case msgs.KindInt64:
		return typed[int64]{}, nil
	case msgs.KindUint8:
		return typed[uint8]{}, nil
	case msgs.KindUint16:
		return typed[uint16]{}, nil
	case msgs.KindUint32:
		return typed[uint32]{}, nil
	case msgs.KindUint64:
		return typed[uint64]{}, nil
	case msgs.KindFloat32:
		return typed[float32]{}, nil
	case msgs.KindFloat64:
		return typed[float64]{}, nil
	}
	return nil, merr.WrapErrTypeUnsupported(name)
}

func parseValue[T msgs.Element](s string) (T, error) {
	k := msgs.KindOf[T]()
	bits := k.Size() * 8
	s = strings.TrimSpace(s)
	switch k {
	case msgs.KindFloat32, msgs.KindFloat64:
		f, err := strconv.ParseFloat(s, bits)
		return T(f), err
	case msgs.KindInt8, msgs.KindInt16, msgs.KindInt32, msgs.KindInt64:
		i, err := strconv.ParseInt(s, 0, bits)
		return T(i), err
	default:
		u, err := strconv.ParseUint(s, 0, bits)
		return T(u), err
	}
}

// build 按 shape 创建数组，values 为空时元素全为零。
func build[T msgs.Element](shape []uint64, values []string) (*ndarray.Array[T], error) {
	if len(values) == 0 {
		if _, ok := typeutil.CheckedProduct(shape); !ok {
			return nil, merr.WrapErrParameterTooLarge("shape")
		}
		return ndarray.New[T](shape...), nil
	}
	data := make([]T, len(values))
	for i, v := range values {
		x, err := parseValue[T](v)
		if err != nil {
			return nil, merr.WrapErrParameterInvalidMsg("value %d %q: %s", i, v, err.Error())
		}
		data[i] = x
	}
	if len(shape) == 0 {
		shape = []uint64{uint64(len(data))}
	}
	return ndarray.FromSlice(data, shape...)
}

func (typed[T]) encode(shape []uint64, values []string, framed bool) ([]byte, error) {
	a, err := build[T](shape, values)
	if err != nil {
		return nil, err
	}
	if framed {
		return serialization.SerializeMessage(a)
	}
	return ndarray.Marshal(a)
}

func (typed[T]) decode(b []byte, framed bool) (arrayView, error) {
	a := &ndarray.Array[T]{}
	var err error
	if framed {
		err = serialization.DeserializeMessage(b, a)
	} else {
		err = serialization.Deserialize(b, a)
	}
	if err != nil {
		return arrayView{}, err
	}
	return view(a), nil
}

func view[T msgs.Element](a *ndarray.Array[T]) arrayView {
	var data any = a.Data()
	// []uint8 会被编码为 base64 字符串。
	if b, ok := data.([]uint8); ok {
		data = lo.Map(b, func(v uint8, _ int) uint16 { return uint16(v) })
	}
	return arrayView{
		Type:    a.DataType(),
		Shape:   a.Shape(),
		Strides: a.Strides(),
		Data:    data,
	}
}

func (typed[T]) publish(ctx context.Context, e *env, name string, opts []topic.Option,
	shape []uint64, values []string, rate time.Duration, count int,
) error {
	a, err := build[T](shape, values)
	if err != nil {
		return err
	}
	pub, err := topic.NewPublisher[T](ctx, name, opts...)
	if err != nil {
		return err
	}
	defer pub.Close()

	logger := e.app.Logger("pub").With(zap.String("topic", name))
	logger.Info("publishing", zap.String("endpoint", pub.Endpoint()), zap.String("type", a.DataType()))

	ticker := time.NewTicker(rate)
	defer ticker.Stop()
	for sent := 0; count == 0 || sent < count; sent++ {
		if err := pub.Publish(ctx, a); err != nil {
			return err
		}
		logger.Debug("published", zap.Int("seq", sent), zap.Int("subscribers", pub.NumSubscribers()))
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func (typed[T]) subscribe(ctx context.Context, e *env, name string, opts []topic.Option, count int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	received := make(chan *ndarray.Array[T], 64)
	sub, err := topic.NewSubscriber[T](ctx, name, func(ctx context.Context, a *ndarray.Array[T]) {
		select {
		case received <- a:
		case <-ctx.Done():
		}
	}, append(opts, topic.WithWorkers(1))...)
	if err != nil {
		return err
	}
	defer sub.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-sub.Done():
			return sub.Err()
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		defer cancel()
		for n := 0; count == 0 || n < count; n++ {
			select {
			case <-gctx.Done():
				return nil
			case a := <-received:
				if err := writeJSONLine(e, view(a)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return g.Wait()
}

func writeJSONLine(e *env, v arrayView) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = e.stdout.Write(b)
	return err
}
