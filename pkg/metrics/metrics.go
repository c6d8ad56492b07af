// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"net/http"
	// #nosec
	_ "net/http/pprof"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// xtrosNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	xtrosNamespace = "xtensor_ros"

	serializationSubsystem = "serialization"
	transportSubsystem     = "transport"

	dataTypeLabelName  = "data_type"
	directionLabelName = "direction"
	topicLabelName     = "topic"
	reasonLabelName    = "reason"

	DirectionIn  = "in"
	DirectionOut = "out"
)

var (
	// buckets 为耗时直方图的桶划分，单位为微秒。
	// [1 2 4 8 ... 65536 1.31072e+05]
	buckets = prometheus.ExponentialBuckets(1, 2, 18)

	// sizeBuckets 为消息大小的桶划分，单位为字节。
	sizeBuckets = prometheus.ExponentialBuckets(64, 4, 12)

	SerializedBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: xtrosNamespace,
			Subsystem: serializationSubsystem,
			Name:      "message_bytes",
			Help:      "serialized length of array messages",
			Buckets:   sizeBuckets,
		}, []string{dataTypeLabelName, directionLabelName})

	SerializeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: xtrosNamespace,
			Subsystem: serializationSubsystem,
			Name:      "latency_us",
			Help:      "time spent encoding or decoding one message, in microseconds",
			Buckets:   buckets,
		}, []string{dataTypeLabelName, directionLabelName})

	SerializeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: xtrosNamespace,
			Subsystem: serializationSubsystem,
			Name:      "failures_total",
			Help:      "number of messages that failed to encode or decode",
		}, []string{dataTypeLabelName, directionLabelName})

	FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: xtrosNamespace,
			Subsystem: transportSubsystem,
			Name:      "frames_total",
			Help:      "number of frames read or written",
		}, []string{topicLabelName, directionLabelName})

	FrameBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: xtrosNamespace,
			Subsystem: transportSubsystem,
			Name:      "frame_bytes_total",
			Help:      "frame payload bytes read or written",
		}, []string{topicLabelName, directionLabelName})

	HandshakeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: xtrosNamespace,
			Subsystem: transportSubsystem,
			Name:      "handshake_failures_total",
			Help:      "number of rejected connection headers",
		}, []string{topicLabelName, reasonLabelName})

	ActiveSessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: xtrosNamespace,
			Subsystem: transportSubsystem,
			Name:      "active_sessions",
			Help:      "number of live subscriber sessions",
		}, []string{topicLabelName})

	registerOnce     sync.Once
	metricRegisterer prometheus.Registerer
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标，重复调用只生效一次。
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(SerializedBytes)
		r.MustRegister(SerializeLatency)
		r.MustRegister(SerializeFailures)
		r.MustRegister(FramesTotal)
		r.MustRegister(FrameBytes)
		r.MustRegister(HandshakeFailures)
		r.MustRegister(ActiveSessions)
		metricRegisterer = r
	})
}

// Handler 返回暴露默认 Gatherer 的 HTTP handler。
func Handler() http.Handler {
	return promhttp.Handler()
}
