// Package registry 记录每个 topic 的发布端地址，供订阅端查找。
package registry

import (
	"context"
	"sort"
)

// Endpoint 描述一个发布端。
type Endpoint struct {
	Topic    string `json:"topic"`
	Addr     string `json:"addr"`
	DataType string `json:"data_type"`
	MD5Sum   string `json:"md5sum"`
	CallerID string `json:"caller_id,omitempty"`
}

// Registry 是 topic 发现服务。
type Registry interface {
	// Register 登记发布端，返回的 unregister 用于注销，可重复调用。
	Register(ctx context.Context, ep Endpoint) (unregister func(), err error)

	// Lookup 返回 topic 的全部发布端，按地址排序；没有发布端时返回 merr.ErrTopicNotFound。
	Lookup(ctx context.Context, topic string) ([]Endpoint, error)
}

func sortEndpoints(eps []Endpoint) []Endpoint {
	sort.Slice(eps, func(i, j int) bool { return eps[i].Addr < eps[j].Addr })
	return eps
}
