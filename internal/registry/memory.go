package registry

import (
	"context"
	"sync"

	"github.com/samber/lo"

	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

// Memory 是进程内的 Registry 实现，用于单进程部署与测试。
type Memory struct {
	mu     sync.RWMutex
	topics map[string]map[string]Endpoint
}

var _ Registry = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{topics: make(map[string]map[string]Endpoint)}
}

func (m *Memory) Register(_ context.Context, ep Endpoint) (func(), error) {
	if ep.Topic == "" || ep.Addr == "" {
		return nil, merr.WrapErrParameterInvalidMsg("endpoint requires topic and addr, got %+v", ep)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	eps, ok := m.topics[ep.Topic]
	if !ok {
		eps = make(map[string]Endpoint)
		m.topics[ep.Topic] = eps
	}
	eps[ep.Addr] = ep

	var once sync.Once
	return func() {
		once.Do(func() { m.remove(ep) })
	}, nil
}

func (m *Memory) remove(ep Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	eps := m.topics[ep.Topic]
	delete(eps, ep.Addr)
	if len(eps) == 0 {
		delete(m.topics, ep.Topic)
	}
}

func (m *Memory) Lookup(_ context.Context, topic string) ([]Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	eps := m.topics[topic]
	if len(eps) == 0 {
		return nil, merr.WrapErrTopicNotFound(topic)
	}
	return sortEndpoints(lo.Values(eps)), nil
}
