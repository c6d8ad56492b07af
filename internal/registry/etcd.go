package registry

import (
	"context"
	"path"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/RoboStack/xtensor-ros/internal/json"
	"github.com/RoboStack/xtensor-ros/pkg/log"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

const (
	DefaultPrefix = "/xtensor_ros/topics"
	DefaultTTL    = 10 * time.Second
)

// Etcd 将发布端写入 etcd，键为 <prefix>/<topic>/<addr>，值为 JSON 编码的 Endpoint。
// 每个发布端持有一个租约，进程退出后键在 TTL 到期时自动删除。
type Etcd struct {
	cli    *clientv3.Client
	prefix string
	ttl    time.Duration
}

var _ Registry = (*Etcd)(nil)

// NewEtcd 创建基于 etcd 的 Registry，prefix 为空时使用 DefaultPrefix，ttl <= 0 时使用 DefaultTTL。
func NewEtcd(cli *clientv3.Client, prefix string, ttl time.Duration) *Etcd {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Etcd{cli: cli, prefix: prefix, ttl: ttl}
}

func (e *Etcd) topicKey(topic string) string {
	// 末尾的 / 避免 /points 前缀匹配到 /points2。
	return path.Join(e.prefix, topic) + "/"
}

func (e *Etcd) Register(ctx context.Context, ep Endpoint) (func(), error) {
	if ep.Topic == "" || ep.Addr == "" {
		return nil, merr.WrapErrParameterInvalidMsg("endpoint requires topic and addr, got %+v", ep)
	}
	value, err := json.Marshal(ep)
	if err != nil {
		return nil, err
	}

	lease, err := e.cli.Grant(ctx, max(int64(e.ttl.Seconds()), 1))
	if err != nil {
		return nil, merr.WrapErrIoFailed(ep.Topic, err)
	}
	key := e.topicKey(ep.Topic) + ep.Addr
	if _, err := e.cli.Put(ctx, key, string(value), clientv3.WithLease(lease.ID)); err != nil {
		return nil, merr.WrapErrIoFailed(key, err)
	}

	keepCtx, cancel := context.WithCancel(context.Background())
	ch, err := e.cli.KeepAlive(keepCtx, lease.ID)
	if err != nil {
		cancel()
		return nil, merr.WrapErrIoFailed(key, err)
	}

	logger := log.With(log.FieldTopic(ep.Topic), zap.String("key", key))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range ch {
		}
		if keepCtx.Err() == nil {
			logger.Warn("registry lease keepalive stopped")
		}
	}()

	var once sync.Once
	unregister := func() {
		once.Do(func() {
			cancel()
			<-done
			revokeCtx, revokeCancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer revokeCancel()
			if _, err := e.cli.Revoke(revokeCtx, lease.ID); err != nil {
				logger.Warn("revoke registry lease failed", zap.Error(err))
			}
		})
	}
	logger.Info("registered topic endpoint", log.FieldRemote(ep.Addr))
	return unregister, nil
}

func (e *Etcd) Lookup(ctx context.Context, topic string) ([]Endpoint, error) {
	resp, err := e.cli.Get(ctx, e.topicKey(topic), clientv3.WithPrefix())
	if err != nil {
		return nil, merr.WrapErrIoFailed(topic, err)
	}
	eps := make([]Endpoint, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var ep Endpoint
		if err := json.Unmarshal(kv.Value, &ep); err != nil {
			log.Ctx(ctx).Warn("skip malformed registry entry", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		eps = append(eps, ep)
	}
	if len(eps) == 0 {
		return nil, merr.WrapErrTopicNotFound(topic)
	}
	return sortEndpoints(eps), nil
}
