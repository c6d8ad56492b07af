package etcd

import (
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/server/v3/embed"
	"go.etcd.io/etcd/server/v3/etcdserver/api/v3client"
	"go.uber.org/zap"

	"github.com/RoboStack/xtensor-ros/pkg/log"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

// EtcdServer 是嵌入式 etcd 服务的单例实例。
var (
	initOnce   sync.Once
	closeOnce  sync.Once
	etcdServer *embed.Etcd
)

// EmbedConfig 描述单节点嵌入式 etcd 的启动参数。
type EmbedConfig struct {
	// ConfigPath 非空时从文件加载 etcd 配置，其余字段覆盖文件中的值。
	ConfigPath string
	DataDir    string
	// ClientURL 为客户端监听地址，为空时选择一个本地空闲端口。
	ClientURL string
	// PeerURL 为集群内部通信地址，为空时选择一个本地空闲端口。
	PeerURL  string
	LogPath  string
	LogLevel string
	// ReadyTimeout 为等待服务就绪的最长时间。
	ReadyTimeout time.Duration
}

// GetEmbedEtcdClient 返回嵌入式 etcd 服务对应的进程内 v3 客户端。
func GetEmbedEtcdClient() (*clientv3.Client, error) {
	if etcdServer == nil {
		return nil, merr.WrapErrServiceNotReady("etcd", "stopped", "embedded etcd not started")
	}
	return v3client.New(etcdServer.Server), nil
}

// InitEtcdServer 初始化嵌入式 etcd 单例服务，重复调用只生效一次。
func InitEtcdServer(cfg EmbedConfig) error {
	var initError error
	initOnce.Do(func() {
		e, err := startEmbed(cfg)
		if err != nil {
			log.Error("failed to init embedded Etcd server", zap.Error(err))
			initError = err
			return
		}
		etcdServer = e
		log.Info("finish init Etcd config",
			zap.String("path", cfg.ConfigPath),
			zap.String("data", cfg.DataDir),
			zap.Strings("clients", ClientURLs()))
	})
	return initError
}

func startEmbed(c EmbedConfig) (*embed.Etcd, error) {
	var cfg *embed.Config
	if len(c.ConfigPath) > 0 {
		cfgFromFile, err := embed.ConfigFromFile(c.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = cfgFromFile
	} else {
		cfg = embed.NewConfig()
	}
	cfg.Dir = c.DataDir

	clientURL, err := resolveURL(c.ClientURL)
	if err != nil {
		return nil, err
	}
	peerURL, err := resolveURL(c.PeerURL)
	if err != nil {
		return nil, err
	}
	cfg.ListenClientUrls = []url.URL{*clientURL}
	cfg.AdvertiseClientUrls = []url.URL{*clientURL}
	cfg.ListenPeerUrls = []url.URL{*peerURL}
	cfg.AdvertisePeerUrls = []url.URL{*peerURL}
	cfg.InitialCluster = cfg.InitialClusterFromName(cfg.Name)

	cfg.LogOutputs = []string{"stderr"}
	if c.LogPath != "" {
		cfg.LogOutputs = []string{c.LogPath}
	}
	cfg.LogLevel = "warn"
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}

	e, err := embed.StartEtcd(cfg)
	if err != nil {
		return nil, err
	}

	timeout := c.ReadyTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case <-e.Server.ReadyNotify():
		return e, nil
	case <-time.After(timeout):
		e.Close()
		return nil, errors.Newf("embedded etcd not ready after %s", timeout)
	}
}

// resolveURL 解析地址，为空时分配一个 127.0.0.1 上的空闲端口。
func resolveURL(raw string) (*url.URL, error) {
	if raw == "" {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, err
		}
		raw = fmt.Sprintf("http://%s", l.Addr().String())
		_ = l.Close()
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("invalid etcd url %q: %s", raw, err.Error())
	}
	return u, nil
}

func HasServer() bool {
	return etcdServer != nil
}

// ClientURLs 返回嵌入式服务对外公布的客户端地址。
func ClientURLs() []string {
	if etcdServer == nil {
		return nil
	}
	urls := make([]string, 0, len(etcdServer.Clients))
	for _, l := range etcdServer.Clients {
		urls = append(urls, l.Addr().String())
	}
	return urls
}

// StopEtcdServer stops embedded etcd server singleton.
func StopEtcdServer() {
	if etcdServer != nil {
		closeOnce.Do(func() {
			etcdServer.Close()
		})
	}
}
