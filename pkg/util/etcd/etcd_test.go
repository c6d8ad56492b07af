package etcd

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedEtcd(t *testing.T) {
	_, err := GetEmbedEtcdClient()
	assert.Error(t, err)

	dir, err := os.MkdirTemp("", "xtros-etcd")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	require.NoError(t, InitEtcdServer(EmbedConfig{DataDir: dir}))
	defer StopEtcdServer()
	assert.True(t, HasServer())
	assert.NotEmpty(t, ClientURLs())

	cli, err := GetEmbedEtcdClient()
	require.NoError(t, err)
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = cli.Put(ctx, "/xtros/k", "v")
	require.NoError(t, err)
	resp, err := cli.Get(ctx, "/xtros/k")
	require.NoError(t, err)
	require.Len(t, resp.Kvs, 1)
	assert.Equal(t, "v", string(resp.Kvs[0].Value))

	remote, err := GetRemoteEtcdClient(ClientURLs(), time.Second)
	require.NoError(t, err)
	defer remote.Close()
	resp, err = remote.Get(ctx, "/xtros/k")
	require.NoError(t, err)
	assert.Len(t, resp.Kvs, 1)
}

func TestRemoteClientParams(t *testing.T) {
	_, err := GetRemoteEtcdClient(nil, time.Second)
	assert.Error(t, err)
}
