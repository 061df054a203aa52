package database

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikisearch/internal/config"
)

func TestNewRedis_Unreachable(t *testing.T) {
	// 先占用再释放一个端口，保证该地址上没有监听者
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := NewRedis(ctx, config.RedisConfig{Addr: addr})
	assert.Nil(t, rdb)
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}
