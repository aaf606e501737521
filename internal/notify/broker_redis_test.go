package notify

import (
	"bytes"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSubscribeLogsUnreachableServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	var buf bytes.Buffer
	b, err := NewRedisBroker("redis://"+addr, slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	ch := b.Subscribe("ops")
	assert.Contains(t, buf.String(), "redis subscribe failed")
	assert.Contains(t, buf.String(), "topic=ops")

	b.Unsubscribe("ops", ch)
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("subscription channel not closed after unsubscribe")
	}
}
