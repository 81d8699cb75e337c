package remote

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylight-app/skylight/ipc"
)

func dialGateway(t *testing.T, gw *Gateway) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, srv.URL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func TestGatewayServesRequests(t *testing.T) {
	gw := NewGateway(func(ch *ipc.Channel) {
		ch.On("version", func(json.RawMessage) (any, error) {
			return map[string]string{"version": "1.4.0"}, nil
		})
	})
	conn := dialGateway(t, gw)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := json.Marshal(ipc.Envelope{Type: "version", ID: "req-1"})
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, req))

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)

	var env ipc.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "req-1", env.ID)
	assert.True(t, env.IsResponse)
	assert.Empty(t, env.Error)
	assert.JSONEq(t, `{"version":"1.4.0"}`, string(env.Payload))
}

func TestGatewayReportsHandlerErrors(t *testing.T) {
	gw := NewGateway(func(ch *ipc.Channel) {
		ch.On("fail", func(json.RawMessage) (any, error) {
			return nil, assert.AnError
		})
	})
	conn := dialGateway(t, gw)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := json.Marshal(ipc.Envelope{Type: "fail", ID: "req-2"})
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, req))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var env ipc.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "req-2", env.ID)
	assert.True(t, env.IsResponse)
	assert.NotEmpty(t, env.Error)
}

func TestGatewayPushesServerMessages(t *testing.T) {
	channels := make(chan *ipc.Channel, 1)
	gw := NewGateway(func(ch *ipc.Channel) {
		channels <- ch
	})
	conn := dialGateway(t, gw)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var ch *ipc.Channel
	select {
	case ch = <-channels:
	case <-ctx.Done():
		t.Fatal("gateway never announced the channel")
	}

	require.NoError(t, ch.Send("window-list", []string{"w1", "w2"}))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var env ipc.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "window-list", env.Type)
	assert.JSONEq(t, `["w1","w2"]`, string(env.Payload))
}
