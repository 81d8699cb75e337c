// Package remote exposes the IPC envelope protocol over WebSocket so
// external tooling can talk to a running application the same way embedded
// webview content does. Each accepted connection gets its own ipc.Channel.
package remote

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/skylight-app/skylight/internal/logging"
	"github.com/skylight-app/skylight/ipc"
)

// maxMessageBytes bounds a single inbound WebSocket frame.
const maxMessageBytes = 4 << 20

// writeTimeout bounds one outbound frame write.
const writeTimeout = 10 * time.Second

// pingInterval is how often idle connections are probed.
const pingInterval = 30 * time.Second

// ChannelFunc configures a freshly established channel, typically by
// registering handlers with On. It runs before any inbound message is
// processed.
type ChannelFunc func(ch *ipc.Channel)

// Gateway is an http.Handler that upgrades requests to WebSocket and bridges
// each connection onto an IPC channel.
type Gateway struct {
	onChannel ChannelFunc
	logger    zerolog.Logger

	// OriginPatterns is passed through to the WebSocket accept handshake.
	// Empty means same-origin only.
	OriginPatterns []string
}

// NewGateway creates a gateway. onChannel is invoked once per connection and
// must not be nil.
func NewGateway(onChannel ChannelFunc) *Gateway {
	return &Gateway{
		onChannel: onChannel,
		logger:    logging.Component("remote"),
	}
}

// SetLogger replaces the gateway logger.
func (g *Gateway) SetLogger(l zerolog.Logger) {
	g.logger = l
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.OriginPatterns,
	})
	if err != nil {
		g.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket accept failed")
		return
	}
	g.Bridge(r.Context(), conn)
}

// wsMessage holds a single inbound WebSocket message.
type wsMessage struct {
	typ  websocket.MessageType
	data []byte
}

// Bridge runs the message loop between conn and a new IPC channel. It blocks
// until the connection closes or ctx is cancelled, then closes both sides.
func (g *Gateway) Bridge(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageBytes)

	ch := ipc.New(func(raw []byte) error {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		return conn.Write(writeCtx, websocket.MessageText, raw)
	})
	ch.SetLogger(g.logger)
	g.onChannel(ch)

	defer func() {
		ch.Close()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	// Reader goroutine: reads from the connection into a channel so the
	// select below can also service pings and cancellation.
	incoming := make(chan wsMessage, 64)
	go func() {
		defer close(incoming)
		for {
			msgType, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			select {
			case incoming <- wsMessage{typ: msgType, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}()

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case msg, ok := <-incoming:
			if !ok {
				return
			}
			if msg.typ != websocket.MessageText {
				g.logger.Debug().Msg("dropping non-text frame")
				continue
			}
			ch.HandleRaw(msg.data)

		case <-pingTicker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
