// Package ipc implements the asynchronous message-passing layer between a
// webview script context and Go handlers: fire-and-forget sends, correlated
// request/response pairs with timeouts, and type-routed handlers.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skylight-app/skylight/internal/logging"
)

// Envelope is the wire shape of one IPC message. Type is empty only on pure
// responses.
type Envelope struct {
	Type       string          `json:"type,omitempty"`
	ID         string          `json:"id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	IsResponse bool            `json:"isResponse,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Handler serves inbound messages of one type. The returned value is sent
// back as the response payload when the inbound envelope carried a
// correlation id.
type Handler func(payload json.RawMessage) (any, error)

// SendFunc delivers one encoded envelope to the peer.
type SendFunc func(raw []byte) error

// ErrTimeout marks a correlated request that exceeded its deadline. Distinct
// from HandlerError so callers can tell a missing peer from a failing one.
var ErrTimeout = errors.New("ipc: request timed out")

// ErrClosed is returned for operations on a closed channel.
var ErrClosed = errors.New("ipc: channel closed")

// HandlerError carries an error the peer reported in a response envelope.
type HandlerError struct {
	Message string
}

func (e *HandlerError) Error() string { return "ipc: " + e.Message }

// result is one terminal completion of a pending request.
type result struct {
	payload json.RawMessage
	err     error
}

// pendingRequest tracks one in-flight correlated request. It completes at
// most once: response, cancellation, and timeout are mutually exclusive.
type pendingRequest struct {
	done  chan result
	timer *time.Timer
}

// Channel is one bidirectional IPC endpoint. Inbound traffic enters through
// HandleRaw; outbound traffic leaves through the SendFunc.
type Channel struct {
	mu          sync.Mutex
	send        SendFunc
	handlers    map[string]Handler
	pending     map[string]*pendingRequest
	onRaw       func(raw string)
	onUnhandled func(env Envelope)
	closed      bool
	logger      zerolog.Logger
}

// New creates a channel that sends through fn.
func New(fn SendFunc) *Channel {
	return &Channel{
		send:     fn,
		handlers: make(map[string]Handler),
		pending:  make(map[string]*pendingRequest),
		logger:   logging.Component("ipc"),
	}
}

// SetLogger replaces the channel's logger.
func (c *Channel) SetLogger(l zerolog.Logger) {
	c.mu.Lock()
	c.logger = l
	c.mu.Unlock()
}

// On registers the handler for one message type, replacing any previous one.
func (c *Channel) On(msgType string, h Handler) {
	c.mu.Lock()
	c.handlers[msgType] = h
	c.mu.Unlock()
}

// Off removes the handler for one message type.
func (c *Channel) Off(msgType string) {
	c.mu.Lock()
	delete(c.handlers, msgType)
	c.mu.Unlock()
}

// OnRaw registers the subscriber for messages that do not parse as envelopes.
// They are passed through verbatim, not treated as errors.
func (c *Channel) OnRaw(fn func(raw string)) {
	c.mu.Lock()
	c.onRaw = fn
	c.mu.Unlock()
}

// OnUnhandled registers the subscriber for envelopes with no matching pending
// request and no type handler.
func (c *Channel) OnUnhandled(fn func(env Envelope)) {
	c.mu.Lock()
	c.onUnhandled = fn
	c.mu.Unlock()
}

// Send transmits a fire-and-forget message. No reply is expected.
func (c *Channel) Send(msgType string, payload any) error {
	return c.sendEnvelope(Envelope{Type: msgType}, payload)
}

func (c *Channel) sendEnvelope(env Envelope, payload any) error {
	c.mu.Lock()
	closed := c.closed
	send := c.send
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("ipc: encode payload: %w", err)
		}
		env.Payload = raw
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("ipc: encode envelope: %w", err)
	}
	return send(raw)
}

// Request sends a correlated request and blocks until the peer responds, the
// timeout expires, or ctx is cancelled — whichever happens first. Exactly one
// of those completes the request; a response arriving later is dropped.
func (c *Channel) Request(ctx context.Context, msgType string, payload any, timeout time.Duration) (json.RawMessage, error) {
	id := uuid.NewString()
	p := &pendingRequest{done: make(chan result, 1)}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = p
	// The countdown starts at send time. The timer is armed while the lock
	// is held so any completion path, which must take the lock first to find
	// the entry, observes it.
	p.timer = time.AfterFunc(timeout, func() {
		c.complete(id, result{err: fmt.Errorf("%w after %s", ErrTimeout, timeout)})
	})
	c.mu.Unlock()

	if err := c.sendEnvelope(Envelope{Type: msgType, ID: id}, payload); err != nil {
		c.take(id)
		p.timer.Stop()
		return nil, err
	}

	select {
	case res := <-p.done:
		return res.payload, res.err
	case <-ctx.Done():
		if c.take(id) != nil {
			p.timer.Stop()
		}
		return nil, ctx.Err()
	}
}

// take removes and returns the pending request for id, or nil if it already
// reached a terminal state.
func (c *Channel) take(id string) *pendingRequest {
	c.mu.Lock()
	p := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	return p
}

// complete delivers one terminal result to a pending request. A second
// completion for the same id finds no entry and is a no-op.
func (c *Channel) complete(id string, res result) {
	p := c.take(id)
	if p == nil {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.done <- res
}

// HandleRaw processes one inbound message. Input that does not parse as an
// envelope is forwarded to the raw-message subscriber.
func (c *Channel) HandleRaw(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.mu.Lock()
		onRaw := c.onRaw
		c.mu.Unlock()
		if onRaw != nil {
			onRaw(string(raw))
		}
		return
	}

	// Responses are matched against pending requests first. A response for an
	// unknown id (timed out, cancelled) is dropped silently.
	if env.IsResponse && env.ID != "" {
		if env.Error != "" {
			c.complete(env.ID, result{err: &HandlerError{Message: env.Error}})
		} else {
			c.complete(env.ID, result{payload: env.Payload})
		}
		return
	}

	c.mu.Lock()
	handler := c.handlers[env.Type]
	onUnhandled := c.onUnhandled
	c.mu.Unlock()

	if handler == nil {
		if onUnhandled != nil {
			onUnhandled(env)
		} else {
			c.logger.Debug().Str("type", env.Type).Msg("unhandled message")
		}
		return
	}

	go c.invoke(handler, env)
}

// invoke runs one type handler and, when the inbound envelope carried a
// correlation id, sends the response or error envelope back under the same
// id. Handler panics become error envelopes; they never escape the channel.
func (c *Channel) invoke(handler Handler, env Envelope) {
	var (
		out any
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
				c.logger.Error().Str("type", env.Type).Interface("panic", r).Msg("ipc handler panicked")
			}
		}()
		out, err = handler(env.Payload)
	}()

	if env.ID == "" {
		return
	}

	resp := Envelope{ID: env.ID, IsResponse: true}
	if err != nil {
		resp.Error = err.Error()
		if sendErr := c.sendEnvelope(resp, nil); sendErr != nil {
			c.logger.Warn().Err(sendErr).Str("type", env.Type).Msg("failed to send error envelope")
		}
		return
	}
	if sendErr := c.sendEnvelope(resp, out); sendErr != nil {
		c.logger.Warn().Err(sendErr).Str("type", env.Type).Msg("failed to send response envelope")
	}
}

// Close cancels all pending requests with ErrClosed and rejects further use.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()

	for _, p := range pending {
		if p.timer != nil {
			p.timer.Stop()
		}
		p.done <- result{err: ErrClosed}
	}
}
