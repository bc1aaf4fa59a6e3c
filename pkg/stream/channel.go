// Package stream owns the persistent duplex connection between the client
// and the transcription backend for one live session. Outbound frames carry
// encoded audio; inbound frames carry JSON transcript events.
//
// Exactly one Channel exists per in-progress session. The channel delivers
// inbound events in arrival order through a subscribe-once Subscription and
// reports both clean closes and transport errors as a single disconnected
// transition.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/attunehealth/scribe/pkg/transcript"
)

// State is the connection state of a Channel.
type State int

const (
	Unopened State = iota
	Connecting
	Open
	Closed
	Errored
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Unopened:
		return "unopened"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Sentinel errors.
var (
	// ErrConnect is returned by Open when the channel fails to reach the
	// open state. There is no automatic retry; the caller surfaces it.
	ErrConnect = errors.New("stream: channel connect failed")

	// ErrDisconnected is recorded when an open channel is lost
	// abnormally mid-session.
	ErrDisconnected = errors.New("stream: channel disconnected")

	// ErrSubscribed is returned by Subscribe after the first call.
	ErrSubscribed = errors.New("stream: already subscribed")
)

// Subscription delivers inbound transcript events to a single consumer in
// the exact order the transport delivered them.
type Subscription interface {
	// Events is the inbound event sequence. The channel is closed once
	// the transport disconnects; events buffered before the disconnect
	// are still delivered.
	Events() <-chan transcript.Event

	// Cancel detaches the consumer. Further events are discarded.
	Cancel()
}

type subscription struct {
	ch     chan transcript.Event
	cancel chan struct{}
	once   sync.Once
}

func (s *subscription) Events() <-chan transcript.Event { return s.ch }

func (s *subscription) Cancel() {
	s.once.Do(func() { close(s.cancel) })
}

// stopFrame is the control message sent on clean shutdown so the backend
// can flush and finalize pending audio.
var stopFrame = []byte(`{"type":"stop"}`)

// Channel is a websocket-backed duplex transport. The zero value is not
// usable; create one with New and establish it with Open.
type Channel struct {
	dialer *websocket.Dialer
	log    *slog.Logger

	mu    sync.Mutex
	state State
	conn  *websocket.Conn
	sub   *subscription

	done       chan struct{} // closed on any post-open termination
	closeOnce  sync.Once
	finishOnce sync.Once
	err        error // abnormal termination cause, nil on clean close
}

// Option configures a Channel.
type Option func(*Channel)

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) { c.log = l }
}

// New creates an unopened Channel.
func New(opts ...Option) *Channel {
	c := &Channel{
		dialer: websocket.DefaultDialer,
		log:    slog.Default(),
		state:  Unopened,
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open establishes the connection to the given channel URL. On failure the
// channel transitions to Errored and the returned error wraps ErrConnect.
// Open does not retry and applies no timeout of its own; bound the attempt
// through ctx.
func (c *Channel) Open(ctx context.Context, url string) error {
	c.mu.Lock()
	if c.state != Unopened {
		c.mu.Unlock()
		return fmt.Errorf("%w: open in state %s", ErrConnect, c.state)
	}
	c.state = Connecting
	c.mu.Unlock()

	conn, resp, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		c.mu.Lock()
		c.state = Errored
		c.err = fmt.Errorf("%w: %v", ErrConnect, err)
		c.mu.Unlock()
		if resp != nil {
			return fmt.Errorf("%w: %v (status=%s)", ErrConnect, err, resp.Status)
		}
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = Open
	c.mu.Unlock()

	go c.receiveLoop(conn)
	return nil
}

// Send transmits one audio chunk. It is a no-op unless the channel is open:
// chunks produced while connecting or after close are dropped, never
// buffered.
func (c *Channel) Send(chunk []byte) error {
	c.mu.Lock()
	if c.state != Open {
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.mu.Unlock()

	if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		c.disconnect(fmt.Errorf("%w: write: %v", ErrDisconnected, err))
		return err
	}
	return nil
}

// Subscribe attaches the single event consumer. The second call returns
// ErrSubscribed.
func (c *Channel) Subscribe() (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		return nil, ErrSubscribed
	}
	sub := &subscription{
		// Bounded on purpose: a consumer that stops draining blocks the
		// read loop instead of growing the queue without limit. The buffer
		// absorbs bursts between reads of an always-draining consumer.
		ch:     make(chan transcript.Event, 100),
		cancel: make(chan struct{}),
	}
	if c.state == Closed || c.state == Errored {
		// The transport is already gone; hand back a drained sequence.
		close(sub.ch)
		return sub, nil
	}
	c.sub = sub
	return sub, nil
}

// Close transitions the channel to Closed. It is idempotent and safe to
// call in any state. Events read from the transport before the close are
// still delivered to the subscriber.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		if c.state != Errored {
			c.state = Closed
		}
		c.mu.Unlock()

		if conn != nil {
			// Best effort: tell the backend to flush, then close.
			conn.WriteMessage(websocket.TextMessage, stopFrame)
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		}
		c.finish()
	})
	return nil
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Disconnected is closed on any post-open termination, clean or abnormal.
// Consumers render both the same way; Err distinguishes them.
func (c *Channel) Disconnected() <-chan struct{} {
	return c.done
}

// Err returns the abnormal termination cause, or nil after a clean close.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// disconnect records an abnormal post-open loss and tears the channel down.
func (c *Channel) disconnect(cause error) {
	c.mu.Lock()
	if c.state == Closed || c.state == Errored {
		c.mu.Unlock()
		return
	}
	c.state = Errored
	c.err = cause
	conn := c.conn
	c.mu.Unlock()

	c.log.Warn("stream: disconnected", "err", cause)
	if conn != nil {
		conn.Close()
	}
	c.finish()
}

// finish signals termination once.
func (c *Channel) finish() {
	c.finishOnce.Do(func() { close(c.done) })
}

// receiveLoop reads inbound frames until the transport goes away and
// forwards recognized events to the subscriber in arrival order.
func (c *Channel) receiveLoop(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		sub := c.sub
		c.mu.Unlock()
		if sub != nil {
			close(sub.ch)
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.state == Closed
			c.mu.Unlock()
			if closed || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				// Clean shutdown, not an error.
				c.mu.Lock()
				if c.state != Errored {
					c.state = Closed
				}
				c.mu.Unlock()
				c.finish()
				return
			}
			c.disconnect(fmt.Errorf("%w: read: %v", ErrDisconnected, err))
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var ev transcript.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.log.Debug("stream: dropping malformed frame", "err", err)
			continue
		}
		// Unknown kinds pass through to the assembler, which ignores
		// them; reserved kinds are never fatal here.

		c.mu.Lock()
		sub := c.sub
		c.mu.Unlock()
		if sub == nil {
			continue
		}
		select {
		case sub.ch <- ev:
		case <-sub.cancel:
			// Consumer detached; keep reading so disconnects are
			// still observed, drop the events.
			c.mu.Lock()
			c.sub = nil
			c.mu.Unlock()
		}
	}
}
