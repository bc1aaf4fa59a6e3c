package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/attunehealth/scribe/pkg/capture"
	"github.com/attunehealth/scribe/pkg/stream"
	"github.com/attunehealth/scribe/pkg/transcript"
)

// Sentinel errors surfaced by the controller.
var (
	// ErrNotScheduled is returned by Start when the session is not in
	// the scheduled state. A second Start while live fails with this.
	ErrNotScheduled = errors.New("session: not in scheduled state")

	// ErrCompletion means persisting the finalized session failed. The
	// session stays in_progress so Complete can be retried.
	ErrCompletion = errors.New("session: complete failed")
)

// Grant is a streaming destination bound to exactly one session, valid
// only while that session is live.
type Grant struct {
	ChannelURL string
	Token      string
}

// Records is the external session-record collaborator.
type Records interface {
	// Start issues a streaming channel grant for the session.
	Start(ctx context.Context, sessionID string) (Grant, error)

	// Complete persists the session's final state together with its
	// finalized transcript and returns the stored record.
	Complete(ctx context.Context, sessionID string, finals []transcript.Segment) (*Session, error)
}

// Conduit is the duplex-channel surface the controller drives.
// *stream.Channel satisfies it.
type Conduit interface {
	Send(chunk []byte) error
	Subscribe() (stream.Subscription, error)
	Disconnected() <-chan struct{}
	Err() error
	Close() error
}

// DialFunc opens a Conduit to the given channel URL.
type DialFunc func(ctx context.Context, url string) (Conduit, error)

// dialChannel is the default DialFunc over stream.Channel.
func dialChannel(log *slog.Logger) DialFunc {
	return func(ctx context.Context, url string) (Conduit, error) {
		ch := stream.New(stream.WithLogger(log))
		if err := ch.Open(ctx, url); err != nil {
			return nil, err
		}
		return ch, nil
	}
}

// Controller orchestrates one session's lifecycle. It exclusively owns the
// audio capture and the streaming channel for the session's lifetime; no
// other component calls their mutating operations.
type Controller struct {
	sessionID string
	records   Records
	cap       *capture.Capture
	asm       *transcript.Assembler
	dial      DialFunc
	archive   func(sessionID string) (io.WriteCloser, error)
	log       *slog.Logger

	mu           sync.Mutex
	status       Status
	ch           Conduit
	rec          io.WriteCloser
	pumping      chan struct{} // closed when the event pump has drained
	disconnected bool

	updates chan struct{}
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithDial overrides how the streaming channel is opened.
func WithDial(d DialFunc) ControllerOption {
	return func(c *Controller) { c.dial = d }
}

// WithControllerLogger sets the logger. Defaults to slog.Default().
func WithControllerLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.log = l }
}

// WithAudioArchive tees captured audio into a per-session recording opened
// through the given function. Archive failures are logged, never fatal.
func WithAudioArchive(open func(sessionID string) (io.WriteCloser, error)) ControllerOption {
	return func(c *Controller) { c.archive = open }
}

// NewController creates a Controller for one scheduled session. The device
// is the microphone side of the pipeline; records is the session-record
// collaborator.
func NewController(sessionID string, records Records, device capture.Device, opts ...ControllerOption) *Controller {
	c := &Controller{
		sessionID: sessionID,
		records:   records,
		asm:       transcript.NewAssembler(),
		status:    StatusScheduled,
		log:       slog.Default(),
		updates:   make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(c)
	}
	if c.dial == nil {
		c.dial = dialChannel(c.log)
	}
	c.cap = capture.New(device, capture.WithLogger(c.log))
	return c
}

// Status returns the controller's view of the session status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Transcript is the live read model for the UI.
func (c *Controller) Transcript() *transcript.Assembler {
	return c.asm
}

// ConnectionLost reports whether the channel dropped mid-session. Capture
// and transcript state are left intact when it does.
func (c *Controller) ConnectionLost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// Updates signals after every applied event and on connection transitions,
// coalescing bursts. UIs re-render on receipt.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// Start brings the session live: permission, channel grant, channel open,
// capture start, then the status transition. Any failing step leaves the
// status at scheduled, releases whatever was acquired, and surfaces that
// step's error.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status != StatusScheduled {
		st := c.status
		c.mu.Unlock()
		return fmt.Errorf("%w: status %s", ErrNotScheduled, st)
	}
	c.mu.Unlock()

	// Permission first: a denied prompt must not leave a dangling
	// channel, so the grant is requested only after the grant of access.
	if err := c.cap.RequestPermission(ctx); err != nil {
		return err
	}

	grant, err := c.records.Start(ctx, c.sessionID)
	if err != nil {
		return fmt.Errorf("session %s: channel grant: %w", c.sessionID, err)
	}

	ch, err := c.dial(ctx, grant.ChannelURL)
	if err != nil {
		return err
	}

	sub, err := ch.Subscribe()
	if err != nil {
		ch.Close()
		return err
	}

	dest := capture.Sender(ch)
	var rec io.WriteCloser
	if c.archive != nil {
		if rec, err = c.archive(c.sessionID); err != nil {
			c.log.Warn("session: audio archive unavailable", "session", c.sessionID, "err", err)
			rec = nil
		} else {
			dest = &teeSender{next: ch, w: rec, log: c.log}
		}
	}

	if err := c.cap.Start(ctx, dest); err != nil {
		ch.Close()
		if rec != nil {
			rec.Close()
		}
		return err
	}

	pumping := make(chan struct{})
	c.mu.Lock()
	c.ch = ch
	c.rec = rec
	c.pumping = pumping
	c.disconnected = false
	c.status = StatusInProgress
	c.mu.Unlock()

	go c.pump(sub, pumping)
	go c.watch(ch)

	c.log.Info("session: live", "session", c.sessionID)
	return nil
}

// pump applies inbound events to the assembler in delivery order. A single
// goroutine per session keeps event processing serialized and
// non-reentrant. done is closed once every delivered event has been
// applied.
func (c *Controller) pump(sub stream.Subscription, done chan struct{}) {
	defer close(done)
	for ev := range sub.Events() {
		c.asm.Apply(ev)
		c.notify()
	}
}

// watch reflects a mid-session transport loss. Capture keeps running and
// the transcript is left as-is; the user decides whether to stop.
func (c *Controller) watch(ch Conduit) {
	<-ch.Disconnected()
	c.mu.Lock()
	lost := c.ch == ch && ch.Err() != nil
	if lost {
		c.disconnected = true
	}
	c.mu.Unlock()
	if lost {
		c.log.Warn("session: channel disconnected", "session", c.sessionID, "err", ch.Err())
		c.notify()
	}
}

// Stop halts recording without ending the session record: capture stops,
// the channel closes, the status stays in_progress. Events the channel
// delivered before the close are applied to the transcript before Stop
// returns. Idempotent and safe in any state.
func (c *Controller) Stop() {
	c.cap.Stop()

	c.mu.Lock()
	ch := c.ch
	rec := c.rec
	pumping := c.pumping
	c.ch = nil
	c.rec = nil
	c.pumping = nil
	c.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	if rec != nil {
		rec.Close()
	}
	// Closing the channel ends the subscription; wait for the pump to
	// drain it so no delivered final is missing from Finals().
	if pumping != nil {
		<-pumping
	}
}

// Complete stops recording, hands the finalized transcript to the records
// collaborator, and transitions the session to completed. On a persist
// failure the error wraps ErrCompletion, capture and channel stay stopped,
// and the status remains in_progress so Complete can be retried.
func (c *Controller) Complete(ctx context.Context) (*Session, error) {
	c.Stop()

	rec, err := c.records.Complete(ctx, c.sessionID, c.asm.Finals())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}

	c.mu.Lock()
	c.status = StatusCompleted
	c.mu.Unlock()

	c.log.Info("session: completed", "session", c.sessionID, "segments", len(c.asm.Finals()))
	return rec, nil
}

// teeSender forwards chunks to the channel after writing them to the audio
// archive.
type teeSender struct {
	next capture.Sender
	w    io.Writer
	log  *slog.Logger
}

func (t *teeSender) Send(chunk []byte) error {
	if _, err := t.w.Write(chunk); err != nil {
		// Archive loss never interrupts the live stream.
		t.log.Warn("session: audio archive write failed", "err", err)
	}
	return t.next.Send(chunk)
}
