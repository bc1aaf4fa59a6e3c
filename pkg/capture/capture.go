// Package capture bridges a hardware audio input to a sequence of
// transmittable chunks. The device itself sits behind the Device interface
// so the pipeline runs against real microphones, piped PCM, or test fakes
// alike.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State of a capture attempt.
type State int

const (
	Idle State = iota
	AwaitingPermission
	Capturing
	Stopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingPermission:
		return "awaiting_permission"
	case Capturing:
		return "capturing"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Sentinel errors.
var (
	// ErrPermissionDenied means the user or OS refused microphone
	// access. Terminal for the current attempt.
	ErrPermissionDenied = errors.New("capture: microphone permission denied")

	// ErrUnavailable means no usable audio input device exists.
	ErrUnavailable = errors.New("capture: no audio input device")

	// ErrBusy is returned by Start while a capture is already running.
	ErrBusy = errors.New("capture: already capturing")
)

// Device is the hardware-facing side of audio capture.
type Device interface {
	// RequestAccess asks the user/OS for microphone permission. Returns
	// ErrPermissionDenied (possibly wrapped) on refusal.
	RequestAccess(ctx context.Context) error

	// Open acquires the input device and begins buffering audio.
	// Returns ErrUnavailable (possibly wrapped) when no input exists.
	Open(ctx context.Context) (Source, error)
}

// Source produces encoded audio from an acquired device.
type Source interface {
	// ReadChunk returns the next encoded audio chunk, blocking until
	// one is available.
	ReadChunk() ([]byte, error)

	// Close releases the device.
	Close() error
}

// Sender receives produced chunks for transmission. stream.Channel
// satisfies this.
type Sender interface {
	Send(chunk []byte) error
}

// DefaultInterval is the chunk production cadence.
const DefaultInterval = 200 * time.Millisecond

// Capture drives one microphone-capture attempt. Permission is requested
// at most once per attempt: after a grant, repeated calls succeed without
// re-prompting; after a denial, they fail without re-prompting until
// Stop ends the attempt.
type Capture struct {
	device   Device
	interval time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	state   State
	granted bool
	denied  error // cached denial for this attempt
	src     Source
	stop    chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Capture.
type Option func(*Capture)

// WithInterval sets the chunk cadence. Defaults to DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(c *Capture) { c.interval = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Capture) { c.log = l }
}

// New creates a Capture over the given device.
func New(device Device, opts ...Option) *Capture {
	c := &Capture{
		device:   device,
		interval: DefaultInterval,
		log:      slog.Default(),
		state:    Idle,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current capture state.
func (c *Capture) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RequestPermission asks for microphone access. Idempotent per attempt.
func (c *Capture) RequestPermission(ctx context.Context) error {
	c.mu.Lock()
	if c.granted {
		c.mu.Unlock()
		return nil
	}
	if c.denied != nil {
		err := c.denied
		c.mu.Unlock()
		return err
	}
	if c.state == Idle || c.state == Stopped {
		c.state = AwaitingPermission
	}
	c.mu.Unlock()

	err := c.device.RequestAccess(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if c.state == AwaitingPermission {
			c.state = Idle
		}
		c.denied = err
		return err
	}
	c.granted = true
	if c.state == AwaitingPermission {
		c.state = Idle
	}
	return nil
}

// Start acquires the device and begins producing chunks at the configured
// cadence, forwarding each to dest. The destination may still be opening;
// it drops what it cannot transmit. On any failure the device is released
// before Start returns.
func (c *Capture) Start(ctx context.Context, dest Sender) error {
	c.mu.Lock()
	if c.state == Capturing {
		c.mu.Unlock()
		return ErrBusy
	}
	c.mu.Unlock()

	src, err := c.device.Open(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state == Capturing {
		// Lost the race to a concurrent Start.
		c.mu.Unlock()
		src.Close()
		return ErrBusy
	}
	c.src = src
	c.stop = make(chan struct{})
	c.state = Capturing
	stop := c.stop
	c.mu.Unlock()

	c.wg.Add(1)
	go c.produce(src, dest, stop)
	return nil
}

// produce runs the chunk loop until stop is requested or the source fails.
func (c *Capture) produce(src Source, dest Sender, stop chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		chunk, err := src.ReadChunk()
		if err != nil {
			c.log.Warn("capture: read failed, halting", "err", err)
			return
		}

		// Stop may have been requested while the read was in flight;
		// such a chunk must never be transmitted.
		select {
		case <-stop:
			return
		default:
		}

		if err := dest.Send(chunk); err != nil {
			// The transport reports its own loss; capture keeps
			// running so the user decides what to do.
			c.log.Warn("capture: send failed", "err", err)
		}
	}
}

// Stop halts capture and releases the device. Safe to call any number of
// times from any state; the device is released before Stop returns. Stop
// also ends the current permission attempt, so a later attempt may prompt
// again.
func (c *Capture) Stop() {
	c.mu.Lock()
	src := c.src
	stop := c.stop
	wasCapturing := c.state == Capturing
	c.state = Stopped
	c.src = nil
	c.denied = nil
	c.mu.Unlock()

	if wasCapturing && stop != nil {
		close(stop)
	}
	// Closing the source unblocks a ReadChunk in flight; Source
	// implementations must tolerate Close during a blocked read.
	if src != nil {
		src.Close()
	}
	c.wg.Wait()
}
