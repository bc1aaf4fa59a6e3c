// Package transcript assembles the inbound event stream of a live therapy
// session into a consistent transcript view: an append-only sequence of
// finalized segments plus at most one in-flight interim fragment.
package transcript

import (
	"sync"
	"time"
)

// Event kinds recognized on the wire. Frames with any other type are
// ignored by the assembler.
const (
	EventTranscript = "transcript"
)

// Event is one server-to-client frame from the streaming backend.
type Event struct {
	// Type is the event discriminator. Only EventTranscript is acted on.
	Type string `json:"type"`

	// Text is the transcribed fragment, interim or final.
	Text string `json:"text"`

	// IsFinal marks the fragment as committed. A final fragment will not
	// be revised by the backend.
	IsFinal bool `json:"is_final"`

	// Speaker is an opaque per-session voice tag from the backend.
	// Nil when diarization info is absent. Tags carry no identity across
	// sessions.
	Speaker *int `json:"speaker,omitempty"`
}

// Segment is one committed utterance of a session transcript.
type Segment struct {
	// Index is 0-based and strictly increasing per session.
	Index int `json:"index"`

	Text string `json:"text"`

	// Speaker mirrors Event.Speaker at finalization time.
	Speaker *int `json:"speaker,omitempty"`

	// Timestamp is the local capture time of the final event.
	Timestamp time.Time `json:"timestamp"`
}

// Interim is the single in-flight, still-revisable fragment. It is replaced
// wholesale by every interim event and cleared by any final event.
type Interim struct {
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Assembler maintains the canonical in-memory transcript of one live
// session. Events must be applied in delivery order; Apply never reorders
// or coalesces. Finalized segments are append-only and immutable.
//
// Apply is not reentrant; the caller feeds events from a single receive
// loop. Readers may inspect the assembler concurrently.
type Assembler struct {
	mu      sync.Mutex
	finals  []Segment
	interim *Interim

	now func() time.Time
}

// NewAssembler creates an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{now: time.Now}
}

// Apply folds one inbound event into the transcript. Events with an
// unrecognized type are dropped. A non-final transcript event replaces the
// interim overlay; a final one appends a segment and unconditionally clears
// the overlay, even when the overlay text differs (the final event is
// authoritative).
func (a *Assembler) Apply(ev Event) {
	if ev.Type != EventTranscript {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if !ev.IsFinal {
		a.interim = &Interim{Text: ev.Text, ReceivedAt: a.now()}
		return
	}
	a.finals = append(a.finals, Segment{
		Index:     len(a.finals),
		Text:      ev.Text,
		Speaker:   ev.Speaker,
		Timestamp: a.now(),
	})
	a.interim = nil
}

// Finals returns a copy of the finalized segments in index order.
func (a *Assembler) Finals() []Segment {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Segment, len(a.finals))
	copy(out, a.finals)
	return out
}

// Interim returns the current overlay, if any.
func (a *Assembler) Interim() (Interim, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.interim == nil {
		return Interim{}, false
	}
	return *a.interim, true
}

// Line is one displayable row of the live view.
type Line struct {
	Text    string
	Speaker *int

	// Interim marks the trailing provisional row. At most the last line
	// of a view is interim.
	Interim bool
}

// Lines renders the live read model: finalized segments in index order
// followed by the interim fragment when present.
func (a *Assembler) Lines() []Line {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Line, 0, len(a.finals)+1)
	for _, s := range a.finals {
		out = append(out, Line{Text: s.Text, Speaker: s.Speaker})
	}
	if a.interim != nil {
		out = append(out, Line{Text: a.interim.Text, Interim: true})
	}
	return out
}
