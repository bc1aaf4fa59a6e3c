// Package session holds the therapy-session model and the lifecycle
// controller that drives a live transcription session through
// scheduled → in_progress → completed.
package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a Session.
type Status int

const (
	StatusUnknown Status = iota
	StatusScheduled
	StatusInProgress
	StatusCompleted
	StatusCancelled
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusScheduled:
		return "scheduled"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseStatus parses a status name as used on the wire and in stores.
func ParseStatus(name string) (Status, error) {
	switch name {
	case "scheduled":
		return StatusScheduled, nil
	case "in_progress":
		return StatusInProgress, nil
	case "completed":
		return StatusCompleted, nil
	case "cancelled":
		return StatusCancelled, nil
	default:
		return StatusUnknown, fmt.Errorf("session: unknown status %q", name)
	}
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	st, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Summary is the structured SOAP note attached to a completed session.
type Summary struct {
	Subjective string `json:"subjective" msgpack:"subjective"`
	Objective  string `json:"objective" msgpack:"objective"`
	Assessment string `json:"assessment" msgpack:"assessment"`
	Plan       string `json:"plan" msgpack:"plan"`
}

// Session is one live-transcription unit of work between a client and a
// therapist. Audio capture and the streaming channel may be open only while
// Status is in_progress.
type Session struct {
	ID          string `json:"id" msgpack:"id"`
	TenantID    string `json:"tenant_id" msgpack:"tenant_id"`
	ClientID    string `json:"client_id" msgpack:"client_id"`
	TherapistID string `json:"therapist_id" msgpack:"therapist_id"`

	Status Status `json:"status" msgpack:"status"`

	StartAt time.Time  `json:"start_at" msgpack:"start_at"`
	EndAt   *time.Time `json:"end_at,omitempty" msgpack:"end_at,omitempty"`

	// TranscriptRef points at the persisted transcript, empty until the
	// session completes with one.
	TranscriptRef string `json:"transcript_ref,omitempty" msgpack:"transcript_ref,omitempty"`

	Summary *Summary `json:"soap_summary,omitempty" msgpack:"soap_summary,omitempty"`

	// LiveAssist marks real-time transcription as enabled for this
	// session.
	LiveAssist bool `json:"live_assist_enabled" msgpack:"live_assist_enabled"`

	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at"`
}
