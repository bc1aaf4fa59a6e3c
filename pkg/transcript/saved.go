package transcript

import (
	"context"

	"github.com/attunehealth/scribe/pkg/jsontime"
)

// SavedSegment is one persisted utterance as served by the transcript store.
type SavedSegment struct {
	Index     int             `json:"index"`
	Text      string          `json:"text"`
	Speaker   *int            `json:"speaker,omitempty"`
	Timestamp *jsontime.Milli `json:"timestamp,omitempty"`
}

// Saved is the read-only persisted transcript of a session. It is a pure
// display alternative to the live view and is never merged with live state.
type Saved struct {
	HasTranscript bool           `json:"has_transcript"`
	Segments      []SavedSegment `json:"segments"`
}

// Store reads previously persisted transcripts. Implementations live
// server-side; the assembler consults them only for sessions that are not
// currently live.
type Store interface {
	SavedTranscript(ctx context.Context, sessionID string) (Saved, error)
}
