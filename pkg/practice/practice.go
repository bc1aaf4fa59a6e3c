// Package practice implements the practice-side record keeping for therapy
// sessions: session CRUD, streaming-channel grants, and transcript
// persistence. It backs the session-record collaborator and the saved
// transcript view consumed by the live pipeline.
//
// Records are msgpack-encoded in a kv.Store and scoped per tenant.
package practice

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/attunehealth/scribe/pkg/jsontime"
	"github.com/attunehealth/scribe/pkg/kv"
	"github.com/attunehealth/scribe/pkg/session"
	"github.com/attunehealth/scribe/pkg/transcript"
)

// Sentinel errors.
var (
	// ErrNotFound means no session exists with the given id.
	ErrNotFound = errors.New("practice: session not found")

	// ErrNotStartable means the session's status rules out going live.
	ErrNotStartable = errors.New("practice: session not startable")
)

// Store keeps all tenants' practice records in one kv store.
type Store struct {
	db      kv.Store
	baseURL string

	now func() time.Time
}

// New creates a Store. baseURL is the websocket base under which streaming
// channel URLs are issued, e.g. "ws://localhost:8000/v1".
func New(db kv.Store, baseURL string) *Store {
	return &Store{db: db, baseURL: baseURL, now: time.Now}
}

// Tenant scopes record operations to one tenant. The returned value
// implements session.Records and transcript.Store.
func (s *Store) Tenant(id string) *Tenant {
	return &Tenant{s: s, id: id}
}

// Tenant is a tenant-scoped view of the practice records.
type Tenant struct {
	s  *Store
	id string
}

func (t *Tenant) sessionKey(id string) kv.Key {
	return kv.Key{"session", t.id, id}
}

func (t *Tenant) transcriptKey(id string) kv.Key {
	return kv.Key{"transcript", t.id, id}
}

// CreateParams are the caller-supplied fields of a new session.
type CreateParams struct {
	ClientID    string
	TherapistID string
	StartAt     time.Time
	LiveAssist  bool
}

// CreateSession stores a new session in the scheduled state.
func (t *Tenant) CreateSession(ctx context.Context, p CreateParams) (*session.Session, error) {
	now := t.s.now()
	sess := &session.Session{
		ID:          uuid.NewString(),
		TenantID:    t.id,
		ClientID:    p.ClientID,
		TherapistID: p.TherapistID,
		Status:      session.StatusScheduled,
		StartAt:     p.StartAt,
		LiveAssist:  p.LiveAssist,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// GetSession loads one session.
func (t *Tenant) GetSession(ctx context.Context, id string) (*session.Session, error) {
	data, err := t.s.db.Get(ctx, t.sessionKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var sess session.Session
	if err := msgpack.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("practice: decode session %s: %w", id, err)
	}
	return &sess, nil
}

// ListFilter narrows and bounds ListSessions.
type ListFilter struct {
	// Status filters by lifecycle state when non-zero.
	Status session.Status

	// Limit bounds the result; 0 means no bound.
	Limit int
}

// ListSessions returns the tenant's sessions, most recent start first.
func (t *Tenant) ListSessions(ctx context.Context, f ListFilter) ([]*session.Session, error) {
	var out []*session.Session
	for e, err := range t.s.db.List(ctx, kv.Key{"session", t.id}) {
		if err != nil {
			return nil, err
		}
		var sess session.Session
		if err := msgpack.Unmarshal(e.Value, &sess); err != nil {
			return nil, fmt.Errorf("practice: decode session %s: %w", e.Key, err)
		}
		if f.Status != session.StatusUnknown && sess.Status != f.Status {
			continue
		}
		out = append(out, &sess)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartAt.After(out[j].StartAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// CancelSession marks a session cancelled. Completed sessions stay
// completed.
func (t *Tenant) CancelSession(ctx context.Context, id string) (*session.Session, error) {
	sess, err := t.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status == session.StatusCompleted {
		return nil, fmt.Errorf("practice: session %s already completed", id)
	}
	sess.Status = session.StatusCancelled
	sess.UpdatedAt = t.s.now()
	if err := t.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Start implements session.Records: it issues a streaming channel grant
// bound to the session and marks the record in_progress. Reissuing a grant
// for a session that is already in_progress is allowed, so a client whose
// start attempt failed midway can retry.
func (t *Tenant) Start(ctx context.Context, sessionID string) (session.Grant, error) {
	sess, err := t.GetSession(ctx, sessionID)
	if err != nil {
		return session.Grant{}, err
	}
	if sess.Status != session.StatusScheduled && sess.Status != session.StatusInProgress {
		return session.Grant{}, fmt.Errorf("%w: status %s", ErrNotStartable, sess.Status)
	}

	sess.Status = session.StatusInProgress
	sess.LiveAssist = true
	sess.UpdatedAt = t.s.now()
	if err := t.save(ctx, sess); err != nil {
		return session.Grant{}, err
	}

	token := uuid.NewString()
	q := url.Values{}
	q.Set("session_id", sessionID)
	q.Set("token", token)
	return session.Grant{
		ChannelURL: t.s.baseURL + "/rt/audio?" + q.Encode(),
		Token:      token,
	}, nil
}

// storedSegment is the persisted form of one finalized utterance.
type storedSegment struct {
	Index     int       `msgpack:"index"`
	Text      string    `msgpack:"text"`
	Speaker   *int      `msgpack:"speaker,omitempty"`
	Timestamp time.Time `msgpack:"timestamp"`
}

// Complete implements session.Records: it persists the finalized
// transcript and the session's final state atomically and returns the
// stored record.
func (t *Tenant) Complete(ctx context.Context, sessionID string, finals []transcript.Segment) (*session.Session, error) {
	sess, err := t.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := t.s.now()
	sess.Status = session.StatusCompleted
	sess.EndAt = &now
	sess.LiveAssist = false
	sess.UpdatedAt = now
	if len(finals) > 0 {
		sess.TranscriptRef = "/sessions/" + sessionID + "/transcript"
	}

	sessData, err := msgpack.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("practice: encode session %s: %w", sessionID, err)
	}

	entries := []kv.Entry{{Key: t.sessionKey(sessionID), Value: sessData}}
	if len(finals) > 0 {
		stored := make([]storedSegment, len(finals))
		for i, seg := range finals {
			stored[i] = storedSegment{
				Index:     seg.Index,
				Text:      seg.Text,
				Speaker:   seg.Speaker,
				Timestamp: seg.Timestamp,
			}
		}
		trData, err := msgpack.Marshal(stored)
		if err != nil {
			return nil, fmt.Errorf("practice: encode transcript %s: %w", sessionID, err)
		}
		entries = append(entries, kv.Entry{Key: t.transcriptKey(sessionID), Value: trData})
	}

	if err := t.s.db.BatchSet(ctx, entries); err != nil {
		return nil, err
	}
	return sess, nil
}

// SetSummary stores a generated SOAP note on the session record.
func (t *Tenant) SetSummary(ctx context.Context, sessionID string, sum session.Summary) (*session.Session, error) {
	sess, err := t.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.Summary = &sum
	sess.UpdatedAt = t.s.now()
	if err := t.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SavedTranscript implements transcript.Store.
func (t *Tenant) SavedTranscript(ctx context.Context, sessionID string) (transcript.Saved, error) {
	data, err := t.s.db.Get(ctx, t.transcriptKey(sessionID))
	if errors.Is(err, kv.ErrNotFound) {
		return transcript.Saved{HasTranscript: false}, nil
	}
	if err != nil {
		return transcript.Saved{}, err
	}

	var stored []storedSegment
	if err := msgpack.Unmarshal(data, &stored); err != nil {
		return transcript.Saved{}, fmt.Errorf("practice: decode transcript %s: %w", sessionID, err)
	}

	segments := make([]transcript.SavedSegment, len(stored))
	for i, seg := range stored {
		ts := jsontime.FromTime(seg.Timestamp)
		segments[i] = transcript.SavedSegment{
			Index:     seg.Index,
			Text:      seg.Text,
			Speaker:   seg.Speaker,
			Timestamp: &ts,
		}
	}
	return transcript.Saved{HasTranscript: true, Segments: segments}, nil
}

func (t *Tenant) save(ctx context.Context, sess *session.Session) error {
	data, err := msgpack.Marshal(sess)
	if err != nil {
		return fmt.Errorf("practice: encode session %s: %w", sess.ID, err)
	}
	return t.s.db.Set(ctx, t.sessionKey(sess.ID), data)
}
