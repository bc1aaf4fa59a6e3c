package practice

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/attunehealth/scribe/pkg/kv"
	"github.com/attunehealth/scribe/pkg/session"
	"github.com/attunehealth/scribe/pkg/transcript"
)

func testStore(t *testing.T) (*Store, *Tenant) {
	t.Helper()
	s := New(kv.NewMemory(), "ws://localhost:8000/v1")
	return s, s.Tenant("tenant-a")
}

func TestCreateAndGetSession(t *testing.T) {
	ctx := context.Background()
	_, tn := testStore(t)

	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	sess, err := tn.CreateSession(ctx, CreateParams{
		ClientID:    "client-1",
		TherapistID: "therapist-1",
		StartAt:     start,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("expected generated id")
	}
	if sess.Status != session.StatusScheduled {
		t.Fatalf("status = %s, want scheduled", sess.Status)
	}

	got, err := tn.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.ClientID != "client-1" || got.TherapistID != "therapist-1" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.StartAt.Equal(start) {
		t.Fatalf("StartAt = %v, want %v", got.StartAt, start)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	_, tn := testStore(t)
	_, err := tn.GetSession(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListSessionsOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	_, tn := testStore(t)

	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		sess, err := tn.CreateSession(ctx, CreateParams{
			ClientID: "client-1",
			StartAt:  base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		ids = append(ids, sess.ID)
	}
	if _, err := tn.CancelSession(ctx, ids[1]); err != nil {
		t.Fatalf("CancelSession: %v", err)
	}

	all, err := tn.ListSessions(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].StartAt.After(all[i-1].StartAt) {
			t.Fatal("expected most recent start first")
		}
	}

	scheduled, err := tn.ListSessions(ctx, ListFilter{Status: session.StatusScheduled})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(scheduled) != 2 {
		t.Fatalf("scheduled = %d, want 2", len(scheduled))
	}

	limited, err := tn.ListSessions(ctx, ListFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != ids[2] {
		t.Fatalf("limited = %+v, want latest session only", limited)
	}
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	s, tn := testStore(t)

	sess, err := tn.CreateSession(ctx, CreateParams{ClientID: "client-1"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	other := s.Tenant("tenant-b")
	if _, err := other.GetSession(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant get: err = %v, want ErrNotFound", err)
	}
	list, err := other.ListSessions(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("cross-tenant list = %d entries, want 0", len(list))
	}
}

func TestStartIssuesGrant(t *testing.T) {
	ctx := context.Background()
	_, tn := testStore(t)

	sess, err := tn.CreateSession(ctx, CreateParams{ClientID: "client-1"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	grant, err := tn.Start(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if grant.Token == "" {
		t.Fatal("expected a token")
	}
	if !strings.HasPrefix(grant.ChannelURL, "ws://localhost:8000/v1/rt/audio?") {
		t.Fatalf("ChannelURL = %q", grant.ChannelURL)
	}
	if !strings.Contains(grant.ChannelURL, "session_id="+sess.ID) {
		t.Fatalf("ChannelURL %q does not carry the session id", grant.ChannelURL)
	}

	got, err := tn.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != session.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", got.Status)
	}
	if !got.LiveAssist {
		t.Fatal("expected live assist enabled")
	}

	// A retried start on an in_progress session reissues a grant.
	again, err := tn.Start(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Start (retry): %v", err)
	}
	if again.Token == grant.Token {
		t.Fatal("expected a fresh token on reissue")
	}
}

func TestStartRejectsTerminalStates(t *testing.T) {
	ctx := context.Background()
	_, tn := testStore(t)

	sess, err := tn.CreateSession(ctx, CreateParams{ClientID: "client-1"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := tn.CancelSession(ctx, sess.ID); err != nil {
		t.Fatalf("CancelSession: %v", err)
	}
	if _, err := tn.Start(ctx, sess.ID); !errors.Is(err, ErrNotStartable) {
		t.Fatalf("Start on cancelled: err = %v, want ErrNotStartable", err)
	}
}

func speaker(n int) *int { return &n }

func TestCompletePersistsTranscript(t *testing.T) {
	ctx := context.Background()
	_, tn := testStore(t)

	sess, err := tn.CreateSession(ctx, CreateParams{ClientID: "client-1"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := tn.Start(ctx, sess.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	finals := []transcript.Segment{
		{Index: 0, Text: "hello", Speaker: speaker(0), Timestamp: time.Now()},
		{Index: 1, Text: "world", Speaker: speaker(1), Timestamp: time.Now()},
	}
	done, err := tn.Complete(ctx, sess.ID, finals)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != session.StatusCompleted {
		t.Fatalf("status = %s, want completed", done.Status)
	}
	if done.EndAt == nil {
		t.Fatal("expected an end time")
	}
	if done.LiveAssist {
		t.Fatal("expected live assist cleared")
	}
	if done.TranscriptRef == "" {
		t.Fatal("expected a transcript ref")
	}

	saved, err := tn.SavedTranscript(ctx, sess.ID)
	if err != nil {
		t.Fatalf("SavedTranscript: %v", err)
	}
	if !saved.HasTranscript {
		t.Fatal("expected a saved transcript")
	}
	if len(saved.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(saved.Segments))
	}
	for i, seg := range saved.Segments {
		if seg.Index != i {
			t.Fatalf("segment %d has index %d", i, seg.Index)
		}
	}
	if saved.Segments[0].Text != "hello" || saved.Segments[1].Text != "world" {
		t.Fatalf("segment text mismatch: %+v", saved.Segments)
	}
	if saved.Segments[0].Speaker == nil || *saved.Segments[0].Speaker != 0 {
		t.Fatalf("segment 0 speaker = %v, want 0", saved.Segments[0].Speaker)
	}
}

func TestCompleteEmptyTranscript(t *testing.T) {
	ctx := context.Background()
	_, tn := testStore(t)

	sess, err := tn.CreateSession(ctx, CreateParams{ClientID: "client-1"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	done, err := tn.Complete(ctx, sess.ID, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.TranscriptRef != "" {
		t.Fatalf("TranscriptRef = %q, want empty", done.TranscriptRef)
	}

	saved, err := tn.SavedTranscript(ctx, sess.ID)
	if err != nil {
		t.Fatalf("SavedTranscript: %v", err)
	}
	if saved.HasTranscript {
		t.Fatal("expected no saved transcript")
	}
}

// failingStore rejects writes once armed, so completion failures can be
// exercised end to end.
type failingStore struct {
	kv.Store
	fail bool
}

var errStoreDown = errors.New("store down")

func (f *failingStore) BatchSet(ctx context.Context, entries []kv.Entry) error {
	if f.fail {
		return errStoreDown
	}
	return f.Store.BatchSet(ctx, entries)
}

func TestCompleteRetryAfterStoreFailure(t *testing.T) {
	ctx := context.Background()
	db := &failingStore{Store: kv.NewMemory()}
	s := New(db, "ws://localhost:8000/v1")
	tn := s.Tenant("tenant-a")

	sess, err := tn.CreateSession(ctx, CreateParams{ClientID: "client-1"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := tn.Start(ctx, sess.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	finals := []transcript.Segment{{Index: 0, Text: "hello", Timestamp: time.Now()}}

	db.fail = true
	if _, err := tn.Complete(ctx, sess.ID, finals); !errors.Is(err, errStoreDown) {
		t.Fatalf("Complete: err = %v, want store failure", err)
	}
	// The record must not have moved to completed.
	got, err := tn.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != session.StatusInProgress {
		t.Fatalf("status after failed completion = %s, want in_progress", got.Status)
	}

	db.fail = false
	done, err := tn.Complete(ctx, sess.ID, finals)
	if err != nil {
		t.Fatalf("Complete (retry): %v", err)
	}
	if done.Status != session.StatusCompleted {
		t.Fatalf("status = %s, want completed", done.Status)
	}
	saved, err := tn.SavedTranscript(ctx, sess.ID)
	if err != nil {
		t.Fatalf("SavedTranscript: %v", err)
	}
	if !saved.HasTranscript || len(saved.Segments) != 1 {
		t.Fatalf("saved = %+v, want the retried transcript", saved)
	}
}
