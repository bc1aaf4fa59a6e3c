package kv_test

import (
	"context"
	"errors"
	"testing"

	"github.com/attunehealth/scribe/pkg/kv"
)

func newBadgerStore(t *testing.T) kv.Store {
	t.Helper()
	s, err := kv.NewBadger(kv.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadger_RequiresDir(t *testing.T) {
	if _, err := kv.NewBadger(kv.BadgerOptions{}); err == nil {
		t.Fatal("expected error for on-disk mode without a directory")
	}
}

func TestBadger_GetSetList(t *testing.T) {
	ctx := context.Background()
	s := newBadgerStore(t)

	if _, err := s.Get(ctx, kv.Key{"session", "t", "missing"}); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	keys := []kv.Key{
		{"session", "t", "s1"},
		{"session", "t", "s2"},
		{"transcript", "t", "s1"},
	}
	for i, k := range keys {
		if err := s.Set(ctx, k, []byte{byte(i)}); err != nil {
			t.Fatalf("Set %v: %v", k, err)
		}
	}

	var n int
	for e, err := range s.List(ctx, kv.Key{"session", "t"}) {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if e.Key[0] != "session" {
			t.Fatalf("stray entry %v", e.Key)
		}
		n++
	}
	if n != 2 {
		t.Fatalf("List returned %d entries, want 2", n)
	}

	if err := s.Delete(ctx, keys[0]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, keys[0]); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBadger_BatchSet(t *testing.T) {
	ctx := context.Background()
	s := newBadgerStore(t)

	entries := []kv.Entry{
		{Key: kv.Key{"session", "t", "s1"}, Value: []byte("a")},
		{Key: kv.Key{"transcript", "t", "s1"}, Value: []byte("b")},
	}
	if err := s.BatchSet(ctx, entries); err != nil {
		t.Fatalf("BatchSet: %v", err)
	}
	for _, e := range entries {
		got, err := s.Get(ctx, e.Key)
		if err != nil {
			t.Fatalf("Get %v: %v", e.Key, err)
		}
		if string(got) != string(e.Value) {
			t.Fatalf("Get %v = %q", e.Key, got)
		}
	}
}
