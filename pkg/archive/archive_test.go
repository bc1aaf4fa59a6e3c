package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
)

func TestCapturePath(t *testing.T) {
	if got := capturePath("tenant-a", "sess-1"); got != "tenant-a/sess-1.pcm" {
		t.Fatalf("capturePath = %q", got)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	disk, err := NewDisk(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	a := New(disk)

	ok, err := a.HasCapture(ctx, "tenant-a", "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no capture before write")
	}

	pcm := []byte{0x00, 0x01, 0x02, 0x03, 0xff, 0xfe}
	w, err := a.OpenCapture(ctx, "tenant-a", "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(pcm); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	ok, err = a.HasCapture(ctx, "tenant-a", "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected capture after write")
	}

	r, err := a.Capture(ctx, "tenant-a", "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(pcm) {
		t.Fatalf("got %v, want %v", got, pcm)
	}
}

func TestArchiveDelete(t *testing.T) {
	ctx := context.Background()
	disk, err := NewDisk(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	a := New(disk)

	// Deleting an absent capture is fine.
	if err := a.DeleteCapture(ctx, "tenant-a", "ghost"); err != nil {
		t.Fatal(err)
	}

	w, err := a.OpenCapture(ctx, "tenant-a", "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(w, "x")
	w.Close()

	if err := a.DeleteCapture(ctx, "tenant-a", "sess-1"); err != nil {
		t.Fatal(err)
	}
	_, err = a.Capture(ctx, "tenant-a", "sess-1")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist after delete, got %v", err)
	}
}
