// Package archive persists raw session audio alongside the transcript.
// Captures are stored as the PCM stream that was sent over the channel, so
// a session can be re-transcribed or audited later.
//
// The Store interface abstracts the backend; local disk serves single-box
// deployments and tests, S3 serves production.
package archive

import (
	"context"
	"io"
)

// Store is a file-oriented blob store. Paths are forward-slash separated
// and relative to the store root. Implementations must be safe for
// concurrent use.
type Store interface {
	// Read opens the named blob for reading. If it does not exist, an
	// error wrapping os.ErrNotExist is returned. The caller closes the
	// returned reader.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named blob for writing, truncating any existing
	// content. The caller must close the writer to flush the data.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named blob. Deleting an absent blob is not an
	// error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named blob exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// Archive stores one PCM capture per session, keyed by tenant and session
// id.
type Archive struct {
	store Store
}

// New creates an Archive over the given backend.
func New(store Store) *Archive {
	return &Archive{store: store}
}

// capturePath is the blob path of a session's audio capture.
func capturePath(tenantID, sessionID string) string {
	return tenantID + "/" + sessionID + ".pcm"
}

// OpenCapture opens the session's audio capture for writing. Audio sent
// while the session is live is teed into the returned writer.
func (a *Archive) OpenCapture(ctx context.Context, tenantID, sessionID string) (io.WriteCloser, error) {
	return a.store.Write(ctx, capturePath(tenantID, sessionID))
}

// Capture opens the session's stored audio for reading.
func (a *Archive) Capture(ctx context.Context, tenantID, sessionID string) (io.ReadCloser, error) {
	return a.store.Read(ctx, capturePath(tenantID, sessionID))
}

// HasCapture reports whether audio was archived for the session.
func (a *Archive) HasCapture(ctx context.Context, tenantID, sessionID string) (bool, error) {
	return a.store.Exists(ctx, capturePath(tenantID, sessionID))
}

// DeleteCapture removes the session's stored audio.
func (a *Archive) DeleteCapture(ctx context.Context, tenantID, sessionID string) error {
	return a.store.Delete(ctx, capturePath(tenantID, sessionID))
}
