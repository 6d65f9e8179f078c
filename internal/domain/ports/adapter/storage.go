package adapter

import (
	"context"
	"time"
)

// Storage is the port for the object store holding uploaded training archives.
// Only signed-URL issuance and cleanup are needed here; upload/download
// mechanics live with the client.
type Storage interface {
	// SignedDownloadURL returns a time-limited GET URL for an object key.
	SignedDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	// SignedUploadURL returns a time-limited PUT URL so clients can upload
	// without holding storage credentials.
	SignedUploadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	// DeleteObject removes a consumed temporary artifact. Best-effort at the
	// call sites; callers decide whether failure is fatal.
	DeleteObject(ctx context.Context, key string) error
}
