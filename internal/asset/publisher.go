// Package asset publishes rendered receipts to a remote object store and
// returns a publicly fetchable URL. Publishers are plain I/O boundaries: they
// never retry, and every failure is an *UploadError. Fallback decisions belong
// to the caller.
package asset

import (
	"context"
	"fmt"
)

// Upload is one file to publish. Body and Base64 hold the same content; a
// publisher uses whichever its target expects.
type Upload struct {
	Filename    string
	ContentType string
	Body        []byte
	Base64      string
}

// Publisher uploads bytes and returns the URL they can be fetched from.
type Publisher interface {
	Publish(ctx context.Context, u Upload) (string, error)
}

// UploadError is returned for network failures, non-2xx responses and
// auth/quota rejections. StatusCode is zero when no response was received.
type UploadError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UploadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("asset: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("asset: %s: %v", e.Op, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
