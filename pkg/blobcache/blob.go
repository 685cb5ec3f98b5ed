package blobcache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Ref is an opaque key for bytes held in a Cache. Pipeline state carries
// Refs only; Blob values are fetched on demand and never stored there.
type Ref string

// Blob holds image bytes pulled out of the cache.
type Blob struct {
	Data     []byte
	MIMEType string
}

// Kind selects which image of a session a Ref points to.
type Kind string

const (
	KindFull    Kind = "full"
	KindSnippet Kind = "snippet"

	DefaultTTL = 600 * time.Second
)

var ErrEmptyRef = errors.New("blobcache: empty ref")

// SessionRef builds the "{sessionId}_{kind}" key.
func SessionRef(sessionID string, kind Kind) Ref {
	return Ref(fmt.Sprintf("%s_%s", sessionID, kind))
}

// Cache is a short-lived keyed byte store.
type Cache interface {
	Put(ctx context.Context, ref Ref, data []byte, ttl time.Duration) error
	// Get returns found=false with a nil error when the key is absent or expired.
	Get(ctx context.Context, ref Ref) (data []byte, found bool, err error)
	Delete(ctx context.Context, refs ...Ref) error
}

// Fetch loads a Blob for ref. A missing key is reported as (nil, nil).
func Fetch(ctx context.Context, c Cache, ref Ref) (*Blob, error) {
	if ref == "" {
		return nil, ErrEmptyRef
	}
	data, found, err := c.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !found || len(data) == 0 {
		return nil, nil
	}
	return &Blob{Data: data, MIMEType: "image/jpeg"}, nil
}

// CleanupSession removes both images stored for a session.
func CleanupSession(ctx context.Context, c Cache, sessionID string) error {
	return c.Delete(ctx, SessionRef(sessionID, KindFull), SessionRef(sessionID, KindSnippet))
}
