// Package audiostore keeps synthesized audio so clients can fetch it by URL.
package audiostore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("audiostore: not found")

// Clip is a stored audio blob.
type Clip struct {
	ID        string
	Data      []byte
	MimeType  string
	CreatedAt time.Time
}

// Store keeps clips addressable by id.
type Store interface {
	// Put stores data under a new id.
	Put(ctx context.Context, data []byte, mimeType string) (string, error)
	// Pin stores data under a fixed id that never expires.
	Pin(ctx context.Context, id string, data []byte, mimeType string) error
	Get(ctx context.Context, id string) (*Clip, error)
}

// NewID returns a random clip id.
func NewID() string {
	return uuid.NewString()
}

// URLFor joins the public base path and id, e.g. "/audio/" + id.
func URLFor(basePath, id string) string {
	return strings.TrimSuffix(basePath, "/") + "/" + id
}
