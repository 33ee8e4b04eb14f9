package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a location holds no object.
var ErrNotFound = errors.New("blob not found")

// Store is a minimal byte-blob backend keyed by opaque location strings.
type Store interface {
	Read(ctx context.Context, location string) ([]byte, error)
	Write(ctx context.Context, location string, data []byte) error
	Delete(ctx context.Context, location string) error
}
