// Package storage persists serialized index blobs. A blob is read and
// written whole; there are no partial updates.
package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// ErrNotFound is matched by errors for blobs that do not exist.
var ErrNotFound = os.ErrNotExist

// Store reads and writes named blobs.
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
	// Size returns the stored size of a blob in bytes.
	Size(ctx context.Context, name string) (int64, error)
	Close() error
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid blob name %q", name)
	}
	return nil
}
