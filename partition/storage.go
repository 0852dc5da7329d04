//go:generate mockgen -package mocks -destination mocks/storage.go -source=storage.go

package partition

import (
	"context"
	"errors"
	"fmt"
)

// ErrKeyCollision is returned when a partition key already exists, e.g. two writes in the same
// second. Storage backends wrap it when a create-only put finds an existing object.
var ErrKeyCollision = errors.New("partition key already exists")

// ErrKeyNotFound is returned by Storage.Get and Storage.Move for a missing key.
var ErrKeyNotFound = errors.New("partition key not found")

// Storage is the object store the Writer puts files into.
type Storage interface {
	// Put stores data at key only if key does not exist yet.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns every key beginning with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	Move(ctx context.Context, src string, dst string) error
	// URL renders key for logs and reports, e.g. s3://bucket/key.
	URL(key string) string
}

// StorageWriteError is a fatal failure to store a partition file.
type StorageWriteError struct {
	URL string
	Err error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("error writing %v: %v", e.URL, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }
