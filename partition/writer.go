package partition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	pkgerrors "github.com/pkg/errors"
	"github.com/relloyd/trackpipe/constants"
	"github.com/relloyd/trackpipe/logger"
	"github.com/relloyd/trackpipe/stats"
)

type options struct {
	now func() time.Time
}

type Option func(o *options)

// WithClock overrides the wall clock used to build keys.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Writer writes row sets of T as single parquet files under one prefix.
// T must carry parquet struct tags.
type Writer[T any] struct {
	log     logger.Logger
	store   Storage
	prefix  string
	now     func() time.Time
	mu      sync.Mutex
	lastKey Key
}

func NewWriter[T any](log logger.Logger, store Storage, prefix string, opts ...Option) (*Writer[T], error) {
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return &Writer[T]{log: log, store: store, prefix: prefix, now: o.now}, nil
}

func (w *Writer[T]) Prefix() string {
	return w.prefix
}

// Write encodes rows and puts them at the key for the current second.
// A second write in the same second returns ErrKeyCollision and stores nothing.
// Storage failures are returned as *StorageWriteError.
func (w *Writer[T]) Write(ctx context.Context, rows []T) (Key, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := NewKey(w.prefix, w.now())
	if key == w.lastKey {
		return Key{}, pkgerrors.Wrapf(ErrKeyCollision, "key %v was written by this process", key)
	}
	data, err := Encode(rows)
	if err != nil {
		return Key{}, pkgerrors.Wrap(err, "error encoding parquet")
	}
	url := w.store.URL(key.String())
	if err := w.store.Put(ctx, key.String(), data, constants.PartitionContentType); err != nil {
		if errors.Is(err, ErrKeyCollision) {
			return Key{}, pkgerrors.Wrapf(err, "key %v", url)
		}
		return Key{}, &StorageWriteError{URL: url, Err: err}
	}
	w.lastKey = key
	stats.AddRowsWritten(w.prefix, len(rows))
	w.log.Info("uploaded ", len(rows), " rows to ", url)
	return key, nil
}

// Read decodes the file at key.
func (w *Writer[T]) Read(ctx context.Context, key Key) ([]T, error) {
	data, err := w.store.Get(ctx, key.String())
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "error reading %v", w.store.URL(key.String()))
	}
	return Decode[T](data)
}

// Encode writes rows to an in-memory parquet file.
func Encode[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	pw := parquet.NewGenericWriter[T](&buf, parquet.Compression(&parquet.Snappy))
	if _, err := pw.Write(rows); err != nil {
		return nil, err
	}
	if err := pw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads every row of an in-memory parquet file.
func Decode[T any](data []byte) ([]T, error) {
	rows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("error decoding parquet: %w", err)
	}
	return rows, nil
}
