// Package gcs stores partition files in Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	pkgerrors "github.com/pkg/errors"
	"github.com/relloyd/trackpipe/logger"
	"github.com/relloyd/trackpipe/partition"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Client satisfies partition.Storage for one bucket and optional root prefix.
type Client struct {
	log    logger.Logger
	gcs    *storage.Client
	bucket string
	prefix string
}

func NewClient(ctx context.Context, log logger.Logger, bucket, prefix string, opts ...option.ClientOption) (*Client, error) {
	c, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "error creating GCS client")
	}
	return NewClientWithStorage(log, c, bucket, prefix), nil
}

func NewClientWithStorage(log logger.Logger, c *storage.Client, bucket, prefix string) *Client {
	return &Client{log: log, gcs: c, bucket: bucket, prefix: prefix}
}

func (c *Client) object(key string) *storage.ObjectHandle {
	return c.gcs.Bucket(c.bucket).Object(c.getKeyWithPrefix(key))
}

// Put writes data with a DoesNotExist precondition so an existing key is never overwritten.
func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel() // aborts the upload if Close is never reached
	w := c.object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return c.mapError(key, err)
	}
	if err := w.Close(); err != nil {
		return c.mapError(key, err)
	}
	c.log.Debug("put ", len(data), " bytes to ", c.URL(key))
	return nil
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := c.object(key).NewReader(ctx)
	if err != nil {
		return nil, c.mapError(key, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// List returns keys relative to the client prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	it := c.gcs.Bucket(c.bucket).Objects(ctx, &storage.Query{Prefix: c.getKeyWithPrefix(prefix)})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "error listing %v", c.URL(prefix))
		}
		keys = append(keys, c.trimPrefix(attrs.Name))
	}
	return keys, nil
}

// Move copies src to dst server side, then deletes src.
func (c *Client) Move(ctx context.Context, src string, dst string) error {
	dstObj := c.object(dst).If(storage.Conditions{DoesNotExist: true})
	if _, err := dstObj.CopierFrom(c.object(src)).Run(ctx); err != nil {
		return c.mapError(src, err)
	}
	if err := c.object(src).Delete(ctx); err != nil {
		return c.mapError(src, err)
	}
	return nil
}

func (c *Client) URL(key string) string {
	return fmt.Sprintf("gs://%v/%v", c.bucket, c.getKeyWithPrefix(key))
}

func (c *Client) Close() error {
	return c.gcs.Close()
}

func (c *Client) getKeyWithPrefix(key string) string {
	if c.prefix != "" {
		return strings.TrimRight(c.prefix, "/") + "/" + key
	}
	return key
}

func (c *Client) trimPrefix(name string) string {
	if c.prefix != "" {
		return strings.TrimPrefix(name, strings.TrimRight(c.prefix, "/")+"/")
	}
	return name
}

// mapError translates failed preconditions and missing objects into the partition sentinels.
func (c *Client) mapError(key string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return pkgerrors.Wrapf(partition.ErrKeyNotFound, "object %v", c.URL(key))
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusPreconditionFailed:
			return pkgerrors.Wrapf(partition.ErrKeyCollision, "object %v", c.URL(key))
		case http.StatusNotFound:
			return pkgerrors.Wrapf(partition.ErrKeyNotFound, "object %v", c.URL(key))
		}
	}
	return pkgerrors.Wrapf(err, "error accessing %v", c.URL(key))
}
