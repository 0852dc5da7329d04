//go:generate mockgen -package mocks -destination mocks/api.go github.com/relloyd/trackpipe/aws/s3 API
package s3

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

type BasicClient interface {
	Lister
	Getter
	Putter
	Deleter
	URL(key string) string
}

// Client satisfies partition.Storage.
type Client interface {
	BasicClient
	Mover
}

type Lister interface {
	List(ctx context.Context, key string) (keys []string, err error)
}

type Getter interface {
	// Get returns partition.ErrKeyNotFound if the given key doesn't exist.
	Get(ctx context.Context, key string) (data []byte, err error)
}

type Putter interface {
	// Put returns partition.ErrKeyCollision if the given key already exists.
	Put(ctx context.Context, key string, data []byte, contentType string) (err error)
}

type Deleter interface {
	Delete(ctx context.Context, key string) error
}

type Mover interface {
	// Move returns partition.ErrKeyNotFound if the src key doesn't exist.
	Move(ctx context.Context, src, dst string) error
}

// API is the part of s3iface.S3API used by the basic client.
type API interface {
	ListObjectsWithContext(ctx aws.Context, input *s3.ListObjectsInput, opts ...request.Option) (*s3.ListObjectsOutput, error)
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
	HeadObjectWithContext(ctx aws.Context, input *s3.HeadObjectInput, opts ...request.Option) (*s3.HeadObjectOutput, error)
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
	DeleteObjectWithContext(ctx aws.Context, input *s3.DeleteObjectInput, opts ...request.Option) (*s3.DeleteObjectOutput, error)
}

var _ API = (s3iface.S3API)(nil)
