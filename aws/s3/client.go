package s3

import (
	"context"

	"github.com/relloyd/trackpipe/logger"
)

func NewClient(log logger.Logger, bucket, region, prefix string) (Client, error) {
	basicClient, err := NewBasicClient(log, bucket, region, prefix)
	if err != nil {
		return nil, err
	}
	return NewClientFromBasic(basicClient), nil
}

func NewClientFromBasic(basicClient BasicClient) Client {
	return &client{
		BasicClient: basicClient,
	}
}

type client struct {
	BasicClient
}

// Move copies src to dst then deletes src. It is not atomic: a failed delete leaves both objects.
func (s *client) Move(ctx context.Context, src, dst string) error {
	data, err := s.Get(ctx, src)
	if err != nil {
		return err
	}

	err = s.Put(ctx, dst, data, contentTypeOf(data))
	if err != nil {
		return err
	}

	return s.Delete(ctx, src)
}
