package s3

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
	"github.com/relloyd/trackpipe/logger"
	"github.com/relloyd/trackpipe/partition"
)

func NewBasicClient(log logger.Logger, bucket, region, prefix string) (BasicClient, error) {
	awsConfig := aws.NewConfig()
	awsConfig.Region = aws.String(region)
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, errors.Wrap(err, "error creating AWS session")
	}
	return NewBasicClientWithAPI(log, bucket, prefix, s3.New(sess)), nil
}

func NewBasicClientWithAPI(log logger.Logger, bucket, prefix string, api API) BasicClient {
	return &basicClient{
		log:    log,
		bucket: bucket,
		prefix: prefix,
		api:    api,
	}
}

type basicClient struct {
	log    logger.Logger
	bucket string
	prefix string
	api    API
}

// List returns keys relative to the client prefix.
func (s *basicClient) List(ctx context.Context, key string) (keys []string, err error) {
	keys = make([]string, 0, 1000)
	lastKey := ""
	for {
		params := &s3.ListObjectsInput{
			Bucket:  aws.String(s.bucket),
			Marker:  aws.String(lastKey),
			MaxKeys: aws.Int64(1000),
			Prefix:  aws.String(s.getKeyWithPrefix(key)),
		}
		resp, err := s.api.ListObjectsWithContext(ctx, params)
		if err != nil {
			return nil, errors.Wrapf(err, "error listing %v", s.URL(key))
		}

		for _, v := range resp.Contents {
			lastKey = aws.StringValue(v.Key)
			keys = append(keys, s.trimPrefix(lastKey))
		}

		if !aws.BoolValue(resp.IsTruncated) || len(resp.Contents) == 0 {
			break
		}
	}
	return
}

func (s *basicClient) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := s.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getKeyWithPrefix(key)),
	})

	if err != nil {
		if isNotFound(err) {
			return nil, errors.Wrapf(partition.ErrKeyNotFound, "object %v", s.URL(key))
		}
		return nil, err
	}

	defer res.Body.Close()

	return ioutil.ReadAll(res.Body)
}

// Put checks the key is free with a HEAD request before writing.
// Two writers racing for the same key are not detected.
func (s *basicClient) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.api.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getKeyWithPrefix(key)),
	})
	if err == nil {
		return errors.Wrapf(partition.ErrKeyCollision, "object %v", s.URL(key))
	}
	if !isNotFound(err) {
		return errors.Wrapf(err, "error checking %v", s.URL(key))
	}

	_, err = s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.getKeyWithPrefix(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err == nil {
		s.log.Debug("put ", len(data), " bytes to ", s.URL(key))
	}
	return err
}

func (s *basicClient) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getKeyWithPrefix(key)),
	})
	return err
}

func (s *basicClient) URL(key string) string {
	return fmt.Sprintf("s3://%v/%v", s.bucket, s.getKeyWithPrefix(key))
}

func (s *basicClient) getKeyWithPrefix(key string) string {
	if s.prefix != "" {
		return strings.TrimRight(s.prefix, "/") + "/" + key // ensure trailing slash after prefix.
	} else {
		return key
	}
}

func (s *basicClient) trimPrefix(key string) string {
	if s.prefix != "" {
		return strings.TrimPrefix(key, strings.TrimRight(s.prefix, "/")+"/")
	}
	return key
}

func isNotFound(err error) bool {
	if rf, ok := err.(awserr.RequestFailure); ok && rf.StatusCode() == http.StatusNotFound {
		return true
	}
	if awsErr, ok := err.(awserr.Error); ok {
		return awsErr.Code() == s3.ErrCodeNoSuchKey || awsErr.Code() == "NotFound"
	}
	return false
}

func contentTypeOf(data []byte) string {
	if bytes.HasPrefix(data, []byte("PAR1")) {
		return "application/octet-stream"
	}
	return http.DetectContentType(data)
}
