package productstore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/couchcryptid/dyfi-induced-db/internal/domain"
)

// PutObjectAPI is the part of the S3 client the store needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads products to <bucket>/<prefix>/<product>/<eventid>.geojson.
type S3Store struct {
	client   PutObjectAPI
	bucket   string
	prefix   string
	timeout  time.Duration
	compress bool
}

// S3Options configures an S3Store.
type S3Options struct {
	Bucket   string
	Prefix   string
	Region   string
	Timeout  time.Duration
	Compress bool
}

// NewS3Store loads the default AWS credential chain for the region and
// creates a store.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewS3StoreWithClient(s3.NewFromConfig(awsCfg), opts), nil
}

// NewS3StoreWithClient creates a store around an existing client.
func NewS3StoreWithClient(client PutObjectAPI, opts S3Options) *S3Store {
	return &S3Store{
		client:   client,
		bucket:   opts.Bucket,
		prefix:   opts.Prefix,
		timeout:  opts.Timeout,
		compress: opts.Compress,
	}
}

// Key returns the object key for f.
func (s *S3Store) Key(f domain.ProductFile) string {
	return path.Join(s.prefix, f.Product, fileName(f, s.compress))
}

// StoreProduct uploads f and returns its s3:// location.
func (s *S3Store) StoreProduct(ctx context.Context, f domain.ProductFile) (string, error) {
	data, err := encode(f, s.compress)
	if err != nil {
		return "", err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	key := s.Key(f)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/geo+json"),
	}
	if s.compress {
		input.ContentEncoding = aws.String("gzip")
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}
