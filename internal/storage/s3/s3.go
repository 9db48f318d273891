// Package s3 implements the storage contract on any S3-compatible blob
// store (AWS, Backblaze B2, MinIO) through a custom endpoint.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/pixelcrate/pixelcrate/internal/storage"
)

// Compile-time check that Client implements the storage contract.
var _ storage.Storage = (*Client)(nil)

// Opts holds options to initialize the client.
type Opts struct {
	Bucket      string
	Region      string
	Endpoint    string
	AccessKey   string
	SecretKey   string
	Prefix      string // optional key prefix, e.g. "images/"
	PartSizeMB  int64  // default 16
	Concurrency int    // default 4
}

// Client wraps an S3 client with bucket and prefix defaults.
type Client struct {
	client      *s3.Client
	bucket      string
	prefix      string
	partSizeMB  int64
	concurrency int
}

// New builds a client for the configured S3-compatible endpoint.
func New(ctx context.Context, opts *Opts) (*Client, error) {
	if opts.PartSizeMB <= 0 {
		opts.PartSizeMB = 16
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.Endpoint != "" {
		loadOpts = append(loadOpts, awsconfig.WithBaseEndpoint(opts.Endpoint))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) { o.UsePathStyle = true })

	return &Client{
		client:      client,
		bucket:      opts.Bucket,
		prefix:      opts.Prefix,
		partSizeMB:  opts.PartSizeMB,
		concurrency: opts.Concurrency,
	}, nil
}

// Put uploads data under the requested name. S3 keys are exact, so the
// physical name equals the requested name.
func (c *Client) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := c.prefix + name

	uploader := manager.NewUploader(c.client, func(m *manager.Uploader) {
		m.PartSize = c.partSizeMB * 1024 * 1024
		m.Concurrency = c.concurrency
	})

	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	if _, err := uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", c.bucket, key, err)
	}
	return name, nil
}

// Get retrieves an object's bytes and info by name.
func (c *Client) Get(ctx context.Context, name string) ([]byte, storage.ObjectInfo, error) {
	key := c.prefix + name

	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, storage.ObjectInfo{}, storage.ErrNotFound
		}
		return nil, storage.ObjectInfo{}, fmt.Errorf("get object %s/%s: %w", c.bucket, key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, storage.ObjectInfo{}, fmt.Errorf("read object data: %w", err)
	}

	info := storage.ObjectInfo{
		Key:         name,
		Size:        int64(len(data)),
		ContentType: aws.ToString(result.ContentType),
	}
	if result.LastModified != nil {
		info.LastModified = *result.LastModified
	}

	return data, info, nil
}

// List enumerates all objects under the prefix. ListObjectsV2 caps pages
// at 1000 keys; the paginator concatenates them transparently.
func (c *Client) List(ctx context.Context) ([]storage.ObjectInfo, error) {
	var objects []storage.ObjectInfo

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
	}
	if c.prefix != "" {
		input.Prefix = aws.String(c.prefix)
	}

	paginator := s3.NewListObjectsV2Paginator(c.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects in %s: %w", c.bucket, err)
		}

		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), c.prefix)
			if key == "" {
				continue
			}
			info := storage.ObjectInfo{
				Key:  key,
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			objects = append(objects, info)
		}
	}

	return objects, nil
}

// Delete removes the object stored under name.
func (c *Client) Delete(ctx context.Context, name string) error {
	key := c.prefix + name

	// DeleteObject is a no-op for missing keys; probe first so callers
	// can distinguish not-found.
	if _, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}); err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("head object %s/%s: %w", c.bucket, key, err)
	}

	if _, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete object %s/%s: %w", c.bucket, key, err)
	}
	return nil
}
