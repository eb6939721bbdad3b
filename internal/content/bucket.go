package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BucketConfig describes an S3 compatible bucket.
type BucketConfig struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Bucket stores post content as objects named <prefix>/<postID>.
type Bucket struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewBucket connects to the bucket, creating it when it does not exist.
func NewBucket(ctx context.Context, cfg BucketConfig) (*Bucket, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("bucket endpoint and name are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &Bucket{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func (b *Bucket) key(postID int64) string {
	return path.Join(b.prefix, strconv.FormatInt(postID, 10))
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// Get returns the content of a post.
func (b *Bucket) Get(ctx context.Context, postID int64) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, b.key(postID), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get content of post %d: %w", postID, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: post %d", ErrNotFound, postID)
		}
		return nil, fmt.Errorf("failed to read content of post %d: %w", postID, err)
	}
	return data, nil
}

// Put stores the content of a post.
func (b *Bucket) Put(ctx context.Context, postID int64, ext string, data []byte) error {
	opts := minio.PutObjectOptions{
		ContentType: mime.TypeByExtension("." + strings.TrimPrefix(ext, ".")),
	}
	_, err := b.client.PutObject(ctx, b.bucket, b.key(postID), bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return fmt.Errorf("failed to put content of post %d: %w", postID, err)
	}
	return nil
}

// Delete removes the content of a post.
func (b *Bucket) Delete(ctx context.Context, postID int64) error {
	err := b.client.RemoveObject(ctx, b.bucket, b.key(postID), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete content of post %d: %w", postID, err)
	}
	return nil
}

var _ Store = (*Bucket)(nil)
