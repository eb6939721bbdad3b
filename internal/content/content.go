// Package content stores the original content of posts, either in a local
// directory or in an S3 compatible bucket.
package content

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kozaktomas/sigboard/internal/config"
)

// ErrNotFound is returned when a post has no stored content.
var ErrNotFound = errors.New("post content not found")

// Store reads and writes post content.
type Store interface {
	// Get returns the content of a post.
	Get(ctx context.Context, postID int64) ([]byte, error)
	// Put stores the content of a post, replacing existing content.
	Put(ctx context.Context, postID int64, ext string, data []byte) error
	// Delete removes the content of a post. Missing content is not an error.
	Delete(ctx context.Context, postID int64) error
}

// Dir stores post content as <dir>/<postID>.<ext>.
type Dir struct {
	root string
}

// NewDir creates a directory store, creating the directory if needed.
func NewDir(root string) (*Dir, error) {
	if root == "" {
		return nil, errors.New("content directory is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}
	return &Dir{root: root}, nil
}

// find returns the path of the stored content of a post.
func (d *Dir) find(postID int64) (string, error) {
	matches, err := filepath.Glob(filepath.Join(d.root, strconv.FormatInt(postID, 10)+".*"))
	if err != nil {
		return "", fmt.Errorf("failed to look up content of post %d: %w", postID, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: post %d", ErrNotFound, postID)
	}
	return matches[0], nil
}

// Get returns the content of a post.
func (d *Dir) Get(ctx context.Context, postID int64) ([]byte, error) {
	path, err := d.find(postID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // path built from a numeric id
	if err != nil {
		return nil, fmt.Errorf("failed to read content of post %d: %w", postID, err)
	}
	return data, nil
}

// Put stores the content of a post.
func (d *Dir) Put(ctx context.Context, postID int64, ext string, data []byte) error {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" || strings.ContainsAny(ext, `/\.`) {
		return fmt.Errorf("invalid content extension %q", ext)
	}
	if err := d.Delete(ctx, postID); err != nil {
		return err
	}

	path := filepath.Join(d.root, strconv.FormatInt(postID, 10)+"."+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write content of post %d: %w", postID, err)
	}
	return nil
}

// Delete removes the content of a post.
func (d *Dir) Delete(ctx context.Context, postID int64) error {
	path, err := d.find(postID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove content of post %d: %w", postID, err)
	}
	return nil
}

var _ Store = (*Dir)(nil)

// Open returns the bucket store when a bucket endpoint is configured and the
// directory store otherwise.
func Open(ctx context.Context, cfg *config.ContentConfig) (Store, error) {
	if cfg.BucketEndpoint != "" {
		b, err := NewBucket(ctx, BucketConfig{
			Endpoint:  cfg.BucketEndpoint,
			Bucket:    cfg.Bucket,
			Prefix:    cfg.BucketPrefix,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.BucketUseSSL,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	}

	d, err := NewDir(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return d, nil
}
