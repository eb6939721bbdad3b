package database

import (
	"context"

	"github.com/kozaktomas/sigboard/internal/signature"
)

// SignatureReader provides read-only access to post signatures
type SignatureReader interface {
	// Get retrieves the signature of a post, returns nil if not found
	Get(ctx context.Context, postID int64) (*StoredSignature, error)
	// Has checks if a signature exists for the given post
	Has(ctx context.Context, postID int64) (bool, error)
	// Count returns the total number of signatures stored
	Count(ctx context.Context) (int, error)
	// Stats returns totals including signatures of an older version
	Stats(ctx context.Context) (SignatureStats, error)
	// FindByChecksum returns the IDs of posts with exactly this content
	FindByChecksum(ctx context.Context, checksum string) ([]int64, error)
	// FindCandidates returns up to limit signatures sharing at least one word
	// with words. Callers rank them by exact distance to c
	FindCandidates(ctx context.Context, c signature.Compressed, words signature.Words, limit int) ([]StoredSignature, error)
	// FindNearest returns the signatures closest to c regardless of words
	FindNearest(ctx context.Context, c signature.Compressed, limit int) ([]StoredSignature, error)
	// GetPostIDs returns the IDs of all posts with a signature, ascending
	GetPostIDs(ctx context.Context) ([]int64, error)
	// Scan calls fn with consecutive batches of all signatures, ordered by post ID
	Scan(ctx context.Context, batchSize int, fn func(batch []StoredSignature) error) error
}

// SignatureWriter provides write access to post signatures
type SignatureWriter interface {
	SignatureReader

	// Save stores the signature of a post, replacing an existing one
	Save(ctx context.Context, sig StoredSignature) error
	// Delete removes the signature of a post
	Delete(ctx context.Context, postID int64) error
	// UpdateWords replaces the words of many posts in a single transaction
	UpdateWords(ctx context.Context, updates []WordsUpdate) error
}
