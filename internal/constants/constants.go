// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Similarity search constants
const (
	// DefaultSimilarityThreshold is the largest signature distance reported as similar
	DefaultSimilarityThreshold = 0.4

	// DefaultSimilarLimit is the default number of similar posts returned
	DefaultSimilarLimit = 100

	// DefaultCandidateLimit is the maximum number of candidate signatures compared per query
	DefaultCandidateLimit = 1000

	// HNSWCandidateLimit is the number of neighbors requested from the HNSW fallback
	HNSWCandidateLimit = 50
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel workers for signature recomputation
	WorkerPoolSize = 8

	// WordBatchSize is the number of rows written per transaction when recomputing words
	WordBatchSize = 10000

	// ProgressInterval is the number of processed posts between progress reports
	ProgressInterval = 100
)

// Upload constants
const (
	// DefaultUploadCacheSize is the number of computed upload properties kept in memory
	DefaultUploadCacheSize = 64

	// DefaultThumbnailSize is the longest edge of generated thumbnails
	DefaultThumbnailSize = 300
)
