// Package constants provides shared constants used across the codebase.
package constants

// Handler pagination constants
const (
	// MaxSimilarLimit caps the limit accepted by similarity endpoints
	MaxSimilarLimit = 1000
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100

	// MaxRetainedJobs is the number of jobs kept for status queries
	MaxRetainedJobs = 20
)

// File upload constants
const (
	// MaxUploadSize is the maximum file upload size in bytes (100MB)
	MaxUploadSize = 100 << 20

	// MultipartMemory is the part of a multipart form kept in memory (32MB)
	MultipartMemory = 32 << 20
)
