package database

// HNSW index parameters for signature vectors
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 64

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// to ensure we have enough after distance filtering.
	HNSWSearchMultiplier = 3
)

// Word index parameters
const (
	// wordIndexMagic identifies word index snapshot files
	wordIndexMagic = "SIGW"

	// wordIndexFormat is bumped whenever the snapshot layout changes
	wordIndexFormat = 1
)

// ScanBatchSize is the number of rows fetched per query when loading all
// signatures into memory.
const ScanBatchSize = 5000
