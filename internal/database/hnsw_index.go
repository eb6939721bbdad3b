package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/sigboard/internal/signature"
)

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	PostCount        int64     `json:"post_count"`
	MaxPostID        int64     `json:"max_post_id"`
	SignatureVersion int       `json:"signature_version"`
	BuildTime        time.Time `json:"build_time"`
}

// Matches reports whether the metadata describes an index built from count
// signatures with the given highest post ID by the current signature version.
func (m HNSWIndexMetadata) Matches(count, maxPostID int64) bool {
	return m.SignatureVersion == signature.Version && m.PostCount == count && m.MaxPostID == maxPostID
}

// HNSWSignatureIndex is an approximate nearest neighbor graph over centered
// signature vectors. It answers similarity queries when no words match.
type HNSWSignatureIndex struct {
	graph    *hnsw.Graph[int64]
	efSearch int
	maxID    int64
	mu       sync.RWMutex
}

// NewHNSWSignatureIndex creates a new empty index. Non-positive parameters
// fall back to HNSWMaxNeighbors and HNSWEfSearch.
func NewHNSWSignatureIndex(m, efSearch int) *HNSWSignatureIndex {
	if m <= 0 {
		m = HNSWMaxNeighbors
	}
	if efSearch <= 0 {
		efSearch = HNSWEfSearch
	}
	h := &HNSWSignatureIndex{efSearch: efSearch}
	h.graph = h.newGraph(m)
	return h
}

func (h *HNSWSignatureIndex) newGraph(m int) *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = m
	g.Ml = 1.0 / float64(m)
	g.EfSearch = h.efSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build replaces the index with the given signatures.
func (h *HNSWSignatureIndex) Build(sigs []StoredSignature) {
	h.mu.Lock()
	defer h.mu.Unlock()

	g := h.newGraph(h.graph.M)
	h.maxID = 0

	nodes := make([]hnsw.Node[int64], 0, len(sigs))
	for i := range sigs {
		s := &sigs[i]
		nodes = append(nodes, hnsw.MakeNode(s.PostID, signature.Decode(s.Signature).Centered()))
		h.maxID = max(h.maxID, s.PostID)
	}
	if len(nodes) > 0 {
		g.Add(nodes...)
	}
	h.graph = g
}

// Add inserts or replaces the vector of a post.
func (h *HNSWSignatureIndex) Add(postID int64, c signature.Compressed) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(postID)
	h.graph.Add(hnsw.MakeNode(postID, signature.Decode(c).Centered()))
	h.maxID = max(h.maxID, postID)
}

// Delete removes a post from the index.
func (h *HNSWSignatureIndex) Delete(postID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(postID)
}

// removeLocked drops postID from the graph. The graph cannot be emptied by
// deletion, as it keeps dangling layers that break later inserts, so removing
// the last node starts a fresh graph instead.
func (h *HNSWSignatureIndex) removeLocked(postID int64) {
	if _, ok := h.graph.Lookup(postID); !ok {
		return
	}
	if h.graph.Len() == 1 {
		h.graph = h.newGraph(h.graph.M)
		return
	}
	h.graph.Delete(postID)
}

// Search returns up to k post IDs whose vectors are closest to the query
// signature, nearest first.
func (h *HNSWSignatureIndex) Search(c signature.Compressed, k int) []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph.Len() == 0 || k <= 0 {
		return nil
	}

	neighbors := h.graph.Search(signature.Decode(c).Centered(), k)
	ids := make([]int64, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Key
	}
	return ids
}

// Count returns the number of indexed posts.
func (h *HNSWSignatureIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph.Len()
}

// Metadata describes the current contents of the index.
func (h *HNSWSignatureIndex) Metadata() HNSWIndexMetadata {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HNSWIndexMetadata{
		PostCount:        int64(h.graph.Len()),
		MaxPostID:        h.maxID,
		SignatureVersion: signature.Version,
		BuildTime:        time.Now(),
	}
}

// Save persists the graph to path and its metadata to path.meta. An empty
// index removes both files.
func (h *HNSWSignatureIndex) Save(path string) error {
	meta := h.Metadata()

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph.Len() == 0 {
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if err := h.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close HNSW index file: %w", err)
	}

	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0o600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// Load replaces the graph with the one stored at path and returns its
// metadata. The caller decides whether the metadata is still current.
func (h *HNSWSignatureIndex) Load(path string) (HNSWIndexMetadata, error) {
	meta, err := LoadHNSWMetadata(path)
	if err != nil {
		return meta, err
	}
	if meta.SignatureVersion != signature.Version {
		return meta, fmt.Errorf("%w: HNSW index built for signature version %d", ErrStaleSnapshot, meta.SignatureVersion)
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return meta, fmt.Errorf("failed to load HNSW index: %w", err)
	}
	if saved.Graph == nil {
		return meta, errors.New("HNSW index file is empty")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	saved.Graph.EfSearch = h.efSearch
	h.graph = saved.Graph
	h.maxID = meta.MaxPostID
	return meta, nil
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}
