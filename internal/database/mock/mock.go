// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/kozaktomas/sigboard/internal/database"
	"github.com/kozaktomas/sigboard/internal/signature"
)

// MockSignatureRepository is an in-memory implementation of database.SignatureWriter
type MockSignatureRepository struct {
	mu         sync.RWMutex
	signatures map[int64]*database.StoredSignature

	// Error injection
	GetError            error
	HasError            error
	CountError          error
	FindByChecksumError error
	FindCandidatesError error
	FindNearestError    error
	GetPostIDsError     error
	ScanError           error
	SaveError           error
	DeleteError         error
	UpdateWordsError    error

	// SaveErrors fails Save for individual posts
	SaveErrors map[int64]error

	// Recorded calls
	UpdateWordsBatches [][]database.WordsUpdate
}

// NewMockSignatureRepository creates a new empty mock repository
func NewMockSignatureRepository() *MockSignatureRepository {
	return &MockSignatureRepository{
		signatures: make(map[int64]*database.StoredSignature),
		SaveErrors: make(map[int64]error),
	}
}

// AddSignature adds a signature to the mock store without error injection
func (m *MockSignatureRepository) AddSignature(sig database.StoredSignature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signatures[sig.PostID] = &sig
}

// Get retrieves the signature of a post
func (m *MockSignatureRepository) Get(ctx context.Context, postID int64) (*database.StoredSignature, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	sig, ok := m.signatures[postID]
	if !ok {
		return nil, nil
	}
	cp := *sig
	return &cp, nil
}

// Has checks if a signature exists
func (m *MockSignatureRepository) Has(ctx context.Context, postID int64) (bool, error) {
	if m.HasError != nil {
		return false, m.HasError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.signatures[postID]
	return ok, nil
}

// Count returns the number of stored signatures
func (m *MockSignatureRepository) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.signatures), nil
}

// Stats returns totals including outdated signatures
func (m *MockSignatureRepository) Stats(ctx context.Context) (database.SignatureStats, error) {
	if m.CountError != nil {
		return database.SignatureStats{}, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := database.SignatureStats{Total: len(m.signatures)}
	for _, sig := range m.signatures {
		if sig.Version != signature.Version {
			stats.Outdated++
		}
	}
	return stats, nil
}

// FindByChecksum returns posts with the given checksum
func (m *MockSignatureRepository) FindByChecksum(ctx context.Context, checksum string) ([]int64, error) {
	if m.FindByChecksumError != nil {
		return nil, m.FindByChecksumError
	}
	if checksum == "" {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for _, id := range m.sortedIDs() {
		if m.signatures[id].Checksum == checksum {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// FindCandidates returns signatures sharing at least one word, nearest first
func (m *MockSignatureRepository) FindCandidates(ctx context.Context, c signature.Compressed, words signature.Words, limit int) ([]database.StoredSignature, error) {
	if m.FindCandidatesError != nil {
		return nil, m.FindCandidatesError
	}
	return m.nearest(c, limit, func(sig *database.StoredSignature) bool {
		return sig.Words.Matches(words) > 0
	}), nil
}

// FindNearest returns the signatures nearest to c
func (m *MockSignatureRepository) FindNearest(ctx context.Context, c signature.Compressed, limit int) ([]database.StoredSignature, error) {
	if m.FindNearestError != nil {
		return nil, m.FindNearestError
	}
	return m.nearest(c, limit, nil), nil
}

func (m *MockSignatureRepository) nearest(c signature.Compressed, limit int, keep func(*database.StoredSignature) bool) []database.StoredSignature {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cache := signature.NewCache(c)
	type scored struct {
		sig  database.StoredSignature
		dist float64
	}
	var all []scored
	for _, id := range m.sortedIDs() {
		sig := m.signatures[id]
		if keep != nil && !keep(sig) {
			continue
		}
		all = append(all, scored{*sig, cache.Distance(sig.Signature)})
	}
	slices.SortStableFunc(all, func(a, b scored) int {
		return cmp.Compare(a.dist, b.dist)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	out := make([]database.StoredSignature, len(all))
	for i := range all {
		out[i] = all[i].sig
	}
	return out
}

// GetPostIDs returns all post IDs, ascending
func (m *MockSignatureRepository) GetPostIDs(ctx context.Context) ([]int64, error) {
	if m.GetPostIDsError != nil {
		return nil, m.GetPostIDsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedIDs(), nil
}

// Scan calls fn with batches of signatures ordered by post ID
func (m *MockSignatureRepository) Scan(ctx context.Context, batchSize int, fn func([]database.StoredSignature) error) error {
	if m.ScanError != nil {
		return m.ScanError
	}
	if batchSize <= 0 {
		return errors.New("batch size must be positive")
	}

	m.mu.RLock()
	all := make([]database.StoredSignature, 0, len(m.signatures))
	for _, id := range m.sortedIDs() {
		all = append(all, *m.signatures[id])
	}
	m.mu.RUnlock()

	for batch := range slices.Chunk(all, batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

// Save stores a signature
func (m *MockSignatureRepository) Save(ctx context.Context, sig database.StoredSignature) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.SaveErrors[sig.PostID]; err != nil {
		return err
	}
	m.signatures[sig.PostID] = &sig
	return nil
}

// Delete removes a signature
func (m *MockSignatureRepository) Delete(ctx context.Context, postID int64) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.signatures, postID)
	return nil
}

// UpdateWords replaces words of existing posts and records the batch
func (m *MockSignatureRepository) UpdateWords(ctx context.Context, updates []database.WordsUpdate) error {
	if m.UpdateWordsError != nil {
		return m.UpdateWordsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateWordsBatches = append(m.UpdateWordsBatches, slices.Clone(updates))
	for _, u := range updates {
		if sig, ok := m.signatures[u.PostID]; ok {
			sig.Words = u.Words
		}
	}
	return nil
}

// sortedIDs must be called with the lock held.
func (m *MockSignatureRepository) sortedIDs() []int64 {
	return slices.Sorted(maps.Keys(m.signatures))
}

// Verify interface compliance
var _ database.SignatureWriter = (*MockSignatureRepository)(nil)
