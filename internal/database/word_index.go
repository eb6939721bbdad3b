package database

import (
	"bufio"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/klauspost/compress/zstd"
	"github.com/kozaktomas/sigboard/internal/signature"
)

// ErrStaleSnapshot is returned when a snapshot was written for another
// signature version or file format.
var ErrStaleSnapshot = errors.New("stale word index snapshot")

// WordIndex is an in-memory inverted index from signature words to posts.
type WordIndex struct {
	mu       sync.RWMutex
	postings map[int32]*roaring64.Bitmap
	words    map[int64]signature.Words
}

// NewWordIndex creates a new empty word index.
func NewWordIndex() *WordIndex {
	return &WordIndex{
		postings: make(map[int32]*roaring64.Bitmap),
		words:    make(map[int64]signature.Words),
	}
}

// Add indexes the words of a post, replacing previously indexed words.
func (w *WordIndex) Add(postID int64, words signature.Words) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.addLocked(postID, words)
}

func (w *WordIndex) addLocked(postID int64, words signature.Words) {
	if old, ok := w.words[postID]; ok {
		w.removeLocked(postID, old)
	}
	for _, word := range words {
		bm, ok := w.postings[word]
		if !ok {
			bm = roaring64.New()
			w.postings[word] = bm
		}
		bm.Add(uint64(postID))
	}
	w.words[postID] = words
}

// Remove drops a post from the index.
func (w *WordIndex) Remove(postID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if old, ok := w.words[postID]; ok {
		w.removeLocked(postID, old)
	}
}

func (w *WordIndex) removeLocked(postID int64, words signature.Words) {
	for _, word := range words {
		bm, ok := w.postings[word]
		if !ok {
			continue
		}
		bm.Remove(uint64(postID))
		if bm.IsEmpty() {
			delete(w.postings, word)
		}
	}
	delete(w.words, postID)
}

// Words returns the indexed words of a post.
func (w *WordIndex) Words(postID int64) (signature.Words, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	words, ok := w.words[postID]
	return words, ok
}

// Count returns the number of indexed posts.
func (w *WordIndex) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.words)
}

// Candidates returns the posts sharing at least one word with words. When
// more than limit posts match, the ones sharing the most words are kept.
// Results are ordered by shared words descending, then post ID.
func (w *WordIndex) Candidates(words signature.Words, limit int) []int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	bitmaps := make([]*roaring64.Bitmap, 0, len(words))
	for _, word := range words {
		if bm, ok := w.postings[word]; ok {
			bitmaps = append(bitmaps, bm)
		}
	}
	if len(bitmaps) == 0 {
		return nil
	}

	union := roaring64.FastOr(bitmaps...)
	matches := make(map[int64]int, union.GetCardinality())
	for _, bm := range bitmaps {
		it := bm.Iterator()
		for it.HasNext() {
			matches[int64(it.Next())]++
		}
	}

	ids := make([]int64, 0, len(matches))
	for id := range matches {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b int64) int {
		if c := cmp.Compare(matches[b], matches[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

// Build replaces the whole index with the given signatures.
func (w *WordIndex) Build(sigs []StoredSignature) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.postings = make(map[int32]*roaring64.Bitmap)
	w.words = make(map[int64]signature.Words, len(sigs))
	for i := range sigs {
		w.addLocked(sigs[i].PostID, sigs[i].Words)
	}
}

// Save writes a zstd compressed snapshot of the index to path.
func (w *WordIndex) Save(path string) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	tmp := path + ".tmp"
	f, err := os.Create(tmp) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create word index file: %w", err)
	}

	if err := w.writeTo(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close word index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace word index file: %w", err)
	}
	return nil
}

func (w *WordIndex) writeTo(out io.Writer) error {
	enc, err := zstd.NewWriter(out)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	bw := bufio.NewWriter(enc)

	header := []any{
		[]byte(wordIndexMagic),
		uint32(wordIndexFormat),
		uint32(signature.Version),
		uint64(len(w.words)),
	}
	for _, v := range header {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("failed to write word index header: %w", err)
		}
	}

	ids := make([]int64, 0, len(w.words))
	for id := range w.words {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		words := w.words[id]
		if err := binary.Write(bw, binary.LittleEndian, id); err != nil {
			return fmt.Errorf("failed to write word index entry: %w", err)
		}
		if err := binary.Write(bw, binary.LittleEndian, words[:]); err != nil {
			return fmt.Errorf("failed to write word index entry: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush word index: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finish zstd stream: %w", err)
	}
	return nil
}

// Load replaces the index with a snapshot written by Save. A missing file
// leaves the index untouched and returns os.ErrNotExist.
func (w *WordIndex) Load(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to open word index file: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	var (
		magic   [4]byte
		format  uint32
		version uint32
		count   uint64
	)
	for _, v := range []any{&magic, &format, &version, &count} {
		if err := binary.Read(br, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("failed to read word index header: %w", err)
		}
	}
	if string(magic[:]) != wordIndexMagic {
		return fmt.Errorf("%w: bad magic %q", ErrStaleSnapshot, magic[:])
	}
	if format != wordIndexFormat || version != signature.Version {
		return fmt.Errorf("%w: format %d version %d", ErrStaleSnapshot, format, version)
	}

	sigs := make([]StoredSignature, count)
	for i := range sigs {
		if err := binary.Read(br, binary.LittleEndian, &sigs[i].PostID); err != nil {
			return fmt.Errorf("failed to read word index entry %d: %w", i, err)
		}
		if err := binary.Read(br, binary.LittleEndian, sigs[i].Words[:]); err != nil {
			return fmt.Errorf("failed to read word index entry %d: %w", i, err)
		}
	}

	w.Build(sigs)
	return nil
}
