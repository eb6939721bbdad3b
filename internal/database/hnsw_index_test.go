package database

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/sigboard/internal/signature"
)

// randomSignature returns a deterministic pseudo-random signature.
func randomSignature(seed uint64) signature.Compressed {
	rng := rand.New(rand.NewPCG(seed, seed*31+7))
	var sig signature.Signature
	for i := range sig {
		sig[i] = uint8(rng.IntN(signature.NumSymbols))
	}
	return signature.Encode(sig)
}

// perturb changes n symbols of c to a neighboring value.
func perturb(c signature.Compressed, n int) signature.Compressed {
	sig := signature.Decode(c)
	for i := 0; i < n; i++ {
		j := (i * 37) % signature.Len
		if sig[j] < signature.NumSymbols-1 {
			sig[j]++
		} else {
			sig[j]--
		}
	}
	return signature.Encode(sig)
}

func testSignatures(n int) []StoredSignature {
	sigs := make([]StoredSignature, n)
	for i := range sigs {
		id := int64(i + 1)
		sigs[i] = NewStoredSignature(id, "", randomSignature(uint64(id)))
	}
	return sigs
}

func TestHNSWSignatureIndex_Search(t *testing.T) {
	idx := NewHNSWSignatureIndex(0, 0)
	sigs := testSignatures(50)
	idx.Build(sigs)

	if idx.Count() != 50 {
		t.Fatalf("Count = %d; want 50", idx.Count())
	}

	query := perturb(sigs[16].Signature, 20)
	ids := idx.Search(query, 5)
	if len(ids) == 0 || ids[0] != sigs[16].PostID {
		t.Errorf("Search = %v; want %d first", ids, sigs[16].PostID)
	}
}

func TestHNSWSignatureIndex_AddDelete(t *testing.T) {
	idx := NewHNSWSignatureIndex(8, 32)
	if ids := idx.Search(randomSignature(1), 3); ids != nil {
		t.Errorf("Search on empty index = %v; want nil", ids)
	}

	for _, s := range testSignatures(10) {
		idx.Add(s.PostID, s.Signature)
	}
	idx.Add(3, randomSignature(3))
	if idx.Count() != 10 {
		t.Fatalf("Count = %d; want 10", idx.Count())
	}

	idx.Delete(3)
	for _, id := range idx.Search(randomSignature(3), 10) {
		if id == 3 {
			t.Error("deleted post returned by Search")
		}
	}
	if meta := idx.Metadata(); meta.MaxPostID != 10 || meta.PostCount != 9 {
		t.Errorf("Metadata = %+v", meta)
	}
}

func TestHNSWSignatureIndex_ReplaceOnlyNode(t *testing.T) {
	idx := NewHNSWSignatureIndex(0, 0)
	idx.Add(1, randomSignature(1))
	idx.Add(1, randomSignature(2))

	if idx.Count() != 1 {
		t.Fatalf("Count = %d; want 1", idx.Count())
	}
	if ids := idx.Search(randomSignature(2), 1); len(ids) != 1 || ids[0] != 1 {
		t.Errorf("Search = %v; want [1]", ids)
	}
}

func TestHNSWSignatureIndex_DeleteAllThenAdd(t *testing.T) {
	idx := NewHNSWSignatureIndex(0, 0)
	idx.Add(1, randomSignature(1))
	idx.Add(2, randomSignature(2))
	idx.Delete(1)
	idx.Delete(2)
	idx.Delete(2)
	if idx.Count() != 0 {
		t.Fatalf("Count = %d; want 0", idx.Count())
	}
	if ids := idx.Search(randomSignature(1), 3); ids != nil {
		t.Errorf("Search on emptied index = %v; want nil", ids)
	}

	idx.Add(3, randomSignature(3))
	idx.Add(4, randomSignature(4))
	if idx.Count() != 2 {
		t.Fatalf("Count = %d; want 2", idx.Count())
	}
	if ids := idx.Search(randomSignature(3), 1); len(ids) != 1 || ids[0] != 3 {
		t.Errorf("Search = %v; want [3]", ids)
	}
}

func TestHNSWSignatureIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signatures.hnsw")

	idx := NewHNSWSignatureIndex(0, 0)
	sigs := testSignatures(20)
	idx.Build(sigs)
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := NewHNSWSignatureIndex(0, 0)
	meta, err := loaded.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !meta.Matches(20, 20) {
		t.Errorf("metadata %+v should match 20 posts", meta)
	}
	if meta.Matches(21, 21) {
		t.Error("metadata should not match a different post count")
	}
	if loaded.Count() != 20 {
		t.Errorf("loaded Count = %d; want 20", loaded.Count())
	}
	if ids := loaded.Search(sigs[4].Signature, 1); len(ids) != 1 || ids[0] != 5 {
		t.Errorf("Search after load = %v; want [5]", ids)
	}
}

func TestHNSWSignatureIndex_SaveEmptyRemovesFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signatures.hnsw")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+".meta", []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := NewHNSWSignatureIndex(0, 0).Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	for _, p := range []string{path, path + ".meta"} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s should have been removed", p)
		}
	}
}

func TestHNSWSignatureIndex_LoadStaleVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signatures.hnsw")
	if err := os.WriteFile(path+".meta", []byte(`{"signature_version": 0}`), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := NewHNSWSignatureIndex(0, 0).Load(path)
	if !errors.Is(err, ErrStaleSnapshot) {
		t.Errorf("Load error = %v; want ErrStaleSnapshot", err)
	}
}
