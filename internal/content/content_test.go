package content

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/sigboard/internal/config"
)

func TestDir(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "posts")
	d, err := NewDir(root)
	if err != nil {
		t.Fatalf("NewDir failed: %v", err)
	}

	if _, err := d.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v; want ErrNotFound", err)
	}

	if err := d.Put(ctx, 1, "png", []byte("first")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	// Replacing with another extension must not leave the old file behind.
	if err := d.Put(ctx, 1, ".jpg", []byte("second")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "1.png")); !errors.Is(err, os.ErrNotExist) {
		t.Error("old content file should be removed")
	}

	data, err := d.Get(ctx, 1)
	if err != nil || string(data) != "second" {
		t.Errorf("Get = %q, %v; want second", data, err)
	}

	// Post 11 must not be confused with post 1.
	if err := d.Put(ctx, 11, "gif", []byte("eleven")); err != nil {
		t.Fatal(err)
	}
	if err := d.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := d.Delete(ctx, 1); err != nil {
		t.Errorf("second Delete should succeed, got %v", err)
	}
	if data, err := d.Get(ctx, 11); err != nil || string(data) != "eleven" {
		t.Errorf("Get(11) = %q, %v", data, err)
	}
}

func TestDir_InvalidExtension(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, ext := range []string{"", "../x", "a.b"} {
		if err := d.Put(context.Background(), 1, ext, nil); err == nil {
			t.Errorf("Put with extension %q should fail", ext)
		}
	}
}

func TestNewDir_RequiresPath(t *testing.T) {
	if _, err := NewDir(""); err == nil {
		t.Error("NewDir(\"\") should fail")
	}
}

func TestOpen_Dir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "content")
	store, err := Open(context.Background(), &config.ContentConfig{Dir: root})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := store.(*Dir); !ok {
		t.Errorf("Open returned %T; want *Dir", store)
	}
}
