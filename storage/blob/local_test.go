package blobstore

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestLocalStore(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "http://cdn.test/artifacts/")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	url, err := s.Put(ctx, "d1.png", strings.NewReader("png"), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if url != "http://cdn.test/artifacts/d1.png" {
		t.Errorf("Put() url = %q", url)
	}
	// overwrite
	if _, err := s.Put(ctx, "d1.png", strings.NewReader("png v2"), "image/png"); err != nil {
		t.Fatal(err)
	}

	rc, err := s.Get(ctx, "d1.png")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "png v2" {
		t.Errorf("Get() = %q", data)
	}

	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 1 {
		t.Errorf("store holds %d files, want 1", len(entries))
	}

	if err := s.Delete(ctx, "d1.png"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "d1.png"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
	if _, err := s.Get(ctx, "d1.png"); err == nil {
		t.Error("Get(deleted) error = nil")
	}
}

func TestLocalStore_invalidKeys(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"", "../x.png", "a/b.png", `a\b.png`, ".hidden", ".."} {
		if _, err := s.Put(context.Background(), key, strings.NewReader("x"), ""); errors.Cause(err) != ErrInvalidKey {
			t.Errorf("Put(%q) error = %v, want %v", key, err, ErrInvalidKey)
		}
	}
}
