package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLocalStorageWriteReadURL(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir(), "http://localhost:8080/media/")
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	data := []byte("png bytes")
	if err := s.Write(ctx, "images/pic.png", bytes.NewReader(data), int64(len(data)), "image/png"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rc, err := s.Read(ctx, "images/pic.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, data) {
		t.Fatalf("Read = %q, want %q", got, data)
	}

	url, err := s.GetURL(ctx, "images/pic.png", time.Hour)
	if err != nil {
		t.Fatalf("GetURL: %v", err)
	}
	if url != "http://localhost:8080/media/images/pic.png" {
		t.Fatalf("GetURL = %q", url)
	}
}

func TestLocalStorageMissing(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	if _, err := s.Read(ctx, "images/none.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetURL(ctx, "images/none.png", time.Hour); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetURL err = %v, want ErrNotFound", err)
	}
	if ok, err := s.Exists(ctx, "images/none.png"); err != nil || ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	if err := s.Delete(ctx, "images/none.png"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestLocalStorageTraversal(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := NewLocalStorage(filepath.Join(base, "blobs"), "/media")
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	if err := s.Write(ctx, "../escape.txt", bytes.NewReader([]byte("x")), 1, ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "escape.txt")); !os.IsNotExist(err) {
		t.Fatal("write escaped the base path")
	}
}
