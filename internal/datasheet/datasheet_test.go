package datasheet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func TestStorePut(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	content := []byte("%PDF-1.4 fake datasheet")
	sum := sha256.Sum256(content)
	wantSHA := hex.EncodeToString(sum[:])

	sha, err := store.Put(content, ".pdf")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if sha != wantSHA {
		t.Errorf("sha = %s, want %s", sha, wantSHA)
	}

	path := store.Path(sha, ".pdf")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("stored blob unreadable: %v", err)
	}
	if string(data) != string(content) {
		t.Error("stored content differs from input")
	}
}

func TestStorePutIsWriteOnce(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	content := []byte("same bytes")
	sha1, err := store.Put(content, ".pdf")
	if err != nil {
		t.Fatal(err)
	}

	info1, err := os.Stat(store.Path(sha1, ".pdf"))
	if err != nil {
		t.Fatal(err)
	}

	sha2, err := store.Put(content, ".pdf")
	if err != nil {
		t.Fatal(err)
	}
	if sha1 != sha2 {
		t.Errorf("hashes differ for identical content: %s vs %s", sha1, sha2)
	}

	info2, err := os.Stat(store.Path(sha2, ".pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if !info2.ModTime().Equal(info1.ModTime()) {
		t.Error("second Put rewrote an existing blob")
	}
}

func TestStorePathIsDeterministic(t *testing.T) {
	a, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	shaA, err := a.Put([]byte("datasheet"), ".pdf")
	if err != nil {
		t.Fatal(err)
	}
	shaB, err := b.Put([]byte("datasheet"), ".pdf")
	if err != nil {
		t.Fatal(err)
	}
	if shaA != shaB {
		t.Errorf("same content hashed differently: %s vs %s", shaA, shaB)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 served datasheet"))
	}))
	defer srv.Close()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fetcher := NewFetcher(store, 5*time.Second, 1<<20)

	sha, ext, err := fetcher.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if ext != ".pdf" {
		t.Errorf("ext = %s, want .pdf", ext)
	}
	if _, err := os.Stat(store.Path(sha, ext)); err != nil {
		t.Errorf("fetched blob not stored: %v", err)
	}
}

func TestFetchErrors(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		fetcher := NewFetcher(store, 5*time.Second, 1<<20)
		if _, _, err := fetcher.Fetch(context.Background(), srv.URL); err == nil {
			t.Error("expected error for 404")
		}
	})

	t.Run("oversized document", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(make([]byte, 2048))
		}))
		defer srv.Close()

		fetcher := NewFetcher(store, 5*time.Second, 1024)
		if _, _, err := fetcher.Fetch(context.Background(), srv.URL); err == nil {
			t.Error("expected error for oversized document")
		}
	})
}
