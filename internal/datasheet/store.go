// Package datasheet stores fetched datasheets as content-addressed blobs.
//
// Naming is deterministic: a file's path is derived solely from the
// SHA-256 of its content, so re-fetching the same document is a no-op and
// two parts referencing the same PDF share one file on disk.
package datasheet

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Store is a write-once blob sink rooted at a directory. Layout:
// <root>/<first two hash hex chars>/<hash><ext>.
type Store struct {
	root string
}

// NewStore creates the root directory if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create datasheet root: %w", err)
	}
	return &Store{root: root}, nil
}

// Put stores content and returns its hash. Content already present is
// left untouched; the write is temp-file-and-rename so a crashed fetch
// never leaves a partial blob at the final path.
func (s *Store) Put(content []byte, ext string) (string, error) {
	sum := sha256.Sum256(content)
	sha := hex.EncodeToString(sum[:])

	path := s.path(sha, ext)
	if _, err := os.Stat(path); err == nil {
		return sha, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalize blob: %w", err)
	}
	return sha, nil
}

// Path returns where a blob with the given hash and extension lives.
// It does not check existence.
func (s *Store) Path(sha, ext string) string {
	return s.path(sha, ext)
}

func (s *Store) path(sha, ext string) string {
	return filepath.Join(s.root, sha[:2], sha+ext)
}
