package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Meta is what a previous download left behind for conditional requests
type Meta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	Bytes        int64     `json:"bytes"`
	Digest       string    `json:"digest"` // blake3 of the stored file
	FetchedAt    time.Time `json:"fetched_at"`
}

// MetaStore persists Meta per URL in a directory
type MetaStore struct {
	dir string
}

// NewMetaStore stores metadata under dir
func NewMetaStore(dir string) *MetaStore {
	return &MetaStore{dir: dir}
}

func metaKey(rawURL string) string {
	hash := sha256.Sum256([]byte(rawURL))
	return "pubcredit:v1:" + hex.EncodeToString(hash[:])
}

// Get returns the stored metadata for rawURL
func (s *MetaStore) Get(rawURL string) (Meta, bool) {
	data, err := os.ReadFile(s.path(rawURL))
	if err != nil {
		return Meta{}, false
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil || m.URL != rawURL {
		return Meta{}, false
	}
	return m, true
}

// Set stores m under its URL
func (s *MetaStore) Set(m Meta) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(s.path(m.URL), data, 0o644); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return nil
}

// Delete forgets rawURL
func (s *MetaStore) Delete(rawURL string) error {
	err := os.Remove(s.path(rawURL))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *MetaStore) path(rawURL string) string {
	return filepath.Join(s.dir, metaKey(rawURL)+".json")
}
