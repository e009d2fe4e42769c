// Package memory keeps run datasets in process so the status server can
// serve them while the harvester is running.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/JakeFAU/critic-review-crawler/internal/crawler"
	"github.com/JakeFAU/critic-review-crawler/internal/dataset"
)

// BlobStore stores artifacts in-memory and returns pseudo URIs.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{data: make(map[string][]byte)}
}

// DatasetPath returns the object name used for a run's dataset.
func DatasetPath(runID string) string {
	return path.Join(runID, "reviews.tsv")
}

// WriteDataset implements crawler.DatasetSink by keeping the TSV rendering
// of the dataset under <runID>/reviews.tsv.
func (s *BlobStore) WriteDataset(ctx context.Context, runID string, reviews []crawler.Review) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}
	var buf bytes.Buffer
	if err := dataset.WriteTSV(&buf, reviews); err != nil {
		return "", err
	}
	return s.PutObject(ctx, DatasetPath(runID), "text/tab-separated-values", &buf)
}

// PutObject persists the content and returns a URI.
func (s *BlobStore) PutObject(_ context.Context, name string, _ string, data io.Reader) (string, error) {
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = byteData
	return fmt.Sprintf("memory://%s", name), nil
}

// Get returns a copy of a stored object.
func (s *BlobStore) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}

// Dataset returns the TSV dataset stored for runID.
func (s *BlobStore) Dataset(runID string) ([]byte, bool) {
	return s.Get(DatasetPath(runID))
}
