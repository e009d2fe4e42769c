// Package local writes harvest outputs to the local filesystem.
package local

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/critic-review-crawler/internal/crawler"
	"github.com/JakeFAU/critic-review-crawler/internal/dataset"
)

const (
	defaultCriticsFile = "critics_list.txt"
	defaultReviewsFile = "reviews.tsv"

	tsvContentType = "text/tab-separated-values"
)

// Config captures the parameters for the local output directory.
type Config struct {
	// BaseDir is the root directory where outputs are written.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
	// CriticsFile is the critic list file name inside BaseDir.
	CriticsFile string `mapstructure:"critics_file" yaml:"critics_file"`
	// ReviewsFile is the dataset file name inside BaseDir.
	ReviewsFile string `mapstructure:"reviews_file" yaml:"reviews_file"`
}

// BlobStore writes artifacts to the local filesystem. It serves as both the
// critic list writer and a dataset sink.
type BlobStore struct {
	baseDir     string
	criticsFile string
	reviewsFile string
}

// New creates a new local filesystem-backed blob store.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	// Check for write permissions.
	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	criticsFile := cfg.CriticsFile
	if criticsFile == "" {
		criticsFile = defaultCriticsFile
	}
	reviewsFile := cfg.ReviewsFile
	if reviewsFile == "" {
		reviewsFile = defaultReviewsFile
	}
	return &BlobStore{
		baseDir:     cfg.BaseDir,
		criticsFile: criticsFile,
		reviewsFile: reviewsFile,
	}, nil
}

// WriteCritics implements crawler.CriticListWriter: one id per line, sorted
// by the caller.
func (s *BlobStore) WriteCritics(ctx context.Context, criticIDs []string) error {
	body := strings.NewReader(strings.Join(criticIDs, "\n"))
	if _, err := s.PutObject(ctx, s.criticsFile, "text/plain", body); err != nil {
		return fmt.Errorf("write critic list: %w", err)
	}
	return nil
}

// ReadCritics loads a critic list written by WriteCritics.
func (s *BlobStore) ReadCritics() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, s.criticsFile))
	if err != nil {
		return nil, fmt.Errorf("read critic list: %w", err)
	}
	return strings.Split(string(data), "\n"), nil
}

// WriteDataset implements crawler.DatasetSink.
func (s *BlobStore) WriteDataset(ctx context.Context, _ string, reviews []crawler.Review) (string, error) {
	var buf bytes.Buffer
	if err := dataset.WriteTSV(&buf, reviews); err != nil {
		return "", err
	}
	uri, err := s.PutObject(ctx, s.reviewsFile, tsvContentType, &buf)
	if err != nil {
		return "", fmt.Errorf("write dataset: %w", err)
	}
	return uri, nil
}

// PutObject writes data to a file on the local filesystem and returns a file:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}

	fullPath := filepath.Join(s.baseDir, path)

	// Clean the path and verify it's within baseDir to prevent path traversal.
	cleanBaseDir := filepath.Clean(s.baseDir)
	cleanFullPath := filepath.Clean(fullPath)
	if !strings.HasPrefix(cleanFullPath, cleanBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create parent directories: %w", err)
	}

	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}

	if err := os.WriteFile(fullPath, byteData, 0o600); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return fmt.Sprintf("file://%s", fullPath), nil
}
