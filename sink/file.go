package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes one JSON file per tick into a directory.
type FileSink struct {
	dir string
}

// NewFileSink creates the directory if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating sink directory %s: %w", dir, err)
	}
	return &FileSink{dir: dir}, nil
}

// Persist writes the payload under the artifact key as filename.
func (s *FileSink) Persist(_ context.Context, key string, payload []byte) error {
	path := filepath.Join(s.dir, key)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", key, err)
	}
	return nil
}
