package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileBackend writes each summary as <dir>/<id>.json.
type FileBackend struct {
	dir string
}

// NewFileBackend creates a file backend rooted at dir.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

// Path returns the file a summary with id is written to.
func (b *FileBackend) Path(id string) string {
	return filepath.Join(b.dir, id+".json")
}

// Publish implements Backend.
func (b *FileBackend) Publish(ctx context.Context, s *Summary) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := s.JSON()
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	// Write atomically via rename
	path := b.Path(s.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Name implements Backend.
func (b *FileBackend) Name() string {
	return "file"
}
