package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/collabwhiteboard/cwse/internal/errs"
	"github.com/collabwhiteboard/cwse/pkg/shape"
)

// FileStore persists each checkpoint as its own numbered blob file under
// Dir. The in-memory `next` counter is reconstructed from the
// highest-numbered file present on disk at construction time, so a
// restarted server resumes numbering correctly.
type FileStore struct {
	mu   sync.Mutex
	dir  string
	next int
}

// NewFileStore creates dir if needed and returns a FileStore rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create dir: %w", err)
	}
	fs := &FileStore{dir: dir}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read dir: %w", err)
	}
	for _, e := range entries {
		var n int
		if _, err := fmt.Sscanf(e.Name(), "%d.json", &n); err == nil && n > fs.next {
			fs.next = n
		}
	}
	return fs, nil
}

func (fs *FileStore) path(k int) string {
	return filepath.Join(fs.dir, fmt.Sprintf("%d.json", k))
}

// Save implements Store.
func (fs *FileStore) Save(shapes []shape.BoardShape) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	k := fs.next + 1
	data, err := json.Marshal(shapes)
	if err != nil {
		return 0, fmt.Errorf("checkpoint: marshal: %w", err)
	}
	if err := os.WriteFile(fs.path(k), data, 0o644); err != nil {
		return 0, fmt.Errorf("checkpoint: write: %w", err)
	}
	fs.next = k
	return k, nil
}

// Fetch implements Store.
func (fs *FileStore) Fetch(k int) ([]shape.BoardShape, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	data, err := os.ReadFile(fs.path(k))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("checkpoint %d: %w", k, errs.ErrUnknownCheckpoint)
		}
		return nil, fmt.Errorf("checkpoint: read: %w", err)
	}
	var shapes []shape.BoardShape
	if err := json.Unmarshal(data, &shapes); err != nil {
		return nil, fmt.Errorf("checkpoint: unmarshal: %w", err)
	}
	return shapes, nil
}

// Count implements Store.
func (fs *FileStore) Count() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.next
}
