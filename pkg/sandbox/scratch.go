package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// scratchDir is the per-execution working directory. Removal is idempotent
// because the owner depends on the engine: the Go engine removes it when the
// program goroutine finishes (which may be after the caller timed out), the
// wasm engine when the call returns.
type scratchDir struct {
	path string
	once sync.Once
}

func newScratchDir(root string) (*scratchDir, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "mirage-engine")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	path, err := os.MkdirTemp(root, "exec-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &scratchDir{path: path}, nil
}

func (s *scratchDir) Path() string {
	return s.path
}

func (s *scratchDir) Remove() {
	s.once.Do(func() {
		os.RemoveAll(s.path)
	})
}
