package repository

import (
	"fmt"
	"os"
	"path/filepath"
)

// Open returns the run history store for path. An empty path selects the
// in-memory store; otherwise a SQLite database is opened, creating its
// parent directory when needed.
func Open(path string) (RunRepository, error) {
	if path == "" {
		return NewInMemoryRunRepository(), nil
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	return NewSQLiteRunRepository(path)
}
