package loader

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/teranos/trajview/trip"
)

// LocalSource reads <dir>/<key>.csv with '#' comment lines.
type LocalSource struct {
	dir    string
	logger *slog.Logger
}

// NewLocalSource creates a LocalSource rooted at dir.
func NewLocalSource(dir string, logger *slog.Logger) *LocalSource {
	return &LocalSource{dir: dir, logger: logger}
}

// Path returns the file the key resolves to.
func (s *LocalSource) Path(key string) string {
	return filepath.Join(s.dir, key+".csv")
}

// Fetch opens and parses the key's CSV. A missing file yields ErrNotFound.
func (s *LocalSource) Fetch(ctx context.Context, key string) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.Path(key)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, trip.NewFall(trip.Load, "open table", err, trip.Context{"path": path})
	}
	defer f.Close()

	s.logger.Info("reading table", "path", path)
	return ParseCSV(f, CSVOptions{Comment: '#'})
}
