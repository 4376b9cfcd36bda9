package tilesource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// FilesystemSource stores tiles as root/z/x/y files.
type FilesystemSource struct {
	root string
}

var _ Source = (*FilesystemSource)(nil)

func NewFilesystemSource(root string) (*FilesystemSource, error) {
	if root == "" {
		return nil, errors.New("filesystem source: empty root directory")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("filesystem source: %w", err)
	}
	return &FilesystemSource{root: root}, nil
}

func (s *FilesystemSource) GetTile(_ context.Context, z, x, y int) ([]byte, error) {
	content, err := os.ReadFile(s.pathFor(z, x, y))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrTileNotFound
		}
		return nil, err
	}

	return content, nil
}

func (s *FilesystemSource) PutTile(_ context.Context, z, x, y int, data []byte) error {
	path := s.pathFor(z, x, y)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (s *FilesystemSource) GetInfo(_ context.Context) (Info, error) {
	return defaultInfo(s.root, "file"), nil
}

func (s *FilesystemSource) pathFor(z, x, y int) string {
	return filepath.Join(s.root, strconv.Itoa(z), strconv.Itoa(x), strconv.Itoa(y))
}
