package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

const (
	reportExtension = ".report"
	tmpExtension    = ".tmp"
	dirPerm         = 0o750
	filePerm        = 0o600
)

var keyReplacer = strings.NewReplacer("/", "_", `\`, "_", ":", "_")

// FileStore keeps one file per report key under a directory. Writes go to a
// temporary file that is renamed into place, so readers never observe a
// partial report.
type FileStore struct {
	dir         string
	compression Compression
}

// NewFileStore creates a store rooted at dir, creating the directory if needed.
func NewFileStore(dir string, compression Compression) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty directory", ErrInvalidConfig)
	}

	mkErr := os.MkdirAll(dir, dirPerm)
	if mkErr != nil {
		return nil, fmt.Errorf("file store: %w", mkErr)
	}

	return &FileStore{dir: dir, compression: compression}, nil
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context, key string) (*coverage.Report, error) {
	path, err := s.path(ctx, key)
	if err != nil {
		return nil, err
	}

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		if errors.Is(readErr, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}

		return nil, fmt.Errorf("file store load: %w", readErr)
	}

	report, decodeErr := Decode(data)
	if decodeErr != nil {
		return nil, fmt.Errorf("file store load %s: %w", key, decodeErr)
	}

	return report, nil
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, key string, report *coverage.Report) error {
	path, err := s.path(ctx, key)
	if err != nil {
		return err
	}

	data, encodeErr := Encode(report, s.compression)
	if encodeErr != nil {
		return encodeErr
	}

	tmpPath := path + tmpExtension

	writeErr := os.WriteFile(tmpPath, data, filePerm)
	if writeErr != nil {
		return fmt.Errorf("file store save: %w", writeErr)
	}

	renameErr := os.Rename(tmpPath, path)
	if renameErr != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("file store save: %w", renameErr)
	}

	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) path(ctx context.Context, key string) (string, error) {
	ctxErr := ctx.Err()
	if ctxErr != nil {
		return "", ctxErr
	}

	keyErr := validateKey(key)
	if keyErr != nil {
		return "", keyErr
	}

	return filepath.Join(s.dir, keyReplacer.Replace(key)+reportExtension), nil
}
