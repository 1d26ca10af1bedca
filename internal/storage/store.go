// Package storage persists canonical reports by key. Loading a key that was
// never saved yields [ErrNotFound], which callers treat as "no baseline".
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

// Sentinel storage errors.
var (
	// ErrNotFound is returned by Load when no report is stored under the key.
	ErrNotFound = errors.New("report not found")

	// ErrRateLimited is returned when the backend refuses work for now; the
	// operation may be retried later.
	ErrRateLimited = errors.New("storage rate limited")

	// ErrInvalidKey is returned for empty or unsafe report keys.
	ErrInvalidKey = errors.New("invalid report key")

	// ErrInvalidConfig is returned by Open for unusable settings.
	ErrInvalidConfig = errors.New("invalid storage config")

	// ErrCorrupt is returned by Load when a stored payload cannot be decoded.
	ErrCorrupt = errors.New("stored report is corrupt")
)

// Store loads and saves reports. Implementations do not serialize
// read-modify-write sequences; callers own that.
type Store interface {
	Load(ctx context.Context, key string) (*coverage.Report, error)
	Save(ctx context.Context, key string, report *coverage.Report) error
	Close() error
}

// Backend names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config selects and configures a backend.
type Config struct {
	Backend     string
	Directory   string
	DSN         string
	Compression string
}

// Open creates the backend selected by cfg.
func Open(cfg Config) (Store, error) {
	compression, err := ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendFile, "":
		return NewFileStore(cfg.Directory, compression)
	case BackendSQLite:
		return NewSQLiteStore(cfg.DSN, compression)
	default:
		return nil, fmt.Errorf("%w: backend %q", ErrInvalidConfig, cfg.Backend)
	}
}

func validateKey(key string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" || trimmed == "." || trimmed == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return nil
}
