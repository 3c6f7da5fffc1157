package storage

import (
	"log/slog"

	"github.com/IshaanNene/DocScrape/internal/config"
	"github.com/IshaanNene/DocScrape/internal/types"
)

// Storage is the interface for all output writers.
type Storage interface {
	// Store persists a batch of records.
	Store(doctors []*types.Doctor) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the writer identifier.
	Name() string
}

// New opens every writer enabled by cfg. Writers opened before a failure
// are closed again.
func New(cfg config.OutputConfig, logger *slog.Logger) (*MultiStorage, error) {
	var backends []Storage
	fail := func(err error) (*MultiStorage, error) {
		for _, b := range backends {
			b.Close()
		}
		return nil, err
	}

	if !cfg.NoJSON && cfg.JSONFile != "" {
		s, err := NewJSONStorage(cfg.JSONFile, logger)
		if err != nil {
			return fail(err)
		}
		backends = append(backends, s)
	}
	if !cfg.NoCSV && cfg.CSVFile != "" {
		s, err := NewCSVStorage(cfg.CSVFile, logger)
		if err != nil {
			return fail(err)
		}
		backends = append(backends, s)
	}
	if cfg.JSONLFile != "" {
		s, err := NewJSONLStorage(cfg.JSONLFile, logger)
		if err != nil {
			return fail(err)
		}
		backends = append(backends, s)
	}

	return NewMultiStorage(backends, logger), nil
}

// MultiStorage writes records to multiple writers.
type MultiStorage struct {
	backends []Storage
	logger   *slog.Logger
}

// NewMultiStorage creates a storage that fans out to multiple writers.
func NewMultiStorage(backends []Storage, logger *slog.Logger) *MultiStorage {
	return &MultiStorage{
		backends: backends,
		logger:   logger.With("component", "multi_storage"),
	}
}

func (s *MultiStorage) Name() string { return "multi" }

// Backends returns the names of the active writers.
func (s *MultiStorage) Backends() []string {
	names := make([]string, len(s.backends))
	for i, b := range s.backends {
		names[i] = b.Name()
	}
	return names
}

func (s *MultiStorage) Store(doctors []*types.Doctor) error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Store(doctors); err != nil {
			s.logger.Error("backend store failed", "backend", backend.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *MultiStorage) Close() error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil {
			s.logger.Error("backend close failed", "backend", backend.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
