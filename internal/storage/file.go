package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/DocScrape/internal/types"
)

func ensureDir(outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

// --- JSON Storage ---

// JSONStorage buffers records and writes them as one indented JSON array
// on Close.
type JSONStorage struct {
	path    string
	doctors []*types.Doctor
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewJSONStorage creates a new JSON file storage.
func NewJSONStorage(outputPath string, logger *slog.Logger) (*JSONStorage, error) {
	if err := ensureDir(outputPath); err != nil {
		return nil, &types.StorageError{Backend: "json", Err: err}
	}

	return &JSONStorage{
		path:    outputPath,
		doctors: make([]*types.Doctor, 0),
		logger:  logger.With("component", "json_storage"),
	}, nil
}

func (s *JSONStorage) Name() string { return "json" }

func (s *JSONStorage) Store(doctors []*types.Doctor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doctors = append(s.doctors, doctors...)
	s.logger.Debug("records buffered", "count", len(doctors), "total", len(s.doctors))
	return nil
}

func (s *JSONStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(s.path)
	if err != nil {
		return &types.StorageError{Backend: "json", Err: fmt.Errorf("create output file: %w", err)}
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s.doctors); err != nil {
		f.Close()
		return &types.StorageError{Backend: "json", Err: fmt.Errorf("encode JSON: %w", err)}
	}
	if err := f.Close(); err != nil {
		return &types.StorageError{Backend: "json", Err: err}
	}

	s.logger.Info("JSON written", "path", s.path, "records", len(s.doctors))
	return nil
}

// ReadJSON loads a JSON output file back into records.
func ReadJSON(path string) ([]*types.Doctor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.StorageError{Backend: "json", Err: err}
	}
	var doctors []*types.Doctor
	if err := json.Unmarshal(data, &doctors); err != nil {
		return nil, &types.StorageError{Backend: "json", Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	return doctors, nil
}

// --- JSONL Storage ---

// JSONLStorage writes records as newline-delimited JSON as they arrive.
type JSONLStorage struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLStorage creates a new JSONL file storage (streaming writes).
func NewJSONLStorage(outputPath string, logger *slog.Logger) (*JSONLStorage, error) {
	if err := ensureDir(outputPath); err != nil {
		return nil, &types.StorageError{Backend: "jsonl", Err: err}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return nil, &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("create output file: %w", err)}
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &JSONLStorage{
		path:   outputPath,
		file:   f,
		enc:    enc,
		logger: logger.With("component", "jsonl_storage"),
	}, nil
}

func (s *JSONLStorage) Name() string { return "jsonl" }

func (s *JSONLStorage) Store(doctors []*types.Doctor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range doctors {
		if err := s.enc.Encode(d); err != nil {
			return &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("encode JSONL: %w", err)}
		}
		s.count++
	}
	return nil
}

func (s *JSONLStorage) Close() error {
	s.logger.Info("JSONL written", "path", s.path, "records", s.count)
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return &types.StorageError{Backend: "jsonl", Err: err}
		}
	}
	return nil
}

// --- CSV Storage ---

// CSVStorage writes records as CSV rows in types.DoctorFields order. The
// header row is written up front so an empty run still yields a valid file.
type CSVStorage struct {
	path   string
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewCSVStorage creates a new CSV file storage.
func NewCSVStorage(outputPath string, logger *slog.Logger) (*CSVStorage, error) {
	if err := ensureDir(outputPath); err != nil {
		return nil, &types.StorageError{Backend: "csv", Err: err}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return nil, &types.StorageError{Backend: "csv", Err: fmt.Errorf("create output file: %w", err)}
	}

	w := csv.NewWriter(f)
	if err := w.Write(types.DoctorFields); err != nil {
		f.Close()
		return nil, &types.StorageError{Backend: "csv", Err: fmt.Errorf("write CSV header: %w", err)}
	}

	return &CSVStorage{
		path:   outputPath,
		file:   f,
		writer: w,
		logger: logger.With("component", "csv_storage"),
	}, nil
}

func (s *CSVStorage) Name() string { return "csv" }

func (s *CSVStorage) Store(doctors []*types.Doctor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range doctors {
		if err := s.writer.Write(d.Row()); err != nil {
			return &types.StorageError{Backend: "csv", Err: fmt.Errorf("write CSV row: %w", err)}
		}
		s.count++
	}

	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return &types.StorageError{Backend: "csv", Err: err}
	}
	return nil
}

func (s *CSVStorage) Close() error {
	s.logger.Info("CSV written", "path", s.path, "records", s.count)
	if s.writer != nil {
		s.writer.Flush()
		if err := s.writer.Error(); err != nil {
			s.file.Close()
			return &types.StorageError{Backend: "csv", Err: err}
		}
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return &types.StorageError{Backend: "csv", Err: err}
		}
	}
	return nil
}
