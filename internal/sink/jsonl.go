// Package sink appends review records to a line-delimited JSON file.
// The file is append-only: opening never truncates, every record is synced
// to disk before Append returns, so an interrupted run loses at most the
// record in flight.
package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"review-harvester/internal/models"
)

// JSONL is the append-only output sink for one run.
type JSONL struct {
	f       *os.File
	path    string
	written int
}

// OpenJSONL opens (or creates) the output file for appending.
func OpenJSONL(path string) (*JSONL, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file '%s': %w", path, err)
	}
	return &JSONL{f: f, path: path}, nil
}

// Append serializes one record to a single line and syncs it to disk.
func (s *JSONL) Append(rec models.Review) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize review %s: %w", rec.Key, err)
	}
	if _, err := s.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append to '%s': %w", s.path, err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync '%s': %w", s.path, err)
	}
	s.written++
	return nil
}

// Written returns the number of records appended during this run.
func (s *JSONL) Written() int {
	return s.written
}

func (s *JSONL) Close() error {
	return s.f.Close()
}

// LoadSeenKeys reloads review fingerprints from an existing output file so a
// re-run appends only records it has not stored before. A missing file means
// a fresh run; malformed lines are skipped.
func LoadSeenKeys(path string) (map[string]struct{}, error) {
	seen := make(map[string]struct{})

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return seen, nil
		}
		return nil, fmt.Errorf("failed to read existing output '%s': %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// Review text can make lines long.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var row struct {
			Key string `json:"review_key"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			continue
		}
		if row.Key != "" {
			seen[row.Key] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan existing output '%s': %w", path, err)
	}
	return seen, nil
}
