package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

const (
	DefaultPostedRunsPath = "data/posted_runs.json"
	DefaultWatermarksPath = "data/watermarks.json"
)

// PersistenceError reports a failed read or write of durable bot state.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persistence %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// FileStore keeps posted run ids and leaderboard watermarks in two JSON
// files. Writes replace the file atomically.
type FileStore struct {
	postedRunsPath string
	watermarksPath string

	mu sync.Mutex
}

func NewFileStore(postedRunsPath, watermarksPath string) *FileStore {
	if postedRunsPath == "" {
		postedRunsPath = DefaultPostedRunsPath
	}
	if watermarksPath == "" {
		watermarksPath = DefaultWatermarksPath
	}
	return &FileStore{postedRunsPath: postedRunsPath, watermarksPath: watermarksPath}
}

func (s *FileStore) LoadPostedRuns(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	if err := readJSON(s.postedRunsPath, &ids); err != nil {
		return nil, &PersistenceError{Op: "load", Path: s.postedRunsPath, Err: err}
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *FileStore) SavePostedRuns(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeJSONAtomic(s.postedRunsPath, ids); err != nil {
		return &PersistenceError{Op: "save", Path: s.postedRunsPath, Err: err}
	}
	return nil
}

func (s *FileStore) LoadWatermark(ctx context.Context, key string) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	watermarks, err := s.readWatermarks()
	if err != nil {
		return time.Time{}, false, err
	}
	watermark, ok := watermarks[key]
	return watermark, ok, nil
}

func (s *FileStore) SaveWatermark(ctx context.Context, key string, watermark time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	watermarks, err := s.readWatermarks()
	if err != nil {
		return err
	}
	watermarks[key] = watermark.UTC()
	if err := writeJSONAtomic(s.watermarksPath, watermarks); err != nil {
		return &PersistenceError{Op: "save", Path: s.watermarksPath, Err: err}
	}
	return nil
}

func (s *FileStore) readWatermarks() (map[string]time.Time, error) {
	watermarks := make(map[string]time.Time)
	if err := readJSON(s.watermarksPath, &watermarks); err != nil {
		return nil, &PersistenceError{Op: "load", Path: s.watermarksPath, Err: err}
	}
	return watermarks, nil
}

// readJSON decodes path into v. A missing file leaves v untouched.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating directory for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
