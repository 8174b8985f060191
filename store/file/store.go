// Package file implements job.Store on the local filesystem. Each job is a
// single JSON document at <dir>/<id>.json, replaced atomically via a temp
// file, fsync, and rename so a concurrent reader never observes a partial
// record and records survive process restarts.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	arena "github.com/lemon-tea-ai/arena"
	"github.com/lemon-tea-ai/arena/id"
	"github.com/lemon-tea-ai/arena/job"
)

var _ job.Store = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store persists job records as JSON files under a single directory.
type Store struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// New creates a file-backed store rooted at dir, creating the directory if
// it does not exist.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("arena/file: create store dir: %w", err)
	}
	s := &Store{dir: dir, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Ping verifies the store directory is accessible.
func (s *Store) Ping(_ context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := os.Stat(s.dir); err != nil {
		return fmt.Errorf("arena/file: ping: %w", err)
	}
	return nil
}

// Close marks the store closed. Subsequent calls fail with ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// PutJob writes the record to a temp file in the same directory, fsyncs it,
// and renames it over the destination.
func (s *Store) PutJob(_ context.Context, j *job.Job) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("arena/file: marshal job: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, j.ID.String()+".*.tmp")
	if err != nil {
		return fmt.Errorf("arena/file: create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("arena/file: write job: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("arena/file: sync job: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("arena/file: close temp: %w", err)
	}

	if err := os.Rename(tmpName, s.path(j.ID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("arena/file: rename job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(jobID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, arena.ErrJobNotFound
		}
		return nil, fmt.Errorf("arena/file: read job: %w", err)
	}

	var j job.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("arena/file: decode job %s: %w", jobID, err)
	}
	return &j, nil
}

// ListJobs reads every record in the directory. Files that fail to decode
// are skipped with a warning rather than failing the whole listing.
func (s *Store) ListJobs(_ context.Context) ([]*job.Job, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("arena/file: list store dir: %w", err)
	}

	jobs := make([]*job.Job, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, rErr := os.ReadFile(filepath.Join(s.dir, name))
		if rErr != nil {
			if errors.Is(rErr, fs.ErrNotExist) {
				continue // deleted between readdir and read
			}
			return nil, fmt.Errorf("arena/file: read job file %s: %w", name, rErr)
		}
		var j job.Job
		if uErr := json.Unmarshal(data, &j); uErr != nil {
			s.logger.Warn("skipping undecodable job file", "file", name, "error", uErr)
			continue
		}
		jobs = append(jobs, &j)
	}
	return jobs, nil
}

// DeleteJob removes the record file. Deleting a missing id is not an error.
func (s *Store) DeleteJob(_ context.Context, jobID id.JobID) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if err := os.Remove(s.path(jobID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("arena/file: delete job: %w", err)
	}
	return nil
}

func (s *Store) path(jobID id.JobID) string {
	return filepath.Join(s.dir, jobID.String()+".json")
}

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return arena.ErrStoreClosed
	}
	return nil
}
