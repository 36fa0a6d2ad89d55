// Package artifact persists generated audio with an expiration horizon.
// Expired entries are reclaimed lazily on access and periodically by the
// sweeper.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/book-expert/logger"

	"github.com/lutaSci/voxcpm-service/internal/core"
)

const (
	indexFilename = "metadata.json"

	filePermissions = 0o600
	dirPermissions  = 0o750
)

// Metadata describes one stored artifact. The wire field names match the
// persisted index layout.
type Metadata struct {
	ID              string    `json:"audio_id"`
	Filename        string    `json:"filename"`
	Format          string    `json:"format"`
	SampleRate      int       `json:"sample_rate"`
	DurationSeconds float64   `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Store keeps generated audio files beside a durable metadata index. All
// index mutations happen under one mutex; audio files are fully written
// before their entry becomes visible, so no reader ever observes a partial
// write. An entry past its expiration is treated as absent on every read
// path and reclaimed on the spot.
type Store struct {
	dir       string
	ttl       time.Duration
	indexPath string
	log       *logger.Logger

	mu      sync.Mutex
	entries map[string]Metadata
}

// New opens (or creates) an artifact store rooted at dir. Entries persisted
// by a previous process are reloaded from the index file.
func New(dir string, ttl time.Duration, log *logger.Logger) (*Store, error) {
	err := os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	store := &Store{
		dir:       dir,
		ttl:       ttl,
		indexPath: filepath.Join(dir, indexFilename),
		log:       log,
		entries:   make(map[string]Metadata),
	}

	store.loadIndex()

	return store, nil
}

// Save writes the audio bytes to disk and then publishes the metadata entry.
func (s *Store) Save(id string, data []byte, format string, sampleRate int, duration float64) (Metadata, error) {
	filename := id + "." + format
	path := filepath.Join(s.dir, filename)

	err := os.WriteFile(path, data, filePermissions)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to write artifact file: %w", err)
	}

	now := time.Now().UTC()
	meta := Metadata{
		ID:              id,
		Filename:        filename,
		Format:          format,
		SampleRate:      sampleRate,
		DurationSeconds: duration,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[id] = meta

	err = s.persistIndexLocked()
	if err != nil {
		// Roll back so a failed save leaves neither an index entry nor an
		// unreferenced audio file behind.
		delete(s.entries, id)

		removeErr := os.Remove(path)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			s.log.Warn("Failed to remove artifact file '%s' after index failure: %v", path, removeErr)
		}

		return Metadata{}, err
	}

	return meta, nil
}

// Fetch returns the audio bytes and metadata for id. Expired or unknown
// artifacts yield core.ErrArtifactNotFound; expired ones are reclaimed
// before returning.
func (s *Store) Fetch(id string) ([]byte, Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.liveEntryLocked(id)
	if err != nil {
		return nil, Metadata{}, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, meta.Filename))
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("failed to read artifact file: %w", err)
	}

	return data, meta, nil
}

// Info returns the metadata for id with the same expiry semantics as Fetch.
func (s *Store) Info(id string) (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.liveEntryLocked(id)
}

// Delete removes an artifact explicitly.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrArtifactNotFound, id)
	}

	return s.removeLocked(id)
}

// Sweep removes every expired entry and reports how many were reclaimed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	var expired []string

	for id, meta := range s.entries {
		if now.After(meta.ExpiresAt) {
			expired = append(expired, id)
		}
	}

	for _, id := range expired {
		err := s.removeLocked(id)
		if err != nil {
			s.log.Warn("Failed to remove expired artifact '%s': %v", id, err)
		}
	}

	return len(expired)
}

// Len reports the number of live (possibly expired but not yet reclaimed)
// index entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// liveEntryLocked returns the entry for id, reclaiming it first if expired.
// Callers must hold the mutex.
func (s *Store) liveEntryLocked(id string) (Metadata, error) {
	meta, ok := s.entries[id]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: %s", core.ErrArtifactNotFound, id)
	}

	if time.Now().UTC().After(meta.ExpiresAt) {
		err := s.removeLocked(id)
		if err != nil {
			s.log.Warn("Failed to reclaim expired artifact '%s': %v", id, err)
		}

		return Metadata{}, fmt.Errorf("%w: %s", core.ErrArtifactNotFound, id)
	}

	return meta, nil
}

// removeLocked deletes the audio file and the index entry. Callers must
// hold the mutex.
func (s *Store) removeLocked(id string) error {
	meta := s.entries[id]

	err := os.Remove(filepath.Join(s.dir, meta.Filename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artifact file: %w", err)
	}

	delete(s.entries, id)

	return s.persistIndexLocked()
}

// loadIndex reads the persisted index. An unreadable or corrupt index file
// is not fatal: the store logs a warning and starts empty, the same as a
// first run. Orphaned audio files age out through the sweeper's horizon.
func (s *Store) loadIndex() {
	data, err := os.ReadFile(s.indexPath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("Failed to read artifact index '%s', starting empty: %v", s.indexPath, err)
		}

		return
	}

	err = json.Unmarshal(data, &s.entries)
	if err != nil {
		s.log.Warn("Failed to parse artifact index '%s', starting empty: %v", s.indexPath, err)
		s.entries = make(map[string]Metadata)
	}
}

// persistIndexLocked writes the index through a temp file and a rename so a
// crash mid-write cannot leave a truncated index behind.
func (s *Store) persistIndexLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact index: %w", err)
	}

	tempFile, err := os.CreateTemp(s.dir, indexFilename+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create artifact index temp file: %w", err)
	}

	tempPath := tempFile.Name()

	_, err = tempFile.Write(data)
	if err == nil {
		err = tempFile.Close()
	} else {
		_ = tempFile.Close()
	}

	if err == nil {
		err = os.Rename(tempPath, s.indexPath)
	}

	if err != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("failed to write artifact index: %w", err)
	}

	return nil
}
