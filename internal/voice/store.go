// Package voice provides the JSON-file-backed voice profile store that
// supplies reference voices for generation.
package voice

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/lutaSci/voxcpm-service/internal/core"
)

const (
	metadataFilename = "voices.json"

	filePermissions = 0o600
	dirPermissions  = 0o750
)

// ErrAudioEmpty indicates that a profile was created with no audio data.
var ErrAudioEmpty = errors.New("voice audio cannot be empty")

// profileRecord is the durable form of one voice profile. The audio lives in
// <dir>/<id>/<audio_filename>; the record lives in the shared metadata file.
type profileRecord struct {
	VoiceID       string    `json:"voice_id"`
	VoiceName     string    `json:"voice_name"`
	PromptText    string    `json:"prompt_text"`
	AudioFilename string    `json:"audio_filename"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store manages voice profiles on disk. It implements core.VoiceStore for
// the generation path and offers the mutating operations used by profile
// management glue.
type Store struct {
	dir          string
	metadataPath string
	log          *logger.Logger

	mu       sync.RWMutex
	profiles map[string]profileRecord
}

// New opens (or creates) a voice store rooted at dir and loads its metadata.
func New(dir string, log *logger.Logger) (*Store, error) {
	err := os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create voices directory: %w", err)
	}

	store := &Store{
		dir:          dir,
		metadataPath: filepath.Join(dir, metadataFilename),
		log:          log,
		profiles:     make(map[string]profileRecord),
	}

	store.loadMetadata()

	return store, nil
}

// Create stores a new voice profile and returns it.
func (s *Store) Create(audioData []byte, name, promptText, format string) (core.VoiceProfile, error) {
	if len(audioData) == 0 {
		return core.VoiceProfile{}, ErrAudioEmpty
	}

	if format == "" {
		format = "wav"
	}

	id := uuid.NewString()
	voiceDir := filepath.Join(s.dir, id)

	err := os.MkdirAll(voiceDir, dirPermissions)
	if err != nil {
		return core.VoiceProfile{}, fmt.Errorf("failed to create voice directory: %w", err)
	}

	audioFilename := "audio." + format
	audioPath := filepath.Join(voiceDir, audioFilename)

	err = os.WriteFile(audioPath, audioData, filePermissions)
	if err != nil {
		return core.VoiceProfile{}, fmt.Errorf("failed to write voice audio: %w", err)
	}

	record := profileRecord{
		VoiceID:       id,
		VoiceName:     name,
		PromptText:    promptText,
		AudioFilename: audioFilename,
		CreatedAt:     time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[id] = record

	err = s.persistMetadata()
	if err != nil {
		return core.VoiceProfile{}, err
	}

	return s.toProfile(record), nil
}

// Get returns the voice profile for id, or core.ErrVoiceNotFound.
func (s *Store) Get(id string) (core.VoiceProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.profiles[id]
	if !ok {
		return core.VoiceProfile{}, fmt.Errorf("%w: %s", core.ErrVoiceNotFound, id)
	}

	return s.toProfile(record), nil
}

// Exists reports whether a profile exists for id.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.profiles[id]

	return ok
}

// List returns all profiles ordered by creation time.
func (s *Store) List() []core.VoiceProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]core.VoiceProfile, 0, len(s.profiles))
	for _, record := range s.profiles {
		profiles = append(profiles, s.toProfile(record))
	}

	sort.Slice(profiles, func(i, j int) bool {
		return s.profiles[profiles[i].ID].CreatedAt.Before(s.profiles[profiles[j].ID].CreatedAt)
	})

	return profiles
}

// Delete removes a profile and its audio. Deleting an absent profile
// returns core.ErrVoiceNotFound.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.profiles[id]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrVoiceNotFound, id)
	}

	err := os.RemoveAll(filepath.Join(s.dir, id))
	if err != nil {
		return fmt.Errorf("failed to remove voice directory: %w", err)
	}

	delete(s.profiles, id)

	return s.persistMetadata()
}

func (s *Store) toProfile(record profileRecord) core.VoiceProfile {
	return core.VoiceProfile{
		ID:         record.VoiceID,
		Name:       record.VoiceName,
		PromptText: record.PromptText,
		AudioPath:  filepath.Join(s.dir, record.VoiceID, record.AudioFilename),
	}
}

// loadMetadata reads the persisted profiles. An unreadable or corrupt
// metadata file is not fatal: the store logs a warning and starts empty,
// the same as a first run.
func (s *Store) loadMetadata() {
	data, err := os.ReadFile(s.metadataPath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("Failed to read voice metadata '%s', starting empty: %v", s.metadataPath, err)
		}

		return
	}

	err = json.Unmarshal(data, &s.profiles)
	if err != nil {
		s.log.Warn("Failed to parse voice metadata '%s', starting empty: %v", s.metadataPath, err)
		s.profiles = make(map[string]profileRecord)
	}
}

// persistMetadata writes the metadata file through a temp file and a rename
// so a crash mid-write cannot leave truncated JSON behind. Callers must hold
// the mutex.
func (s *Store) persistMetadata() error {
	data, err := json.MarshalIndent(s.profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal voice metadata: %w", err)
	}

	tempFile, err := os.CreateTemp(s.dir, metadataFilename+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create voice metadata temp file: %w", err)
	}

	tempPath := tempFile.Name()

	_, err = tempFile.Write(data)
	if err == nil {
		err = tempFile.Close()
	} else {
		_ = tempFile.Close()
	}

	if err == nil {
		err = os.Rename(tempPath, s.metadataPath)
	}

	if err != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("failed to write voice metadata: %w", err)
	}

	return nil
}
