package clientqueue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PendingCard is one not-yet-confirmed card inside an intent.
type PendingCard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// CardIntent is a persisted "write these cards under this deck" operation.
// Cursor counts confirmed writes; items before it are never re-sent.
type CardIntent struct {
	ID        string        `json:"id"`
	JobID     string        `json:"job_id"`
	DeckID    string        `json:"deck_id"`
	Cards     []PendingCard `json:"cards"`
	Cursor    int           `json:"cursor"`
	CreatedAt time.Time     `json:"created_at"`
}

// PendingReview is a review submission whose server outcome is unknown.
type PendingReview struct {
	CardID    string    `json:"card_id"`
	Outcome   string    `json:"outcome"`
	AttemptAt time.Time `json:"attempt_at"`
}

type queueState struct {
	Version int             `json:"version"`
	Intents []CardIntent    `json:"intents"`
	Reviews []PendingReview `json:"reviews"`
}

const stateVersion = 1

// Storage persists queue state across process restarts.
type Storage interface {
	Load() (*queueState, error)
	Save(state *queueState) error
}

// FileStorage keeps the queue state in a single JSON file, written via a
// temp file and rename so a crash mid-write never corrupts the state.
type FileStorage struct {
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (s *FileStorage) Load() (*queueState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &queueState{Version: stateVersion}, nil
		}
		return nil, fmt.Errorf("read queue state: %w", err)
	}

	var state queueState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode queue state: %w", err)
	}
	if state.Version == 0 {
		state.Version = stateVersion
	}
	return &state, nil
}

func (s *FileStorage) Save(state *queueState) error {
	state.Version = stateVersion
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".queue-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
