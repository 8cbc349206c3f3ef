package syncengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/docker/cv-index/internal/domain"
)

// StatePath returns .cv/sync-state.json under cvDir (spec.md §6).
func StatePath(cvDir string) string {
	return filepath.Join(cvDir, "sync-state.json")
}

// LoadState reads the persisted SyncState, returning a zero-value state
// (never an error) if none has been written yet.
func LoadState(cvDir string) (domain.SyncState, error) {
	data, err := os.ReadFile(StatePath(cvDir))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.SyncState{LanguageHistogram: map[string]int{}, FileHashes: map[string]string{}}, nil
		}
		return domain.SyncState{}, fmt.Errorf("syncengine: read state: %w", err)
	}
	var state domain.SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.SyncState{}, fmt.Errorf("syncengine: parse state: %w", err)
	}
	if state.LanguageHistogram == nil {
		state.LanguageHistogram = map[string]int{}
	}
	if state.FileHashes == nil {
		state.FileHashes = map[string]string{}
	}
	return state, nil
}

// SaveState atomically persists state to .cv/sync-state.json
// (natefinch/atomic write-to-temp-then-rename, matching the teacher's
// session-save pattern for durability against a crash mid-write).
func SaveState(cvDir string, state domain.SyncState) error {
	if err := os.MkdirAll(cvDir, 0o755); err != nil {
		return fmt.Errorf("syncengine: create %s: %w", cvDir, err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("syncengine: marshal state: %w", err)
	}
	if err := atomic.WriteFile(StatePath(cvDir), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("syncengine: write state: %w", err)
	}
	return nil
}
