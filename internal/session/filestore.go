package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"github.com/docker/cv-index/internal/domain"
)

// schemaVersion marks the on-disk record shape. Bumped the way
// pkg/session/migrations.go bumps its CurrentVersion; there is no
// migration runner yet because the shape hasn't changed since v1.
const schemaVersion = 1

type record struct {
	SchemaVersion int `json:"schemaVersion"`
	domain.CodeSession
}

// FileStore persists one JSON file per session under <cvDir>/sessions
// (spec.md §6, §4.9). A single mutex serializes mutations; callers are
// still responsible for not driving two turns of the same session
// concurrently (spec.md §4.9's single-writer note).
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore builds a FileStore rooted at cvDir/sessions.
func NewFileStore(cvDir string) *FileStore {
	return &FileStore{dir: filepath.Join(cvDir, "sessions")}
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStore) Create(ctx context.Context, branch, commitAtStart string) (domain.CodeSession, error) {
	now := time.Now().UTC()
	sess := domain.CodeSession{
		ID:            uuid.NewString(),
		CreatedAt:     now,
		UpdatedAt:     now,
		Branch:        branch,
		CommitAtStart: commitAtStart,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save(sess); err != nil {
		return domain.CodeSession{}, err
	}
	return sess, nil
}

func (s *FileStore) Resume(ctx context.Context, id string) (domain.CodeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

func (s *FileStore) List(ctx context.Context) ([]domain.CodeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: list: %w", err)
	}

	var sessions []domain.CodeSession
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		sess, err := s.load(id)
		if err != nil {
			// A malformed record shouldn't take down the whole list
			// (spec.md §4.9); skip it.
			continue
		}
		sessions = append(sessions, sess)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("session: delete %s: %w", id, err)
	}
	return nil
}

func (s *FileStore) AddMessage(ctx context.Context, id string, msg domain.CodeMessage) error {
	return s.mutate(id, func(sess *domain.CodeSession) error {
		sess.Messages = append(sess.Messages, msg)
		return nil
	})
}

func (s *FileStore) AddPendingEdits(ctx context.Context, id string, edits []domain.Edit) error {
	return s.mutate(id, func(sess *domain.CodeSession) error {
		sess.PendingEdits = append(sess.PendingEdits, edits...)
		return nil
	})
}

func (s *FileStore) SetPendingEditStatus(ctx context.Context, id, editID string, status domain.EditStatus) error {
	return s.mutate(id, func(sess *domain.CodeSession) error {
		for i, e := range sess.PendingEdits {
			if e.ID == editID {
				sess.PendingEdits[i].Status = status
				return nil
			}
		}
		return ErrEditNotPending
	})
}

// MarkEditApplied moves result.Edit from PendingEdits to AppliedEdits and
// folds it into SessionMeta (spec.md §4.9).
func (s *FileStore) MarkEditApplied(ctx context.Context, id string, result domain.EditResult) error {
	return s.mutate(id, func(sess *domain.CodeSession) error {
		idx := -1
		for i, e := range sess.PendingEdits {
			if e.ID == result.Edit.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrEditNotPending
		}
		sess.PendingEdits = append(sess.PendingEdits[:idx], sess.PendingEdits[idx+1:]...)
		sess.AppliedEdits = append(sess.AppliedEdits, result)
		sess.Metadata.TotalEdits++
		sess.Metadata.FilesModified = addUnique(sess.Metadata.FilesModified, result.Edit.File)
		return nil
	})
}

// PopAppliedEdit removes and returns the most recently applied edit, for
// undo (spec.md §4.9).
func (s *FileStore) PopAppliedEdit(ctx context.Context, id string) (domain.EditResult, error) {
	var popped domain.EditResult
	err := s.mutate(id, func(sess *domain.CodeSession) error {
		if len(sess.AppliedEdits) == 0 {
			return ErrNoAppliedEdits
		}
		last := len(sess.AppliedEdits) - 1
		popped = sess.AppliedEdits[last]
		sess.AppliedEdits = sess.AppliedEdits[:last]
		return nil
	})
	if err != nil {
		return domain.EditResult{}, err
	}
	return popped, nil
}

func (s *FileStore) ClearMessages(ctx context.Context, id string) error {
	return s.mutate(id, func(sess *domain.CodeSession) error {
		sess.Messages = nil
		return nil
	})
}

func (s *FileStore) ClearPendingEdits(ctx context.Context, id string) error {
	return s.mutate(id, func(sess *domain.CodeSession) error {
		sess.PendingEdits = nil
		return nil
	})
}

func (s *FileStore) UpdateTokenCount(ctx context.Context, id string, count int) error {
	return s.mutate(id, func(sess *domain.CodeSession) error {
		sess.ActiveContext.TokenCount = count
		return nil
	})
}

// mutate loads id, applies fn, bumps UpdatedAt and saves — all under mu so
// concurrent calls against the same store serialize cleanly.
func (s *FileStore) mutate(id string, fn func(*domain.CodeSession) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.load(id)
	if err != nil {
		return err
	}
	if err := fn(&sess); err != nil {
		return err
	}
	sess.UpdatedAt = time.Now().UTC()
	return s.save(sess)
}

func (s *FileStore) load(id string) (domain.CodeSession, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.CodeSession{}, ErrNotFound
		}
		return domain.CodeSession{}, fmt.Errorf("session: read %s: %w", id, err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.CodeSession{}, fmt.Errorf("session: parse %s: %w", id, err)
	}
	return rec.CodeSession, nil
}

func (s *FileStore) save(sess domain.CodeSession) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("session: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(record{SchemaVersion: schemaVersion, CodeSession: sess}, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal %s: %w", sess.ID, err)
	}
	if err := atomic.WriteFile(s.path(sess.ID), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("session: write %s: %w", sess.ID, err)
	}
	return nil
}
