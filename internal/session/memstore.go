package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docker/cv-index/internal/domain"
)

// InMemoryStore is a Store backed by a map, grounded on
// pkg/session/store.go's InMemorySessionStore. Used in tests for
// components that depend on Store without exercising the filesystem.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]domain.CodeSession
}

// NewInMemoryStore builds an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]domain.CodeSession)}
}

func (s *InMemoryStore) Create(ctx context.Context, branch, commitAtStart string) (domain.CodeSession, error) {
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
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *InMemoryStore) Resume(ctx context.Context, id string) (domain.CodeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.CodeSession{}, ErrNotFound
	}
	return sess, nil
}

func (s *InMemoryStore) List(ctx context.Context) ([]domain.CodeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := make([]domain.CodeSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *InMemoryStore) AddMessage(ctx context.Context, id string, msg domain.CodeMessage) error {
	return s.mutate(id, func(sess *domain.CodeSession) error {
		sess.Messages = append(sess.Messages, msg)
		return nil
	})
}

func (s *InMemoryStore) AddPendingEdits(ctx context.Context, id string, edits []domain.Edit) error {
	return s.mutate(id, func(sess *domain.CodeSession) error {
		sess.PendingEdits = append(sess.PendingEdits, edits...)
		return nil
	})
}

func (s *InMemoryStore) SetPendingEditStatus(ctx context.Context, id, editID string, status domain.EditStatus) error {
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

func (s *InMemoryStore) MarkEditApplied(ctx context.Context, id string, result domain.EditResult) error {
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

func (s *InMemoryStore) PopAppliedEdit(ctx context.Context, id string) (domain.EditResult, error) {
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

func (s *InMemoryStore) ClearMessages(ctx context.Context, id string) error {
	return s.mutate(id, func(sess *domain.CodeSession) error {
		sess.Messages = nil
		return nil
	})
}

func (s *InMemoryStore) ClearPendingEdits(ctx context.Context, id string) error {
	return s.mutate(id, func(sess *domain.CodeSession) error {
		sess.PendingEdits = nil
		return nil
	})
}

func (s *InMemoryStore) UpdateTokenCount(ctx context.Context, id string, count int) error {
	return s.mutate(id, func(sess *domain.CodeSession) error {
		sess.ActiveContext.TokenCount = count
		return nil
	})
}

func (s *InMemoryStore) mutate(id string, fn func(*domain.CodeSession) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(&sess); err != nil {
		return err
	}
	sess.UpdatedAt = time.Now().UTC()
	s.sessions[id] = sess
	return nil
}
