// Package session is the Session Store (spec.md §4.9): durable per-session
// JSON records under .cv/sessions/<id>.json. The interface shape and the
// load-mutate-atomic-save pattern are grounded on pkg/session/store.go's
// Store interface and InMemorySessionStore; the file-per-record
// persistence (rather than the teacher's SQLite table) follows spec.md
// §6's explicit filesystem layout.
package session

import (
	"context"
	"errors"

	"github.com/docker/cv-index/internal/domain"
)

var (
	// ErrNotFound is returned by Resume/Delete for an unknown session id.
	ErrNotFound = errors.New("session: not found")
	// ErrEditNotPending is returned by MarkEditApplied when the given
	// Edit isn't in PendingEdits.
	ErrEditNotPending = errors.New("session: edit not pending")
	// ErrNoAppliedEdits is returned by PopAppliedEdit on an empty history.
	ErrNoAppliedEdits = errors.New("session: no applied edits to undo")
)

// Store persists CodeSessions (spec.md §4.9's operation list).
type Store interface {
	Create(ctx context.Context, branch, commitAtStart string) (domain.CodeSession, error)
	Resume(ctx context.Context, id string) (domain.CodeSession, error)
	List(ctx context.Context) ([]domain.CodeSession, error)
	Delete(ctx context.Context, id string) error

	AddMessage(ctx context.Context, id string, msg domain.CodeMessage) error
	AddPendingEdits(ctx context.Context, id string, edits []domain.Edit) error
	// SetPendingEditStatus updates one pending edit's Status in place (the
	// approve/reject half of spec.md §4.10's approval flow; moving an edit
	// out of PendingEdits entirely is MarkEditApplied's job).
	SetPendingEditStatus(ctx context.Context, id, editID string, status domain.EditStatus) error
	MarkEditApplied(ctx context.Context, id string, result domain.EditResult) error
	PopAppliedEdit(ctx context.Context, id string) (domain.EditResult, error)
	ClearMessages(ctx context.Context, id string) error
	ClearPendingEdits(ctx context.Context, id string) error
	UpdateTokenCount(ctx context.Context, id string, count int) error
}

func addUnique(list []string, item string) []string {
	for _, l := range list {
		if l == item {
			return list
		}
	}
	return append(list, item)
}
