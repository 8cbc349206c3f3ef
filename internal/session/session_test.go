package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/cv-index/internal/domain"
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), ".cv"))
}

// stores runs every case against both implementations, since they must
// agree on behavior (spec.md §4.9).
func stores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"file":   newFileStore(t),
		"memory": NewInMemoryStore(),
	}
}

func TestCreateAndResume(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess, err := store.Create(ctx, "main", "abc123")
			require.NoError(t, err)
			assert.NotEmpty(t, sess.ID)
			assert.Equal(t, "main", sess.Branch)
			assert.Equal(t, "abc123", sess.CommitAtStart)
			assert.False(t, sess.CreatedAt.IsZero())

			resumed, err := store.Resume(ctx, sess.ID)
			require.NoError(t, err)
			assert.Equal(t, sess.ID, resumed.ID)
		})
	}
}

func TestResume_UnknownIDFails(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Resume(context.Background(), "nonexistent")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestList_SortedByUpdatedAtDescending(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, err := store.Create(ctx, "a", "")
			require.NoError(t, err)
			b, err := store.Create(ctx, "b", "")
			require.NoError(t, err)

			// Touch a after b so a sorts first.
			require.NoError(t, store.UpdateTokenCount(ctx, a.ID, 10))

			list, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, a.ID, list[0].ID)
			assert.Equal(t, b.ID, list[1].ID)
		})
	}
}

func TestList_SkipsMalformedFile(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()
	good, err := store.Create(ctx, "main", "")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(store.dir, "broken.json"), []byte("{not json"), 0o644))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, good.ID, list[0].ID)
}

func TestDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess, err := store.Create(ctx, "main", "")
			require.NoError(t, err)

			require.NoError(t, store.Delete(ctx, sess.ID))
			_, err = store.Resume(ctx, sess.ID)
			assert.ErrorIs(t, err, ErrNotFound)

			assert.ErrorIs(t, store.Delete(ctx, sess.ID), ErrNotFound)
		})
	}
}

func TestAddMessage(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess, err := store.Create(ctx, "main", "")
			require.NoError(t, err)

			msg := domain.CodeMessage{ID: "m1", Role: domain.RoleUser, Content: "hello"}
			require.NoError(t, store.AddMessage(ctx, sess.ID, msg))

			resumed, err := store.Resume(ctx, sess.ID)
			require.NoError(t, err)
			require.Len(t, resumed.Messages, 1)
			assert.Equal(t, "hello", resumed.Messages[0].Content)
			assert.True(t, resumed.UpdatedAt.After(sess.UpdatedAt) || resumed.UpdatedAt.Equal(sess.UpdatedAt))
		})
	}
}

func TestAddPendingEditsAndMarkApplied(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess, err := store.Create(ctx, "main", "")
			require.NoError(t, err)

			edit := domain.Edit{ID: "e1", File: "a.go", Type: domain.EditModify}
			require.NoError(t, store.AddPendingEdits(ctx, sess.ID, []domain.Edit{edit}))

			resumed, err := store.Resume(ctx, sess.ID)
			require.NoError(t, err)
			require.Len(t, resumed.PendingEdits, 1)

			require.NoError(t, store.MarkEditApplied(ctx, sess.ID, domain.EditResult{Edit: edit, Success: true}))

			resumed, err = store.Resume(ctx, sess.ID)
			require.NoError(t, err)
			assert.Empty(t, resumed.PendingEdits)
			require.Len(t, resumed.AppliedEdits, 1)
			assert.Equal(t, 1, resumed.Metadata.TotalEdits)
			assert.Equal(t, []string{"a.go"}, resumed.Metadata.FilesModified)
		})
	}
}

func TestSetPendingEditStatus(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess, err := store.Create(ctx, "main", "")
			require.NoError(t, err)

			edit := domain.Edit{ID: "e1", File: "a.go", Type: domain.EditModify, Status: domain.StatusPending}
			require.NoError(t, store.AddPendingEdits(ctx, sess.ID, []domain.Edit{edit}))
			require.NoError(t, store.SetPendingEditStatus(ctx, sess.ID, "e1", domain.StatusApproved))

			resumed, err := store.Resume(ctx, sess.ID)
			require.NoError(t, err)
			require.Len(t, resumed.PendingEdits, 1)
			assert.Equal(t, domain.StatusApproved, resumed.PendingEdits[0].Status)

			assert.ErrorIs(t, store.SetPendingEditStatus(ctx, sess.ID, "missing", domain.StatusApproved), ErrEditNotPending)
		})
	}
}

func TestMarkEditApplied_NotPendingFails(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess, err := store.Create(ctx, "main", "")
			require.NoError(t, err)

			err = store.MarkEditApplied(ctx, sess.ID, domain.EditResult{Edit: domain.Edit{ID: "missing"}})
			assert.ErrorIs(t, err, ErrEditNotPending)
		})
	}
}

func TestMarkEditApplied_FilesModifiedStaysUnique(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess, err := store.Create(ctx, "main", "")
			require.NoError(t, err)

			e1 := domain.Edit{ID: "e1", File: "a.go", Type: domain.EditModify}
			e2 := domain.Edit{ID: "e2", File: "a.go", Type: domain.EditModify}
			require.NoError(t, store.AddPendingEdits(ctx, sess.ID, []domain.Edit{e1, e2}))
			require.NoError(t, store.MarkEditApplied(ctx, sess.ID, domain.EditResult{Edit: e1, Success: true}))
			require.NoError(t, store.MarkEditApplied(ctx, sess.ID, domain.EditResult{Edit: e2, Success: true}))

			resumed, err := store.Resume(ctx, sess.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{"a.go"}, resumed.Metadata.FilesModified)
			assert.Equal(t, 2, resumed.Metadata.TotalEdits)
		})
	}
}

func TestPopAppliedEdit(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess, err := store.Create(ctx, "main", "")
			require.NoError(t, err)

			edit := domain.Edit{ID: "e1", File: "a.go", Type: domain.EditModify}
			require.NoError(t, store.AddPendingEdits(ctx, sess.ID, []domain.Edit{edit}))
			require.NoError(t, store.MarkEditApplied(ctx, sess.ID, domain.EditResult{Edit: edit, Success: true}))

			popped, err := store.PopAppliedEdit(ctx, sess.ID)
			require.NoError(t, err)
			assert.Equal(t, "e1", popped.Edit.ID)

			resumed, err := store.Resume(ctx, sess.ID)
			require.NoError(t, err)
			assert.Empty(t, resumed.AppliedEdits)
		})
	}
}

func TestPopAppliedEdit_EmptyFails(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess, err := store.Create(ctx, "main", "")
			require.NoError(t, err)

			_, err = store.PopAppliedEdit(ctx, sess.ID)
			assert.ErrorIs(t, err, ErrNoAppliedEdits)
		})
	}
}

func TestClearMessagesAndPendingEdits(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess, err := store.Create(ctx, "main", "")
			require.NoError(t, err)

			require.NoError(t, store.AddMessage(ctx, sess.ID, domain.CodeMessage{ID: "m1"}))
			require.NoError(t, store.AddPendingEdits(ctx, sess.ID, []domain.Edit{{ID: "e1"}}))

			require.NoError(t, store.ClearMessages(ctx, sess.ID))
			require.NoError(t, store.ClearPendingEdits(ctx, sess.ID))

			resumed, err := store.Resume(ctx, sess.ID)
			require.NoError(t, err)
			assert.Empty(t, resumed.Messages)
			assert.Empty(t, resumed.PendingEdits)
		})
	}
}

func TestUpdateTokenCount(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess, err := store.Create(ctx, "main", "")
			require.NoError(t, err)

			require.NoError(t, store.UpdateTokenCount(ctx, sess.ID, 4096))

			resumed, err := store.Resume(ctx, sess.ID)
			require.NoError(t, err)
			assert.Equal(t, 4096, resumed.ActiveContext.TokenCount)
		})
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	cvDir := filepath.Join(t.TempDir(), ".cv")
	ctx := context.Background()

	store1 := NewFileStore(cvDir)
	sess, err := store1.Create(ctx, "main", "")
	require.NoError(t, err)
	require.NoError(t, store1.AddMessage(ctx, sess.ID, domain.CodeMessage{ID: "m1", Content: "hi"}))

	store2 := NewFileStore(cvDir)
	resumed, err := store2.Resume(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, resumed.Messages, 1)
	assert.Equal(t, "hi", resumed.Messages[0].Content)
}
