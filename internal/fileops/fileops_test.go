package fileops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/cv-index/internal/domain"
)

func newOps(t *testing.T) (*Ops, string) {
	t.Helper()
	repoRoot := t.TempDir()
	cvDir := filepath.Join(repoRoot, ".cv")
	return New(repoRoot, cvDir), repoRoot
}

func TestApply_CreateWritesNewFile(t *testing.T) {
	ops, repoRoot := newOps(t)

	result := ops.Apply(domain.Edit{
		ID: "e1", File: "pkg/new.go", Type: domain.EditCreate, NewContent: "package pkg\n",
	})
	require.True(t, result.Success, result.Error)
	assert.Empty(t, result.BackupPath)

	content, err := os.ReadFile(filepath.Join(repoRoot, "pkg", "new.go"))
	require.NoError(t, err)
	assert.Equal(t, "package pkg\n", string(content))
}

func TestApply_CreateDegradesToModifyWhenTargetExists(t *testing.T) {
	ops, repoRoot := newOps(t)
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "existing.go"), []byte("old"), 0o644))

	result := ops.Apply(domain.Edit{
		ID: "e2", File: "existing.go", Type: domain.EditCreate, NewContent: "new",
	})
	require.True(t, result.Success, result.Error)
	assert.NotEmpty(t, result.BackupPath)

	content, err := os.ReadFile(filepath.Join(repoRoot, "existing.go"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))

	backup, err := os.ReadFile(result.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, "old", string(backup))
}

func TestApply_ModifyReplacesSearchBlock(t *testing.T) {
	ops, repoRoot := newOps(t)
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "a.go"), []byte("func a() {\n\treturn 1\n}\n"), 0o644))

	result := ops.Apply(domain.Edit{
		ID: "e3", File: "a.go", Type: domain.EditModify,
		SearchReplaceBlocks: []domain.SearchReplaceBlock{{Search: "return 1", Replace: "return 2"}},
	})
	require.True(t, result.Success, result.Error)

	content, err := os.ReadFile(filepath.Join(repoRoot, "a.go"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "return 2")
}

func TestApply_ModifyAbortsWithNoPartialWriteOnFailure(t *testing.T) {
	ops, repoRoot := newOps(t)
	original := "func a() {\n\treturn 1\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "a.go"), []byte(original), 0o644))

	result := ops.Apply(domain.Edit{
		ID: "e4", File: "a.go", Type: domain.EditModify,
		SearchReplaceBlocks: []domain.SearchReplaceBlock{
			{Search: "return 1", Replace: "return 2"},
			{Search: "this text is not present anywhere", Replace: "x"},
		},
	})
	require.False(t, result.Success)
	assert.NotEmpty(t, result.Error)

	content, err := os.ReadFile(filepath.Join(repoRoot, "a.go"))
	require.NoError(t, err)
	assert.Equal(t, original, string(content), "no partial write should have happened")
}

func TestApply_ModifyNotFoundProducesApproximateDiagnostic(t *testing.T) {
	ops, repoRoot := newOps(t)
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "a.go"), []byte("func a() {\n\treturn 1\n}\n"), 0o644))

	result := ops.Apply(domain.Edit{
		ID: "e5", File: "a.go", Type: domain.EditModify,
		SearchReplaceBlocks: []domain.SearchReplaceBlock{{Search: "func a() {\n\treturn 99\n}", Replace: "x"}},
	})
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "approximate match")
}

func TestApply_DeleteBacksUpThenUnlinks(t *testing.T) {
	ops, repoRoot := newOps(t)
	target := filepath.Join(repoRoot, "gone.go")
	require.NoError(t, os.WriteFile(target, []byte("bye"), 0o644))

	result := ops.Apply(domain.Edit{ID: "e6", File: "gone.go", Type: domain.EditDelete})
	require.True(t, result.Success, result.Error)
	assert.NotEmpty(t, result.BackupPath)

	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))

	backup, err := os.ReadFile(result.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, "bye", string(backup))
}

func TestApply_RenameMovesFile(t *testing.T) {
	ops, repoRoot := newOps(t)
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "old.go"), []byte("x"), 0o644))

	result := ops.Apply(domain.Edit{ID: "e7", File: "old.go", Type: domain.EditRename, NewPath: "sub/new.go"})
	require.True(t, result.Success, result.Error)

	_, err := os.Stat(filepath.Join(repoRoot, "old.go"))
	assert.True(t, os.IsNotExist(err))

	content, err := os.ReadFile(filepath.Join(repoRoot, "sub", "new.go"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(content))
}

func TestRevert_RestoresBackupToOriginalPath(t *testing.T) {
	ops, repoRoot := newOps(t)
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "a.go"), []byte("original"), 0o644))

	result := ops.Apply(domain.Edit{
		ID: "e8", File: "a.go", Type: domain.EditModify,
		SearchReplaceBlocks: []domain.SearchReplaceBlock{{Search: "original", Replace: "changed"}},
	})
	require.True(t, result.Success, result.Error)

	require.NoError(t, ops.Revert(result))

	content, err := os.ReadFile(filepath.Join(repoRoot, "a.go"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(content))
}

func TestRevert_NoBackupFails(t *testing.T) {
	ops, _ := newOps(t)
	err := ops.Revert(domain.EditResult{Edit: domain.Edit{ID: "e9", File: "a.go"}})
	assert.Error(t, err)
}

func TestCleanupBackups_RemovesOnlyOldFiles(t *testing.T) {
	ops, repoRoot := newOps(t)
	backupsDir := filepath.Join(repoRoot, ".cv", "backups")
	require.NoError(t, os.MkdirAll(backupsDir, 0o755))

	oldFile := filepath.Join(backupsDir, "old.bak")
	newFile := filepath.Join(backupsDir, "new.bak")
	require.NoError(t, os.WriteFile(oldFile, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(newFile, []byte("x"), 0o644))

	oldTime := time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

	require.NoError(t, ops.CleanupBackups(0))

	_, err := os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(newFile)
	assert.NoError(t, err)
}
