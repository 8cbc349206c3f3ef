// Package fileops is File Operations (spec.md §4.8): applies and reverts
// domain.Edits against the real filesystem with backup-before-destructive-
// write safety. Grounded on pkg/userconfig/userconfig.go's atomic-write
// pattern (natefinch/atomic, mkdir -p parent creation) and pkg/fsx/fs.go's
// path-safety conventions.
package fileops

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/docker/cv-index/internal/domain"
)

// Ops applies Edits under repoRoot, keeping backups under cvDir/backups.
type Ops struct {
	repoRoot   string
	backupsDir string
}

// New builds an Ops.
func New(repoRoot, cvDir string) *Ops {
	return &Ops{repoRoot: repoRoot, backupsDir: filepath.Join(cvDir, "backups")}
}

func (o *Ops) abs(path string) string { return filepath.Join(o.repoRoot, path) }

// Apply applies e and returns its outcome. A failed modify never partially
// writes the target file (spec.md §4.8).
func (o *Ops) Apply(e domain.Edit) domain.EditResult {
	result := domain.EditResult{Edit: e}

	var (
		backupPath string
		err        error
	)
	switch e.Type {
	case domain.EditCreate:
		backupPath, err = o.applyCreate(e)
	case domain.EditModify:
		backupPath, err = o.applyModify(e)
	case domain.EditDelete:
		backupPath, err = o.applyDelete(e)
	case domain.EditRename:
		backupPath, err = o.applyRename(e)
	default:
		err = fmt.Errorf("fileops: unknown edit type %q", e.Type)
	}

	if err != nil {
		result.Success = false
		result.Error = err.Error()
		result.BackupPath = backupPath
		return result
	}

	now := time.Now().UTC()
	result.Success = true
	result.BackupPath = backupPath
	result.AppliedAt = &now
	return result
}

// applyCreate writes e.NewContent to a new file. If the target already
// exists, it degrades to a full-file-replace modify (spec.md §4.8).
func (o *Ops) applyCreate(e domain.Edit) (string, error) {
	target := o.abs(e.File)
	if _, err := os.Stat(target); err == nil {
		return o.writeWithBackup(e.File, []byte(e.NewContent))
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("fileops: stat %s: %w", e.File, err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("fileops: mkdir for %s: %w", e.File, err)
	}
	if err := atomic.WriteFile(target, strings.NewReader(e.NewContent)); err != nil {
		return "", fmt.Errorf("fileops: write %s: %w", e.File, err)
	}
	return "", nil
}

// applyModify computes the full replacement content in memory first, and
// only backs up and writes once every SearchReplaceBlock has applied
// cleanly (spec.md §4.8's no-partial-write guarantee).
func (o *Ops) applyModify(e domain.Edit) (string, error) {
	current, err := os.ReadFile(o.abs(e.File))
	if err != nil {
		return "", fmt.Errorf("fileops: read %s: %w", e.File, err)
	}

	updated, err := applySearchReplaceBlocks(string(current), e.SearchReplaceBlocks)
	if err != nil {
		return "", err
	}

	return o.writeWithBackup(e.File, []byte(updated))
}

func (o *Ops) writeWithBackup(path string, newContent []byte) (string, error) {
	backupPath, err := o.backup(path)
	if err != nil {
		return "", err
	}
	if err := atomic.WriteFile(o.abs(path), bytes.NewReader(newContent)); err != nil {
		return backupPath, fmt.Errorf("fileops: write %s: %w", path, err)
	}
	return backupPath, nil
}

func (o *Ops) applyDelete(e domain.Edit) (string, error) {
	backupPath, err := o.backup(e.File)
	if err != nil {
		return "", err
	}
	if err := os.Remove(o.abs(e.File)); err != nil {
		return backupPath, fmt.Errorf("fileops: delete %s: %w", e.File, err)
	}
	return backupPath, nil
}

// applyRename backs up the source, then moves it without following
// symlinks (spec.md §4.8).
func (o *Ops) applyRename(e domain.Edit) (string, error) {
	backupPath, err := o.backup(e.File)
	if err != nil {
		return "", err
	}
	dest := o.abs(e.NewPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return backupPath, fmt.Errorf("fileops: mkdir for %s: %w", e.NewPath, err)
	}
	if err := os.Rename(o.abs(e.File), dest); err != nil {
		return backupPath, fmt.Errorf("fileops: rename %s -> %s: %w", e.File, e.NewPath, err)
	}
	return backupPath, nil
}

// backup copies path's current content to a timestamped file under
// backupsDir and returns its path. A missing source file is not an error:
// there is nothing to back up (e.g. the create fast path never calls this).
func (o *Ops) backup(path string) (string, error) {
	content, err := os.ReadFile(o.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("fileops: read %s for backup: %w", path, err)
	}
	if err := os.MkdirAll(o.backupsDir, 0o755); err != nil {
		return "", fmt.Errorf("fileops: mkdir backups: %w", err)
	}
	dest := o.backupFilePath(path, content)
	if err := atomic.WriteFile(dest, bytes.NewReader(content)); err != nil {
		return "", fmt.Errorf("fileops: write backup: %w", err)
	}
	return dest, nil
}

// backupFilePath implements spec.md §6's
// <cvDir>/backups/<flattenedPath>.<unixMillis>.<md5-8> layout.
func (o *Ops) backupFilePath(path string, content []byte) string {
	flat := strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(path)
	sum := md5.Sum(content)
	return filepath.Join(o.backupsDir, fmt.Sprintf("%s.%d.%s", flat, time.Now().UnixMilli(), hex.EncodeToString(sum[:])[:8]))
}

// Revert restores result's backup to its original path (the source path
// for renames, since Edit.File always holds it). Pure file-level revert:
// the graph/vector indexes are not rolled back (spec.md §4.8).
func (o *Ops) Revert(result domain.EditResult) error {
	if result.BackupPath == "" {
		return fmt.Errorf("fileops: edit %s has no backup to revert", result.Edit.ID)
	}
	content, err := os.ReadFile(result.BackupPath)
	if err != nil {
		return fmt.Errorf("fileops: read backup %s: %w", result.BackupPath, err)
	}
	target := o.abs(result.Edit.File)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("fileops: mkdir for revert of %s: %w", result.Edit.File, err)
	}
	return atomic.WriteFile(target, bytes.NewReader(content))
}

// DefaultRetention is the default backup retention window (spec.md §4.8).
const DefaultRetention = 7 * 24 * time.Hour

// CleanupBackups deletes backups older than retention (DefaultRetention if
// retention <= 0). Never invoked automatically during Apply.
func (o *Ops) CleanupBackups(retention time.Duration) error {
	if retention <= 0 {
		retention = DefaultRetention
	}

	entries, err := os.ReadDir(o.backupsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("fileops: read backups dir: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(o.backupsDir, entry.Name()))
		}
	}
	return nil
}

// applySearchReplaceBlocks applies each block in order against content, in
// memory, aborting on the first block that can't be applied exactly
// (spec.md §4.8: no partial writes).
func applySearchReplaceBlocks(content string, blocks []domain.SearchReplaceBlock) (string, error) {
	for i, b := range blocks {
		idx := strings.Index(content, b.Search)
		if idx < 0 {
			return "", approximateMatchError(content, b, i)
		}
		content = content[:idx] + b.Replace + content[idx+len(b.Search):]
	}
	return content, nil
}

// approximateMatchError produces a diagnostic quoting expected vs. found
// text when a SearchReplaceBlock doesn't match exactly, by looking for a
// line matching the search block's first non-empty line (spec.md §4.8).
func approximateMatchError(content string, b domain.SearchReplaceBlock, blockIndex int) error {
	firstLine := firstNonEmptyLine(b.Search)
	if firstLine == "" {
		return fmt.Errorf("fileops: search block %d not found (empty search text)", blockIndex)
	}

	for i, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == strings.TrimSpace(firstLine) {
			return fmt.Errorf("fileops: search block %d not found exactly; approximate match at line %d: expected %q, found %q", blockIndex, i+1, b.Search, line)
		}
	}
	return fmt.Errorf("fileops: search block %d not found: %q", blockIndex, b.Search)
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}
