// Package vcs is the git facility collaborator (spec.md §6): working-tree
// state and commit history for the Sync Engine. Gitignore-aware matching is
// grounded on the teacher's pkg/fsx/vcs.go VCSMatcher; the repository
// presence probe is grounded on pkg/session/git.go's isGitRepo walk-to-root
// loop.
package vcs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// Rename is one renamed-file pair reported by ChangedFilesSince (spec.md §6).
type Rename struct {
	From string
	To   string
}

// Diff is the output of ChangedFilesSince (spec.md §6's git contract).
type Diff struct {
	Added    []string
	Modified []string
	Deleted  []string
	Renames  []Rename
}

// Git is the git contract the Sync Engine depends on (spec.md §6).
type Git interface {
	IsRepo() bool
	CurrentBranch() (string, error)
	HeadCommit() (string, error)
	RecentCommits(n int) ([]string, error)
	ChangedFilesSince(commit string) (Diff, error)
}

// Repo implements Git against a working tree rooted at Root, and doubles as
// the Sync Engine's gitignore-aware file walker.
type Repo struct {
	Root    string
	repo    *git.Repository
	matcher gitignore.Matcher
}

// Open opens the git repository containing root (or rooted at root itself).
// A root with no git repository is not an error: IsRepo reports false and
// every other method degrades gracefully (spec.md §7's StoreUnavailable
// pattern extended to the git collaborator: the Sync Engine falls back to
// "full sync, no commit tracking").
func Open(root string) (*Repo, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("vcs: resolve root %s: %w", root, err)
	}
	r := &Repo{Root: abs}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return r, nil
	}
	r.repo = repo

	wt, err := repo.Worktree()
	if err == nil {
		if patterns, perr := gitignore.ReadPatterns(wt.Filesystem, nil); perr == nil {
			r.matcher = gitignore.NewMatcher(patterns)
		}
		r.Root = wt.Filesystem.Root()
	}
	return r, nil
}

// IsRepo reports whether Root is inside a git working tree.
func (r *Repo) IsRepo() bool { return r.repo != nil }

// CurrentBranch returns the checked-out branch's short name.
func (r *Repo) CurrentBranch() (string, error) {
	if r.repo == nil {
		return "", nil
	}
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("vcs: current branch: %w", err)
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return head.Hash().String(), nil
}

// HeadCommit returns the full hash of HEAD.
func (r *Repo) HeadCommit() (string, error) {
	if r.repo == nil {
		return "", nil
	}
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("vcs: head commit: %w", err)
	}
	return head.Hash().String(), nil
}

// RecentCommits returns up to n commit hashes reachable from HEAD, most
// recent first.
func (r *Repo) RecentCommits(n int) ([]string, error) {
	if r.repo == nil {
		return nil, nil
	}
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("vcs: recent commits: %w", err)
	}
	iter, err := r.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("vcs: recent commits: %w", err)
	}
	defer iter.Close()

	var hashes []string
	for len(hashes) < n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		hashes = append(hashes, c.Hash.String())
	}
	return hashes, nil
}

// ChangedFilesSince diffs the tree at commit against HEAD, classifying each
// change as added/modified/deleted/renamed (spec.md §4.5, §6). A rename is
// detected by go-git's tree-diff rename detection (DefaultDiffTreeOptions,
// similar to `git diff -M`).
func (r *Repo) ChangedFilesSince(commit string) (Diff, error) {
	var d Diff
	if r.repo == nil {
		return d, nil
	}

	fromCommit, err := r.repo.CommitObject(plumbing.NewHash(commit))
	if err != nil {
		return d, fmt.Errorf("vcs: resolve commit %s: %w", commit, err)
	}
	fromTree, err := fromCommit.Tree()
	if err != nil {
		return d, fmt.Errorf("vcs: tree for %s: %w", commit, err)
	}

	head, err := r.repo.Head()
	if err != nil {
		return d, fmt.Errorf("vcs: head: %w", err)
	}
	toCommit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return d, fmt.Errorf("vcs: head commit object: %w", err)
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return d, fmt.Errorf("vcs: head tree: %w", err)
	}

	changes, err := object.DiffTreeWithOptions(context.Background(), fromTree, toTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return d, fmt.Errorf("vcs: diff tree: %w", err)
	}

	for _, c := range changes {
		action, err := c.Action()
		if err != nil {
			continue
		}
		switch action {
		case merkletrie.Insert:
			d.Added = append(d.Added, c.To.Name)
		case merkletrie.Delete:
			d.Deleted = append(d.Deleted, c.From.Name)
		case merkletrie.Modify:
			if c.From.Name != "" && c.To.Name != "" && c.From.Name != c.To.Name {
				d.Renames = append(d.Renames, Rename{From: c.From.Name, To: c.To.Name})
			} else {
				d.Modified = append(d.Modified, c.To.Name)
			}
		}
	}
	return d, nil
}

// ShouldIgnore reports whether path (relative or absolute, under Root)
// matches .gitignore or is inside .git (spec.md §4.5: "Walk repository
// honoring .gitignore"), grounded on pkg/fsx/vcs.go's VCSMatcher.
func (r *Repo) ShouldIgnore(path string, isDir bool) bool {
	base := filepath.Base(path)
	if base == ".git" {
		return true
	}
	if r.matcher == nil {
		return false
	}
	rel := path
	if filepath.IsAbs(path) {
		if relPath, err := filepath.Rel(r.Root, path); err == nil {
			rel = relPath
		}
	}
	components := strings.Split(filepath.ToSlash(rel), "/")
	return r.matcher.Match(components, isDir)
}

// Walk enumerates repo-relative, forward-slash file paths under Root,
// skipping .gitignore matches and any excludePatterns glob (doublestar
// syntax, spec.md §4.5's configured excludePatterns). If include is
// non-nil, only files for which it returns true are listed.
func (r *Repo) Walk(excludePatterns []string, include func(relPath string) bool) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(r.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == r.Root {
			return nil
		}
		rel, relErr := filepath.Rel(r.Root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if r.ShouldIgnore(path, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		for _, pat := range excludePatterns {
			if ok, _ := doublestar.Match(pat, rel); ok {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if d.IsDir() {
			return nil
		}
		if include != nil && !include(rel) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vcs: walk %s: %w", r.Root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadFile reads the repo-relative path's content from disk.
func (r *Repo) ReadFile(relPath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(r.Root, filepath.FromSlash(relPath)))
}
