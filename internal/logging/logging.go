// Package logging wires the process-wide slog.Logger used by every core
// component, writing structured logs to a size-rotated file under
// .cv/logs/ the same way the teacher rotates its own logs
// (pkg/logging/rotate.go), while still mirroring to stderr for interactive
// CLI use.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const (
	defaultMaxSize    = 10 * 1024 * 1024 // 10MB
	defaultMaxBackups = 3
)

// rotatingFile is an io.WriteCloser that rotates log files when they
// exceed a size limit, adapted from the teacher's pkg/logging/rotate.go.
type rotatingFile struct {
	path       string
	maxSize    int64
	maxBackups int

	mu   sync.Mutex
	file *os.File
	size int64
}

func newRotatingFile(path string) (*rotatingFile, error) {
	r := &rotatingFile{path: path, maxSize: defaultMaxSize, maxBackups: defaultMaxBackups}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if err := r.openFile(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rotatingFile) openFile() error {
	file, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	r.file = file
	r.size = info.Size()
	return nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

func (r *rotatingFile) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}

	oldest := fmt.Sprintf("%s.%d", r.path, r.maxBackups)
	_ = os.Remove(oldest)

	for i := r.maxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", r.path, i)
		newPath := fmt.Sprintf("%s.%d", r.path, i+1)
		_ = os.Rename(oldPath, newPath)
	}

	if err := os.Rename(r.path, r.path+".1"); err != nil && !os.IsNotExist(err) {
		return err
	}

	r.size = 0
	return r.openFile()
}

// Options configures New.
type Options struct {
	// CVDir is the repo's .cv directory; logs are written under CVDir/logs.
	CVDir string
	// Level is the minimum level logged (default: info).
	Level slog.Level
	// Quiet suppresses the stderr mirror (used by non-interactive commands).
	Quiet bool
}

// New builds a slog.Logger that writes slog text-format lines to a rotating
// file and, unless Quiet, the same lines to stderr. The returned closer must
// be closed on shutdown to flush the rotating file handle.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	logPath := filepath.Join(opts.CVDir, "logs", "cv.log")
	rf, err := newRotatingFile(logPath)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = rf
	if !opts.Quiet {
		w = io.MultiWriter(rf, os.Stderr)
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: opts.Level})
	return slog.New(handler), rf, nil
}

// Discard returns a logger that drops everything, used by components
// constructed without an explicit logger (tests, library callers).
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
