package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Audit rotation fallbacks, applied when the config leaves a knob unset.
const (
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 7
	defaultMaxAgeDays = 30
)

// rotatingFile is a size-rotated append writer for the audit trail.
// Backups are numbered path.1 (newest) through path.N and pruned by age.
type rotatingFile struct {
	mu         sync.Mutex
	out        *os.File
	path       string
	written    int64
	maxBytes   int64
	maxBackups int
	maxAge     time.Duration
}

func newRotatingFile(path string, maxSizeMB, maxBackups, maxAgeDays int) (*rotatingFile, error) {
	if path == "" {
		return nil, errors.New("audit file path is required")
	}
	if maxSizeMB <= 0 {
		maxSizeMB = defaultMaxSizeMB
	}
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}
	if maxAgeDays <= 0 {
		maxAgeDays = defaultMaxAgeDays
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	return &rotatingFile{
		path:       path,
		maxBytes:   int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
		maxAge:     time.Duration(maxAgeDays) * 24 * time.Hour,
	}, nil
}

func (f *rotatingFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.open(); err != nil {
		return 0, err
	}
	if f.written+int64(len(p)) > f.maxBytes {
		if err := f.rotate(); err != nil {
			return 0, err
		}
		if err := f.open(); err != nil {
			return 0, err
		}
	}
	n, err := f.out.Write(p)
	f.written += int64(n)
	return n, err
}

func (f *rotatingFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.out == nil {
		return nil
	}
	err := f.out.Close()
	f.out = nil
	f.written = 0
	return err
}

func (f *rotatingFile) open() error {
	if f.out != nil {
		return nil
	}
	out, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	info, err := out.Stat()
	if err != nil {
		out.Close()
		return fmt.Errorf("stat audit file: %w", err)
	}
	f.out = out
	f.written = info.Size()
	return nil
}

// rotate shifts path.i to path.i+1, moves the live file to path.1 and
// drops backups that fell off the end or aged out.
func (f *rotatingFile) rotate() error {
	if f.out != nil {
		_ = f.out.Close()
		f.out = nil
	}
	f.written = 0

	_ = os.Remove(f.backupPath(f.maxBackups))
	for i := f.maxBackups - 1; i >= 1; i-- {
		if _, err := os.Stat(f.backupPath(i)); err == nil {
			_ = os.Rename(f.backupPath(i), f.backupPath(i+1))
		}
	}
	if _, err := os.Stat(f.path); err == nil {
		_ = os.Rename(f.path, f.backupPath(1))
	}

	f.pruneAged()
	return nil
}

func (f *rotatingFile) backupPath(n int) string {
	return fmt.Sprintf("%s.%d", f.path, n)
}

func (f *rotatingFile) pruneAged() {
	if f.maxAge <= 0 {
		return
	}
	cutoff := time.Now().Add(-f.maxAge)
	for i := 1; i <= f.maxBackups; i++ {
		info, err := os.Stat(f.backupPath(i))
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(f.backupPath(i))
		}
	}
}
