package core

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// ErrLockTimeout is returned when another writer holds a file for
	// longer than the configured timeout.
	ErrLockTimeout = errors.New("timed out waiting for file lock")
	// ErrStale is returned by WriteIfDigest when the file no longer has the
	// content a rewrite was computed from.
	ErrStale = errors.New("file changed since the rewrite was computed")
)

// AtomicWriteConfig controls atomic writing behavior
type AtomicWriteConfig struct {
	UseFsync       bool          // fsync the temp file before renaming
	LockTimeout    time.Duration // max wait for a file lock
	TempSuffix     string        // suffix for temporary files
	BackupOriginal bool          // keep a timestamped .bak copy
}

// DefaultAtomicConfig provides sensible defaults
func DefaultAtomicConfig() AtomicWriteConfig {
	return AtomicWriteConfig{
		LockTimeout:    5 * time.Second,
		TempSuffix:     ".astmorph.tmp",
		BackupOriginal: true,
	}
}

// Digest returns the hex SHA-256 of content.
func Digest(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// lockFile is an exclusive <path>.lock file holding the owner's PID.
type lockFile struct {
	path string
	file *os.File
}

func (l *lockFile) release() {
	l.file.Close()
	os.Remove(l.path)
}

// AtomicWriter writes files through a temp file and a rename, serialized by
// lock files so concurrent processes never interleave on one path.
type AtomicWriter struct {
	config AtomicWriteConfig
	log    *slog.Logger

	mu    sync.Mutex
	locks map[string]*lockFile
}

// NewAtomicWriter creates a new atomic writer
func NewAtomicWriter(config AtomicWriteConfig) *AtomicWriter {
	if config.TempSuffix == "" {
		config.TempSuffix = DefaultAtomicConfig().TempSuffix
	}
	return &AtomicWriter{
		config: config,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		locks:  make(map[string]*lockFile),
	}
}

// SetLogger routes lock and write tracing to log.
func (aw *AtomicWriter) SetLogger(log *slog.Logger) {
	if log != nil {
		aw.log = log
	}
}

// WriteFile atomically replaces path with content.
func (aw *AtomicWriter) WriteFile(path, content string) error {
	return aw.write(path, content, "")
}

// WriteIfDigest replaces path with content only when the current file
// content hashes to digest. A missing file never matches.
func (aw *AtomicWriter) WriteIfDigest(path, content, digest string) error {
	return aw.write(path, content, digest)
}

func (aw *AtomicWriter) write(path, content, digest string) error {
	if err := aw.lock(path); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer aw.unlock(path)

	mode := os.FileMode(0o644)
	current, err := os.ReadFile(path)
	exists := err == nil
	if exists {
		if info, statErr := os.Stat(path); statErr == nil {
			mode = info.Mode().Perm()
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if digest != "" && (!exists || Digest(string(current)) != digest) {
		return fmt.Errorf("%s: %w", path, ErrStale)
	}

	if aw.config.BackupOriginal && exists {
		backup := fmt.Sprintf("%s.bak.%s", path, time.Now().Format("20060102-150405"))
		if err := os.WriteFile(backup, current, mode); err != nil {
			return fmt.Errorf("backup %s: %w", path, err)
		}
	}

	tmp := path + aw.config.TempSuffix
	if err := aw.writeTemp(tmp, content, mode); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	aw.log.Debug("file written", "path", path, "bytes", len(content))
	return nil
}

func (aw *AtomicWriter) writeTemp(tmp, content string, mode os.FileMode) error {
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if aw.config.UseFsync {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("sync temp file: %w", err)
		}
	}
	return f.Close()
}

func (aw *AtomicWriter) lock(path string) error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	if _, held := aw.locks[path]; held {
		return nil
	}

	lockPath := path + ".lock"
	deadline := time.Now().Add(aw.config.LockTimeout)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			aw.locks[path] = &lockFile{path: lockPath, file: f}
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("create lock file: %w", err)
		}
		if staleLock(lockPath) {
			aw.log.Debug("removing stale lock", "path", lockPath)
			os.Remove(lockPath)
			continue
		}
		if !time.Now().Before(deadline) {
			return ErrLockTimeout
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (aw *AtomicWriter) unlock(path string) {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	if l, ok := aw.locks[path]; ok {
		l.release()
		delete(aw.locks, path)
	}
}

// staleLock reports whether a lock file is unreadable or names a dead
// process.
func staleLock(lockPath string) bool {
	content, err := os.ReadFile(lockPath)
	if err != nil {
		return true
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return true
	}
	return !isProcessAlive(pid)
}

// Cleanup releases every lock still held.
func (aw *AtomicWriter) Cleanup() {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	for path, l := range aw.locks {
		l.release()
		delete(aw.locks, path)
	}
}
