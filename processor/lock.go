package processor

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/sirstudly/littlehotelier-sub001/errors"
)

// Locker guards the processing loop so only one runner executes jobs.
// TryLock must not block: a held lock means another runner owns the cycle.
type Locker interface {
	TryLock() (bool, error)
	Unlock() error
}

// FileLocker is an advisory lock on a file, shared by every lhjobs process
// on the host.
type FileLocker struct {
	fl *flock.Flock
}

// NewFileLocker creates a locker for path, creating its directory if needed.
func NewFileLocker(path string) (*FileLocker, error) {
	if path == "" {
		return nil, errors.NewInvalidRequestError("processor lock path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create lock directory for %s", path)
	}
	return &FileLocker{fl: flock.New(path)}, nil
}

// TryLock attempts the lock without waiting.
func (l *FileLocker) TryLock() (bool, error) {
	ok, err := l.fl.TryLock()
	if err != nil {
		return false, errors.Wrapf(err, "failed to lock %s", l.fl.Path())
	}
	return ok, nil
}

// Unlock releases the lock.
func (l *FileLocker) Unlock() error {
	return errors.Wrapf(l.fl.Unlock(), "failed to unlock %s", l.fl.Path())
}

// Path returns the lock file location.
func (l *FileLocker) Path() string {
	return l.fl.Path()
}

// MemoryLocker is an in-process Locker for tests and embedded use.
type MemoryLocker struct {
	mu sync.Mutex
}

func (m *MemoryLocker) TryLock() (bool, error) {
	return m.mu.TryLock(), nil
}

func (m *MemoryLocker) Unlock() error {
	m.mu.Unlock()
	return nil
}
