package transaction

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StaleLockThreshold is how old a lock file may get before keg assumes its
// owner died and takes it over.
const StaleLockThreshold = 10 * time.Minute

const lockFileName = "install.lock"

var ErrLockExists = errors.New("install lock exists: another keg operation may be in progress")

// Lock is the exclusive install lock of one state directory. Installs and
// uninstalls hold it for their whole run.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes the install lock in dir, creating dir if needed. The lock
// file is created with O_EXCL; a lock older than StaleLockThreshold is
// replaced once. A held lock yields an error wrapping ErrLockExists that
// names the holder.
func AcquireLock(ctx context.Context, dir string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	path := filepath.Join(dir, lockFileName)
	file, err := createLockFile(path)
	if os.IsExist(err) && lockAge(path) > StaleLockThreshold {
		_ = os.Remove(path)
		file, err = createLockFile(path)
	}
	if os.IsExist(err) {
		if holder := lockHolder(path); holder != "" {
			return nil, fmt.Errorf("%w (held by %s)", ErrLockExists, holder)
		}
		return nil, ErrLockExists
	}
	if err != nil {
		return nil, fmt.Errorf("create lock file: %w", err)
	}

	l := &Lock{path: path, file: file}
	stamp := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(stamp); err != nil {
		l.Release()
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	if err := file.Sync(); err != nil {
		l.Release()
		return nil, fmt.Errorf("sync lock file: %w", err)
	}
	return l, nil
}

func createLockFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
}

// lockAge is zero when the lock file cannot be inspected, so an unreadable
// lock is never taken over.
func lockAge(path string) time.Duration {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return time.Since(info.ModTime())
}

// lockHolder returns "pid N" from the lock file, or "".
func lockHolder(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if pid, ok := strings.CutPrefix(scanner.Text(), "pid="); ok && pid != "" {
			return "pid " + pid
		}
	}
	return ""
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock. Calling it again is a no-op.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if l.path == "" {
		return nil
	}
	path := l.path
	l.path = ""
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}
