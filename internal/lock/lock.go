// Package lock serializes plugsync runs with a pid file.
package lock

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"
)

// FileName is the pid file created inside the state directory.
const FileName = "plugsync.pid"

// ErrLocked is returned when a live process holds the lock.
var ErrLocked = errors.New("another plugsync run is in progress")

// Lock is a held run lock.
type Lock struct {
	path string
}

// aliveFunc reports whether a process with pid exists.
type aliveFunc func(pid int) (bool, error)

// Acquire takes the run lock in dir. A pid file left behind by a process
// that no longer exists is taken over.
func Acquire(dir string) (*Lock, error) {
	return acquire(dir, processAlive)
}

func acquire(dir string, alive aliveFunc) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	path := filepath.Join(dir, FileName)

	// Second attempt follows takeover of a stale file.
	for range 2 {
		err := create(path)
		if err == nil {
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read lock file: %w", err)
		}

		if pid, err := parsePid(data); err == nil {
			ok, err := alive(pid)
			if err != nil {
				return nil, fmt.Errorf("failed to check lock owner: %w", err)
			}
			if ok {
				return nil, fmt.Errorf("%w (pid %d, %s)", ErrLocked, pid, path)
			}
		}

		taken, err := takeOver(path, data)
		if err != nil {
			return nil, err
		}
		if !taken {
			return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
		}
	}

	return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
}

// takeOver moves the pid file aside and deletes it only if it still holds
// stale. A file replaced in the meantime by another run is put back.
func takeOver(path string, stale []byte) (bool, error) {
	aside := fmt.Sprintf("%s.%d.stale", path, os.Getpid())
	if err := os.Rename(path, aside); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true, nil
		}
		return false, fmt.Errorf("failed to remove stale lock: %w", err)
	}

	data, err := os.ReadFile(aside)
	if err == nil && bytes.Equal(data, stale) {
		if err := os.Remove(aside); err != nil {
			return false, fmt.Errorf("failed to remove stale lock: %w", err)
		}
		return true, nil
	}

	// Link fails if yet another run has created the file since.
	_ = os.Link(aside, path)
	_ = os.Remove(aside)
	return false, nil
}

// Path returns the pid file location.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the pid file. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func create(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
	cerr := f.Close()
	if werr != nil {
		_ = os.Remove(path)
		return werr
	}
	return cerr
}

func readPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return parsePid(data)
}

func parsePid(data []byte) (int, error) {
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q", strings.TrimSpace(string(data)))
	}
	return pid, nil
}

func processAlive(pid int) (bool, error) {
	p, err := ps.FindProcess(pid)
	if err != nil {
		return false, err
	}
	return p != nil, nil
}
