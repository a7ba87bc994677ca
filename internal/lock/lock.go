// Package lock guards the store directory with an exclusive advisory file
// lock. The OS releases the lock when the holding process exits, so a crash
// never leaves the store wedged. The file body carries a human-readable
// owner hint for doctor.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// ErrHeld means another process holds the writer lock.
var ErrHeld = errors.New("another wacli is running (store lock held)")

const fileName = "LOCK"

// Info is the owner hint written into the lock file.
type Info struct {
	PID        int    `json:"pid"`
	Command    string `json:"command"`
	AcquiredAt string `json:"acquired_at"`
}

// Lock is a held writer lock over a store directory.
type Lock struct {
	f *os.File
}

// Acquire takes the exclusive lock for dir, failing fast with ErrHeld on
// contention. The lock file is created if missing and its body is replaced
// with this process's owner hint.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, fileName), os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if err == unix.EWOULDBLOCK || err == unix.EAGAIN {
			return nil, ErrHeld
		}
		return nil, fmt.Errorf("flock: %w", err)
	}

	info := Info{
		PID:        os.Getpid(),
		Command:    strings.Join(os.Args, " "),
		AcquiredAt: time.Now().UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(info)
	_ = f.Truncate(0)
	_, _ = f.WriteAt(append(body, '\n'), 0)

	return &Lock{f: f}, nil
}

// Release drops the lock. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return f.Close()
}

// ReadInfo returns the owner hint left by the current or last holder.
// The hint is advisory: the holder may have exited without cleaning up.
func ReadInfo(dir string) (Info, error) {
	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		return Info{}, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, fmt.Errorf("parse lock info: %w", err)
	}
	return info, nil
}
