package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	homedir "github.com/mitchellh/go-homedir"
)

const (
	lockFileSuffix = ".lock"
)

var ErrRunInProgress = errors.New("another collection run is in progress")

// RunLock serializes collection runs across processes sharing one database,
// and across goroutines sharing one RunLock.
type RunLock struct {
	lock *flock.Flock
	path string
	wait bool

	// held has room for one token; the holder of the token owns the flock.
	held chan struct{}
}

// NewRunLock creates a lock next to the database file. With wait unset, Lock
// fails with ErrRunInProgress instead of blocking.
func NewRunLock(dbPath string, wait bool) (*RunLock, error) {
	absPath, err := GetAbsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute db path: %w", err)
	}
	lockPath := absPath + lockFileSuffix
	return &RunLock{
		lock: flock.New(lockPath),
		path: lockPath,
		wait: wait,
		held: make(chan struct{}, 1),
	}, nil
}

func (l *RunLock) Lock() error {
	select {
	case l.held <- struct{}{}:
	default:
		if !l.wait {
			return ErrRunInProgress
		}
		Log.Warnf("A collection is already running, waiting for it to finish...")
		l.held <- struct{}{}
	}

	if err := l.lockFile(); err != nil {
		<-l.held
		return err
	}
	return nil
}

func (l *RunLock) lockFile() error {
	locked, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}
	if locked {
		return nil
	}
	if !l.wait {
		return ErrRunInProgress
	}

	Log.Warnf("Another refscout process is collecting, waiting for it to finish...")
	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.path, err)
	}
	return nil
}

func (l *RunLock) Unlock() error {
	select {
	case <-l.held:
	default:
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		// A missing lock file means we never held it.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

// GetAbsDBPath resolves the database path, defaulting to ~/.config/refscout/refscout.sqlite.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "refscout", "refscout.sqlite"), nil
	}
	expanded, err := homedir.Expand(dbPath)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}

// EnsureDBDir creates the directory holding the database file.
func EnsureDBDir(absPath string) error {
	return os.MkdirAll(filepath.Dir(absPath), 0o755)
}
