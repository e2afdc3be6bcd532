// Package lockfile serializes mutating operations across processes with
// a single lock file created via O_EXCL. At most one mutating operation
// holds the lock at a time; read-only commands never touch it.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Holder describes the process that owns (or owned) the lock.
type Holder struct {
	PID        int
	Operation  string
	AcquiredAt time.Time
}

// AlreadyLockedError is returned when another live process holds the lock.
type AlreadyLockedError struct {
	Path   string
	Holder Holder
}

func (e *AlreadyLockedError) Error() string {
	return fmt.Sprintf("another operation is in progress: %s (pid %d, started %s)",
		e.Holder.Operation, e.Holder.PID, e.Holder.AcquiredAt.Format(time.RFC3339))
}

// Lock is a held lock file. Release removes it.
type Lock struct {
	path     string
	released bool
}

// Acquire takes the lock at path for the named operation. A lock file
// whose holder process is no longer alive is reclaimed; a live holder
// yields AlreadyLockedError.
func Acquire(path, operation string) (*Lock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			holder := Holder{
				PID:        os.Getpid(),
				Operation:  operation,
				AcquiredAt: time.Now().UTC(),
			}
			if _, werr := f.WriteString(holder.encode()); werr != nil {
				f.Close()
				os.Remove(path)
				return nil, fmt.Errorf("failed to write lock file: %w", werr)
			}
			if cerr := f.Close(); cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("failed to write lock file: %w", cerr)
			}
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		holder, rerr := ReadHolder(path)
		if rerr != nil {
			// Unreadable or corrupt lock file: treat as stale.
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to remove corrupt lock file: %w", rmErr)
			}
			continue
		}
		if holder.Alive() {
			return nil, &AlreadyLockedError{Path: path, Holder: holder}
		}
		// Holder died without releasing. Reclaim.
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale lock file: %w", rmErr)
		}
	}
	return nil, fmt.Errorf("failed to acquire lock at %s: contention on stale lock", path)
}

// Release removes the lock file. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.released {
		return nil
	}
	l.released = true
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// ReadHolder parses the lock file at path.
func ReadHolder(path string) (Holder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Holder{}, err
	}
	return decodeHolder(string(data))
}

// Alive reports whether the holder's process still exists. On Unix,
// signal 0 probes existence without delivering anything; EPERM still
// means the process is there.
func (h Holder) Alive() bool {
	if h.PID <= 0 {
		return false
	}
	proc, err := os.FindProcess(h.PID)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

func (h Holder) encode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pid=%d\n", h.PID)
	fmt.Fprintf(&b, "operation=%s\n", h.Operation)
	fmt.Fprintf(&b, "started_at_unix=%d\n", h.AcquiredAt.Unix())
	return b.String()
}

func decodeHolder(data string) (Holder, error) {
	var h Holder
	seen := map[string]bool{}
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Holder{}, fmt.Errorf("malformed lock file line %q", line)
		}
		seen[key] = true
		switch key {
		case "pid":
			pid, err := strconv.Atoi(value)
			if err != nil {
				return Holder{}, fmt.Errorf("malformed pid %q", value)
			}
			h.PID = pid
		case "operation":
			h.Operation = value
		case "started_at_unix":
			sec, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Holder{}, fmt.Errorf("malformed timestamp %q", value)
			}
			h.AcquiredAt = time.Unix(sec, 0).UTC()
		}
	}
	if !seen["pid"] {
		return Holder{}, errors.New("lock file missing pid")
	}
	return h, nil
}
