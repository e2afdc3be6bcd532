package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "lock")
}

func TestAcquireRelease(t *testing.T) {
	path := lockPath(t)

	lock, err := Acquire(path, "install")
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}

	holder, err := ReadHolder(path)
	if err != nil {
		t.Fatalf("ReadHolder() error: %v", err)
	}
	if holder.PID != os.Getpid() {
		t.Errorf("holder pid = %d, want %d", holder.PID, os.Getpid())
	}
	if holder.Operation != "install" {
		t.Errorf("holder operation = %q, want install", holder.Operation)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("lock file still present after Release()")
	}

	// Release twice is fine.
	if err := lock.Release(); err != nil {
		t.Errorf("second Release() error: %v", err)
	}
}

func TestAcquireContention(t *testing.T) {
	path := lockPath(t)

	lock, err := Acquire(path, "upgrade")
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	defer lock.Release()

	_, err = Acquire(path, "remove")
	var locked *AlreadyLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("second Acquire() error = %v, want AlreadyLockedError", err)
	}
	if locked.Holder.Operation != "upgrade" {
		t.Errorf("reported holder operation = %q, want upgrade", locked.Holder.Operation)
	}
}

func TestAcquireReclaimsStaleLock(t *testing.T) {
	path := lockPath(t)

	// A pid that cannot exist on Linux (max is far below this).
	stale := Holder{PID: 1 << 27, Operation: "install", AcquiredAt: time.Now()}
	if err := os.WriteFile(path, []byte(stale.encode()), 0o644); err != nil {
		t.Fatal(err)
	}

	lock, err := Acquire(path, "upgrade")
	if err != nil {
		t.Fatalf("Acquire() over stale lock error: %v", err)
	}
	defer lock.Release()

	holder, err := ReadHolder(path)
	if err != nil {
		t.Fatal(err)
	}
	if holder.PID != os.Getpid() {
		t.Errorf("lock not reclaimed: holder pid = %d", holder.PID)
	}
}

func TestAcquireReclaimsCorruptLock(t *testing.T) {
	path := lockPath(t)
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	lock, err := Acquire(path, "install")
	if err != nil {
		t.Fatalf("Acquire() over corrupt lock error: %v", err)
	}
	defer lock.Release()
}

func TestHolderEncodeDecode(t *testing.T) {
	h := Holder{PID: 4242, Operation: "import", AcquiredAt: time.Unix(1710000000, 0).UTC()}

	got, err := decodeHolder(h.encode())
	if err != nil {
		t.Fatalf("decodeHolder() error: %v", err)
	}
	if got.PID != h.PID || got.Operation != h.Operation || !got.AcquiredAt.Equal(h.AcquiredAt) {
		t.Errorf("decodeHolder() = %+v, want %+v", got, h)
	}

	if _, err := decodeHolder("operation=install\n"); err == nil {
		t.Error("decodeHolder() without pid should fail")
	}
}

func TestAliveSelf(t *testing.T) {
	h := Holder{PID: os.Getpid()}
	if !h.Alive() {
		t.Error("Alive() = false for our own pid")
	}
	if (Holder{PID: -1}).Alive() {
		t.Error("Alive() = true for pid -1")
	}
}
