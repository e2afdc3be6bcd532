// Package fsutil wraps the filesystem operations the install engine
// depends on: atomic-ish moves with a cross-device fallback, managed
// symlinks, and executable discovery inside extracted trees.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// Move renames src to dst. When the two live on different filesystems
// (rename fails with EXDEV) it falls back to a deep copy followed by a
// removal of the source.
func Move(src, dst string) error {
	return moveWithRename(src, dst, os.Rename)
}

func moveWithRename(src, dst string, rename func(string, string) error) error {
	err := rename(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return fmt.Errorf("failed to move %s: %w", src, err)
	}

	if err := copyTree(src, dst); err != nil {
		os.RemoveAll(dst)
		return fmt.Errorf("failed to copy %s across filesystems: %w", src, err)
	}
	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("failed to remove %s after copy: %w", src, err)
	}
	return nil
}

func isCrossDevice(err error) bool {
	if errors.Is(err, syscall.EXDEV) {
		return true
	}
	var linkErr *os.LinkError
	return errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV)
}

// copyTree copies a file or directory tree, preserving permissions and
// recreating symlinks.
func copyTree(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(target, dst)
	case info.IsDir():
		if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
			return err
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := copyTree(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
				return err
			}
		}
		return nil
	default:
		return copyFile(src, dst, info.Mode().Perm())
	}
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// EnsureSymlink points link at target, replacing an existing symlink.
// It refuses to replace anything that is not a symlink.
func EnsureSymlink(target, link string) error {
	info, err := os.Lstat(link)
	if err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			return fmt.Errorf("refusing to replace %s: not a symlink", link)
		}
		if err := os.Remove(link); err != nil {
			return fmt.Errorf("failed to remove old symlink: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to inspect %s: %w", link, err)
	}

	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("failed to create symlink %s: %w", link, err)
	}
	return nil
}

// RemoveSymlink removes link if it is a symlink. Missing links are not
// an error; non-symlinks are left alone and reported.
func RemoveSymlink(link string) error {
	info, err := os.Lstat(link)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", link, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return fmt.Errorf("refusing to remove %s: not a symlink", link)
	}
	if err := os.Remove(link); err != nil {
		return fmt.Errorf("failed to remove symlink: %w", err)
	}
	return nil
}

// MakeExecutable sets the executable bits on path.
func MakeExecutable(path string) error {
	if err := os.Chmod(path, 0o755); err != nil {
		return fmt.Errorf("failed to make %s executable: %w", path, err)
	}
	return nil
}

// FindExecutable locates the most plausible executable for name inside
// an extracted tree. An exact basename match wins; otherwise the
// shallowest executable regular file whose name contains the package
// name; otherwise the shallowest executable at all.
func FindExecutable(root, name string) (string, error) {
	type candidate struct {
		path  string
		depth int
		exact bool
		named bool
	}
	var best *candidate

	better := func(c candidate) bool {
		if best == nil {
			return true
		}
		if c.exact != best.exact {
			return c.exact
		}
		if c.named != best.named {
			return c.named
		}
		if c.depth != best.depth {
			return c.depth < best.depth
		}
		return c.path < best.path
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode().Perm()&0o111 == 0 {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		c := candidate{
			path:  path,
			depth: strings.Count(rel, string(filepath.Separator)),
			exact: base == name,
			named: strings.Contains(strings.ToLower(base), strings.ToLower(name)),
		}
		if better(c) {
			best = &c
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to scan %s: %w", root, err)
	}
	if best == nil {
		return "", fmt.Errorf("no executable found under %s", root)
	}
	return best.path, nil
}
