// Package extract unpacks downloaded release archives. It understands
// tar, tar.gz, zip, and bare gzip. Entries that would escape the
// destination directory are rejected.
package extract

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Extractor unpacks an archive into destDir and returns the directory
// holding the unpacked content (destDir itself, or the single top-level
// directory the archive wraps everything in).
type Extractor interface {
	Extract(archivePath, destDir string) (string, error)
}

// New returns the standard extractor.
func New() Extractor {
	return archiveExtractor{}
}

type archiveExtractor struct{}

// CanExtract reports whether the filename carries a supported archive
// extension.
func CanExtract(filename string) bool {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"),
		strings.HasSuffix(lower, ".tar"), strings.HasSuffix(lower, ".zip"),
		strings.HasSuffix(lower, ".gz"):
		return true
	}
	return false
}

func (archiveExtractor) Extract(archivePath, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	lower := strings.ToLower(archivePath)
	var err error
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		err = extractTar(archivePath, destDir, true)
	case strings.HasSuffix(lower, ".tar"):
		err = extractTar(archivePath, destDir, false)
	case strings.HasSuffix(lower, ".zip"):
		err = extractZip(archivePath, destDir)
	case strings.HasSuffix(lower, ".gz"):
		err = extractGzip(archivePath, destDir)
	default:
		return "", fmt.Errorf("unsupported archive format: %s", filepath.Base(archivePath))
	}
	if err != nil {
		return "", err
	}
	return collapse(destDir)
}

// collapse returns the single top-level directory when the archive
// wraps all content in one, which most release tarballs do.
func collapse(destDir string) (string, error) {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", destDir, err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(destDir, entries[0].Name()), nil
	}
	return destDir, nil
}

// securePath joins name under destDir and rejects traversal.
func securePath(destDir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return filepath.Join(destDir, clean), nil
}

func extractTar(archivePath, destDir string, gzipped bool) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if gzipped {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to read gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}

		path, err := securePath(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, os.FileMode(hdr.Mode).Perm()|0o700); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			if err := writeEntry(path, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			if err := os.Symlink(hdr.Linkname, path); err != nil {
				return fmt.Errorf("failed to create symlink: %w", err)
			}
		}
	}
}

func extractZip(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		path, err := securePath(destDir, entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(path, entry.Mode().Perm()|0o700); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("failed to open zip entry: %w", err)
		}
		err = writeEntry(path, rc, entry.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// extractGzip handles a bare gzipped binary (tool.gz). The decompressed
// file keeps the name minus the .gz suffix.
func extractGzip(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read gzip stream: %w", err)
	}
	defer gz.Close()

	name := strings.TrimSuffix(filepath.Base(archivePath), ".gz")
	return writeEntry(filepath.Join(destDir, name), gz, 0o755)
}

func writeEntry(path string, r io.Reader, perm os.FileMode) error {
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
