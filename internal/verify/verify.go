// Package verify computes and checks SHA-256 digests for downloaded
// assets and validates minisign signatures when a public key is
// configured.
package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedisct1/go-minisign"
)

const sha256HexLen = 64

// MismatchError reports a digest that did not match the expected value.
type MismatchError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s",
		filepath.Base(e.Path), e.Expected, e.Actual)
}

// SHA256File computes the hex-encoded SHA-256 digest of the file at path.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyFile checks the file at path against the expected hex digest.
func VerifyFile(path, expected string) error {
	expected = strings.ToLower(strings.TrimSpace(expected))
	if !isHexDigest(expected, sha256HexLen) {
		return fmt.Errorf("invalid sha256 digest %q", expected)
	}
	actual, err := SHA256File(path)
	if err != nil {
		return err
	}
	if actual != expected {
		return &MismatchError{Path: path, Expected: expected, Actual: actual}
	}
	return nil
}

// ExtractChecksum pulls the digest for assetName out of a checksum file.
// The file is either a single bare digest or the common "digest filename"
// line format; lines are matched against the asset's base name.
func ExtractChecksum(data []byte, assetName string) (string, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("checksum file is empty")
	}
	if isHexDigest(text, sha256HexLen) {
		return strings.ToLower(text), nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		digest := fields[0]
		if !isHexDigest(digest, sha256HexLen) {
			continue
		}
		// BSD-style "*filename" binary markers are common.
		candidate := strings.TrimPrefix(filepath.Base(fields[len(fields)-1]), "*")
		if candidate == assetName {
			return strings.ToLower(digest), nil
		}
	}
	return "", fmt.Errorf("checksum for %s not found", assetName)
}

// VerifyMinisign validates a detached minisign signature over the file
// at path using the base64 public key from the package configuration.
func VerifyMinisign(path, sigPath, publicKey string) error {
	pubKey, err := minisign.NewPublicKey(publicKey)
	if err != nil {
		return fmt.Errorf("failed to parse minisign public key: %w", err)
	}
	sig, err := minisign.NewSignatureFromFile(sigPath)
	if err != nil {
		return fmt.Errorf("failed to read minisign signature: %w", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	valid, err := pubKey.Verify(content, sig)
	if err != nil {
		return fmt.Errorf("minisign verification error: %w", err)
	}
	if !valid {
		return fmt.Errorf("minisign signature verification failed for %s", filepath.Base(path))
	}
	return nil
}

func isHexDigest(value string, expectedLen int) bool {
	if len(value) != expectedLen {
		return false
	}
	for _, ch := range value {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') && (ch < 'A' || ch > 'F') {
			return false
		}
	}
	return true
}
