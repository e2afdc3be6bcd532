package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeAsset(t *testing.T, content string) (string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool-linux-amd64.tar.gz")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256([]byte(content))
	return path, hex.EncodeToString(sum[:])
}

func TestSHA256File(t *testing.T) {
	path, want := writeAsset(t, "release payload")

	got, err := SHA256File(path)
	if err != nil {
		t.Fatalf("SHA256File() error: %v", err)
	}
	if got != want {
		t.Errorf("SHA256File() = %s, want %s", got, want)
	}
}

func TestVerifyFile(t *testing.T) {
	path, digest := writeAsset(t, "release payload")

	if err := VerifyFile(path, digest); err != nil {
		t.Errorf("VerifyFile() error: %v", err)
	}

	// Uppercase digests with whitespace are accepted.
	if err := VerifyFile(path, "  "+digest+" "); err != nil {
		t.Errorf("VerifyFile() with padding error: %v", err)
	}

	wrong := "0000000000000000000000000000000000000000000000000000000000000000"
	err := VerifyFile(path, wrong)
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("VerifyFile() error = %v, want MismatchError", err)
	}
	if mismatch.Expected != wrong {
		t.Errorf("MismatchError.Expected = %s", mismatch.Expected)
	}

	if err := VerifyFile(path, "nothex"); err == nil {
		t.Error("VerifyFile() should reject malformed digests")
	}
}

func TestExtractChecksumBareDigest(t *testing.T) {
	_, digest := writeAsset(t, "x")

	got, err := ExtractChecksum([]byte(digest+"\n"), "tool-linux-amd64.tar.gz")
	if err != nil {
		t.Fatalf("ExtractChecksum() error: %v", err)
	}
	if got != digest {
		t.Errorf("ExtractChecksum() = %s, want %s", got, digest)
	}
}

func TestExtractChecksumMultiLine(t *testing.T) {
	_, digestA := writeAsset(t, "a")
	_, digestB := writeAsset(t, "b")

	data := "# release checksums\n" +
		digestA + "  tool-darwin-amd64.tar.gz\n" +
		digestB + "  ./dist/tool-linux-amd64.tar.gz\n"

	got, err := ExtractChecksum([]byte(data), "tool-linux-amd64.tar.gz")
	if err != nil {
		t.Fatalf("ExtractChecksum() error: %v", err)
	}
	if got != digestB {
		t.Errorf("ExtractChecksum() = %s, want the linux digest", got)
	}

	if _, err := ExtractChecksum([]byte(data), "tool-windows.zip"); err == nil {
		t.Error("ExtractChecksum() should fail for absent assets")
	}
}

func TestExtractChecksumBSDStarMarker(t *testing.T) {
	_, digest := writeAsset(t, "c")
	data := digest + " *tool-linux-amd64.tar.gz\n"

	got, err := ExtractChecksum([]byte(data), "tool-linux-amd64.tar.gz")
	if err != nil {
		t.Fatalf("ExtractChecksum() error: %v", err)
	}
	if got != digest {
		t.Errorf("ExtractChecksum() = %s, want %s", got, digest)
	}
}

func TestExtractChecksumEmpty(t *testing.T) {
	if _, err := ExtractChecksum([]byte("  \n"), "x"); err == nil {
		t.Error("ExtractChecksum() should fail on empty input")
	}
}
