package platform

import (
	"path"
	"strings"
)

var archiveExtensions = []string{
	".zip", ".tar", ".tar.gz", ".tgz", ".tar.bz2", ".tbz2", ".tar.xz", ".txz", ".7z", ".rar",
}

var compressionExtensions = []string{".gz", ".br", ".bz2", ".xz"}

var checksumExtensions = []string{
	".sha256", ".sha512", ".sha1", ".md5", ".sig", ".asc", ".minisig", ".sum",
}

// ParseOS guesses the target operating system from an asset filename.
// Returns OSUnknown when no marker matches; such assets are treated as
// potentially compatible with any OS.
func ParseOS(filename string) OS {
	name := strings.ToLower(filename)

	switch {
	case containsMarker(name, ".exe", ".msi", ".dll", "windows", "win64", "win32", "win", "msvc"):
		return OSWindows
	case containsMarker(name, "macos", "darwin", "osx", "mac", ".dmg", ".app"):
		return OSDarwin
	case containsMarker(name, "android", ".apk", ".aab"):
		return OSAndroid
	case containsMarker(name, "linux", "gnu", ".appimage", "musl"):
		return OSLinux
	case containsMarker(name, "freebsd", "fbsd"):
		return OSFreeBSD
	case containsMarker(name, "openbsd", "obsd"):
		return OSOpenBSD
	case containsMarker(name, "netbsd", "nbsd"):
		return OSNetBSD
	}
	return OSUnknown
}

// ParseArch guesses the target CPU architecture from an asset filename.
func ParseArch(filename string) Arch {
	name := strings.ToLower(filename)

	switch {
	case containsMarker(name, "aarch64", "arm64", "armv8"):
		return ArchARM64
	case containsMarker(name, "armv7", "armv7l", "armv6", "arm"):
		return ArchARM
	case containsMarker(name, "x86_64", "x86-64", "amd64", "x64", "win64"):
		return ArchAMD64
	case containsMarker(name, "x86_32", "x86-32", "win32", "i386", "i686"):
		return Arch386
	case containsMarker(name, "x86"):
		// Bare "x86" is ambiguous; releases that mean 32-bit usually say so.
		if strings.Contains(name, "32") {
			return Arch386
		}
		return ArchAMD64
	}
	return ArchUnknown
}

// ParseFileKind classifies an asset filename into a concrete Kind.
// It never returns KindAuto.
func ParseFileKind(filename string) Kind {
	name := strings.ToLower(filename)

	if strings.HasSuffix(name, ".appimage") {
		return KindAppImage
	}
	if strings.HasSuffix(name, ".exe") {
		return KindWinExe
	}
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(name, ext) {
			return KindArchive
		}
	}
	for _, ext := range checksumExtensions {
		if strings.HasSuffix(name, ext) {
			return KindChecksum
		}
	}
	if isChecksumBasename(name) {
		return KindChecksum
	}
	for _, ext := range compressionExtensions {
		if strings.HasSuffix(name, ext) {
			return KindCompressed
		}
	}
	return KindBinary
}

// isChecksumBasename catches checksum manifests without a telltale
// extension, e.g. SHA256SUMS or checksums.txt.
func isChecksumBasename(name string) bool {
	base := strings.ToLower(path.Base(name))
	base = strings.TrimSuffix(base, ".txt")
	return strings.Contains(base, "checksum") ||
		strings.HasSuffix(base, "sums") ||
		base == "sha256sum" || base == "sha512sum"
}

// containsMarker reports whether the filename contains any marker as a
// whole token. Markers beginning with a dot match as filename suffixes.
// Token boundaries are non-alphanumeric characters, so "win" matches
// "tool-win-amd64.zip" but not "darwin".
func containsMarker(filename string, markers ...string) bool {
	for _, marker := range markers {
		if strings.HasPrefix(marker, ".") {
			if strings.HasSuffix(filename, marker) {
				return true
			}
			continue
		}

		for index := 0; ; {
			rel := strings.Index(filename[index:], marker)
			if rel < 0 {
				break
			}
			start := index + rel
			end := start + len(marker)

			validStart := start == 0 || !isAlphanumeric(filename[start-1])
			validEnd := end >= len(filename) || !isAlphanumeric(filename[end])
			if validStart && validEnd {
				return true
			}
			index = start + 1
		}
	}
	return false
}

func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
