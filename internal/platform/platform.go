// Package platform classifies release assets by operating system, CPU
// architecture, and file kind based on nothing but their filenames, and
// exposes the host's own platform for asset selection.
package platform

import "runtime"

// OS is a normalized operating system identifier.
type OS string

const (
	OSLinux   OS = "linux"
	OSDarwin  OS = "darwin"
	OSWindows OS = "windows"
	OSFreeBSD OS = "freebsd"
	OSOpenBSD OS = "openbsd"
	OSNetBSD  OS = "netbsd"
	OSAndroid OS = "android"
	OSUnknown OS = ""
)

// Arch is a normalized CPU architecture identifier.
type Arch string

const (
	ArchAMD64   Arch = "amd64"
	Arch386     Arch = "386"
	ArchARM64   Arch = "arm64"
	ArchARM     Arch = "arm"
	ArchUnknown Arch = ""
)

// Kind describes how an asset is handled after download.
type Kind string

const (
	KindAppImage   Kind = "appimage"
	KindArchive    Kind = "archive"
	KindCompressed Kind = "compressed"
	KindBinary     Kind = "binary"
	KindWinExe     Kind = "winexe"
	KindChecksum   Kind = "checksum"
	// KindAuto defers the choice to whatever the release actually ships.
	KindAuto Kind = "auto"
)

// ParseKind converts a user-supplied kind string into a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindAppImage, KindArchive, KindCompressed, KindBinary, KindWinExe, KindChecksum, KindAuto:
		return Kind(s), true
	}
	return "", false
}

// Host returns the OS and architecture upstream is running on.
func Host() (OS, Arch) {
	var osKind OS
	switch runtime.GOOS {
	case "linux":
		osKind = OSLinux
	case "darwin":
		osKind = OSDarwin
	case "windows":
		osKind = OSWindows
	case "freebsd":
		osKind = OSFreeBSD
	case "openbsd":
		osKind = OSOpenBSD
	case "netbsd":
		osKind = OSNetBSD
	default:
		osKind = OSUnknown
	}

	var arch Arch
	switch runtime.GOARCH {
	case "amd64":
		arch = ArchAMD64
	case "386":
		arch = Arch386
	case "arm64":
		arch = ArchARM64
	case "arm":
		arch = ArchARM
	default:
		arch = ArchUnknown
	}

	return osKind, arch
}
