package provider

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CompareVersions orders two release tags. Tags that parse as semantic
// versions (with or without a leading "v") are compared semantically;
// everything else falls back to a plain string comparison so the ordering
// stays total and deterministic.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(normalizeTag(a))
	vb, errB := semver.NewVersion(normalizeTag(b))

	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		// A parsed, B did not: structured versions win.
		return 1
	case errB == nil:
		return -1
	default:
		return strings.Compare(a, b)
	}
}

// IsNewer reports whether candidate is a strictly newer version than current.
// An empty current version means "never installed", so anything is newer.
func IsNewer(candidate, current string) bool {
	if current == "" {
		return candidate != ""
	}
	return CompareVersions(candidate, current) > 0
}

func normalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimPrefix(tag, "v")
	tag = strings.TrimPrefix(tag, "V")
	return tag
}
