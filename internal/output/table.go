// Package output renders tables and progress indicators for the CLI.
// Tables use plain ASCII with ANSI colors when stdout is a terminal.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/upstream-sh/upstream/internal/doctor"
	"github.com/upstream-sh/upstream/internal/engine"
	"github.com/upstream-sh/upstream/internal/store"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled reports whether ANSI colors should be emitted: stdout
// is a terminal and NO_COLOR is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderPackageTable renders the installed package list. Records are
// expected pre-sorted by name, which is how the store returns them.
func RenderPackageTable(records []*store.Record) string {
	if len(records) == 0 {
		return "No packages installed.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-20s %-14s %-9s %-8s %-13s %s\n",
		"Package", "Version", "Provider", "Channel", "Updated", "Flags"))
	sb.WriteString(strings.Repeat("-", 78))
	sb.WriteString("\n")

	for _, rec := range records {
		version := rec.Version
		if version == "" {
			version = "unversioned"
		}
		var flags []string
		if rec.Pinned {
			flags = append(flags, "pinned")
		}
		sb.WriteString(fmt.Sprintf("%-20s %-14s %-9s %-8s %-13s %s\n",
			truncate(rec.Name, 20),
			truncate(version, 14),
			rec.Provider,
			rec.Channel,
			formatRelativeTime(rec.LastUpdatedAt),
			strings.Join(flags, ",")))
	}
	return sb.String()
}

// RenderResult renders one operation outcome as a single line.
func RenderResult(res *engine.Result) string {
	switch {
	case res.State == engine.StateRolledBack:
		return fmt.Sprintf("%s %s: rolled back: %v", colorize(colorRed, "error"), res.Name, res.Err)
	case res.Failed():
		return fmt.Sprintf("%s %s: %v", colorize(colorRed, "error"), res.Name, res.Err)
	case res.Skipped:
		return fmt.Sprintf("%s %s: %s", colorize(colorGray, "skip"), res.Name, res.Reason)
	case res.OldVersion != "" && res.NewVersion != "" && res.OldVersion != res.NewVersion:
		return fmt.Sprintf("%s %s: %s -> %s", colorize(colorGreen, "ok"), res.Name, res.OldVersion, res.NewVersion)
	case res.NewVersion != "":
		return fmt.Sprintf("%s %s: %s", colorize(colorGreen, "ok"), res.Name, res.NewVersion)
	default:
		return fmt.Sprintf("%s %s", colorize(colorGreen, "ok"), res.Name)
	}
}

// RenderCheckResult renders one `upgrade --check` outcome.
func RenderCheckResult(res *engine.Result) string {
	switch {
	case res.Failed():
		return fmt.Sprintf("%-20s %s: %v", res.Name, colorize(colorRed, "error"), res.Err)
	case !res.Versioned && res.Skipped:
		return fmt.Sprintf("%-20s %s", res.Name, "unversioned, unchanged")
	case !res.Versioned:
		return fmt.Sprintf("%-20s %s", res.Name, colorize(colorYellow, "unversioned, source modified"))
	case res.Skipped && res.Reason == "pinned":
		return fmt.Sprintf("%-20s %s (%s)", res.Name, res.OldVersion, colorize(colorGray, "pinned"))
	case res.Skipped:
		return fmt.Sprintf("%-20s %s", res.Name, res.OldVersion)
	default:
		return fmt.Sprintf("%-20s %s -> %s", res.Name,
			res.OldVersion, colorize(colorYellow, res.NewVersion))
	}
}

// RenderFinding renders one doctor finding.
func RenderFinding(f doctor.Finding) string {
	color := colorYellow
	if f.Severity == doctor.SeverityError {
		color = colorRed
	}
	return colorize(color, "["+string(f.Severity)+"] ") + strings.TrimPrefix(f.String(), "["+string(f.Severity)+"] ")
}

// FormatSize renders a byte count for humans.
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(bytes))
}

func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
