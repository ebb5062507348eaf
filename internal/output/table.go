// Package output provides terminal output utilities for gitpm.
//
// This package includes:
//   - Table rendering for installed packages, search results, history and snapshots
//   - A spinner-based indicator for the operation in flight
//
// Tables use box-drawing rules and ANSI color codes when stdout is a terminal.
// Progress indicators are thread-safe and can be used from multiple goroutines.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/gitpm/internal/store"
	"github.com/blackwell-systems/gitpm/internal/upm"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderPackageTable renders the installed packages, sorted by name
// ignoring case. Registry packages with a newer compatible version are marked.
func RenderPackageTable(packages []upm.Package) string {
	if len(packages) == 0 {
		return "No packages installed.\n"
	}

	sorted := make([]upm.Package, len(packages))
	copy(sorted, packages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-32s %-10s %-9s %-14s %s\n",
		"Package", "Version", "Source", "Installed", "Update"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, pkg := range sorted {
		// Pad before coloring so escape codes don't break alignment.
		origin := fmt.Sprintf("%-9s", pkg.Origin)
		sb.WriteString(fmt.Sprintf("%-32s %-10s %s %-14s %s\n",
			truncate(pkg.Name, 32),
			truncate(pkg.Version, 10),
			colorize(originColor(pkg.Origin), origin),
			formatRelativeTime(pkg.InstalledAt),
			formatUpdate(pkg)))
	}

	return sb.String()
}

// formatUpdate returns the version a registry package can move to, or "".
func formatUpdate(pkg upm.Package) string {
	latest := pkg.Versions.LatestCompatible
	if latest == "" {
		latest = pkg.Versions.Latest
	}
	if latest == "" || strings.EqualFold(latest, pkg.Version) {
		return ""
	}
	return colorize(colorYellow, "→ "+latest)
}

func originColor(o upm.Origin) string {
	switch o {
	case upm.OriginGit:
		return colorGreen
	case upm.OriginRegistry:
		return colorYellow
	default:
		return colorGray
	}
}

// RenderSearchTable renders registry search results in the order given.
func RenderSearchTable(results []upm.Package) string {
	if len(results) == 0 {
		return "No matching packages in the registry.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-32s %-10s %-12s %s\n",
		"Package", "Latest", "Compatible", "Versions"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, pkg := range results {
		compatible := pkg.Versions.LatestCompatible
		if compatible == "" {
			compatible = "none"
		}
		sb.WriteString(fmt.Sprintf("%-32s %-10s %-12s %s\n",
			truncate(pkg.Name, 32),
			truncate(pkg.Versions.Latest, 10),
			truncate(compatible, 12),
			truncate(strings.Join(pkg.Versions.All, ", "), 30)))
	}

	return sb.String()
}

// RenderHistoryTable renders recorded operations in the order given.
func RenderHistoryTable(ops []*store.Operation) string {
	if len(ops) == 0 {
		return "No operations recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-5s %-14s %-7s %-8s %-8s %s\n",
		"ID", "When", "Op", "Result", "Took", "Message"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, op := range ops {
		result := colorize(colorGreen, fmt.Sprintf("%-8s", "ok"))
		if !op.Success {
			result = colorize(colorRed, fmt.Sprintf("%-8s", "failed"))
		}
		took := op.FinishedAt.Sub(op.StartedAt).Round(10 * time.Millisecond)

		sb.WriteString(fmt.Sprintf("%-5d %-14s %-7s %s %-8s %s\n",
			op.ID,
			formatRelativeTime(op.FinishedAt),
			op.Kind,
			result,
			took,
			truncate(op.Message, 40)))
	}

	return sb.String()
}

// RenderSnapshotTable renders a table of snapshots, newest first.
func RenderSnapshotTable(snapshots []*store.Snapshot) string {
	if len(snapshots) == 0 {
		return "No snapshots found.\n"
	}

	sorted := make([]*store.Snapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID > sorted[j].ID
	})

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-5s %-17s %-10s %s\n",
		"ID", "Created", "Packages", "Reason"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, snap := range sorted {
		sb.WriteString(fmt.Sprintf("%-5d %-17s %-10d %s\n",
			snap.ID,
			formatRelativeTime(snap.CreatedAt),
			snap.PackageCount,
			truncate(snap.Reason, 40)))
	}

	return sb.String()
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if time.Since(t) < time.Minute {
		return "just now"
	}
	return humanize.Time(t)
}

// truncate truncates a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
