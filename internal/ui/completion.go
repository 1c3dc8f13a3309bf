package ui

import (
	"fmt"

	"github.com/bamsammich/cpdd/internal/stats"
)

// CompletionSummary builds the final copy summary line.
// Format: done  files 1,204 (12 same)  dirs 88  symlinks 3  store +1,150  backups 2  size 2.1 GiB  time 3m 17s
func CompletionSummary(snap stats.Snapshot) string {
	s := fmt.Sprintf("done  files %s", FormatCount(snap.FilesLinked+snap.FilesUpToDate))
	if snap.FilesUpToDate > 0 {
		s += fmt.Sprintf(" (%s same)", FormatCount(snap.FilesUpToDate))
	}
	s += fmt.Sprintf("  dirs %s  symlinks %s  store +%s",
		FormatCount(snap.DirsCreated+snap.DirsMerged),
		FormatCount(snap.SymlinksCreated+snap.SymlinksUpToDate),
		FormatCount(snap.StoreWrites),
	)
	if snap.Backups > 0 {
		s += "  backups " + FormatCount(snap.Backups)
	}
	if snap.Removed > 0 {
		s += "  removed " + FormatCount(snap.Removed)
	}
	if snap.Skipped > 0 {
		s += "  skipped " + FormatCount(snap.Skipped)
	}
	return s + fmt.Sprintf("  size %s  time %s", FormatBytes(snap.BytesLinked), FormatDuration(snap.Elapsed))
}

// VerifySummary builds the final verify summary line.
func VerifySummary(snap stats.Snapshot) string {
	icon := "✓"
	if snap.EntriesCorrupt > 0 {
		icon = "✗"
	}
	return fmt.Sprintf("verify %s  entries %s  mismatches %s  time %s",
		icon,
		FormatCount(snap.EntriesTotal),
		FormatCount(snap.EntriesCorrupt),
		FormatDuration(snap.Elapsed),
	)
}
