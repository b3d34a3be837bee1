package report

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/joshsymonds/backupdigest/internal/drive"
)

const (
	preamble     = "Here's the weekly summary of the router backups:\n\n"
	staleHeader  = "# Files not updated recently:\n"
	separator    = "---\n\n"
	timestampFmt = "2006-01-02 15:04:05 MST"
	hoursPerDay  = 24
)

// Format renders the plain-text digest for c. Output depends only on c.
func Format(c Classification) string {
	window := describeWindow(c.Window)
	var builder strings.Builder
	builder.WriteString(preamble)
	if len(c.Stale) > 0 {
		builder.WriteString(staleHeader)
		writeRecords(&builder, c.Stale)
		fmt.Fprintf(
			&builder,
			"\nPlease review these files as they haven't been updated in the last %s.\n\n",
			window,
		)
	}
	builder.WriteString(separator)
	if len(c.Fresh) > 0 {
		fmt.Fprintf(&builder, "# Recently updated files (Last %s):\n", titleCase(window))
		writeRecords(&builder, c.Fresh)
		builder.WriteString("\n")
	}
	return builder.String()
}

// FormatReport renders stale and fresh with the default window wording.
func FormatReport(stale, fresh []drive.FileRecord) string {
	return Format(Classification{Window: DefaultWindow, Stale: stale, Fresh: fresh})
}

func writeRecords(builder *strings.Builder, files []drive.FileRecord) {
	for _, f := range files {
		fmt.Fprintf(builder, "- %s (Last modified: %s)\n", f.Name, f.ModifiedTime.Format(timestampFmt))
	}
}

func describeWindow(window time.Duration) string {
	day := hoursPerDay * time.Hour
	if window <= 0 || window%day != 0 {
		return window.String()
	}
	days := int(window / day)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// titleCase upper-cases the first letter of every word ("7 days" -> "7 Days").
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
