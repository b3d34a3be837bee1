package report

import (
	"time"

	"github.com/joshsymonds/backupdigest/internal/drive"
)

// DefaultWindow is the trailing window a backup must have been modified in to count as fresh.
const DefaultWindow = 7 * 24 * time.Hour

// Classification partitions files into stale and fresh relative to Cutoff.
type Classification struct {
	Now    time.Time
	Window time.Duration
	Cutoff time.Time
	Stale  []drive.FileRecord
	Fresh  []drive.FileRecord
}

// Total is the number of classified files.
func (c Classification) Total() int { return len(c.Stale) + len(c.Fresh) }

// Classify splits files into fresh (modified strictly after now-window) and
// stale (everything else). Both outputs keep the input order.
func Classify(files []drive.FileRecord, now time.Time, window time.Duration) Classification {
	cutoff := now.Add(-window)
	c := Classification{Now: now, Window: window, Cutoff: cutoff}
	for _, f := range files {
		if f.ModifiedTime.After(cutoff) {
			c.Fresh = append(c.Fresh, f)
			continue
		}
		c.Stale = append(c.Stale, f)
	}
	return c
}
