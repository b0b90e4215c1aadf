package slideshow

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// Cleaner removes stale entries from the scratch directory on a cron
// schedule. Workspaces normally clean up after themselves; this catches the
// ones orphaned by crashes and interrupted streams.
type Cleaner struct {
	dir    string
	maxAge time.Duration
	cron   *cron.Cron
}

// NewCleaner schedules sweeps of dir. Entries older than maxAge go.
func NewCleaner(dir string, maxAge time.Duration, schedule string) (*Cleaner, error) {
	c := &Cleaner{
		dir:    dir,
		maxAge: maxAge,
		cron:   cron.New(),
	}
	if _, err := c.cron.AddFunc(schedule, c.Sweep); err != nil {
		return nil, err
	}
	return c, nil
}

// Start begins scheduled sweeps.
func (c *Cleaner) Start() { c.cron.Start() }

// Stop halts the schedule. A sweep in flight finishes.
func (c *Cleaner) Stop() { c.cron.Stop() }

// Sweep removes all entries older than maxAge. Safe to call directly.
func (c *Cleaner) Sweep() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("slideshow: sweep %s: %v", c.dir, err)
		}
		return
	}
	cutoff := time.Now().Add(-c.maxAge)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Printf("slideshow: remove %s: %v", path, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Printf("slideshow: swept %d stale entries from %s", removed, c.dir)
	}
}
