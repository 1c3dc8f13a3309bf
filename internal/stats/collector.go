// Package stats aggregates copy and verify counters for progress output and
// the final summary.
package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Collector tracks copy and verify statistics using lock-free atomic counters.
type Collector struct {
	sourcesCompleted atomic.Int64
	dirsCreated      atomic.Int64
	dirsMerged       atomic.Int64
	filesLinked      atomic.Int64
	filesUpToDate    atomic.Int64
	symlinksCreated  atomic.Int64
	symlinksUpToDate atomic.Int64
	removed          atomic.Int64
	backups          atomic.Int64
	storeWrites      atomic.Int64
	storeHits        atomic.Int64
	reflinks         atomic.Int64
	fullCopies       atomic.Int64
	skipped          atomic.Int64
	bytesHashed      atomic.Int64
	bytesLinked      atomic.Int64
	entriesTotal     atomic.Int64
	entriesVerified  atomic.Int64
	entriesCorrupt   atomic.Int64
	startTime        time.Time

	// Ring buffer, written only by the presenter's Tick.
	mu         sync.Mutex
	throughput [ringSize]int64 // bytes hashed per second
	ringIdx    int
	ringCount  int
	lastBytes  int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	SourcesCompleted int64
	DirsCreated      int64
	DirsMerged       int64
	FilesLinked      int64
	FilesUpToDate    int64
	SymlinksCreated  int64
	SymlinksUpToDate int64
	Removed          int64
	Backups          int64
	StoreWrites      int64
	StoreHits        int64
	Reflinks         int64
	FullCopies       int64
	Skipped          int64
	BytesHashed      int64
	BytesLinked      int64
	EntriesTotal     int64
	EntriesVerified  int64
	EntriesCorrupt   int64
	Elapsed          time.Duration
}

func (c *Collector) AddSourcesCompleted(n int64) { c.sourcesCompleted.Add(n) }
func (c *Collector) AddDirsCreated(n int64)      { c.dirsCreated.Add(n) }
func (c *Collector) AddDirsMerged(n int64)       { c.dirsMerged.Add(n) }
func (c *Collector) AddFilesLinked(n int64)      { c.filesLinked.Add(n) }
func (c *Collector) AddFilesUpToDate(n int64)    { c.filesUpToDate.Add(n) }
func (c *Collector) AddSymlinksCreated(n int64)  { c.symlinksCreated.Add(n) }
func (c *Collector) AddSymlinksUpToDate(n int64) { c.symlinksUpToDate.Add(n) }
func (c *Collector) AddRemoved(n int64)          { c.removed.Add(n) }
func (c *Collector) AddBackups(n int64)          { c.backups.Add(n) }
func (c *Collector) AddStoreWrites(n int64)      { c.storeWrites.Add(n) }
func (c *Collector) AddStoreHits(n int64)        { c.storeHits.Add(n) }
func (c *Collector) AddReflinks(n int64)         { c.reflinks.Add(n) }
func (c *Collector) AddFullCopies(n int64)       { c.fullCopies.Add(n) }
func (c *Collector) AddSkipped(n int64)          { c.skipped.Add(n) }
func (c *Collector) AddBytesHashed(n int64)      { c.bytesHashed.Add(n) }
func (c *Collector) AddBytesLinked(n int64)      { c.bytesLinked.Add(n) }
func (c *Collector) AddEntriesVerified(n int64)  { c.entriesVerified.Add(n) }
func (c *Collector) AddEntriesCorrupt(n int64)   { c.entriesCorrupt.Add(n) }

// SetEntriesTotal records how many store entries a verify pass will check.
func (c *Collector) SetEntriesTotal(n int64) { c.entriesTotal.Store(n) }

// Snapshot returns a point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		SourcesCompleted: c.sourcesCompleted.Load(),
		DirsCreated:      c.dirsCreated.Load(),
		DirsMerged:       c.dirsMerged.Load(),
		FilesLinked:      c.filesLinked.Load(),
		FilesUpToDate:    c.filesUpToDate.Load(),
		SymlinksCreated:  c.symlinksCreated.Load(),
		SymlinksUpToDate: c.symlinksUpToDate.Load(),
		Removed:          c.removed.Load(),
		Backups:          c.backups.Load(),
		StoreWrites:      c.storeWrites.Load(),
		StoreHits:        c.storeHits.Load(),
		Reflinks:         c.reflinks.Load(),
		FullCopies:       c.fullCopies.Load(),
		Skipped:          c.skipped.Load(),
		BytesHashed:      c.bytesHashed.Load(),
		BytesLinked:      c.bytesLinked.Load(),
		EntriesTotal:     c.entriesTotal.Load(),
		EntriesVerified:  c.entriesVerified.Load(),
		EntriesCorrupt:   c.entriesCorrupt.Load(),
		Elapsed:          c.Elapsed(),
	}
}

// Nodes returns how many source nodes were processed (not counting skips).
func (s Snapshot) Nodes() int64 {
	return s.DirsCreated + s.DirsMerged + s.FilesLinked + s.FilesUpToDate +
		s.SymlinksCreated + s.SymlinksUpToDate
}

// Tick records the bytes hashed since the previous tick. Called 1/sec by the
// presenter.
func (c *Collector) Tick() {
	current := c.bytesHashed.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = current - c.lastBytes
	c.lastBytes = current
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes hashed per second over the last n
// seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(seconds, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"sources=%d dirs=%d/%d files=%d/%d symlinks=%d/%d store=+%d/=%d backups=%d removed=%d skipped=%d bytes=%d",
		s.SourcesCompleted, s.DirsCreated, s.DirsMerged, s.FilesLinked, s.FilesUpToDate,
		s.SymlinksCreated, s.SymlinksUpToDate, s.StoreWrites, s.StoreHits,
		s.Backups, s.Removed, s.Skipped, s.BytesLinked,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
