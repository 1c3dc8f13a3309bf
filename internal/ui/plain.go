package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/cpdd/internal/event"
	"github.com/bamsammich/cpdd/internal/stats"
)

// plainPresenter prints one line per node when verbose, and a periodic
// progress line: redrawn in place on a TTY, appended otherwise.
type plainPresenter struct {
	w        io.Writer
	errW     io.Writer
	stats    *stats.Collector
	verbose  bool
	verify   bool
	tty      bool
	width    int
	interval time.Duration

	drawn bool // a progress line is on screen
}

func (p *plainPresenter) Run(events <-chan event.Event) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearProgress()
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.stats.Tick()
			p.printProgress()
		}
	}
}

// eventLine renders ev for verbose output; "" means the event is not shown.
func eventLine(ev event.Event) string {
	switch ev.Type {
	case event.DirCreated:
		return "mkdir    " + ev.Dst
	case event.DirMerged:
		return "merge    " + ev.Dst
	case event.FileLinked:
		return fmt.Sprintf("%-8s %s  %s", "link", ev.Dst, FormatBytes(ev.Size)) + methodSuffix(ev.Method)
	case event.FileUpToDate, event.SymlinkUpToDate:
		return "same     " + ev.Dst
	case event.SymlinkCreated:
		return "symlink  " + ev.Dst
	case event.Removed:
		return "remove   " + ev.Dst
	case event.BackedUp:
		return "backup   " + ev.Dst
	case event.StoreAdded:
		return fmt.Sprintf("store    %s  %s", ev.Hash, ev.Path)
	case event.NodeSkipped:
		return "skip     " + ev.Path
	case event.VerifyOK:
		return "ok       " + ev.Path
	case event.VerifyFailed:
		return "MISMATCH " + ev.Path
	}
	return ""
}

func methodSuffix(method string) string {
	if method == "" {
		return ""
	}
	return "  (" + method + ")"
}

func (p *plainPresenter) handleEvent(ev event.Event) {
	if !p.verbose {
		return
	}
	line := eventLine(ev)
	if line == "" {
		return
	}
	p.clearProgress()
	fmt.Fprintln(p.w, line)
}

func (p *plainPresenter) progressLine() string {
	snap := p.stats.Snapshot()
	speed := FormatRate(p.stats.RollingSpeed(10))
	if p.verify {
		var pct float64
		if snap.EntriesTotal > 0 {
			pct = float64(snap.EntriesVerified+snap.EntriesCorrupt) / float64(snap.EntriesTotal)
		}
		return fmt.Sprintf("verify %s %s/%s entries  %s mismatched",
			ProgressBar(pct, 20),
			FormatCount(snap.EntriesVerified+snap.EntriesCorrupt),
			FormatCount(snap.EntriesTotal),
			FormatCount(snap.EntriesCorrupt),
		)
	}
	return fmt.Sprintf("progress: %s nodes  %s stored  %s hashed  %s",
		FormatCount(snap.Nodes()),
		FormatCount(snap.StoreWrites),
		FormatBytes(snap.BytesHashed),
		speed,
	)
}

func (p *plainPresenter) printProgress() {
	line := p.progressLine()
	if !p.tty {
		fmt.Fprintln(p.errW, line)
		return
	}
	if runes := []rune(line); len(runes) > p.width-1 {
		line = string(runes[:p.width-1])
	}
	fmt.Fprintf(p.errW, "\r%s\x1b[K", line)
	p.drawn = true
}

func (p *plainPresenter) clearProgress() {
	if !p.drawn {
		return
	}
	fmt.Fprint(p.errW, "\r\x1b[K")
	p.drawn = false
}

func (p *plainPresenter) Summary() string {
	snap := p.stats.Snapshot()
	if p.verify {
		return VerifySummary(snap)
	}
	return CompletionSummary(snap)
}
