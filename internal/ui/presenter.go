// Package ui renders engine and verifier events for the terminal.
package ui

import (
	"io"
	"time"

	"github.com/bamsammich/cpdd/internal/event"
	"github.com/bamsammich/cpdd/internal/stats"
)

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan event.Event) error
	// Summary returns the final summary line.
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	Writer    io.Writer // per-node lines
	ErrWriter io.Writer // progress line
	Stats     *stats.Collector
	IsTTY     bool
	Width     int
	Quiet     bool
	Verbose   bool
	Verify    bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // quiet and plain presenters share one interface
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return &quietPresenter{}
	}
	interval := 5 * time.Second
	if cfg.IsTTY {
		interval = time.Second
	}
	width := cfg.Width
	if width <= 0 {
		width = defaultWidth
	}
	return &plainPresenter{
		w:        cfg.Writer,
		errW:     cfg.ErrWriter,
		stats:    cfg.Stats,
		verbose:  cfg.Verbose,
		verify:   cfg.Verify,
		tty:      cfg.IsTTY,
		width:    width,
		interval: interval,
	}
}
