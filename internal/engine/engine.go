// Package engine copies filesystem trees into a destination directory,
// routing every regular file's content through the content store and moving
// anything it would displace into a backup chain.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bamsammich/cpdd/internal/event"
	"github.com/bamsammich/cpdd/internal/stats"
	"github.com/bamsammich/cpdd/internal/store"
)

// Config describes a copy operation.
type Config struct {
	Sources  []string
	DstDir   string
	StoreDir string
	// Store is used instead of opening StoreDir when set. The caller keeps
	// ownership and must hold it open for the whole run.
	Store *store.Store

	Recurse        bool
	Overwrite      bool
	SkipInvalid    bool
	BackupSuffix   string
	RequireReflink bool

	Logger *slog.Logger
	Events chan<- event.Event
	// WaitForEvents makes every send on Events block until received. By
	// default an event is dropped when the channel is full.
	WaitForEvents bool
	Stats         *stats.Collector
}

// Result is the outcome of a copy operation.
type Result struct {
	Stats     stats.Snapshot
	Completed int // sources fully copied before Err
	Err       error
}

// Run copies each source into cfg.DstDir in order and stops at the first
// error. Nothing already done is rolled back.
func Run(ctx context.Context, cfg Config) Result {
	collector := cfg.Stats
	if collector == nil {
		collector = stats.NewCollector()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	result := func(completed int, err error) Result {
		return Result{Stats: collector.Snapshot(), Completed: completed, Err: err}
	}

	if cfg.BackupSuffix == "" {
		return result(0, invalidInput("backup suffix must not be empty"))
	}
	if err := checkDstDir(cfg.DstDir); err != nil {
		return result(0, err)
	}

	st := cfg.Store
	if st == nil {
		if cfg.StoreDir == "" {
			return result(0, invalidInput("no store directory"))
		}
		opened, err := store.Open(ctx, cfg.StoreDir, store.Options{Create: true, Logger: logger})
		if errors.Is(err, store.ErrNotDirectory) {
			err = fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		if err != nil {
			return result(0, err)
		}
		defer opened.Close()
		st = opened
	}

	c := &copier{
		cfg:    cfg,
		store:  st,
		logger: logger,
		stats:  collector,
	}
	for i, src := range cfg.Sources {
		if err := ctx.Err(); err != nil {
			return result(i, err)
		}
		c.emit(event.Event{Type: event.SourceStarted, Path: src})
		logger.Debug("handling source", "path", src)
		if err := c.copyTree(ctx, src); err != nil {
			c.emit(event.Event{Type: event.NodeFailed, Path: src, Error: err})
			return result(i, err)
		}
		collector.AddSourcesCompleted(1)
		c.emit(event.Event{Type: event.SourceCompleted, Path: src})
	}
	return result(len(cfg.Sources), nil)
}

// Copy copies a single source; see Run.
func Copy(ctx context.Context, src string, cfg Config) error {
	cfg.Sources = []string{src}
	return Run(ctx, cfg).Err
}

func checkDstDir(dir string) error {
	if dir == "" {
		return invalidInput("no destination directory")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("destination directory: %w", err)
	}
	if !info.IsDir() {
		return invalidInput("destination is not a directory: %s (%s)", dir, fileTypeOf(info.Mode()))
	}
	return nil
}

type copier struct {
	cfg    Config
	store  *store.Store
	logger *slog.Logger
	stats  *stats.Collector
}

func (c *copier) emit(e event.Event) {
	if c.cfg.Events == nil {
		return
	}
	e.Timestamp = time.Now()
	if c.cfg.WaitForEvents {
		c.cfg.Events <- e
		return
	}
	select {
	case c.cfg.Events <- e:
	default:
	}
}
