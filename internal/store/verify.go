package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bamsammich/cpdd/internal/digest"
	"github.com/bamsammich/cpdd/internal/event"
	"github.com/bamsammich/cpdd/internal/stats"
)

const levelTrace = slog.LevelDebug - 4

// VerifyOptions controls a store verification pass.
type VerifyOptions struct {
	Workers int
	Logger  *slog.Logger
	Events  chan<- event.Event
	// WaitForEvents blocks on a full Events channel instead of dropping.
	WaitForEvents bool
	Stats         *stats.Collector
}

// Verify rehashes every entry of the store at dir and returns the paths of
// entries whose name is not the hash of their content, sorted. Entries that
// are not regular files are always reported. Verify never modifies the
// store; any I/O error aborts the pass.
func Verify(ctx context.Context, dir string, opts VerifyOptions) ([]string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	st := opts.Stats
	if st == nil {
		st = stats.NewCollector()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	s, err := Open(ctx, dir, Options{Shared: true, Logger: logger})
	if err != nil {
		return nil, err
	}
	defer s.Close()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	st.SetEntriesTotal(int64(len(entries)))
	emitEvent(opts.Events, opts.WaitForEvents, event.Event{
		Type:  event.VerifyStarted,
		Path:  s.dir,
		Total: int64(len(entries)),
	})
	logger.Debug("verifying store", "path", s.dir, "entries", len(entries), "workers", workers)

	var mu sync.Mutex
	var mismatches []string
	report := func(path, hash string) {
		mu.Lock()
		mismatches = append(mismatches, path)
		mu.Unlock()
		st.AddEntriesCorrupt(1)
		emitEvent(opts.Events, opts.WaitForEvents, event.Event{Type: event.VerifyFailed, Path: path, Hash: hash})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, e := range entries {
		if gctx.Err() != nil {
			break
		}
		path := filepath.Join(s.dir, e.Name())
		if !e.Type().IsRegular() {
			logger.Warn("store entry is not a regular file", "path", path, "kind", e.Type().String())
			report(path, "")
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			got, err := digest.File(path)
			if err != nil {
				return err
			}
			st.AddEntriesVerified(1)
			if got != e.Name() {
				logger.Warn("hash mismatch: file name differs from hash",
					"path", path, "name", e.Name(), "hash", got)
				report(path, got)
				return nil
			}
			logger.Log(gctx, levelTrace, "verified", "path", path)
			emitEvent(opts.Events, opts.WaitForEvents, event.Event{Type: event.VerifyOK, Path: path, Hash: got})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.Sort(mismatches)
	return mismatches, nil
}

func emitEvent(ch chan<- event.Event, wait bool, e event.Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	if wait {
		ch <- e
		return
	}
	select {
	case ch <- e:
	default:
	}
}
