package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/bamsammich/cpdd/internal/event"
	"github.com/bamsammich/cpdd/internal/stats"
	"github.com/bamsammich/cpdd/internal/ui"
)

// progress runs a presenter in the background for the lifetime of one
// command.
type progress struct {
	events    chan event.Event
	presenter ui.Presenter
	errW      io.Writer
	quiet     bool

	wg  sync.WaitGroup
	err error
}

func (g *globalOptions) startProgress(cmd *cobra.Command, collector *stats.Collector, verify bool) *progress {
	errW := cmd.ErrOrStderr()
	isTTY, width := ui.Terminal(errW)

	p := &progress{
		events: make(chan event.Event, 256),
		presenter: ui.NewPresenter(ui.Config{
			Writer:    cmd.OutOrStdout(),
			ErrWriter: errW,
			Stats:     collector,
			IsTTY:     isTTY,
			Width:     width,
			Quiet:     g.quiet,
			Verbose:   g.verbose,
			Verify:    verify,
		}),
		errW:  errW,
		quiet: g.quiet,
	}

	var in <-chan event.Event = p.events
	if g.logger.Enabled(cmd.Context(), ui.LevelTrace) {
		in = logEvents(g.logger, p.events)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.err = p.presenter.Run(in)
	}()
	return p
}

// finish closes the event stream, waits for the presenter to drain it and
// prints the summary line.
func (p *progress) finish() {
	close(p.events)
	p.wg.Wait()
	if p.err != nil {
		fmt.Fprintf(p.errW, "presenter: %v\n", p.err)
	}
	if p.quiet {
		return
	}
	if summary := p.presenter.Summary(); summary != "" {
		fmt.Fprintln(p.errW, summary)
	}
}

// logEvents writes a trace record for every event before forwarding it.
func logEvents(logger *slog.Logger, in <-chan event.Event) <-chan event.Event {
	out := make(chan event.Event, cap(in))
	go func() {
		defer close(out)
		for ev := range in {
			attrs := []slog.Attr{slog.String("type", ev.Type.String())}
			if ev.Path != "" {
				attrs = append(attrs, slog.String("path", ev.Path))
			}
			if ev.Dst != "" {
				attrs = append(attrs, slog.String("dst", ev.Dst))
			}
			if ev.Hash != "" {
				attrs = append(attrs, slog.String("hash", ev.Hash))
			}
			if ev.Method != "" {
				attrs = append(attrs, slog.String("method", ev.Method))
			}
			if ev.Size > 0 {
				attrs = append(attrs, slog.Int64("size", ev.Size))
			}
			if ev.Error != nil {
				attrs = append(attrs, slog.String("error", ev.Error.Error()))
			}
			logger.LogAttrs(context.Background(), ui.LevelTrace, "cpdd.event", attrs...)
			out <- ev
		}
	}()
	return out
}
