package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bamsammich/cpdd/internal/config"
	"github.com/bamsammich/cpdd/internal/stats"
	"github.com/bamsammich/cpdd/internal/store"
)

func newVerifyCmd(g *globalOptions) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "verify [reflink-dir]",
		Short: "Verify that every store entry is named by the hash of its content",
		Long: `Rehash every entry of the reflink directory and report the entries whose
content no longer matches their name. The store is never modified.

Without an argument the reflink_dir from the config file is verified.
Exits 1 when mismatches were found.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			} else if g.cfg.Defaults.ReflinkDir != nil {
				dir = *g.cfg.Defaults.ReflinkDir
			}
			if dir == "" {
				return fmt.Errorf("no reflink directory given (pass one or set reflink_dir in %s)", config.Path())
			}
			if !cmd.Flags().Changed("workers") && g.cfg.Defaults.VerifyWorkers != nil {
				workers = *g.cfg.Defaults.VerifyWorkers
			}
			return runVerify(cmd, g, dir, workers)
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "n", 0, "number of hashing workers (default: GOMAXPROCS)")
	return cmd
}

func runVerify(cmd *cobra.Command, g *globalOptions, dir string, workers int) error {
	collector := stats.NewCollector()
	p := g.startProgress(cmd, collector, true)

	mismatches, err := store.Verify(cmd.Context(), dir, store.VerifyOptions{
		Workers:       workers,
		Logger:        g.logger,
		Events:        p.events,
		WaitForEvents: g.verbose,
		Stats:         collector,
	})
	p.finish()
	if err != nil {
		if errors.Is(err, store.ErrNotDirectory) {
			return fmt.Errorf("invalid reflink directory: %w", err)
		}
		return fmt.Errorf("verify %s: %w", dir, err)
	}

	out := cmd.OutOrStdout()
	if len(mismatches) == 0 {
		fmt.Fprintln(out, "No errors found.")
		return nil
	}
	fmt.Fprintln(out, "Errors found:")
	for _, path := range mismatches {
		fmt.Fprintln(out, path)
	}
	return &exitError{code: 1}
}
