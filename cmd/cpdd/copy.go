package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bamsammich/cpdd/internal/config"
	"github.com/bamsammich/cpdd/internal/engine"
	"github.com/bamsammich/cpdd/internal/stats"
)

type copyOptions struct {
	dstDir         string
	reflinkDir     string
	recurse        bool
	overwrite      bool
	skipInvalid    bool
	backupSuffix   string
	requireReflink bool
}

func newCopyCmd(g *globalOptions) *cobra.Command {
	opts := &copyOptions{}
	cmd := &cobra.Command{
		Use:   "copy [flags] <source>...",
		Short: "Copy and deduplicate source paths into the destination directory",
		Long: `Copy each source path into the destination directory, in order.

Regular files are stored once in the reflink directory under the hash of
their content and cloned from there into the destination. Directories are
created or merged; symlinks are recreated verbatim. Existing destination
paths are renamed aside with the backup suffix unless --overwrite is set.
Existing destination directories are never overwritten: they are merged or
renamed, depending on the source kind.

The first error stops the run. Nothing already copied is rolled back.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyCopyDefaults(cmd, g.cfg.Defaults, opts)
			return runCopy(cmd, g, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.dstDir, "dst-dir", "d", "", "destination directory (must exist)")
	f.StringVarP(&opts.reflinkDir, "reflink-dir", "r", "", "reflink store directory, created if missing")
	f.BoolVar(&opts.recurse, "recurse", false, "recurse into source directories")
	f.BoolVar(&opts.overwrite, "overwrite", false, "replace existing destination paths instead of renaming them aside")
	f.BoolVar(&opts.skipInvalid, "skip-invalid", false, "warn about and skip unsupported source file types")
	f.StringVar(&opts.backupSuffix, "backup-suffix", "~", "suffix appended to displaced destination paths")
	f.BoolVar(&opts.requireReflink, "require-reflink", false, "fail instead of copying when a reflink is not possible")
	if err := cmd.MarkFlagRequired("dst-dir"); err != nil {
		panic(fmt.Sprintf("mark flag required: %v", err))
	}
	return cmd
}

// applyCopyDefaults applies config file defaults for flags not explicitly set
// on the CLI.
func applyCopyDefaults(cmd *cobra.Command, defaults config.DefaultsConfig, opts *copyOptions) {
	flags := cmd.Flags()
	if !flags.Changed("reflink-dir") && defaults.ReflinkDir != nil {
		opts.reflinkDir = *defaults.ReflinkDir
	}
	if !flags.Changed("backup-suffix") && defaults.BackupSuffix != nil {
		opts.backupSuffix = *defaults.BackupSuffix
	}
	if !flags.Changed("recurse") && defaults.Recurse != nil {
		opts.recurse = *defaults.Recurse
	}
	if !flags.Changed("overwrite") && defaults.Overwrite != nil {
		opts.overwrite = *defaults.Overwrite
	}
	if !flags.Changed("skip-invalid") && defaults.SkipInvalid != nil {
		opts.skipInvalid = *defaults.SkipInvalid
	}
	if !flags.Changed("require-reflink") && defaults.RequireReflink != nil {
		opts.requireReflink = *defaults.RequireReflink
	}
}

func runCopy(cmd *cobra.Command, g *globalOptions, opts *copyOptions, sources []string) error {
	if opts.reflinkDir == "" {
		return fmt.Errorf("required flag \"reflink-dir\" not set (or set reflink_dir in %s)", config.Path())
	}

	collector := stats.NewCollector()
	p := g.startProgress(cmd, collector, false)

	g.logger.Debug("starting copy",
		"sources", sources,
		"dst", opts.dstDir,
		"store", opts.reflinkDir,
		"recurse", opts.recurse,
		"overwrite", opts.overwrite,
		"skip_invalid", opts.skipInvalid,
		"backup_suffix", opts.backupSuffix,
	)

	result := engine.Run(cmd.Context(), engine.Config{
		Sources:        sources,
		DstDir:         opts.dstDir,
		StoreDir:       opts.reflinkDir,
		Recurse:        opts.recurse,
		Overwrite:      opts.overwrite,
		SkipInvalid:    opts.skipInvalid,
		BackupSuffix:   opts.backupSuffix,
		RequireReflink: opts.requireReflink,
		Logger:         g.logger,
		Events:         p.events,
		WaitForEvents:  g.verbose, // one line per node, none dropped
		Stats:          collector,
	})
	p.finish()

	g.logger.Debug("copy finished", "stats", result.Stats.String())
	if result.Err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", result.Err)
		g.logger.Error("copy failed", "error", result.Err, "completed", result.Completed, "sources", len(sources))
		if result.Completed > 0 {
			return &exitError{code: 1} // partial failure
		}
		return &exitError{code: 2} // total failure
	}
	return nil
}
