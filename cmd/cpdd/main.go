package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/cpdd/internal/config"
	"github.com/bamsammich/cpdd/internal/platform"
	"github.com/bamsammich/cpdd/internal/ui"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	// Anything still registered belongs to a write cut short by a signal or
	// an error.
	platform.CleanupTempFiles()
	os.Exit(code)
}

// globalOptions holds the root flags and the state derived from them before
// any subcommand runs.
type globalOptions struct {
	logLevel   levelFlag
	logPath    string
	configPath string
	quiet      bool
	verbose    bool

	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
}

// levelFlag is a pflag.Value accepting a numeric verbosity or a level name.
type levelFlag struct {
	name  string
	level slog.Level
}

var _ pflag.Value = (*levelFlag)(nil)

func (f *levelFlag) String() string { return f.name }
func (*levelFlag) Type() string     { return "level" }

func (f *levelFlag) Set(s string) error {
	level, err := ui.ParseLevel(s)
	if err != nil {
		return err
	}
	f.name, f.level = s, level
	return nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	g := &globalOptions{
		logLevel: levelFlag{name: "info", level: slog.LevelInfo},
		closeLog: func() error { return nil },
	}

	rootCmd := &cobra.Command{
		Use:   "cpdd",
		Short: "Copy files into a destination through a deduplicating reflink store",
		Long: `cpdd copies files and directory trees into a destination directory. Every
regular file is first placed in a content-addressed store, named by the
BLAKE2bp hash of its content, and the destination file is a reflink clone of
the store entry. Identical content is stored once no matter how often it is
copied.

Existing destination paths are never destroyed unless --overwrite is given:
they are renamed aside with the backup suffix appended.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setup(cmd)
		},
	}
	rootCmd.SetVersionTemplate("cpdd {{.Version}}\n")
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.Var(&g.logLevel, "log-level", "log level: 0-5 or off|error|warn|info|debug|trace")
	pf.StringVar(&g.logPath, "log-path", "", "also write a JSON log to FILE (must not exist)")
	pf.StringVar(&g.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/cpdd/config.toml)")
	pf.BoolVarP(&g.quiet, "quiet", "q", false, "suppress progress and summary output")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "print one line per node")

	rootCmd.AddCommand(newCopyCmd(g))
	rootCmd.AddCommand(newVerifyCmd(g))
	rootCmd.AddCommand(newHashCmd(g))
	rootCmd.AddCommand(newDocsCmd())

	err := rootCmd.ExecuteContext(ctx)
	if cerr := g.closeLog(); cerr != nil && err == nil {
		err = fmt.Errorf("close log file: %w", cerr)
	}
	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

// setup loads the config file and installs the logger.
func (g *globalOptions) setup(cmd *cobra.Command) error {
	var cfgErr error
	if g.configPath != "" {
		cfg, err := config.LoadFile(g.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		g.cfg = cfg
	} else {
		g.cfg, cfgErr = config.Load()
	}

	if !cmd.Flags().Changed("log-level") && g.cfg.Defaults.LogLevel != nil {
		if err := g.logLevel.Set(*g.cfg.Defaults.LogLevel); err != nil {
			return fmt.Errorf("config log_level: %w", err)
		}
	}

	logger, closeLog, err := newLogger(cmd.ErrOrStderr(), g.logLevel.level, g.logPath)
	if err != nil {
		return err
	}
	g.logger, g.closeLog = logger, closeLog
	slog.SetDefault(logger)

	if cfgErr != nil {
		logger.Warn("failed to load config", "path", config.Path(), "error", cfgErr)
	}
	logger.Debug("logger initialized", "level", g.logLevel.name, "log_path", g.logPath)
	return nil
}

// newLogger writes text records to stderr and, with a log path, JSON records
// to a freshly created file as well.
func newLogger(stderr io.Writer, level slog.Level, logPath string) (*slog.Logger, func() error, error) {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: ui.ReplaceLevel}
	var handler slog.Handler = slog.NewTextHandler(stderr, opts)
	closeLog := func() error { return nil }

	if logPath != "" {
		//nolint:gosec // G304: log path comes from the command line
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handler = ui.NewMultiHandler(handler, slog.NewJSONHandler(f, opts))
		closeLog = f.Close
	}
	return slog.New(handler), closeLog, nil
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
