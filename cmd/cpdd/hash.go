package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/cpdd/internal/digest"
)

// algorithmFlag is a pflag.Value restricted to the supported hash
// algorithms.
type algorithmFlag struct {
	alg digest.Algorithm
}

var _ pflag.Value = (*algorithmFlag)(nil)

func (f *algorithmFlag) String() string { return string(f.alg) }
func (*algorithmFlag) Type() string     { return "algorithm" }

func (f *algorithmFlag) Set(s string) error {
	alg, err := digest.ParseAlgorithm(strings.ToLower(s))
	if err != nil {
		return err
	}
	f.alg = alg
	return nil
}

func algorithmNames() string {
	names := make([]string, 0, len(digest.Algorithms()))
	for _, a := range digest.Algorithms() {
		names = append(names, string(a))
	}
	return strings.Join(names, "|")
}

func newHashCmd(g *globalOptions) *cobra.Command {
	alg := &algorithmFlag{alg: digest.Default}
	cmd := &cobra.Command{
		Use:   "hash [flags] <path>...",
		Short: "Print the content hash of each file",
		Long: `Print "<hash> <path>" for each file. The default algorithm, blake2bp, is
the one store entries are named by.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, path := range args {
				g.logger.Debug("hashing", "path", path, "algorithm", string(alg.alg))
				sum, err := digest.FileWith(alg.alg, path)
				if err != nil {
					return err
				}
				g.logger.Info("hashed", "hash", sum, "path", path)
				fmt.Fprintf(out, "%s %s\n", sum, path)
			}
			return nil
		},
	}
	cmd.Flags().VarP(alg, "algorithm", "a", "hash algorithm: "+algorithmNames())
	return cmd
}
