package coverage

import (
	"github.com/spf13/cobra"

	cmdflags "code-intelligence.com/cargo-fuzz/internal/cmdutils"
	"code-intelligence.com/cargo-fuzz/internal/completion"
	"code-intelligence.com/cargo-fuzz/internal/config"
	"code-intelligence.com/cargo-fuzz/internal/coverage"
	"code-intelligence.com/cargo-fuzz/internal/options"
)

func New(cmdConfig *config.Config) *cobra.Command {
	opts := &coverage.Options{Build: &options.BuildOptions{}}
	var bindFlags func()

	cmd := &cobra.Command{
		Use:   "coverage [flags] <target> [<corpus>...] [-- <libFuzzer args>...]",
		Short: "Run program on the generated corpus and generate coverage information",
		Long: `This command builds the fuzz target with source-based coverage
instrumentation, runs it on every input of the given corpus directories
(or of fuzz/corpus/<target>) and merges the raw profiles into
fuzz/coverage/<target>/coverage.profdata with llvm-profdata.`,
		ValidArgsFunction: completion.ValidFuzzTargets,
		Args:              cmdflags.PositionalArgs(cobra.MinimumNArgs(1)),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			bindFlags()
			opts.Build.Coverage = true
			return cmdflags.ApplyBuildSettings(opts.Build)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			positional, passThrough := cmdflags.SplitArgs(cmd, args)
			opts.Target = positional[0]
			opts.Corpora = positional[1:]
			opts.Args = passThrough

			err := cmdConfig.Project.ValidateTarget(opts.Target)
			if err != nil {
				return err
			}

			merger := coverage.NewMerger(cmdConfig.Project, cmdConfig.Builder(), cmdConfig.Store())
			_, err = merger.Merge(cmd.Context(), opts)
			return err
		},
	}
	bindFlags = cmdflags.AddFlags(cmd, cmdflags.AddBuildFlags(opts.Build))

	return cmd
}
