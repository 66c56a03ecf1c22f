package cmin

import (
	"github.com/spf13/cobra"

	cmdflags "code-intelligence.com/cargo-fuzz/internal/cmdutils"
	"code-intelligence.com/cargo-fuzz/internal/completion"
	"code-intelligence.com/cargo-fuzz/internal/config"
	"code-intelligence.com/cargo-fuzz/internal/options"
	"code-intelligence.com/cargo-fuzz/internal/orchestrator"
)

func New(cmdConfig *config.Config) *cobra.Command {
	opts := &orchestrator.CminOptions{Build: &options.BuildOptions{}}
	var bindFlags func()

	cmd := &cobra.Command{
		Use:   "cmin [flags] <target> [<corpus>] [-- <libFuzzer args>...]",
		Short: "Minimize the corpus of a fuzz target",
		Long: `This command merges the corpus into an empty directory with
libFuzzer's -merge mode, which keeps only the inputs which add
coverage, and replaces the corpus with the result.`,
		ValidArgsFunction: completion.ValidFuzzTargets,
		Args:              cmdflags.PositionalArgs(cobra.RangeArgs(1, 2)),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			bindFlags()
			return cmdflags.ApplyBuildSettings(opts.Build)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			positional, passThrough := cmdflags.SplitArgs(cmd, args)
			opts.Target = positional[0]
			if len(positional) == 2 {
				opts.Corpus = positional[1]
			}
			opts.Args = passThrough

			err := cmdConfig.Project.ValidateTarget(opts.Target)
			if err != nil {
				return err
			}

			o := orchestrator.New(cmdConfig.Project, cmdConfig.Builder(), cmdConfig.Store())
			return o.MinimizeCorpus(cmd.Context(), opts)
		},
	}
	bindFlags = cmdflags.AddFlags(cmd, cmdflags.AddBuildFlags(opts.Build))

	return cmd
}
