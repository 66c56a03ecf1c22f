package tmin

import (
	"github.com/spf13/cobra"

	cmdflags "code-intelligence.com/cargo-fuzz/internal/cmdutils"
	"code-intelligence.com/cargo-fuzz/internal/completion"
	"code-intelligence.com/cargo-fuzz/internal/config"
	"code-intelligence.com/cargo-fuzz/internal/options"
	"code-intelligence.com/cargo-fuzz/internal/orchestrator"
)

func New(cmdConfig *config.Config) *cobra.Command {
	opts := &orchestrator.TminOptions{Build: &options.BuildOptions{}}
	var bindFlags func()

	cmd := &cobra.Command{
		Use:   "tmin [flags] <target> <test case> [-- <libFuzzer args>...]",
		Short: "Minimize a test case",
		Long: `This command minimizes a failing input with libFuzzer's
-minimize_crash mode and prints the minimized artifact.`,
		ValidArgsFunction: completion.ValidArtifacts,
		Args:              cmdflags.PositionalArgs(cobra.ExactArgs(2)),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			bindFlags()
			var err error
			opts.Runs, err = cmdflags.Runs()
			if err != nil {
				return err
			}
			return cmdflags.ApplyBuildSettings(opts.Build)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			positional, passThrough := cmdflags.SplitArgs(cmd, args)
			opts.Target = positional[0]
			opts.TestCase = positional[1]
			opts.Args = passThrough

			err := cmdConfig.Project.ValidateTarget(opts.Target)
			if err != nil {
				return err
			}

			o := orchestrator.New(cmdConfig.Project, cmdConfig.Builder(), cmdConfig.Store())
			_, err = o.MinimizeTestCase(cmd.Context(), opts)
			return err
		},
	}
	bindFlags = cmdflags.AddFlags(cmd, cmdflags.AddBuildFlags(opts.Build), cmdflags.AddRunsFlag)

	return cmd
}
