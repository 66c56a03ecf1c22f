package fmt

import (
	"github.com/spf13/cobra"

	cmdflags "code-intelligence.com/cargo-fuzz/internal/cmdutils"
	"code-intelligence.com/cargo-fuzz/internal/completion"
	"code-intelligence.com/cargo-fuzz/internal/config"
	"code-intelligence.com/cargo-fuzz/internal/options"
	"code-intelligence.com/cargo-fuzz/internal/orchestrator"
)

func New(cmdConfig *config.Config) *cobra.Command {
	opts := &orchestrator.FmtOptions{Build: &options.BuildOptions{}}
	var bindFlags func()

	cmd := &cobra.Command{
		Use:               "fmt [flags] <target> <input>",
		Short:             "Print the std::fmt::Debug output for an input",
		ValidArgsFunction: completion.ValidArtifacts,
		Args:              cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			bindFlags()
			return cmdflags.ApplyBuildSettings(opts.Build)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Target = args[0]
			opts.Input = args[1]

			err := cmdConfig.Project.ValidateTarget(opts.Target)
			if err != nil {
				return err
			}

			o := orchestrator.New(cmdConfig.Project, cmdConfig.Builder(), cmdConfig.Store())
			return o.DebugFormat(cmd.Context(), opts)
		},
	}
	bindFlags = cmdflags.AddFlags(cmd, cmdflags.AddBuildFlags(opts.Build))

	return cmd
}
