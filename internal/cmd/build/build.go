package build

import (
	"fmt"

	"github.com/spf13/cobra"

	"code-intelligence.com/cargo-fuzz/internal/build/cargo"
	cmdflags "code-intelligence.com/cargo-fuzz/internal/cmdutils"
	"code-intelligence.com/cargo-fuzz/internal/completion"
	"code-intelligence.com/cargo-fuzz/internal/config"
	"code-intelligence.com/cargo-fuzz/internal/options"
	"code-intelligence.com/cargo-fuzz/internal/orchestrator"
	"code-intelligence.com/cargo-fuzz/pkg/log"
)

// New returns the build command, or the check command if mode is
// cargo.ModeCheck
func New(cmdConfig *config.Config, mode cargo.Mode) *cobra.Command {
	opts := &options.BuildOptions{}
	var bindFlags func()

	short := "Build fuzz targets"
	if mode == cargo.ModeCheck {
		short = "Type-check fuzz targets"
	}

	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s [<target>]", mode),
		Short: short,
		Long: fmt.Sprintf(`This command runs 'cargo %s' with the instrumentation flags for
fuzzing on the given fuzz target, or on all fuzz targets if none is
specified.`, mode),
		ValidArgsFunction: completion.ValidFuzzTargets,
		Args:              cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind viper keys to flags. We can't do this in the New
			// function, because that would re-bind viper keys which
			// were bound to the flags of other commands before.
			bindFlags()
			return cmdflags.ApplyBuildSettings(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var target string
			if len(args) == 1 {
				target = args[0]
				err := cmdConfig.Project.ValidateTarget(target)
				if err != nil {
					return err
				}
			}

			o := orchestrator.New(cmdConfig.Project, cmdConfig.Builder(), cmdConfig.Store())
			err := o.Build(cmd.Context(), mode, opts, target)
			if err != nil {
				return err
			}

			if mode == cargo.ModeBuild {
				log.Success("Build finished")
			}
			return nil
		},
	}
	bindFlags = cmdflags.AddFlags(cmd, cmdflags.AddBuildFlags(opts))

	return cmd
}
