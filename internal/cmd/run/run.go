package run

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdflags "code-intelligence.com/cargo-fuzz/internal/cmdutils"
	"code-intelligence.com/cargo-fuzz/internal/completion"
	"code-intelligence.com/cargo-fuzz/internal/config"
	"code-intelligence.com/cargo-fuzz/internal/options"
	"code-intelligence.com/cargo-fuzz/internal/orchestrator"
)

type runCmd struct {
	*cobra.Command
	config *config.Config
	opts   *orchestrator.RunOptions
}

func New(cmdConfig *config.Config) *cobra.Command {
	opts := &orchestrator.RunOptions{Build: &options.BuildOptions{}}
	var bindFlags func()

	cmd := &cobra.Command{
		Use:   "run [flags] <target> [<corpus>...] [-- <libFuzzer args>...]",
		Short: "Build and run a fuzz target",
		Long: `This command builds the fuzz target and runs it on the given corpus
directories, or on fuzz/corpus/<target> if none are specified.
Arguments after "--" are passed to libFuzzer.

If the fuzz target finds a failing input, the input is printed
together with the commands to reproduce and minimize it.`,
		ValidArgsFunction: completion.ValidFuzzTargets,
		Args:              cmdflags.PositionalArgs(cobra.MinimumNArgs(1)),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind viper keys to flags. We can't do this in the New
			// function, because that would re-bind viper keys which
			// were bound to the flags of other commands before.
			bindFlags()
			return cmdflags.ApplyBuildSettings(opts.Build)
		},
		RunE: func(c *cobra.Command, args []string) error {
			cmd := runCmd{Command: c, config: cmdConfig, opts: opts}
			return cmd.run(args)
		},
	}
	bindFlags = cmdflags.AddFlags(cmd,
		cmdflags.AddBuildFlags(opts.Build),
		cmdflags.AddJobsFlag,
		cmdflags.AddForegroundFlag,
	)

	return cmd
}

func (c *runCmd) run(args []string) error {
	positional, passThrough := cmdflags.SplitArgs(c.Command, args)
	c.opts.Target = positional[0]
	c.opts.Corpus = positional[1:]
	c.opts.Args = passThrough

	err := c.config.Project.ValidateTarget(c.opts.Target)
	if err != nil {
		return err
	}
	c.opts.Jobs, err = cmdflags.Jobs()
	if err != nil {
		return err
	}
	c.opts.Foreground = viper.GetBool("foreground")

	o := orchestrator.New(c.config.Project, c.config.Builder(), c.config.Store())
	return o.Fuzz(c.Context(), c.opts)
}
