package add

import (
	"github.com/spf13/cobra"

	"code-intelligence.com/cargo-fuzz/internal/config"
	"code-intelligence.com/cargo-fuzz/pkg/cmdutils"
	"code-intelligence.com/cargo-fuzz/pkg/log"
	"code-intelligence.com/cargo-fuzz/util/fileutil"
)

func New(cmdConfig *config.Config) *cobra.Command {
	addCmd := &cobra.Command{
		Use:   "add <target>",
		Short: "Add a new fuzz target",
		Long: `This command creates a new fuzz target script in fuzz/fuzz_targets
and adds it as a binary to the manifest of the fuzz project.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := cmdConfig.Project
			err := p.AddTarget(args[0])
			if err != nil {
				return err
			}
			log.Successf("Created fuzz target %s", fileutil.PrettifyPath(p.TargetPath(args[0])))
			return nil
		},
	}
	cmdutils.DisableToolchainCheck(addCmd)

	return addCmd
}
