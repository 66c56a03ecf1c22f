package list

import (
	"fmt"
	"os"

	"github.com/hokaccha/go-prettyjson"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	cmdflags "code-intelligence.com/cargo-fuzz/internal/cmdutils"
	"code-intelligence.com/cargo-fuzz/internal/config"
	"code-intelligence.com/cargo-fuzz/pkg/cmdutils"
)

func New(cmdConfig *config.Config) *cobra.Command {
	var bindFlags func()

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all the existing fuzz targets",
		Args:  cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, args []string) {
			// Bind viper keys to flags. We can't do this in the New
			// function, because that would re-bind viper keys which
			// were bound to the flags of other commands before.
			bindFlags()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := cmdConfig.Project.Targets
			if targets == nil {
				targets = []string{}
			}

			if viper.GetBool("print-json") {
				formatter := prettyjson.NewFormatter()
				// Print with color only if the output stream is a TTY
				file, ok := cmd.OutOrStdout().(*os.File)
				formatter.DisabledColor = !ok || !term.IsTerminal(int(file.Fd()))
				out, err := formatter.Marshal(targets)
				if err != nil {
					return errors.WithStack(err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}

			for _, target := range targets {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), target)
			}
			return nil
		},
	}
	bindFlags = cmdflags.AddFlags(listCmd, cmdflags.AddPrintJSONFlag)
	cmdutils.DisableToolchainCheck(listCmd)

	return listCmd
}
