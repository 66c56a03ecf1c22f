package init

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"code-intelligence.com/cargo-fuzz/internal/config"
	"code-intelligence.com/cargo-fuzz/internal/project"
	"code-intelligence.com/cargo-fuzz/pkg/cmdutils"
	"code-intelligence.com/cargo-fuzz/pkg/log"
	"code-intelligence.com/cargo-fuzz/util/fileutil"
)

const DefaultTarget = "fuzz_target_1"

func New() *cobra.Command {
	var target string

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the fuzz directory",
		Long: `This command sets up a fuzz project in the 'fuzz' directory of the
cargo package in the current working directory, with a first fuzz
target and a 'cargo-fuzz.yaml' settings file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(target)
		},
	}
	initCmd.Flags().StringVarP(&target, "target", "t", DefaultTarget, "Name of the first fuzz `target` to create")

	cmdutils.DisableProjectCheck(initCmd)

	return initCmd
}

func run(target string) error {
	p, err := project.Init(viper.GetString("fuzz-dir"), target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Error(err, err.Error())
			return cmdutils.ErrSilent
		}
		return err
	}
	log.Debugf("Package directory: %s", p.ProjectDir)

	settingsPath, err := config.CreateSettings(p.FuzzDir, config.DefaultSettings())
	if err != nil {
		// An existing settings file is kept
		if !errors.Is(err, os.ErrExist) {
			log.Error(err, "Failed to create settings")
			return cmdutils.WrapSilentError(err)
		}
		log.Warnf("Settings already exist in %s", fileutil.PrettifyPath(settingsPath))
	}

	log.Successf("Fuzz project created in %s", fileutil.PrettifyPath(p.FuzzDir))
	log.Printf(`
Use 'cargo fuzz run%s %s' to start fuzzing.`, p.FuzzDirArg(), target)
	return nil
}
