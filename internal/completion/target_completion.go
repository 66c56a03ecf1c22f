package completion

import (
	"path/filepath"

	"github.com/mattn/go-zglob"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"code-intelligence.com/cargo-fuzz/internal/project"
	"code-intelligence.com/cargo-fuzz/pkg/cmdutils"
	"code-intelligence.com/cargo-fuzz/pkg/log"
)

// ValidFuzzTargets can be used as a cobra ValidArgsFunction that
// completes fuzz target names as the first argument. Further arguments
// are completed as files.
func ValidFuzzTargets(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveDefault
	}
	p, directive := loadProject()
	if p == nil {
		return nil, directive
	}
	return p.Targets, cobra.ShellCompDirectiveNoFileComp
}

// ValidArtifacts can be used as a cobra ValidArgsFunction that
// completes fuzz target names as the first argument and the artifacts
// of that fuzz target as the second argument.
func ValidArtifacts(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return ValidFuzzTargets(cmd, args, toComplete)
	}
	if len(args) > 1 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	p, directive := loadProject()
	if p == nil {
		return nil, directive
	}

	matches, err := zglob.Glob(filepath.Join(p.ArtifactsFor(args[0]), "*"))
	if err != nil {
		// No artifacts yet, any file can be used as input
		log.Debugf("%+v", err)
		return nil, cobra.ShellCompDirectiveDefault
	}
	return matches, cobra.ShellCompDirectiveDefault
}

func loadProject() (*project.Project, cobra.ShellCompDirective) {
	// Change the directory if the `--directory` flag was set
	err := cmdutils.Chdir()
	if err != nil {
		log.Error(err, err.Error())
		return nil, cobra.ShellCompDirectiveError
	}

	p, err := project.New(viper.GetString("fuzz-dir"))
	if err != nil {
		log.Error(err, err.Error())
		return nil, cobra.ShellCompDirectiveError
	}
	return p, cobra.ShellCompDirectiveDefault
}
