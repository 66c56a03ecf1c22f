package cmdutils

import (
	"github.com/spf13/cobra"
)

const (
	skipProjectCheck   = "skipProjectCheck"
	skipToolchainCheck = "skipToolchainCheck"
)

// DisableProjectCheck marks a command as runnable outside of a fuzz
// project, like init.
func DisableProjectCheck(cmd *cobra.Command) {
	annotate(cmd, skipProjectCheck)
}

// DisableToolchainCheck marks a command which doesn't invoke the Rust
// toolchain, so that it also works without one.
func DisableToolchainCheck(cmd *cobra.Command) {
	annotate(cmd, skipToolchainCheck)
}

// NeedsProject returns whether the command requires a fuzz project
func NeedsProject(cmd *cobra.Command) bool {
	return isRunnable(cmd) && !hasAnnotation(cmd, skipProjectCheck)
}

// NeedsToolchain returns whether the command requires the Rust
// toolchain to be resolved
func NeedsToolchain(cmd *cobra.Command) bool {
	return isRunnable(cmd) && !hasAnnotation(cmd, skipToolchainCheck)
}

func isRunnable(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return false
	}
	return cmd.Runnable()
}

func annotate(cmd *cobra.Command, key string) {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[key] = "true"
}

func hasAnnotation(cmd *cobra.Command, key string) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations[key] == "true" {
			return true
		}
	}
	return false
}
