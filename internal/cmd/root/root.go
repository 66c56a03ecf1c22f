package root

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"code-intelligence.com/cargo-fuzz/internal/build/cargo"
	addCmd "code-intelligence.com/cargo-fuzz/internal/cmd/add"
	buildCmd "code-intelligence.com/cargo-fuzz/internal/cmd/build"
	cminCmd "code-intelligence.com/cargo-fuzz/internal/cmd/cmin"
	coverageCmd "code-intelligence.com/cargo-fuzz/internal/cmd/coverage"
	fmtCmd "code-intelligence.com/cargo-fuzz/internal/cmd/fmt"
	initCmd "code-intelligence.com/cargo-fuzz/internal/cmd/init"
	listCmd "code-intelligence.com/cargo-fuzz/internal/cmd/list"
	runCmd "code-intelligence.com/cargo-fuzz/internal/cmd/run"
	tminCmd "code-intelligence.com/cargo-fuzz/internal/cmd/tmin"
	cmdflags "code-intelligence.com/cargo-fuzz/internal/cmdutils"
	"code-intelligence.com/cargo-fuzz/internal/config"
	"code-intelligence.com/cargo-fuzz/internal/project"
	"code-intelligence.com/cargo-fuzz/pkg/cmdutils"
	"code-intelligence.com/cargo-fuzz/pkg/log"
)

func New(cmdConfig *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cargo-fuzz",
		Short: "A cargo subcommand for fuzzing with libFuzzer",
		// We are using our custom ErrSilent instead to support a more specific
		// error handling
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			err := cmdutils.Chdir()
			if err != nil {
				log.Error(err, err.Error())
				return cmdutils.ErrSilent
			}

			if !cmdutils.NeedsProject(cmd) {
				return nil
			}

			p, err := project.New(viper.GetString("fuzz-dir"))
			if errors.Is(err, os.ErrNotExist) {
				// The fuzz project doesn't exist, this is an expected
				// error, so we print it and return a silent error to avoid
				// printing a stack trace
				log.Error(err, err.Error())
				return cmdutils.ErrSilent
			}
			if err != nil {
				return err
			}
			cmdConfig.Project = p

			err = config.ReadSettings(p.FuzzDir)
			if err != nil {
				return err
			}

			if !cmdutils.NeedsToolchain(cmd) {
				return nil
			}
			err = cmdConfig.ResolveToolchain(cmd.Context())
			if err != nil {
				log.Error(err, err.Error())
				return cmdutils.ErrSilent
			}
			log.Debugf("Toolchain: rustc %s (host: %s)", cmdConfig.Toolchain.Version, cmdConfig.Toolchain.Host)
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false,
		"Show more verbose output, can be helpful for debugging problems")
	cmdflags.ViperMustBindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.PersistentFlags().StringP("directory", "C", "",
		"Change the directory before performing any operations")
	cmdflags.ViperMustBindPFlag("directory", rootCmd.PersistentFlags().Lookup("directory"))

	rootCmd.PersistentFlags().String("fuzz-dir", "",
		"The path to the fuzz project `directory` (default: fuzz in the package root)")
	cmdflags.ViperMustBindPFlag("fuzz-dir", rootCmd.PersistentFlags().Lookup("fuzz-dir"))

	rootCmd.PersistentFlags().Bool("no-notifications", false,
		"Turn off desktop notifications")
	cmdflags.ViperMustBindPFlag("no-notifications", rootCmd.PersistentFlags().Lookup("no-notifications"))

	rootCmd.AddCommand(initCmd.New())
	rootCmd.AddCommand(addCmd.New(cmdConfig))
	rootCmd.AddCommand(listCmd.New(cmdConfig))
	rootCmd.AddCommand(buildCmd.New(cmdConfig, cargo.ModeBuild))
	rootCmd.AddCommand(buildCmd.New(cmdConfig, cargo.ModeCheck))
	rootCmd.AddCommand(runCmd.New(cmdConfig))
	rootCmd.AddCommand(cminCmd.New(cmdConfig))
	rootCmd.AddCommand(tminCmd.New(cmdConfig))
	rootCmd.AddCommand(coverageCmd.New(cmdConfig))
	rootCmd.AddCommand(fmtCmd.New(cmdConfig))

	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := interruptContext()
	defer stop()

	rootCmd := New(config.NewConfig())
	rootCmd.SetArgs(Args(os.Args[1:]))
	if cmd, err := rootCmd.ExecuteContextC(ctx); err != nil {
		os.Exit(handleError(cmd, err))
	}
}

// interruptContext returns a context which is done once the process
// receives SIGINT or SIGTERM. Running processes are then terminated. A
// second signal has the default effect again, so it kills us if a
// process doesn't exit.
func interruptContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}

// Args drops the "fuzz" argument which cargo passes when it's invoked
// as `cargo fuzz`
func Args(args []string) []string {
	if len(args) > 0 && args[0] == "fuzz" {
		return args[1:]
	}
	return args
}

// handleError prints the error if needed and returns the exit code
func handleError(cmd *cobra.Command, err error) int {
	// Errors that are not ErrSilent are printed, with their full
	// stacktrace in verbose mode
	var silentErr *cmdutils.SilentError
	if !errors.As(err, &silentErr) {
		msg := fmt.Sprintf("Error: %v\n", err)
		if viper.GetBool("verbose") {
			msg = fmt.Sprintf("%+v\n", err)
		}
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), pterm.Style{pterm.Bold, pterm.FgRed}.Sprint(msg))
	}

	// We only want to print the usage message if an ErrIncorrectUsage
	// was returned or it's an error produced by cobra which was
	// caused by incorrect usage
	var usageErr *cmdutils.IncorrectUsageError
	if errors.As(err, &usageErr) ||
		strings.HasPrefix(err.Error(), "required flag") ||
		strings.HasPrefix(err.Error(), "unknown command") ||
		strings.HasPrefix(err.Error(), "unknown flag") ||
		strings.HasPrefix(err.Error(), "unknown shorthand flag") ||
		regexp.MustCompile(`(accepts|requires).*arg\(s\)`).MatchString(err.Error()) {
		// Ensure that there is an extra newline between the error
		// and the usage message
		if !strings.HasSuffix(err.Error(), "\n") {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		}
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), cmd.UsageString())
	}

	var signalErr *cmdutils.SignalError
	if errors.As(err, &signalErr) {
		return 128 + int(signalErr.Signal)
	}
	return 1
}
