package cmdutils

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"code-intelligence.com/cargo-fuzz/internal/options"
	pkgcmdutils "code-intelligence.com/cargo-fuzz/pkg/cmdutils"
)

func ViperMustBindPFlag(key string, flag *pflag.Flag) {
	err := viper.BindPFlag(key, flag)
	if err != nil {
		panic(err)
	}
}

// AddFlags executes the specified Add*Flag functions and returns a
// function which binds all those flags to viper
func AddFlags(cmd *cobra.Command, funcs ...func(cmd *cobra.Command) func()) (bindFlags func()) { // nolint:nonamedreturns
	var bindFlagFuncs []func()
	for _, f := range funcs {
		bindFlagFunc := f(cmd)
		bindFlagFuncs = append(bindFlagFuncs, bindFlagFunc)
	}
	return func() {
		for _, f := range bindFlagFuncs {
			f()
		}
	}
}

// AddBuildFlags adds the flags of the build options. The sanitizer and
// the target triple are bound to viper, so that their defaults can be
// set in the settings file. Use ApplyBuildSettings to read them back.
func AddBuildFlags(opts *options.BuildOptions) func(cmd *cobra.Command) func() {
	return func(cmd *cobra.Command) func() {
		options.AddFlags(cmd.Flags(), opts)
		return func() {
			ViperMustBindPFlag("sanitizer", cmd.Flags().Lookup("sanitizer"))
			ViperMustBindPFlag("target", cmd.Flags().Lookup("target"))
		}
	}
}

// ApplyBuildSettings sets the options which are bound to viper to the
// value viper resolved from the command line, the environment or the
// settings file, and validates the result.
func ApplyBuildSettings(opts *options.BuildOptions) error {
	err := opts.Sanitizer.Set(viper.GetString("sanitizer"))
	if err != nil {
		return pkgcmdutils.WrapIncorrectUsageError(err)
	}
	opts.Triple = viper.GetString("target")

	// -v makes cargo verbose and enables our debug output
	if opts.Verbose {
		viper.Set("verbose", true)
	}

	err = opts.Validate()
	if err != nil {
		return pkgcmdutils.WrapIncorrectUsageError(err)
	}
	return nil
}

func AddForegroundFlag(cmd *cobra.Command) func() {
	cmd.Flags().Bool("foreground", false,
		"Replace this process with the fuzz target instead of supervising it.\n"+
			"No failing inputs are reported when the fuzz target exits.")
	return func() {
		ViperMustBindPFlag("foreground", cmd.Flags().Lookup("foreground"))
	}
}

func AddJobsFlag(cmd *cobra.Command) func() {
	cmd.Flags().UintP("jobs", "j", 1,
		"Number of concurrent fuzzing `jobs`, libFuzzer's fork mode is used if greater than 1.")
	return func() {
		ViperMustBindPFlag("jobs", cmd.Flags().Lookup("jobs"))
	}
}

// Jobs returns the number of jobs resolved by viper
func Jobs() (uint, error) {
	jobs := viper.GetUint("jobs")
	if jobs == 0 {
		return 0, pkgcmdutils.WrapIncorrectUsageError(errors.New("--jobs must be at least 1"))
	}
	return jobs, nil
}

func AddPrintJSONFlag(cmd *cobra.Command) func() {
	cmd.Flags().Bool("json", false, "Print output as JSON")
	return func() {
		ViperMustBindPFlag("print-json", cmd.Flags().Lookup("json"))
	}
}

func AddRunsFlag(cmd *cobra.Command) func() {
	cmd.Flags().UintP("runs", "r", 255,
		"Number of attempts to minimize the test case.")
	return func() {
		ViperMustBindPFlag("runs", cmd.Flags().Lookup("runs"))
	}
}

// Runs returns the number of minimization attempts resolved by viper
func Runs() (uint, error) {
	runs := viper.GetUint("runs")
	if runs == 0 {
		return 0, pkgcmdutils.WrapIncorrectUsageError(errors.New("--runs must be at least 1"))
	}
	return runs, nil
}

// SplitArgs splits the arguments into the positional arguments and
// the arguments after "--", which are passed through to the fuzz
// engine.
func SplitArgs(cmd *cobra.Command, args []string) (positional []string, passThrough []string) { // nolint:nonamedreturns
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		return args, nil
	}
	return args[:dash], args[dash:]
}

// PositionalArgs returns a validator which counts only the arguments
// before "--"
func PositionalArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		positional, _ := SplitArgs(cmd, args)
		return validate(cmd, positional)
	}
}
