package stringutil

import (
	"fmt"
	"runtime"
	"strings"
)

// JoinNonEmpty does the same as strings.Join but omits empty elements
func JoinNonEmpty(elems []string, sep string) string {
	return strings.Join(NonEmpty(elems), sep)
}

// NonEmpty returns a slice with all empty strings removed
func NonEmpty(elems []string) []string {
	var res []string
	for _, e := range elems {
		if e != "" {
			res = append(res, e)
		}
	}
	return res
}

func QuotedStrings(elems []string) []string {
	var quotedElems []string
	for _, arg := range elems {
		quotedElems = append(quotedElems, fmt.Sprintf("%q", arg))
	}
	return quotedElems
}

// ShellQuote quotes arg with single quotes if a POSIX shell would not
// take it literally, so that it can be pasted into a shell.
func ShellQuote(arg string) string {
	if arg == "" {
		return "''"
	}
	if strings.IndexFunc(arg, func(r rune) bool { return !isShellSafe(r) }) == -1 {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

func isShellSafe(r rune) bool {
	if r == '\\' {
		// Path separator on Windows, an escape character elsewhere
		return runtime.GOOS == "windows"
	}
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		strings.ContainsRune("-_./=:,+@%", r)
}

// ShellCommandLine renders the arguments as a command line which can be
// pasted into a shell. Arguments are only quoted where necessary.
func ShellCommandLine(args ...string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = ShellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

// CommandLine renders a program and its arguments as a single line of
// quoted strings, suitable for log output.
func CommandLine(path string, args ...string) string {
	return strings.Join(QuotedStrings(append([]string{path}, args...)), " ")
}
