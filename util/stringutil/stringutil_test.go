package stringutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinNonEmpty(t *testing.T) {
	assert.Equal(t, "a b", JoinNonEmpty([]string{"", "a", "", "b"}, " "))
	assert.Equal(t, "", JoinNonEmpty(nil, " "))
}

func TestShellCommandLine(t *testing.T) {
	assert.Equal(t, "cargo fuzz run -a my_target fuzz/artifacts/crash-1",
		ShellCommandLine("cargo", "fuzz", "run", "-a", "my_target", "fuzz/artifacts/crash-1"))
	assert.Equal(t, `cargo fuzz run '--features=a b' t 'my dir/crash'`,
		ShellCommandLine("cargo", "fuzz", "run", "--features=a b", "t", "my dir/crash"))
	assert.Equal(t, `'it'\''s' ''`, ShellCommandLine("it's", ""))
}

func TestCommandLine(t *testing.T) {
	assert.Equal(t, `"cargo" "run" "--bin" "my target"`, CommandLine("cargo", "run", "--bin", "my target"))
	assert.Equal(t, `"cargo"`, CommandLine("cargo"))
}
