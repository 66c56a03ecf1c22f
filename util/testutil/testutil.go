package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/otiai10/copy"
	"github.com/stretchr/testify/require"
)

// ChdirToTempDir creates a temporary directory, changes the working
// directory to it and registers a cleanup function which changes back
// to the original working directory. It returns the temporary directory.
func ChdirToTempDir(t *testing.T) string {
	t.Helper()

	oldWd, err := os.Getwd()
	require.NoError(t, err)

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	err = os.Chdir(dir)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = os.Chdir(oldWd)
	})
	return dir
}

// CopyTestdata copies the testdata directory src (relative to the
// package under test) into a fresh temporary directory and returns the
// path of the copy.
func CopyTestdata(t *testing.T, src string) string {
	t.Helper()

	dest, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	err = copy.Copy(src, dest)
	require.NoError(t, err)
	return dest
}
