package fileutil_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code-intelligence.com/cargo-fuzz/util/fileutil"
)

func TestPrettifyPath(t *testing.T) {
	var filesystemRoot string
	if runtime.GOOS == "windows" {
		filesystemRoot = "C:\\"
	} else {
		filesystemRoot = "/"
	}
	cwd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, filesystemRoot+filepath.Join("not", "cwd"), fileutil.PrettifyPath(filesystemRoot+filepath.Join("not", "cwd")))
	assert.Equal(t, filepath.Join("some", "dir"), fileutil.PrettifyPath(filepath.Join(cwd, "some", "dir")))
	assert.Equal(t, filepath.Dir(cwd), fileutil.PrettifyPath(filepath.Dir(cwd)))
	assert.Equal(t, filepath.Join("..some", "dir"), fileutil.PrettifyPath(filepath.Join(cwd, "..some", "dir")))
	assert.Equal(t, filepath.Join("rel", "path"), fileutil.PrettifyPath(filepath.Join("rel", "path")))
}

func TestTouchAndExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")

	exists, err := fileutil.Exists(path)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, fileutil.Touch(path))
	exists, err = fileutil.Exists(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.False(t, fileutil.IsDir(path))
	assert.True(t, fileutil.IsDir(dir))
}
