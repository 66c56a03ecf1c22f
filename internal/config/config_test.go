package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSettings(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateSettings(dir, DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, SettingsFile), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Configuration for cargo fuzz")

	settings, err := ParseSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)

	// The file is not overwritten
	_, err = CreateSettings(dir, &Settings{Sanitizer: "none"})
	require.Error(t, err)
}

func TestReadSettings(t *testing.T) {
	defer viper.Reset()
	dir := t.TempDir()

	// A missing settings file is not an error
	require.NoError(t, ReadSettings(dir))

	_, err := CreateSettings(dir, &Settings{Sanitizer: "thread", Target: "aarch64-unknown-linux-gnu", Jobs: 4})
	require.NoError(t, err)
	require.NoError(t, ReadSettings(dir))

	assert.Equal(t, "thread", viper.GetString("sanitizer"))
	assert.Equal(t, "aarch64-unknown-linux-gnu", viper.GetString("target"))
	assert.Equal(t, uint(4), viper.GetUint("jobs"))
}

func TestReadSettings_Invalid(t *testing.T) {
	defer viper.Reset()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, SettingsFile), []byte("sanitizer: [unclosed"), 0644)
	require.NoError(t, err)

	require.Error(t, ReadSettings(dir))
}
