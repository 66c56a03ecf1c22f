// Package config handles the optional settings file of a fuzz project,
// which provides defaults for command-line flags.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"code-intelligence.com/cargo-fuzz/util/fileutil"
)

const SettingsFile = "cargo-fuzz.yaml"

const settingsHeader = `## Configuration for cargo fuzz
## Values in this file are used as defaults for command-line flags,
## which take precedence.
`

// Settings are the values which can be configured in the settings file.
// The keys are the same as the names of the respective flags.
type Settings struct {
	// Sanitizer is the default of --sanitizer
	Sanitizer string `yaml:"sanitizer,omitempty" mapstructure:"sanitizer"`
	// Target is the default of --target
	Target string `yaml:"target,omitempty" mapstructure:"target"`
	// Jobs is the default of --jobs
	Jobs uint `yaml:"jobs,omitempty" mapstructure:"jobs"`
}

// DefaultSettings returns the settings which are written by init
func DefaultSettings() *Settings {
	return &Settings{Sanitizer: "address", Jobs: 1}
}

// CreateSettings creates a settings file in the fuzz dir. It fails if
// the file already exists.
func CreateSettings(fuzzDir string, settings *Settings) (string, error) {
	path := filepath.Join(fuzzDir, SettingsFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer f.Close()

	out, err := yaml.Marshal(settings)
	if err != nil {
		return "", errors.WithStack(err)
	}
	_, err = f.WriteString(settingsHeader + string(out))
	if err != nil {
		return "", errors.WithStack(err)
	}
	return path, nil
}

// ReadSettings reads the settings file of the fuzz dir into viper, if
// it exists, so that its values are used for flags which were not set
// on the command line.
func ReadSettings(fuzzDir string) error {
	path := filepath.Join(fuzzDir, SettingsFile)
	exists, err := fileutil.Exists(path)
	if err != nil || !exists {
		return err
	}

	viper.SetConfigFile(path)
	err = viper.ReadInConfig()
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", path)
	}
	return nil
}

// ParseSettings parses the settings file of the fuzz dir without
// merging it into viper.
func ParseSettings(fuzzDir string) (*Settings, error) {
	data, err := os.ReadFile(filepath.Join(fuzzDir, SettingsFile))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	settings := &Settings{}
	err = yaml.Unmarshal(data, settings)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return settings, nil
}
