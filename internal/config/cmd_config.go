package config

import (
	"context"
	"os"

	"github.com/spf13/afero"

	"code-intelligence.com/cargo-fuzz/internal/build/cargo"
	"code-intelligence.com/cargo-fuzz/internal/project"
	"code-intelligence.com/cargo-fuzz/internal/toolchain"
	"code-intelligence.com/cargo-fuzz/pkg/artifact"
	"code-intelligence.com/cargo-fuzz/pkg/storage"
	"code-intelligence.com/cargo-fuzz/util/executil"
)

// Config is shared by all commands. The root command fills in the
// project and the toolchain before a subcommand is run.
type Config struct {
	Runner  executil.Runner
	FS      *afero.Afero
	Environ []string

	Project   *project.Project
	Toolchain *toolchain.Toolchain
}

func NewConfig() *Config {
	return &Config{
		Runner:  executil.ProcessRunner{},
		FS:      storage.WrapFileSystem(),
		Environ: os.Environ(),
	}
}

// ResolveToolchain resolves the toolchain, unless that was done
// before.
func (c *Config) ResolveToolchain(ctx context.Context) error {
	if c.Toolchain != nil {
		return nil
	}
	tc, err := toolchain.Resolve(ctx, c.Runner, c.Environ)
	if err != nil {
		return err
	}
	c.Toolchain = tc
	return nil
}

// Builder returns a builder for the fuzz targets of the project
func (c *Config) Builder() *cargo.Builder {
	return cargo.NewBuilder(&cargo.BuilderOptions{
		FuzzDir:   c.Project.FuzzDir,
		Toolchain: c.Toolchain,
		Runner:    c.Runner,
		Environ:   c.Environ,
	})
}

func (c *Config) Store() *artifact.Store {
	return artifact.NewStore(c.FS)
}
