package main

import (
	"strings"

	"github.com/spf13/viper"

	"code-intelligence.com/cargo-fuzz/internal/cmd/root"
)

func init() {
	viper.SetEnvPrefix("CARGO_FUZZ")
	viper.AutomaticEnv()
	// need to make CARGO_FUZZ_MY_VAR available as viper.Get("my-var")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

func main() {
	root.Execute()
}
