package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOptions_RoundTrip(t *testing.T) {
	testCases := map[string]BuildOptions{
		"default":           {},
		"dev":               {Dev: true},
		"release":           {Release: true},
		"debug assertions":  {Release: true, DebugAssertions: true},
		"verbose":           {Verbose: true},
		"no default":        {NoDefaultFeatures: true, Features: "foo,bar"},
		"all features":      {AllFeatures: true},
		"no sanitizer":      {Sanitizer: SanitizerNone},
		"memory sanitizer":  {Sanitizer: SanitizerMemory},
		"careful":           {Careful: true, BuildStd: true},
		"custom triple":     {Triple: "aarch64-unknown-linux-gnu"},
		"unstable flags":    {UnstableFlags: []string{"unstable", "flags"}},
		"target dir":        {TargetDir: "/tmp/test dir"},
		"coverage":          {Coverage: true},
		"instrumentation":   {NoTraceCompares: true, TraceDivs: true, TraceGeps: true, DisableBranchFolding: true},
		"dead code and cfg": {StripDeadCode: true, NoCfgFuzzing: true},
	}

	for name, opts := range testCases {
		opts := opts
		t.Run(name, func(t *testing.T) {
			parsed, err := ParseBuildFlags(opts.Args())
			require.NoError(t, err)
			assert.Equal(t, opts, *parsed)
		})
	}
}

func TestBuildOptions_String(t *testing.T) {
	assert.Equal(t, "", (&BuildOptions{}).String())
	assert.Equal(t, " --sanitizer=none", (&BuildOptions{Sanitizer: SanitizerNone}).String())
	assert.Equal(t, " -O -a --features=foo -Zfoo",
		(&BuildOptions{Release: true, DebugAssertions: true, Features: "foo", UnstableFlags: []string{"foo"}}).String())
}

func TestParseBuildFlags_ShortFlags(t *testing.T) {
	opts, err := ParseBuildFlags([]string{"-D", "-s", "thread", "-Z", "a", "-Zb"})
	require.NoError(t, err)
	assert.True(t, opts.Dev)
	assert.Equal(t, SanitizerThread, opts.Sanitizer)
	assert.Equal(t, []string{"a", "b"}, opts.UnstableFlags)
}

func TestParseBuildFlags_Invalid(t *testing.T) {
	_, err := ParseBuildFlags([]string{"--sanitizer=foo"})
	require.Error(t, err)

	_, err = ParseBuildFlags([]string{"positional"})
	require.Error(t, err)
}

func TestBuildOptions_Validate(t *testing.T) {
	valid := []BuildOptions{
		{},
		{Dev: true},
		{Release: true},
		{Coverage: true},
		{Sanitizer: SanitizerMemory},
		{NoDefaultFeatures: true, Features: "foo"},
	}
	for _, opts := range valid {
		assert.NoError(t, opts.Validate(), "%+v", opts)
	}

	invalid := []BuildOptions{
		{Dev: true, Release: true},
		{AllFeatures: true, NoDefaultFeatures: true},
		{AllFeatures: true, Features: "foo"},
		{Coverage: true, BuildStd: true},
		{Coverage: true, Careful: true},
		{Coverage: true, Sanitizer: SanitizerMemory},
	}
	for _, opts := range invalid {
		assert.Error(t, opts.Validate(), "%+v", opts)
	}
}

func TestEffectiveBuildStd(t *testing.T) {
	assert.False(t, (&BuildOptions{}).EffectiveBuildStd())
	assert.True(t, (&BuildOptions{BuildStd: true}).EffectiveBuildStd())
	assert.True(t, (&BuildOptions{Careful: true}).EffectiveBuildStd())
	assert.True(t, (&BuildOptions{Sanitizer: SanitizerMemory}).EffectiveBuildStd())
}

func TestParseSanitizer(t *testing.T) {
	for _, name := range SanitizerNames() {
		s, err := ParseSanitizer(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.String())
	}
	_, err := ParseSanitizer("undefined")
	require.Error(t, err)
}
