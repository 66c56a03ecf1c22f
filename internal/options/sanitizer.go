package options

import (
	"strings"

	"github.com/pkg/errors"
)

// Sanitizer is the sanitizer the fuzz target is built with. The zero
// value is SanitizerAddress, which is the default.
type Sanitizer int

const (
	SanitizerAddress Sanitizer = iota
	SanitizerLeak
	SanitizerMemory
	SanitizerThread
	SanitizerNone
)

var sanitizerNames = map[Sanitizer]string{
	SanitizerAddress: "address",
	SanitizerLeak:    "leak",
	SanitizerMemory:  "memory",
	SanitizerThread:  "thread",
	SanitizerNone:    "none",
}

// SanitizerNames returns the names of all valid sanitizers
func SanitizerNames() []string {
	return []string{"address", "leak", "memory", "thread", "none"}
}

func ParseSanitizer(s string) (Sanitizer, error) {
	for sanitizer, name := range sanitizerNames {
		if name == s {
			return sanitizer, nil
		}
	}
	return 0, errors.Errorf("invalid sanitizer %q, valid values are: %s", s, strings.Join(SanitizerNames(), ", "))
}

func (s Sanitizer) String() string {
	return sanitizerNames[s]
}

// Set implements pflag.Value
func (s *Sanitizer) Set(value string) error {
	sanitizer, err := ParseSanitizer(value)
	if err != nil {
		return err
	}
	*s = sanitizer
	return nil
}

// Type implements pflag.Value
func (s *Sanitizer) Type() string {
	return "sanitizer"
}
