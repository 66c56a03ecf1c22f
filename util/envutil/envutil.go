package envutil

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// AppendToColonSeparatedList appends values to a list of
// colon-separated strings, like the ASAN_OPTIONS and TSAN_OPTIONS
// environment variables expect. In contrast to PATH-style lists,
// duplicates are kept: sanitizer runtimes let the last occurrence of an
// option win, so appending a default never overrides a user setting
// that comes later.
func AppendToColonSeparatedList(list string, value ...string) string {
	for _, v := range value {
		if v == "" {
			continue
		}
		if list != "" {
			list += ":"
		}
		list += v
	}
	return list
}

// Like os.LookupEnv but uses the specified environment instead of the
// current process environment.
func LookupEnv(env []string, key string) (string, bool) {
	envMap := ToMap(env)
	val, ok := envMap[key]
	return val, ok
}

// Like os.Getenv but uses the specified environment instead of the
// current process environment.
func Getenv(env []string, key string) string {
	envMap := ToMap(env)
	return envMap[key]
}

// Like os.Setenv but uses the specified environment instead of the
// current process environment.
func Setenv(env []string, key, value string) ([]string, error) {
	if key == "" || strings.ContainsAny(key, "="+"\x00") {
		return nil, errors.Errorf("invalid key: %q", key)
	}

	if strings.ContainsRune(value, '\x00') {
		return nil, errors.Errorf("invalid value: %q", value)
	}

	kv := key + "=" + value

	// Check if the key is already set
	prefix := key + "="
	for i, e := range env {
		if strings.HasPrefix(e, prefix) {
			// Replace the value
			env[i] = kv
			return env, nil
		}
	}

	// The key is not set yet, append it
	env = append(env, kv)
	return env, nil
}

// SetenvMap sets all variables of vars in env. The variables are set in
// sorted order to keep the resulting environment deterministic.
func SetenvMap(env []string, vars map[string]string) ([]string, error) {
	keys := maps.Keys(vars)
	slices.Sort(keys)

	var err error
	for _, key := range keys {
		env, err = Setenv(env, key, vars[key])
		if err != nil {
			return nil, err
		}
	}
	return env, nil
}

// ToMap converts the specified strings representing an environment in
// the form "key=value" to a map.
func ToMap(env []string) map[string]string {
	res := make(map[string]string)
	for _, e := range env {
		s := strings.SplitN(e, "=", 2)
		if len(s) != 2 {
			continue
		}
		key, val := s[0], s[1]
		res[key] = val
	}
	return res
}
