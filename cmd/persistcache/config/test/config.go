package configtest

import (
	"os"
	"strings"
	"testing"

	"github.com/nspcc-dev/persistcache/cmd/persistcache/config"
)

func fromFile(path string) *config.Config {
	var p config.Prm

	c, err := config.New(p,
		config.WithConfigFile(path),
	)
	if err != nil {
		panic(err)
	}

	return c
}

func forEachFile(paths []string, f func(*config.Config)) {
	for i := range paths {
		f(fromFile(paths[i]))
	}
}

// ForEachFileType passes configs read from next files:
//   - `<pref>.yaml`;
//   - `<pref>.json`.
func ForEachFileType(pref string, f func(*config.Config)) {
	forEachFile([]string{
		pref + ".yaml",
		pref + ".json",
	}, f)
}

// EmptyConfig returns config without any values and sections.
func EmptyConfig() *config.Config {
	var p config.Prm

	c, err := config.New(p)
	if err != nil {
		panic(err)
	}

	return c
}

// ForEnvFileType sets ENV variables listed in `<pref>.env` file for the
// duration of the test and passes config read from ENV only.
func ForEnvFileType(t testing.TB, pref string, f func(*config.Config)) {
	b, err := os.ReadFile(pref + ".env")
	if err != nil {
		t.Fatalf("read env file: %v", err)
	}

	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		k, v, ok := strings.Cut(line, "=")
		if !ok {
			t.Fatalf("invalid env line %q", line)
		}

		t.Setenv(k, strings.Trim(v, `"`))
	}

	f(EmptyConfig())
}
