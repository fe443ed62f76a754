package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/nspcc-dev/persistcache/cmd/persistcache/config"
	configtest "github.com/nspcc-dev/persistcache/cmd/persistcache/config/test"
	"github.com/stretchr/testify/require"
)

func TestConfigCommon(t *testing.T) {
	configtest.ForEachFileType("testdata/config", func(c *config.Config) {
		val := c.Value("value")
		require.NotNil(t, val)

		val = c.Value("non-existent value")
		require.Nil(t, val)

		sub := c.Sub("section")
		require.NotNil(t, sub)

		const nonExistentSub = "non-existent sub-section"

		val = c.Sub(nonExistentSub).Value("value")
		require.Nil(t, val)
	})
}

func TestConfigEnv(t *testing.T) {
	const (
		name    = "name"
		section = "section"
		value   = "some value"
	)

	require.Equal(t, "PERSISTCACHE_SECTION_NAME", config.Env(section, name))
	t.Setenv(config.Env(section, name), value)

	c := configtest.EmptyConfig()

	require.Equal(t, value, c.Sub(section).Value(name))
}

func TestConfig_SubValue(t *testing.T) {
	configtest.ForEachFileType("testdata/config", func(c *config.Config) {
		c = c.
			Sub("section").
			Sub("sub").
			Sub("sub")

		// get subsection 1
		sub := c.Sub("sub1")

		// get subsection 2
		c.Sub("sub2")

		// sub should not be corrupted
		require.Equal(t, "val1", sub.Value("key"))
	})
}

func TestConfig_Casts(t *testing.T) {
	configtest.ForEachFileType("testdata/config", func(c *config.Config) {
		c = c.Sub("casts")

		require.Equal(t, []string{"a", "b"}, config.StringSliceSafe(c, "strings"))
		require.Equal(t, 90*time.Second, config.DurationSafe(c, "duration"))
		require.True(t, config.BoolSafe(c, "bool"))
		require.EqualValues(t, 42, config.IntSafe(c, "int"))
		require.EqualValues(t, 4096, config.SizeInBytesSafe(c, "size"))

		require.Zero(t, config.SizeInBytesSafe(c, "bad_size"))
		require.Zero(t, config.DurationSafe(c, "strings"))
		require.Nil(t, config.BoolPtr(c, "missing"))
		require.Zero(t, config.IntSafe(c, "bad_size"))
		require.Empty(t, config.StringSafe(c, "missing"))
	})
}

func TestNew(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.New(config.Prm{}, config.WithConfigFile(filepath.Join(t.TempDir(), "none.yaml")))
		require.Error(t, err)
	})

	t.Run("home directory", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		homedir.Reset()
		t.Cleanup(homedir.Reset)

		require.NoError(t, os.WriteFile(filepath.Join(home, "c.yaml"), []byte("value: home\n"), 0o600))

		c, err := config.New(config.Prm{}, config.WithConfigFile("~/c.yaml"))
		require.NoError(t, err)
		require.Equal(t, "home", config.StringSafe(c, "value"))
		require.Equal(t, filepath.Join(home, "c.yaml"), c.FilePath())
	})
}
