package storageconfig_test

import (
	"testing"
	"time"

	"github.com/nspcc-dev/persistcache/cmd/persistcache/config"
	storageconfig "github.com/nspcc-dev/persistcache/cmd/persistcache/config/storage"
	configtest "github.com/nspcc-dev/persistcache/cmd/persistcache/config/test"
	"github.com/stretchr/testify/require"
)

func TestStorageSection(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := configtest.EmptyConfig()

		require.Equal(t, storageconfig.BackendDefault, storageconfig.Backend(c))
		require.Equal(t, storageconfig.EngineDefault, storageconfig.Engine(c))
		p, err := storageconfig.Path(c)
		require.NoError(t, err)
		require.Empty(t, p)
		require.EqualValues(t, storageconfig.SizeThresholdDefault, storageconfig.SizeThreshold(c))
		require.Equal(t, storageconfig.CoalescingWindowDefault, storageconfig.CoalescingWindow(c))
		require.Zero(t, storageconfig.TeardownWorkers(c))
		require.True(t, storageconfig.CompressionEnabled(c))
		require.Equal(t, storageconfig.CompressionMinSizeDefault, storageconfig.CompressionMinSize(c))
		require.Equal(t, storageconfig.ChecksumAlgorithmDefault, storageconfig.ChecksumAlgorithm(c))
	})

	const path = "../../../../config/example/persistcache"

	var fileConfigTest = func(c *config.Config) {
		require.Equal(t, "remote-cache", storageconfig.Backend(c))
		require.Equal(t, "sqlite", storageconfig.Engine(c))
		p, err := storageconfig.Path(c)
		require.NoError(t, err)
		require.Equal(t, "/var/cache/persistcache", p)
		require.EqualValues(t, 10<<20, storageconfig.SizeThreshold(c))
		require.Equal(t, 250*time.Millisecond, storageconfig.CoalescingWindow(c))
		require.Equal(t, 2, storageconfig.TeardownWorkers(c))
		require.False(t, storageconfig.CompressionEnabled(c))
		require.Equal(t, 8<<10, storageconfig.CompressionMinSize(c))
		require.Equal(t, "sha256", storageconfig.ChecksumAlgorithm(c))
	}

	configtest.ForEachFileType(path, fileConfigTest)

	t.Run("ENV", func(t *testing.T) {
		configtest.ForEnvFileType(t, path, fileConfigTest)
	})
}
