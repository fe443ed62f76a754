package remoteconfig_test

import (
	"testing"
	"time"

	"github.com/nspcc-dev/persistcache/cmd/persistcache/config"
	remoteconfig "github.com/nspcc-dev/persistcache/cmd/persistcache/config/remote"
	configtest "github.com/nspcc-dev/persistcache/cmd/persistcache/config/test"
	"github.com/stretchr/testify/require"
)

func TestRemoteSection(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := configtest.EmptyConfig()

		require.Empty(t, remoteconfig.Endpoints(c))
		require.Equal(t, remoteconfig.DialTimeoutDefault, remoteconfig.DialTimeout(c))
		require.Equal(t, remoteconfig.ChunkSizeDefault, remoteconfig.ChunkSize(c))
		require.Equal(t, remoteconfig.CommitTimeoutDefault, remoteconfig.CommitTimeout(c))
	})

	const path = "../../../../config/example/persistcache"

	var fileConfigTest = func(c *config.Config) {
		require.Equal(t, []string{"cache1.local:7070", "cache2.local:7070"}, remoteconfig.Endpoints(c))
		require.Equal(t, 3*time.Second, remoteconfig.DialTimeout(c))
		require.Equal(t, 128<<10, remoteconfig.ChunkSize(c))
		require.Equal(t, 30*time.Second, remoteconfig.CommitTimeout(c))
	}

	configtest.ForEachFileType(path, fileConfigTest)

	t.Run("ENV", func(t *testing.T) {
		configtest.ForEnvFileType(t, path, fileConfigTest)
	})
}
