package cmderr_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/nspcc-dev/persistcache/cmd/internal/cmderr"
	"github.com/stretchr/testify/require"
)

func TestCode(t *testing.T) {
	cause := errors.New("config file is missing")

	require.Zero(t, cmderr.Code(nil))
	require.Nil(t, cmderr.Wrap(cmderr.CodeConfig, nil))
	require.Equal(t, cmderr.CodeInternal, cmderr.Code(cause))

	err := fmt.Errorf("read config: %w", cmderr.Wrap(cmderr.CodeConfig, cause))
	require.Equal(t, cmderr.CodeConfig, cmderr.Code(err))
	require.ErrorIs(t, err, cause)

	var b bytes.Buffer
	cmderr.Print(&b, err)
	require.Equal(t, "Error: read config: config file is missing\n", b.String())
}
