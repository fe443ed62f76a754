package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nspcc-dev/persistcache/cmd/internal/cmderr"
	"github.com/nspcc-dev/persistcache/pkg/blobstore/boltstore"
	"github.com/nspcc-dev/persistcache/pkg/storage"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	cmd := newRootCommand()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, data string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

func newWorkspace(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app", "main.go"), "package main")
	writeFile(t, filepath.Join(dir, "app", "cmd", "run.go"), "package cmd")
	writeFile(t, filepath.Join(dir, "lib", "lib.go"), "package lib")
	writeFile(t, filepath.Join(dir, "README"), "readme")
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "ref: refs/heads/master")
	return dir
}

func tableRow(out, branch string) string {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.FieldsFunc(line, func(r rune) bool { return r == '|' || r == ' ' })
		if len(fields) == 3 && fields[0] == branch {
			return line
		}
	}
	return ""
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "--version")
	require.NoError(t, err)
	require.Contains(t, out, "Version: dev")
}

func TestChecksum(t *testing.T) {
	dir := newWorkspace(t)

	out, err := run(t, "", "checksum", dir)
	require.NoError(t, err)
	require.Contains(t, out, "Root: ")
	require.NotContains(t, out, ".git")

	appRow, libRow, topRow := tableRow(out, "app"), tableRow(out, "lib"), tableRow(out, ".")
	require.NotEmpty(t, appRow)
	require.NotEmpty(t, libRow)
	require.NotEmpty(t, topRow)
	require.Contains(t, appRow, " 2 ")

	again, err := run(t, "", "checksum", dir)
	require.NoError(t, err)
	require.Equal(t, out, again)

	writeFile(t, filepath.Join(dir, "lib", "lib.go"), "package lib // changed")

	changed, err := run(t, "", "checksum", dir)
	require.NoError(t, err)
	require.Equal(t, appRow, tableRow(changed, "app"))
	require.Equal(t, topRow, tableRow(changed, "."))
	require.NotEqual(t, libRow, tableRow(changed, "lib"))

	other, err := run(t, "", "checksum", "--algorithm", "sha256", dir)
	require.NoError(t, err)
	require.NotEqual(t, tableRow(changed, "app"), tableRow(other, "app"))

	_, err = run(t, "", "checksum", "--algorithm", "md5", dir)
	require.Error(t, err)
}

func TestStore(t *testing.T) {
	t.Setenv("PERSISTCACHE_STORAGE_SIZE_THRESHOLD", "1b")
	t.Setenv("PERSISTCACHE_LOGGER_LEVEL", "error")

	dir := newWorkspace(t)

	out, err := run(t, "diagnostics", "store", "put", dir, "diag")
	require.NoError(t, err)
	require.Contains(t, out, `Stored "diag"`)

	out, err = run(t, "", "store", "put", "--branch", "app", dir, "symbols")
	require.NoError(t, err)
	require.Contains(t, out, `Stored "symbols"`)

	out, err = run(t, "", "store", "get", dir, "diag")
	require.NoError(t, err)
	require.Equal(t, "diagnostics", out)

	t.Run("inspect", func(t *testing.T) {
		name := storage.FileName(storage.RootInfo{ID: dir, Path: dir, WorkingDir: dir}) + boltstore.FileExtension

		out, err := run(t, "", "inspect", filepath.Join(dir, ".persistcache", name))
		require.NoError(t, err)
		require.Contains(t, out, "diag")
		require.Contains(t, out, "symbols")
		require.Contains(t, out, "Entries: 2")
	})

	writeFile(t, filepath.Join(dir, "lib", "lib.go"), "package lib // changed")

	_, err = run(t, "", "store", "get", dir, "diag")
	require.ErrorIs(t, err, errMissingEntry)
	require.Equal(t, cmderr.CodeNotFound, cmderr.Code(err))

	// branch checksum does not depend on other branches
	out, err = run(t, "", "store", "get", "--branch", "app", dir, "symbols")
	require.NoError(t, err)
	require.Empty(t, out)

	_, err = run(t, "", "store", "get", "--branch", "missing", dir, "symbols")
	require.Error(t, err)
}

func TestStore_BelowThreshold(t *testing.T) {
	t.Setenv("PERSISTCACHE_LOGGER_LEVEL", "error")

	dir := newWorkspace(t)

	out, err := run(t, "data", "store", "put", dir, "diag")
	require.NoError(t, err)
	require.Contains(t, out, "Skipped")

	_, err = run(t, "", "store", "get", dir, "diag")
	require.Equal(t, cmderr.CodeNotFound, cmderr.Code(err))

	_, err = os.Stat(filepath.Join(dir, ".persistcache"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestServe_MissingPath(t *testing.T) {
	_, err := run(t, "", "serve")
	require.Error(t, err)
	require.Equal(t, cmderr.CodeConfig, cmderr.Code(err))
}

func TestConfigFile(t *testing.T) {
	_, err := run(t, "", "serve", "--config", filepath.Join(t.TempDir(), "none.yaml"))
	require.Equal(t, cmderr.CodeConfig, cmderr.Code(err))
}
