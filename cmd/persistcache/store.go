package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nspcc-dev/persistcache/cmd/internal/cmderr"
	"github.com/nspcc-dev/persistcache/pkg/blobstore"
	"github.com/nspcc-dev/persistcache/pkg/checksum"
	"github.com/nspcc-dev/persistcache/pkg/containerkey"
	"github.com/nspcc-dev/persistcache/pkg/storage"
	"github.com/nspcc-dev/persistcache/pkg/workspace"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	branchFlag = "branch"
	inputFlag  = "input"
)

var errMissingEntry = errors.New("entry is missing or outdated")

func newStoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Access cached data of the workspace directory",
		Long: `Access cached data of the workspace directory. Entries are bound to the
current checksum of the workspace (or its branch with --branch), so any change
of the contents makes previously stored entries outdated.`,
	}

	put := &cobra.Command{
		Use:   "put <dir> <name>",
		Short: "Store data for the workspace",
		Args:  cobra.ExactArgs(2),
		RunE:  storePutFunc,
	}
	put.Flags().StringP(inputFlag, "i", "", "Input file, stdin if not set")

	get := &cobra.Command{
		Use:   "get <dir> <name>",
		Short: "Print stored data of the workspace",
		Args:  cobra.ExactArgs(2),
		RunE:  storeGetFunc,
	}

	for _, c := range []*cobra.Command{put, get} {
		c.Flags().StringP(branchFlag, "b", "", "Branch (top-level directory) the entry belongs to")
		c.Flags().String(algorithmFlag, "", "Hashing algorithm (blake3 or sha256), overrides configuration")
	}

	cmd.AddCommand(put, get)

	return cmd
}

// storeSession is an open storage of the workspace root.
type storeSession struct {
	log     *zap.Logger
	manager *storage.Manager
	handle  *storage.Handle

	root  *workspace.Root
	scope blobstore.Scope
	sum   checksum.Checksum
}

func openStoreSession(cmd *cobra.Command, dir string) (*storeSession, error) {
	c, err := readConfig(cmd)
	if err != nil {
		return nil, err
	}

	log, err := newLogger(c)
	if err != nil {
		return nil, err
	}

	stCfg, err := storageConfig(c)
	if err != nil {
		return nil, err
	}

	tree, err := newTree(cmd)
	if err != nil {
		return nil, err
	}

	root, size, err := loadWorkspace(dir)
	if err != nil {
		return nil, err
	}

	s := &storeSession{log: log, root: root}

	branch, _ := cmd.Flags().GetString(branchFlag)
	if branch == "" {
		s.scope = blobstore.RootScope(root.ID())
		s.sum, err = tree.RootChecksum(root, nil)
		if err != nil {
			return nil, err
		}
	} else {
		b, ok := root.Branch(branch)
		if !ok {
			return nil, fmt.Errorf("%w: %q", workspace.ErrUnknownBranch, branch)
		}

		reg := containerkey.NewRegistry(root.ID(), 1)
		s.scope = blobstore.BranchScope(reg.GetOrCreate(b))
		s.sum = tree.BranchChecksum(b)
	}

	s.manager, err = storage.NewManager(stCfg, storage.WithLogger(log))
	if err != nil {
		return nil, cmderr.Wrap(cmderr.CodeConfig, err)
	}

	s.manager.RegisterPrimary(root.ID())

	s.handle, err = s.manager.GetStorage(cmd.Context(), storage.RootInfo{
		ID:         root.ID(),
		Path:       root.ID(),
		WorkingDir: root.ID(),
		ApproxSize: size,
	})
	if err != nil {
		_ = s.manager.Close()
		return nil, err
	}

	if s.handle.IsNoop() {
		log.Info("persistent cache is not available for the workspace",
			zap.String("root", root.ID()), zap.Int64("size", size))
	}

	return s, nil
}

// close releases the handle and waits for pending writes.
func (s *storeSession) close() {
	s.handle.Release()
	s.manager.UnregisterPrimary(s.root.ID(), true)

	if err := s.manager.Close(); err != nil {
		s.log.Warn("can't close storage manager", zap.Error(err))
	}

	_ = s.log.Sync()
}

func storePutFunc(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()

	if input, _ := cmd.Flags().GetString(inputFlag); input != "" {
		data, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		in = bytes.NewReader(data)
	}

	s, err := openStoreSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.close()

	ok, err := s.handle.WriteStream(cmd.Context(), s.scope, args[1], in, s.sum)
	if err != nil {
		return err
	}

	if ok && !s.handle.IsNoop() {
		cmd.Printf("Stored %q for %s (%s)\n", args[1], s.scope, s.sum)
	} else {
		cmd.Printf("Skipped %q: cache is not available\n", args[1])
	}

	return nil
}

func storeGetFunc(cmd *cobra.Command, args []string) error {
	s, err := openStoreSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.close()

	r, err := s.handle.ReadStream(cmd.Context(), s.scope, args[1], s.sum)
	if err != nil {
		return err
	}
	if r == nil {
		return cmderr.Wrap(cmderr.CodeNotFound, fmt.Errorf("%w: %q", errMissingEntry, args[1]))
	}
	defer r.Close()

	_, err = io.Copy(cmd.OutOrStdout(), r)
	return err
}
