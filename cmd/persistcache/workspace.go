package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nspcc-dev/persistcache/pkg/workspace"
)

// rootBranchID is an ID of the branch holding files placed directly in the
// workspace directory.
const rootBranchID = "."

// loadWorkspace reads directory tree into Root: every top-level directory is
// a Branch, every regular file below it is a Leaf. Hidden entries are
// skipped. Returns total size of the read files.
func loadWorkspace(dir string) (*workspace.Root, int64, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, 0, err
	}

	leaves := make(map[string][]*workspace.Leaf)
	var size int64

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read workspace file: %w", err)
		}
		size += int64(len(content))

		branch := rootBranchID
		if i := strings.IndexByte(rel, '/'); i >= 0 {
			branch = rel[:i]
		}

		leaves[branch] = append(leaves[branch], workspace.NewLeaf(rel, d.Name(), content))

		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("walk workspace: %w", err)
	}

	branches := make([]*workspace.Branch, 0, len(leaves))
	for id, ls := range leaves {
		name := id
		if id == rootBranchID {
			name = filepath.Base(dir)
		}

		branches = append(branches, workspace.NewBranch(workspace.BranchPrm{
			ID:   id,
			Path: id,
			Name: name,
		}, ls...))
	}

	return workspace.NewRoot(workspace.RootPrm{ID: dir}, branches...), size, nil
}
