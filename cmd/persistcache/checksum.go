package main

import (
	"strconv"

	storageconfig "github.com/nspcc-dev/persistcache/cmd/persistcache/config/storage"
	"github.com/nspcc-dev/persistcache/pkg/checksum"
	"github.com/nspcc-dev/persistcache/pkg/checksumtree"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const algorithmFlag = "algorithm"

func newChecksumCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checksum <dir>",
		Short: "Compute workspace checksums of the directory",
		Long: `Compute workspace checksums of the directory. Every top-level directory is
treated as a branch, files placed directly in <dir> form the "." branch.`,
		Args: cobra.ExactArgs(1),
		RunE: checksumFunc,
	}

	cmd.Flags().String(algorithmFlag, "", "Hashing algorithm (blake3 or sha256), overrides configuration")

	return cmd
}

func newTree(cmd *cobra.Command) (*checksumtree.Tree, error) {
	alg, _ := cmd.Flags().GetString(algorithmFlag)
	if alg == "" {
		c, err := readConfig(cmd)
		if err != nil {
			return nil, err
		}
		alg = storageconfig.ChecksumAlgorithm(c)
	}

	h, err := checksum.NewHasher(alg)
	if err != nil {
		return nil, err
	}

	return checksumtree.New(checksumtree.WithHasher(h)), nil
}

func checksumFunc(cmd *cobra.Command, args []string) error {
	tree, err := newTree(cmd)
	if err != nil {
		return err
	}

	root, _, err := loadWorkspace(args[0])
	if err != nil {
		return err
	}

	var (
		branches = root.Branches()
		coll     = tree.GetCollection(root)
	)

	out := tablewriter.NewWriter(cmd.OutOrStdout())
	out.SetHeader([]string{"Branch", "Files", "Checksum"})
	out.SetAutoWrapText(false)

	for i := range branches {
		out.Append([]string{
			branches[i].ID(),
			strconv.Itoa(len(branches[i].Leaves())),
			coll.At(i).String(),
		})
	}

	out.Render()

	sum, err := tree.RootChecksum(root, nil)
	if err != nil {
		return err
	}

	cmd.Printf("Root: %s\n", sum)

	return nil
}
