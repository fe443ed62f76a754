package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nspcc-dev/persistcache/pkg/blobstore"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const engineFlag = "engine"

func newInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <path>",
		Short: "List entries of the cache database",
		Long: `List entries of the embedded cache database. Database engine is resolved by
the file extension unless --engine is set.`,
		Args: cobra.ExactArgs(1),
		RunE: inspectFunc,
	}

	cmd.Flags().String(engineFlag, "", "Database engine (bolt or sqlite)")

	return cmd
}

func inspectFunc(cmd *cobra.Command, args []string) error {
	engine, _ := cmd.Flags().GetString(engineFlag)

	b, err := openDatabase(engine, args[0], zap.NewNop())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer b.Close()

	l, ok := b.(blobstore.Lister)
	if !ok {
		return fmt.Errorf("database %T does not support listing", b)
	}

	out := tablewriter.NewWriter(cmd.OutOrStdout())
	out.SetHeader([]string{"Scope", "Name", "Checksum", "Size"})
	out.SetAutoWrapText(false)

	var (
		n       int
		invalid int
	)

	err = l.Iterate(context.Background(), func(e blobstore.EntryInfo) error {
		k, err := blobstore.ParseEntryKey(e.Key)
		if err != nil {
			invalid++
			return nil
		}

		n++
		out.Append([]string{
			k.Scope.String(),
			k.Name,
			e.Checksum.String(),
			strconv.Itoa(e.Size),
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("iterate database: %w", err)
	}

	out.Render()

	cmd.Printf("Entries: %d\n", n)
	if invalid > 0 {
		cmd.Printf("Invalid keys: %d\n", invalid)
	}

	return nil
}
