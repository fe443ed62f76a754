package main

import (
	"os"

	"github.com/nspcc-dev/persistcache/cmd/internal/cmderr"
	"github.com/nspcc-dev/persistcache/misc"
	"github.com/spf13/cobra"
)

const configFlag = "config"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "persistcache",
		Short: "Persistent workspace cache",
		Long: `Persistent workspace cache stores derived data of workspace documents keyed
by content checksums. The tool serves the remote cache, inspects cache
databases and computes workspace checksums.`,
		RunE:          entryPoint,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// use stdout as default output for cmd.Print()
	cmd.SetOut(os.Stdout)
	cmd.Flags().Bool("version", false, "Application version")
	cmd.PersistentFlags().StringP(configFlag, "c", "", "Path to configuration file (YAML or JSON)")
	cmd.AddCommand(
		newServeCommand(),
		newInspectCommand(),
		newChecksumCommand(),
		newStoreCommand(),
	)

	return cmd
}

func entryPoint(cmd *cobra.Command, _ []string) error {
	printVersion, _ := cmd.Flags().GetBool("version")
	if printVersion {
		cmd.Print(misc.BuildInfo("Persistent workspace cache"))

		return nil
	}

	return cmd.Usage()
}

func main() {
	err := newRootCommand().Execute()
	cmderr.ExitOnErr(err)
}
