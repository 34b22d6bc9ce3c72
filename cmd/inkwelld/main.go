package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rickgao/inkwell/internal/version"
)

type options struct {
	configPath string
	envFile    string
	roots      []string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	serve := func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), opts)
	}

	root := &cobra.Command{
		Use:           "inkwelld",
		Short:         "Backend for the inkwell markdown editor",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (defaults apply when empty)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "environment file loaded before the config")
	root.PersistentFlags().StringSliceVar(&opts.roots, "root", nil, "workspace directory to open (repeatable)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the editor backend (default)",
		Args:  cobra.NoArgs,
		RunE:  serve,
	})
	root.AddCommand(newStatusCmd(&opts), newSendCmd(&opts))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "inkwelld", version.String())
		},
	})

	return root
}
