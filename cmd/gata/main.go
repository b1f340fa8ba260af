package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "gata",
		Short:         "Gata: AI query routing, caching and approval service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "gata.yaml", "path to config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newMCPCmd(&configPath),
		newQueryCmd(&configPath),
		newCacheCmd(&configPath),
		newApprovedCmd(&configPath),
		newTablesCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
