package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	envFile    string
	prefix     string
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	rootCmd := &cobra.Command{
		Use:           "nscache",
		Short:         "Namespaced Redis cache service",
		Long:          "Serve the cached landing page and manage the keys under one cache prefix",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&g.envFile, "env-file", "", ".env file (default ./.env when present)")
	rootCmd.PersistentFlags().StringVar(&g.prefix, "prefix", "", "Override the cache key prefix")

	rootCmd.AddCommand(
		serveCmd(&g),
		statsCmd(&g),
		flushCmd(&g),
		purgeCmd(&g),
		ttlCmd(&g),
		selftestCmd(&g),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
