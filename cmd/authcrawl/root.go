package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for authcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authcrawl",
		Short: "Crawl Basic-Auth protected pages into Markdown",
		Long: `authcrawl renders a list of start URLs in a headless browser, injecting
an HTTP Basic-Auth header into every page, and writes one JSON Lines record
of Markdown per page.

Credentials are read from --username/--password, AUTHCRAWL_USERNAME and
AUTHCRAWL_PASSWORD, or the auth section of a --config file.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
