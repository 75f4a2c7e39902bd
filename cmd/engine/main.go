package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "portfolio-prism-engine"
	version = "0.1.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     "engine",
		Short:   "Portfolio Prism analytics engine — headless sidecar for the Trade Republic look-through pipeline.",
		Version: version,
		RunE:    runDefaultEntry,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the command loop (stdio by default, dev HTTP/SSE with --http)",
		RunE:  runServe,
	}
	serveCmd.Flags().Bool("http", false, "expose the dev-only HTTP/SSE transport instead of stdio")
	serveCmd.Flags().Bool("bind-all", false, "bind the HTTP transport to all interfaces instead of loopback only")
	serveCmd.Flags().String("broker-bin", "", "override the broker bridge child binary (defaults to PRISM_BROKER_BIN)")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply every pending database migration and exit",
		RunE:  runMigrate,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the engine version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(appName + " " + version)
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// runDefaultEntry handles a bare `engine` invocation with no subcommand. A
// human at an interactive terminal almost certainly meant to run `serve`
// from a host process, not type commands by hand, so this prints guidance
// instead of silently blocking on stdin.
func runDefaultEntry(cmd *cobra.Command, args []string) error {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "engine is a headless sidecar — it expects line-delimited JSON commands piped in, not typed at a terminal.")
		fmt.Fprintln(os.Stderr, "Run it from its host process as: engine serve")
		fmt.Fprintln(os.Stderr, "Or see available subcommands: engine --help")
		return nil
	}
	return runServe(cmd, args)
}
