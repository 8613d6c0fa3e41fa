// ABOUTME: CLI command for starting MCP server.
// ABOUTME: Runs stdio-based MCP server over the tracker store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/trackle/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

The server communicates via stdin/stdout and keeps the database open until
it exits.

CONFIGURATION:

  {
    "mcpServers": {
      "trackle": {
        "command": "trackle",
        "args": ["mcp"]
      }
    }
  }

AVAILABLE TOOLS:

  save_data        Save a day's record, updating it if one exists
  update_data      Replace a day's record
  get_record       Get one day of a table
  get_table_data   List a table, optionally sorted and limited
  lookup           Find days by an indexed field
  export_data      Export everything as json, yaml, or markdown

AVAILABLE RESOURCES:

  trackle://tables   Every table
  trackle://today    Today's record from each table`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := mcp.NewServer(store, logger)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Handle shutdown signals
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case <-sigChan:
				cancel()
			case <-ctx.Done():
			}
		}()

		return server.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
