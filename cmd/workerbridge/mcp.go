package main

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/wagiedev/workerbridge"
	"github.com/wagiedev/workerbridge/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the worker as an MCP tool over stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout exposing the
send_to_worker and worker_status tools. Logs go to stderr.

Examples:
  workerbridge mcp --config bot.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runBridge(cmd, func(ctx context.Context, b workerbridge.Bridge, _ *workerbridge.Options, log *slog.Logger) error {
			err := mcp.Serve(ctx, mcp.NewServer(b, log, version))
			if stderrors.Is(err, context.Canceled) {
				return nil
			}

			return err
		})
	},
}
