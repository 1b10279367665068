package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	mcpTransport "github.com/kailas-cloud/pastq/internal/transport/mcp"
	"github.com/kailas-cloud/pastq/internal/version"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the question tool over MCP stdio",
	Long: `Serve the past question tool over the Model Context Protocol on stdin
and stdout, for agents that launch pastq as a subprocess.

Logs go to stderr so they never corrupt the protocol stream.

Agent configuration:
  {
    "mcpServers": {
      "pastq": {
        "command": "/path/to/pastq",
        "args": ["mcp", "--env", "prod"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx, a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	tool := mcpTransport.NewTool(a.retrieve, a.cfg.MCP.ToolName, a.logger)
	a.logger.Info("Serving MCP over stdio",
		zap.String("tool", tool.Name()),
		zap.String("version", version.Version),
	)
	return mcpTransport.ServeStdio(ctx, mcpTransport.NewServer(tool, version.Version), os.Stdin, os.Stdout)
}
