package mcp

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/mark3labs/mcp-go/server"
)

// ServerName identifies this server during the MCP handshake.
const ServerName = "pastq"

// NewServer builds an MCP server exposing the tool.
func NewServer(tool *Tool, version string) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Past exam question bank. Call "+tool.Name()+
			" with the user's question to get matching past questions."),
	)
	s.AddTool(tool.Definition(), tool.Handle)
	return s
}

// ServeStdio serves the MCP protocol over stdin and stdout until ctx ends.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	if err := server.NewStdioServer(s).Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve stdio: %w", err)
	}
	return nil
}

// NewHTTPHandler returns a stateless streamable HTTP handler mounted at path.
func NewHTTPHandler(s *server.MCPServer, path string) http.Handler {
	return server.NewStreamableHTTPServer(s,
		server.WithEndpointPath(path),
		server.WithStateLess(true),
	)
}
