package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"second-brain/internal/pkg/logger"
	"second-brain/internal/service"
	"second-brain/pkg/events"
	"second-brain/pkg/rag/retriever"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	ServerName    = "Second Brain Journal"
	ServerVersion = "1.0.0"
)

// Server exposes journal retrieval to MCP clients over stdio.
type Server struct {
	contextService service.IContextService
	logger         logger.ILogger
	mcpServer      *server.MCPServer
}

// NewServer registers the journal tools. log must not write to stdout, which
// carries the protocol.
func NewServer(contextService service.IContextService, log logger.ILogger) *Server {
	s := &Server{
		contextService: contextService,
		logger:         log,
	}

	s.mcpServer = server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "search_journal",
		Description: "Search the personal journal and return matching excerpts, one per paragraph, formatted as 'date: title - content'. Full-text matches come before semantic matches.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Free-text question or keywords to look up in the journal",
				},
				"format": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"text", "json"},
					"description": "text (default) returns the excerpts; json returns rows and per-strategy failures",
				},
			},
			Required: []string{"query"},
		},
	}, s.handleSearchJournal)
}

func parseParams(args interface{}, target interface{}) error {
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func (s *Server) handleSearchJournal(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params struct {
		Query  string `json:"query"`
		Format string `json:"format"`
	}
	if err := parseParams(request.Params.Arguments, &params); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	if params.Format == "json" {
		res, err := s.contextService.GetContext(ctx, params.Query)
		if err != nil {
			return s.toolError(params.Query, err), nil
		}
		out, _ := json.Marshal(res)
		return mcp.NewToolResultText(string(out)), nil
	}

	block, _, err := s.contextService.Retrieve(ctx, params.Query)
	if err != nil {
		return s.toolError(params.Query, err), nil
	}
	return mcp.NewToolResultText(block.PromptContext()), nil
}

func (s *Server) toolError(query string, err error) *mcp.CallToolResult {
	s.logger.Warn("MCP", "search_journal failed", map[string]interface{}{
		"error":      err.Error(),
		"query_hash": events.QueryHash(query),
	})
	switch {
	case errors.Is(err, retriever.ErrEmptyQuery):
		return mcp.NewToolResultError("query must not be empty")
	case errors.Is(err, retriever.ErrConnection):
		return mcp.NewToolResultError("journal database is unreachable: " + err.Error())
	default:
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err))
	}
}

func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// GetMCPServer returns the underlying MCP server for use with other transports.
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
