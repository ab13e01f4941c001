// Package mcpserver exposes batch transcription as MCP tools over stdio.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"tube-transcriber/internal/batch"
	"tube-transcriber/internal/domain"
	"tube-transcriber/internal/service"
)

// BatchService is the part of service.Service the tools call.
type BatchService interface {
	Settings() domain.Settings
	DefaultOptions() domain.BatchOptions
	RunBatch(ctx context.Context, req service.Request, progress batch.ProgressSink) (service.Result, error)
}

// Server wraps the MCP server and its tool dependencies.
type Server struct {
	mcp    *mcp.Server
	svc    BatchService
	logger *slog.Logger
}

// New creates the server and registers every tool.
func New(version string, svc BatchService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	impl := &mcp.Implementation{
		Name:    "tube-transcriber",
		Version: version,
	}
	s := &Server{
		mcp:    mcp.NewServer(impl, nil),
		svc:    svc,
		logger: logger,
	}
	s.register()
	return s
}

// Run serves on stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", "stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying server, for custom transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) register() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "extract_urls",
		Description: "Extract and validate YouTube video URLs from free-form text, in input order",
	}, s.handleExtract)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "transcribe_batch",
		Description: "Download and transcribe YouTube videos with a local whisper.cpp model and write transcript files",
	}, s.handleTranscribe)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_models",
		Description: "List whisper.cpp model presets and whether each is downloaded",
	}, s.handleListModels)
}
