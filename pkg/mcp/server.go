// Package mcp exposes the flow editor as MCP tools over stdio.
package mcp

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/flowedit/internal/editor"
	"github.com/rendis/flowedit/internal/query"
	"github.com/rendis/flowedit/internal/store"
	"github.com/rendis/flowedit/internal/validation"
)

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	Editor  *editor.Editor                  // nil = an editor with an empty catalog
	Store   store.Store                     // nil = flow.save and flow.open by id are unavailable
	Schemas *validation.JSONSchemaValidator // nil = documents are not schema-checked on open
	Query   *query.Engine                   // nil = query.NewEngine()
	Logger  *slog.Logger
	Version string
}

// Server wraps an MCP server with flow editor tool handlers.
type Server struct {
	// mu serializes every tool call touching the editor.
	mu     sync.Mutex
	editor *editor.Editor

	store     store.Store
	schemas   *validation.JSONSchemaValidator
	query     *query.Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new Server with every editor tool registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	ed := deps.Editor
	if ed == nil {
		ed = editor.New(editor.Config{Logger: logger})
	}
	q := deps.Query
	if q == nil {
		q = query.NewEngine()
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		editor:  ed,
		store:   deps.Store,
		schemas: deps.Schemas,
		query:   q,
		logger:  logger,
	}

	mcpSrv := server.NewMCPServer(
		"flowedit",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("flowedit edits one flow at a time. Open a flow with flow.open, insert catalog tasks with flow.add_task (use the placeholder ids returned by flow.layout to pick a position), edit them with flow.update_task and flow.delete_task, manage variables with flow.save_variable and flow.delete_variable, inspect with flow.document, flow.errors and flow.query, and persist with flow.save."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: openTool(), Handler: s.handleOpen},
		{Tool: layoutTool(), Handler: s.handleLayout},
		{Tool: addTaskTool(), Handler: s.handleAddTask},
		{Tool: updateTaskTool(), Handler: s.handleUpdateTask},
		{Tool: deleteTaskTool(), Handler: s.handleDeleteTask},
		{Tool: saveVariableTool(), Handler: s.handleSaveVariable},
		{Tool: deleteVariableTool(), Handler: s.handleDeleteVariable},
		{Tool: documentTool(), Handler: s.handleDocument},
		{Tool: errorsTool(), Handler: s.handleErrors},
		{Tool: queryTool(), Handler: s.handleQuery},
		{Tool: saveTool(), Handler: s.handleSave},
	}
}
