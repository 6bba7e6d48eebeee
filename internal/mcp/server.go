package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tablestore/internal/domain"
	"tablestore/internal/service"
)

// Version is reported to MCP clients during initialization.
const Version = "1.0.0"

// Server is the MCP server for the table store.
// It exposes tools and resources so agents can manage databases, rows and
// the trash.
type Server struct {
	mcp *server.MCPServer
	log *zap.Logger

	// Services (injected from main)
	schema    *service.SchemaService
	rows      *service.RowService
	trash     *service.TrashService
	imports   *service.ImportService
	snapshots *service.SnapshotService
	watcher   *service.CSVWatcher

	// Identity used when a tool call omits userId.
	defaultUser string
}

// Deps holds everything main passes to the MCP server.
type Deps struct {
	Services    *service.Services
	Watcher     *service.CSVWatcher
	Notifier    *Notifier
	DefaultUser string
	Logger      *zap.Logger
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher := deps.Watcher
	if watcher == nil {
		watcher = service.NewCSVWatcher(deps.Services.Import, logger)
	}
	s := &Server{
		log:         logger.Named("mcp"),
		schema:      deps.Services.Schema,
		rows:        deps.Services.Rows,
		trash:       deps.Services.Trash,
		imports:     deps.Services.Import,
		snapshots:   deps.Services.Snapshots,
		watcher:     watcher,
		defaultUser: deps.DefaultUser,
	}

	s.mcp = server.NewMCPServer(
		"tablestore",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
	)
	if deps.Notifier != nil {
		deps.Notifier.Attach(s.mcp)
	}

	s.registerDatabaseTools()
	s.registerColumnTools()
	s.registerRowTools()
	s.registerImportTools()
	s.registerTrashTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// MCP returns the underlying mcp-go server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio serves MCP on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	s.log.Info("starting stdio server")
	return server.ServeStdio(s.mcp)
}

// HTTPHandler serves streamable HTTP MCP on /mcp and prometheus metrics on
// /metrics.
func (s *Server) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(s.mcp))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Close stops CSV file watches.
func (s *Server) Close(ctx context.Context) error {
	return s.watcher.Close(ctx)
}

// ── Helpers ────────────────────────────────────────────────

// addTool registers handler under the tool's name with metrics attached.
func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, instrument(tool.Name, handler))
}

// userID resolves the caller identity from args or the configured default.
func (s *Server) userID(args map[string]any) (string, error) {
	if u := getString(args, "userId"); u != "" {
		return u, nil
	}
	if s.defaultUser != "" {
		return s.defaultUser, nil
	}
	return "", domain.AccessDenied("no userId supplied and no default user configured")
}

// result turns a service return into a tool result. Errors become
// structured error payloads.
func (s *Server) result(tool string, v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		s.log.Debug("tool failed", zap.String("tool", tool), zap.Error(err))
		return errorResult(err), nil
	}
	return jsonResult(v)
}

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}
