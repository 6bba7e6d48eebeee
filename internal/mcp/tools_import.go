package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerImportTools() {
	s.addTool(mcp.NewTool("import_csv",
		mcp.WithDescription("Append rows from CSV text. The header row must use column names; values are taken as-is."),
		mcp.WithString("databaseId", mcp.Description("Database ID"), mcp.Required()),
		mcp.WithString("csvText", mcp.Description("CSV text including a header row"), mcp.Required()),
		mcp.WithBoolean("skipUnknownColumns", mcp.Description("Ignore headers that match no column instead of failing")),
		userIDArg,
	), s.handleImportCSV)

	s.addTool(mcp.NewTool("watch_csv",
		mcp.WithDescription("Re-import a CSV file into a database every time it is written"),
		mcp.WithString("databaseId", mcp.Description("Database ID"), mcp.Required()),
		mcp.WithString("path", mcp.Description("Path of the CSV file on the server"), mcp.Required()),
		mcp.WithBoolean("skipUnknownColumns", mcp.Description("Ignore headers that match no column")),
		userIDArg,
	), s.handleWatchCSV)

	s.addTool(mcp.NewTool("unwatch_csv",
		mcp.WithDescription("Stop watching a CSV file"),
		mcp.WithString("path", mcp.Description("Path given to watch_csv"), mcp.Required()),
		userIDArg,
	), s.handleUnwatchCSV)
}

func (s *Server) handleImportCSV(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	dbID, err := requireString(args, "databaseId")
	if err != nil {
		return errorResult(err), nil
	}
	csvText, _ := args["csvText"].(string)
	res, err := s.imports.ImportCSV(ctx, user, dbID, csvText, getBool(args, "skipUnknownColumns"))
	return s.result("import_csv", res, err)
}

func (s *Server) handleWatchCSV(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	dbID, err := requireString(args, "databaseId")
	if err != nil {
		return errorResult(err), nil
	}
	path, err := requireString(args, "path")
	if err != nil {
		return errorResult(err), nil
	}
	w, err := s.watcher.Watch(ctx, user, dbID, path, getBool(args, "skipUnknownColumns"))
	return s.result("watch_csv", w, err)
}

func (s *Server) handleUnwatchCSV(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	path, err := requireString(args, "path")
	if err != nil {
		return errorResult(err), nil
	}
	if err := s.watcher.Unwatch(user, path); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"path": path, "watching": false})
}
