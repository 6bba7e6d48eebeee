package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"tablestore/internal/domain"
	"tablestore/internal/schema"
	"tablestore/internal/service"
)

var userIDArg = mcp.WithString("userId", mcp.Description("Caller identity (optional, defaults to the configured user)"))

func (s *Server) registerDatabaseTools() {
	s.addTool(mcp.NewTool("list_databases",
		mcp.WithDescription("List the databases you can access, optionally only those in a document or of one kind"),
		mcp.WithString("documentId", mcp.Description("Only databases embedded in this document")),
		mcp.WithString("kind", mcp.Description("task, event or generic"), mcp.Enum("task", "event", "generic")),
		userIDArg,
	), s.handleListDatabases)

	s.addTool(mcp.NewTool("create_database",
		mcp.WithDescription("Create a database. kind=task or event starts from a built-in schema with views; extra columns are appended."),
		mcp.WithString("name", mcp.Description("Database name"), mcp.Required()),
		mcp.WithString("kind", mcp.Description("task, event or generic (default generic)"), mcp.Enum("task", "event", "generic")),
		mcp.WithString("documentId", mcp.Description("Owning document (optional; standalone when omitted)")),
		mcp.WithString("columns", mcp.Description(`JSON array of columns: [{"name","type","options":{"choices":[{"label","color"}]}}]`)),
		userIDArg,
	), s.handleCreateDatabase)

	s.addTool(mcp.NewTool("delete_database",
		mcp.WithDescription("🛑 DESTRUCTIVE: Move a database and its rows to the trash. Requires confirm=true."),
		mcp.WithString("databaseId", mcp.Description("Database ID"), mcp.Required()),
		mcp.WithBoolean("confirm", mcp.Description("Must be true to delete")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
		userIDArg,
	), s.handleDeleteDatabase)

	s.addTool(mcp.NewTool("get_database_schema",
		mcp.WithDescription("Get a database's columns (with choice ids), views and pinned columns"),
		mcp.WithString("databaseId", mcp.Description("Database ID"), mcp.Required()),
		userIDArg,
	), s.handleGetDatabaseSchema)

	s.addTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a document you own; databases created in it are private to you"),
		mcp.WithString("title", mcp.Description("Document title"), mcp.Required()),
		userIDArg,
	), s.handleCreateDocument)
}

func (s *Server) handleListDatabases(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	dbs, err := s.schema.ListDatabases(ctx, user, getString(args, "documentId"), domain.DatabaseKind(getString(args, "kind")))
	if err != nil {
		return errorResult(err), nil
	}

	type databaseSummary struct {
		ID         string              `json:"id"`
		Name       string              `json:"name"`
		Kind       domain.DatabaseKind `json:"kind"`
		DocumentID string              `json:"documentId,omitempty"`
		Columns    int                 `json:"columnCount"`
	}
	out := make([]databaseSummary, 0, len(dbs))
	for _, d := range dbs {
		out = append(out, databaseSummary{
			ID: d.ID, Name: d.Name, Kind: d.Kind, DocumentID: d.OwnerDocumentID, Columns: len(d.Columns),
		})
	}
	return jsonResult(map[string]any{"databases": out})
}

func (s *Server) handleCreateDatabase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	in := service.CreateDatabaseInput{
		Name:       getString(args, "name"),
		Kind:       domain.DatabaseKind(getString(args, "kind")),
		DocumentID: getString(args, "documentId"),
	}
	var cols []schema.ColumnInput
	if _, err := parseJSON(args, "columns", &cols); err != nil {
		return errorResult(err), nil
	}
	in.Columns = cols

	db, err := s.schema.CreateDatabase(ctx, user, in)
	return s.result("create_database", db, err)
}

func (s *Server) handleDeleteDatabase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	id, err := requireString(args, "databaseId")
	if err != nil {
		return errorResult(err), nil
	}
	res, err := s.trash.DeleteDatabase(ctx, user, id, getBool(args, "confirm"))
	return s.result("delete_database", res, err)
}

func (s *Server) handleGetDatabaseSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	id, err := requireString(args, "databaseId")
	if err != nil {
		return errorResult(err), nil
	}
	db, err := s.schema.GetSchema(ctx, user, id)
	return s.result("get_database_schema", db, err)
}

func (s *Server) handleCreateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	doc, err := s.schema.CreateDocument(ctx, user, getString(args, "title"))
	return s.result("create_document", doc, err)
}
