package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"tablestore/internal/domain"
	"tablestore/internal/schema"
	"tablestore/internal/service"
)

func (s *Server) registerColumnTools() {
	s.addTool(mcp.NewTool("add_column",
		mcp.WithDescription("Add a column to a database. Select choices get ids derived from their labels (\"In Progress\" → in_progress)."),
		mcp.WithString("databaseId", mcp.Description("Database ID"), mcp.Required()),
		mcp.WithString("name", mcp.Description("Column name, unique within the database"), mcp.Required()),
		mcp.WithString("type", mcp.Description("text, number, select, multi-select, date, checkbox, url, email, phone, person, relation, formula, ..."), mcp.Required()),
		mcp.WithString("options", mcp.Description(`JSON options: {"choices":[{"label","color"}],"dateFormat","numberFormat","relationDatabaseId","formula"}`)),
		mcp.WithBoolean("required", mcp.Description("Rows must supply a value")),
		userIDArg,
	), s.handleAddColumn)

	s.addTool(mcp.NewTool("update_column",
		mcp.WithDescription("Rename or reconfigure a column. The type cannot change; new options replace the old ones."),
		mcp.WithString("databaseId", mcp.Description("Database ID"), mcp.Required()),
		mcp.WithString("columnId", mcp.Description("Column ID"), mcp.Required()),
		mcp.WithString("name", mcp.Description("New name")),
		mcp.WithBoolean("visible", mcp.Description("Show the column in views")),
		mcp.WithBoolean("required", mcp.Description("Rows must supply a value")),
		mcp.WithNumber("width", mcp.Description("Display width in pixels")),
		mcp.WithString("color", mcp.Description("Header color")),
		mcp.WithString("options", mcp.Description("JSON options, same shape as add_column")),
		userIDArg,
	), s.handleUpdateColumn)

	s.addTool(mcp.NewTool("delete_column",
		mcp.WithDescription("🛑 DESTRUCTIVE: Remove a column. Stored values become unreachable; the schema is snapshotted first."),
		mcp.WithString("databaseId", mcp.Description("Database ID"), mcp.Required()),
		mcp.WithString("columnId", mcp.Description("Column ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
		userIDArg,
	), s.handleDeleteColumn)
}

func (s *Server) handleAddColumn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	dbID, err := requireString(args, "databaseId")
	if err != nil {
		return errorResult(err), nil
	}
	in := schema.ColumnInput{
		Name:     getString(args, "name"),
		Type:     domain.ColumnType(getString(args, "type")),
		Required: getBool(args, "required"),
	}
	var opts schema.OptionsInput
	ok, err := parseJSON(args, "options", &opts)
	if err != nil {
		return errorResult(err), nil
	}
	if ok {
		in.Options = &opts
	}

	ch, err := s.schema.AddColumn(ctx, user, dbID, in)
	return s.result("add_column", ch, err)
}

func (s *Server) handleUpdateColumn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	dbID, err := requireString(args, "databaseId")
	if err != nil {
		return errorResult(err), nil
	}
	colID, err := requireString(args, "columnId")
	if err != nil {
		return errorResult(err), nil
	}

	ch := service.ColumnChange{
		Name:  strPtr(args, "name"),
		Color: strPtr(args, "color"),
	}
	if ch.Visible, err = optBool(args, "visible"); err != nil {
		return errorResult(err), nil
	}
	if ch.Required, err = optBool(args, "required"); err != nil {
		return errorResult(err), nil
	}
	if _, ok := args["width"]; ok {
		w := getInt(args, "width", 0)
		ch.Width = &w
	}
	var opts schema.OptionsInput
	ok, err := parseJSON(args, "options", &opts)
	if err != nil {
		return errorResult(err), nil
	}
	if ok {
		ch.Options = &opts
	}

	res, err := s.schema.UpdateColumn(ctx, user, dbID, colID, ch)
	return s.result("update_column", res, err)
}

func (s *Server) handleDeleteColumn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	dbID, err := requireString(args, "databaseId")
	if err != nil {
		return errorResult(err), nil
	}
	colID, err := requireString(args, "columnId")
	if err != nil {
		return errorResult(err), nil
	}
	res, err := s.schema.DeleteColumn(ctx, user, dbID, colID)
	return s.result("delete_column", res, err)
}
