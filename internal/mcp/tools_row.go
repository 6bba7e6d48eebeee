package mcpserver

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"tablestore/internal/domain"
	"tablestore/internal/service"
)

func (s *Server) registerRowTools() {
	s.addTool(mcp.NewTool("get_database_rows",
		mcp.WithDescription("Page through a database's rows. Cells are keyed by column name; _id, _order and _version are row metadata."),
		mcp.WithString("databaseId", mcp.Description("Database ID"), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Rows per page, 1-100 (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Rows to skip (default 0)")),
		mcp.WithString("sortBy", mcp.Description("order, createdAt or updatedAt (default order)"), mcp.Enum("order", "createdAt", "updatedAt")),
		mcp.WithString("sortOrder", mcp.Description("asc or desc (default asc)"), mcp.Enum("asc", "desc")),
		userIDArg,
	), s.handleGetDatabaseRows)

	s.addTool(mcp.NewTool("add_database_row",
		mcp.WithDescription("Append a row. Cells are keyed by column name; select values are choice ids. Unknown names are ignored."),
		mcp.WithString("databaseId", mcp.Description("Database ID"), mcp.Required()),
		mcp.WithString("cells", mcp.Description(`JSON object {"Column Name": value, ...}`), mcp.Required()),
		userIDArg,
	), s.handleAddDatabaseRow)

	s.addTool(mcp.NewTool("update_database_row",
		mcp.WithDescription("Update some cells of a row; others keep their values. Returns a snapshot token of the prior row."),
		mcp.WithString("databaseId", mcp.Description("Database ID"), mcp.Required()),
		mcp.WithString("rowId", mcp.Description("Row ID (_id)"), mcp.Required()),
		mcp.WithString("cells", mcp.Description(`JSON object {"Column Name": value, ...}`), mcp.Required()),
		mcp.WithNumber("expectedVersion", mcp.Description("Only update if the row is still at this _version")),
		userIDArg,
	), s.handleUpdateDatabaseRow)

	s.addTool(mcp.NewTool("delete_database_rows",
		mcp.WithDescription("🛑 DESTRUCTIVE: Move rows to the trash. Returns a snapshot token per row."),
		mcp.WithString("databaseId", mcp.Description("Database ID"), mcp.Required()),
		mcp.WithString("rowIds", mcp.Description(`JSON array of row IDs, or a comma-separated list`), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
		userIDArg,
	), s.handleDeleteDatabaseRows)
}

func (s *Server) handleGetDatabaseRows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	dbID, err := requireString(args, "databaseId")
	if err != nil {
		return errorResult(err), nil
	}
	order := strings.ToLower(getString(args, "sortOrder"))
	if order != "" && order != "asc" && order != "desc" {
		return errorResult(domain.Validation("sortOrder must be asc or desc")), nil
	}
	page, err := s.rows.GetRows(ctx, user, dbID, service.RowsQuery{
		Limit:      getInt(args, "limit", 0),
		Offset:     getInt(args, "offset", 0),
		SortBy:     domain.RowSortField(getString(args, "sortBy")),
		Descending: order == "desc",
	})
	return s.result("get_database_rows", page, err)
}

func (s *Server) handleAddDatabaseRow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	dbID, err := requireString(args, "databaseId")
	if err != nil {
		return errorResult(err), nil
	}
	cells := map[string]any{}
	if _, err := parseJSON(args, "cells", &cells); err != nil {
		return errorResult(err), nil
	}
	row, err := s.rows.AddRow(ctx, user, dbID, cells)
	return s.result("add_database_row", row, err)
}

func (s *Server) handleUpdateDatabaseRow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	dbID, err := requireString(args, "databaseId")
	if err != nil {
		return errorResult(err), nil
	}
	rowID, err := requireString(args, "rowId")
	if err != nil {
		return errorResult(err), nil
	}
	var cells map[string]any
	ok, err := parseJSON(args, "cells", &cells)
	if err != nil {
		return errorResult(err), nil
	}
	if !ok {
		return errorResult(domain.Validation("cells is required")), nil
	}
	res, err := s.rows.UpdateRow(ctx, user, dbID, rowID, cells, int64(getInt(args, "expectedVersion", 0)))
	if err != nil && res != nil && res.SnapshotToken != "" {
		s.log.Debug("tool failed", zap.String("tool", "update_database_row"), zap.Error(err))
		return errorResultWith(err, map[string]any{"snapshotToken": res.SnapshotToken}), nil
	}
	return s.result("update_database_row", res, err)
}

func (s *Server) handleDeleteDatabaseRows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	dbID, err := requireString(args, "databaseId")
	if err != nil {
		return errorResult(err), nil
	}
	ids, err := rowIDs(args)
	if err != nil {
		return errorResult(err), nil
	}
	deleted, err := s.trash.DeleteRows(ctx, user, dbID, ids)
	if err != nil && len(deleted) > 0 {
		s.log.Debug("tool failed", zap.String("tool", "delete_database_rows"), zap.Error(err))
		return errorResultWith(err, map[string]any{"deleted": deleted}), nil
	}
	return s.result("delete_database_rows", map[string]any{"deleted": deleted}, err)
}

// rowIDs accepts a JSON array or a comma-separated string.
func rowIDs(args map[string]any) ([]string, error) {
	if raw, ok := args["rowIds"].(string); ok && !strings.HasPrefix(strings.TrimSpace(raw), "[") {
		var ids []string
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		return ids, nil
	}
	var ids []string
	if _, err := parseJSON(args, "rowIds", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
