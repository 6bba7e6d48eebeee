package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"tablestore/internal/domain"
)

func (s *Server) registerTrashTools() {
	s.addTool(mcp.NewTool("list_trash",
		mcp.WithDescription("List your deleted databases, rows and files, newest first"),
		userIDArg,
	), s.handleListTrash)

	s.addTool(mcp.NewTool("record_file_deletion",
		mcp.WithDescription("Record in your trash a file deleted from external storage, so it can be listed, restored or purged with the rest"),
		mcp.WithString("fileId", mcp.Description("ID of the file in its storage"), mcp.Required()),
		mcp.WithString("displayName", mcp.Description("Name shown in the trash")),
		mcp.WithString("location", mcp.Description("Where the file lived, e.g. a bucket key")),
		mcp.WithString("databaseId", mcp.Description("Database the file was attached to (optional)")),
		mcp.WithString("documentId", mcp.Description("Document the file was attached to (optional)")),
		userIDArg,
	), s.handleRecordFileDeletion)

	s.addTool(mcp.NewTool("restore_trash_item",
		mcp.WithDescription("Restore a trash item. A row can only be restored while its database is live."),
		mcp.WithString("trashItemId", mcp.Description("Trash item ID"), mcp.Required()),
		userIDArg,
	), s.handleRestoreTrashItem)

	s.addTool(mcp.NewTool("purge_expired_trash",
		mcp.WithDescription("🛑 DESTRUCTIVE: Permanently remove every trash item older than the retention window"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handlePurgeExpiredTrash)

	s.addTool(mcp.NewTool("get_snapshot",
		mcp.WithDescription("Return the state an entity had before the mutation that produced this snapshot token"),
		mcp.WithString("token", mcp.Description("Snapshot token"), mcp.Required()),
		userIDArg,
	), s.handleGetSnapshot)
}

func (s *Server) handleListTrash(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	items, err := s.trash.ListTrash(ctx, user)
	return s.result("list_trash", map[string]any{"items": items}, err)
}

func (s *Server) handleRecordFileDeletion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	fileID, err := requireString(args, "fileId")
	if err != nil {
		return errorResult(err), nil
	}
	name := getString(args, "displayName")
	if name == "" {
		name = fileID
	}
	item, err := s.trash.RecordFileDeletion(ctx, user, fileID, name, getString(args, "location"), domain.ParentInfo{
		DatabaseID: getString(args, "databaseId"),
		DocumentID: getString(args, "documentId"),
	})
	return s.result("record_file_deletion", item, err)
}

func (s *Server) handleRestoreTrashItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	id, err := requireString(args, "trashItemId")
	if err != nil {
		return errorResult(err), nil
	}
	item, err := s.trash.Restore(ctx, user, id)
	return s.result("restore_trash_item", map[string]any{"restored": item}, err)
}

func (s *Server) handlePurgeExpiredTrash(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.trash.PurgeExpired(ctx)
	return s.result("purge_expired_trash", report, err)
}

func (s *Server) handleGetSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := s.userID(args)
	if err != nil {
		return errorResult(err), nil
	}
	token, err := requireString(args, "token")
	if err != nil {
		return errorResult(err), nil
	}
	snap, err := s.snapshots.Restore(ctx, user, token)
	return s.result("get_snapshot", snap, err)
}
