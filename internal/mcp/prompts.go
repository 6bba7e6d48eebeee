package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("track_tasks",
		mcp.WithPromptDescription("Set up a task database and board for a project"),
		mcp.WithArgument("project",
			mcp.ArgumentDescription("Project name"),
			mcp.RequiredArgument(),
		),
	), s.handleTrackTasksPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("load_csv",
		mcp.WithPromptDescription("Design a database that matches a CSV file and import it"),
		mcp.WithArgument("description",
			mcp.ArgumentDescription("What the CSV contains"),
			mcp.RequiredArgument(),
		),
	), s.handleLoadCSVPrompt)
}

func (s *Server) handleTrackTasksPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	project := req.Params.Arguments["project"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Track tasks for: %s", project),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Set up task tracking for "%s". Follow these steps:

1. Use create_document to create a document titled "%s"
2. Use create_database with kind "task" and that documentId
3. Call get_database_schema and note the choice ids of Status and Priority
4. Add a few starter rows with add_database_row, using choice ids (e.g. "todo"), not labels

The Board view groups rows by Status.`, project, project),
				},
			},
		},
	}, nil
}

func (s *Server) handleLoadCSVPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	description := req.Params.Arguments["description"]
	return &mcp.GetPromptResult{
		Description: "Load a CSV into a new database",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Load this data: %s. Follow these steps:

1. Look at the CSV header and pick a column type for each field
2. Use create_database with a columns array whose names match the headers exactly
3. For select columns, list the distinct values as choices; cells must hold the derived ids
4. Run import_csv with skipUnknownColumns=false so a header mismatch fails without writing anything
5. Check the result with get_database_rows`, description),
				},
			},
		},
	}, nil
}
