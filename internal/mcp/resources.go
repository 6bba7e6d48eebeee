package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	databasesURI      = "tablestore://databases"
	databaseURIPrefix = "tablestore://database/"
	schemaURISuffix   = "/schema"
)

func (s *Server) registerResources() {
	// ── tablestore://databases ─────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		databasesURI,
		"Accessible Databases",
		mcp.WithMIMEType("application/json"),
	), s.handleDatabasesResource)

	// ── tablestore://database/{databaseId}/schema ──────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			databaseURIPrefix+"{databaseId}"+schemaURISuffix,
			"Database Schema",
		),
		s.handleSchemaResource,
	)
}

// Resources carry no arguments, so they are read as the configured user.
func (s *Server) handleDatabasesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	user, err := s.userID(nil)
	if err != nil {
		return nil, err
	}
	dbs, err := s.schema.ListDatabases(ctx, user, "", "")
	if err != nil {
		return nil, err
	}

	type databaseSummary struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	summaries := make([]databaseSummary, 0, len(dbs))
	for _, d := range dbs {
		summaries = append(summaries, databaseSummary{ID: d.ID, Name: d.Name, Kind: string(d.Kind)})
	}
	return jsonContents(databasesURI, summaries)
}

func (s *Server) handleSchemaResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	id := databaseIDFromURI(uri)
	if id == "" {
		return nil, fmt.Errorf("could not extract databaseId from URI: %s", uri)
	}
	user, err := s.userID(nil)
	if err != nil {
		return nil, err
	}
	db, err := s.schema.GetSchema(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return jsonContents(uri, db)
}

// databaseIDFromURI extracts the id from "tablestore://database/{id}/schema".
func databaseIDFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, databaseURIPrefix)
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, schemaURISuffix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
