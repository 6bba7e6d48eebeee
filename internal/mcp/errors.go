package mcpserver

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"tablestore/internal/domain"
	"tablestore/internal/service"
)

type errorBody struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// errorResult renders err as {"error":{"kind","message"}} with IsError set.
// Tool failures never surface as protocol errors.
func errorResult(err error) *mcp.CallToolResult {
	return errorResultWith(err, nil)
}

// errorResultWith is errorResult plus extra top-level fields, used when a
// failed mutation still produced snapshot tokens the caller needs.
func errorResultWith(err error, extra map[string]any) *mcp.CallToolResult {
	body := errorBody{Kind: domain.KindOf(err), Message: err.Error()}
	var de *domain.Error
	if errors.As(err, &de) {
		body.Message = de.Message
		if de.Err != nil {
			body.Message += ": " + de.Err.Error()
		}
	}
	if errors.Is(err, service.ErrPurgeRunning) {
		body.Kind = domain.KindConflict
	}
	payload := map[string]any{"error": body}
	for k, v := range extra {
		payload[k] = v
	}
	data, _ := json.Marshal(payload)
	res := textResult(string(data))
	res.IsError = true
	return res
}
