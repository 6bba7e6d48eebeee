package mcpserver

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Notifier forwards service change events to every connected MCP client
// as notifications. It is created before the server so services can be
// built first; events emitted before Attach are dropped.
type Notifier struct {
	srv atomic.Pointer[server.MCPServer]
	log *zap.Logger
}

// NewNotifier creates a detached Notifier.
func NewNotifier(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{log: logger}
}

// Attach starts delivering to srv.
func (n *Notifier) Attach(srv *server.MCPServer) {
	n.srv.Store(srv)
}

// Emit implements service.EventEmitter.
func (n *Notifier) Emit(_ context.Context, event string, data any) {
	srv := n.srv.Load()
	if srv == nil {
		return
	}
	params, err := toParams(data)
	if err != nil {
		n.log.Warn("cannot encode notification", zap.String("event", event), zap.Error(err))
		return
	}
	srv.SendNotificationToAllClients(event, params)
}

func toParams(data any) (map[string]any, error) {
	if data == nil {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var params map[string]any
	if err := json.Unmarshal(b, &params); err != nil {
		return map[string]any{"data": data}, nil
	}
	return params, nil
}
