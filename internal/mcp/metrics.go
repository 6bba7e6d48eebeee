package mcpserver

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	namespace = "tablestore"
	subsystem = "mcp"

	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	toolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool"},
	)
)

// instrument records call count and latency for a tool handler. A result
// with IsError set counts as an error outcome.
func instrument(tool string, next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res, err := next(ctx, req)
		toolCallDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())

		outcome := "ok"
		if err != nil || (res != nil && res.IsError) {
			outcome = "error"
		}
		toolCallsTotal.WithLabelValues(tool, outcome).Inc()
		return res, err
	}
}
