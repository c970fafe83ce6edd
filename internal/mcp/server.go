package mcp

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/workerbridge/internal/bridge"
	"github.com/wagiedev/workerbridge/internal/metrics"
	"github.com/wagiedev/workerbridge/internal/supervisor"
)

// Tool names registered by NewServer.
const (
	SendToolName   = "send_to_worker"
	StatusToolName = "worker_status"
)

// Sender is the part of a bridge the tool server needs.
type Sender interface {
	SendWithTimeout(ctx context.Context, payload any, timeout time.Duration) (*bridge.Response, error)
	State() supervisor.State
	Pending() int
}

// NewServer creates an MCP server whose tools forward to sender.
func NewServer(sender Sender, log *slog.Logger, version string) *mcp.Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	h := &handlers{sender: sender, log: log.With("component", "mcp")}

	server := mcp.NewServer(&mcp.Implementation{Name: "workerbridge", Version: version}, nil)

	server.AddTool(&mcp.Tool{
		Name:        SendToolName,
		Description: "Send a JSON payload to the worker process and return its JSON response.",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"payload"},
			Properties: map[string]*jsonschema.Schema{
				"payload": {
					Description: "JSON value written to the worker as one line.",
				},
				"timeout_ms": {
					Type:        "integer",
					Description: "Per-request timeout in milliseconds. Defaults to the bridge timeout.",
				},
			},
		},
	}, h.send)

	server.AddTool(&mcp.Tool{
		Name:        StatusToolName,
		Description: "Report the worker lifecycle state and the number of pending requests.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, h.status)

	return server
}

// Serve runs server over stdio until ctx is done or the client disconnects.
func Serve(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

type handlers struct {
	sender Sender
	log    *slog.Logger
}

func (h *handlers) send(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload, timeout, err := decodeSendArguments(req)
	if err != nil {
		//nolint:nilerr // Tool failures are encoded in the result
		return errorResult("%v", err), nil
	}

	resp, err := h.sender.SendWithTimeout(ctx, payload, timeout)
	if err != nil {
		h.log.Debug("Worker request failed", "error", err)

		//nolint:nilerr // Tool failures are encoded in the result
		return errorResult("%s: %v", metrics.Outcome(err), err), nil
	}

	return rawResult(resp.Raw), nil
}

// statusResult is the worker_status tool output.
type statusResult struct {
	State   string `json:"state"`
	Pending int    `json:"pending"`
}

func (h *handlers) status(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(statusResult{
		State:   h.sender.State().String(),
		Pending: h.sender.Pending(),
	})
}
