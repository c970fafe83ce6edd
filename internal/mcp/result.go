package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// sendArguments are the send_to_worker tool arguments.
type sendArguments struct {
	Payload   json.RawMessage `json:"payload"`
	TimeoutMS *float64        `json:"timeout_ms"`
}

// decodeSendArguments returns the payload to forward and the requested
// timeout. A zero timeout means the bridge default.
func decodeSendArguments(req *mcp.CallToolRequest) (any, time.Duration, error) {
	var args sendArguments

	if req != nil && req.Params != nil && len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return nil, 0, fmt.Errorf("decode arguments: %w", err)
		}
	}

	if len(args.Payload) == 0 || bytes.Equal(args.Payload, []byte("null")) {
		return nil, 0, fmt.Errorf("missing required argument: payload")
	}

	var payload any
	if err := json.Unmarshal(args.Payload, &payload); err != nil {
		return nil, 0, fmt.Errorf("decode payload: %w", err)
	}

	var timeout time.Duration

	if args.TimeoutMS != nil {
		if *args.TimeoutMS < 0 {
			return nil, 0, fmt.Errorf("timeout_ms must be non-negative, got %v", *args.TimeoutMS)
		}

		timeout = time.Duration(*args.TimeoutMS * float64(time.Millisecond))
	}

	return payload, timeout, nil
}

// rawResult wraps a worker response line as text content.
func rawResult(raw json.RawMessage) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}
}

// jsonResult marshals v into text content.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return rawResult(data), nil
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}
