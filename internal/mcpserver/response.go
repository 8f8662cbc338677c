package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	scaerr "github.com/tryterra/static-analysis/internal/errors"
)

// jsonResponse wraps a result value as JSON text content.
func jsonResponse(data any) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
	}, nil
}

// errorResponse renders a failure as error-flagged textual content. Errors
// are reported inside the result, never as transport failures, so clients
// always receive a structured response.
func errorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	result, marshalErr := jsonResponse(map[string]any{
		"success":   false,
		"operation": operation,
		"errorType": string(scaerr.TypeOf(err)),
		"error":     err.Error(),
	})
	if marshalErr != nil {
		return nil, marshalErr
	}
	result.IsError = true
	return result, nil
}
