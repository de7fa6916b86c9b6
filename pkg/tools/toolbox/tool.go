package toolbox

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler executes a tool with the given JSON input and returns a text result.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// Tool is an executable tool with a name, description, JSON Schema and handler.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

// DecodeInput unmarshals a tool's raw JSON input into T. An empty input
// decodes to the zero value.
func DecodeInput[T any](input json.RawMessage) (T, error) {
	var v T
	if len(input) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(input, &v); err != nil {
		return v, fmt.Errorf("invalid input: %w", err)
	}
	return v, nil
}
