package annotator

import (
	"context"
	"encoding/json"
)

// Client is a minimal JSON-in/JSON-out language model client.
type Client interface {
	Name() string
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	Close() error
}
