// Package annotator implements the engine's annotation capability on top of
// a language-model client with pluggable middleware.
package annotator

import (
	"context"

	"annotify/internal/engine"
)

// Annotator adapts a Client to the engine's capability interface: it builds
// the task prompt, runs the call, and parses the structured response.
type Annotator struct {
	client Client
}

func New(client Client) *Annotator {
	return &Annotator{client: client}
}

func (a *Annotator) Annotate(ctx context.Context, req engine.AnnotateRequest) (*engine.Annotation, error) {
	ctx = WithTask(ctx, string(req.Task))
	raw, err := a.client.GenerateJSON(ctx, promptFor(req), inputFor(req))
	if err != nil {
		return nil, err
	}
	return parseAnnotation(req, raw)
}

// Close releases the underlying client.
func (a *Annotator) Close() error {
	if a == nil || a.client == nil {
		return nil
	}
	return a.client.Close()
}
