package annotator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"annotify/internal/annotator/scenarios"
)

// ScriptedClient replays a scenario's responses in order. Each call consumes
// the next response; a task (or artifact) mismatch and script exhaustion are
// errors so drifting conversations fail loudly.
type ScriptedClient struct {
	mu       sync.Mutex
	scenario *scenarios.Scenario
	pos      int
}

func NewScriptedClient(s *scenarios.Scenario) *ScriptedClient {
	return &ScriptedClient{scenario: s}
}

func (c *ScriptedClient) Name() string { return "Scripted:" + c.scenario.Name }
func (c *ScriptedClient) Close() error { return nil }

func (c *ScriptedClient) GenerateJSON(ctx context.Context, _ string, input any) (json.RawMessage, error) {
	in, _ := input.(callInput)
	task := TaskFrom(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pos >= len(c.scenario.Responses) {
		return nil, fmt.Errorf("scenario %q exhausted after %d responses", c.scenario.Name, c.pos)
	}
	resp := c.scenario.Responses[c.pos]
	if resp.Task != task {
		return nil, fmt.Errorf("scenario %q response %d scripted for task %q, got %q",
			c.scenario.Name, c.pos, resp.Task, task)
	}
	if resp.Artifact != "" && resp.Artifact != in.Artifact {
		return nil, fmt.Errorf("scenario %q response %d scripted for artifact %q, got %q",
			c.scenario.Name, c.pos, resp.Artifact, in.Artifact)
	}
	c.pos++

	if resp.Fail != "" {
		return nil, errors.New(resp.Fail)
	}
	env := annotationEnvelope{Purpose: resp.Purpose, Fields: map[string]fieldSpec{}}
	for name, f := range resp.Fields {
		env.Fields[name] = fieldSpec{Type: f.Type, Role: f.Role}
	}
	b, _ := json.Marshal(env)
	return json.RawMessage(b), nil
}
