package annotator

import (
	"context"
	"encoding/json"
)

// PromptHook observes prompts and raw model responses.
type PromptHook interface {
	Before(ctx context.Context, task, prompt string, input any)
	After(ctx context.Context, task string, raw json.RawMessage, err error)
}

type ctxKeyHook struct{}
type ctxKeyTask struct{}

// WithHook attaches a PromptHook to every GenerateJSON call on base.
func WithHook(base Client, hook PromptHook) Client {
	return &hooked{base: base, hook: hook}
}

type hooked struct {
	base Client
	hook PromptHook
}

func (h *hooked) Name() string { return h.base.Name() }
func (h *hooked) Close() error { return h.base.Close() }

func (h *hooked) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	ctx = context.WithValue(ctx, ctxKeyHook{}, h.hook)
	return h.base.GenerateJSON(ctx, prompt, input)
}

// WithTask stores the task discriminator used by clients and hooks.
func WithTask(ctx context.Context, task string) context.Context {
	return context.WithValue(ctx, ctxKeyTask{}, task)
}

// HookFrom returns the hook stored in the context.
func HookFrom(ctx context.Context) PromptHook {
	if v := ctx.Value(ctxKeyHook{}); v != nil {
		if h, ok := v.(PromptHook); ok {
			return h
		}
	}
	return nil
}

// TaskFrom returns the task string stored in the context.
func TaskFrom(ctx context.Context) string {
	if v := ctx.Value(ctxKeyTask{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "unknown"
}
