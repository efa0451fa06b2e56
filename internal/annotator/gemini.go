package annotator

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strconv"

	genai "google.golang.org/genai"
)

var ErrInvalidJSON = errors.New("annotator: invalid JSON from model")

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli   *genai.Client
	model string
	rl    *rpsLimiter
}

func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	// Optional RPS limiter via env: ANNOTATE_RPS/GEMINI_RPS and
	// ANNOTATE_BURST/GEMINI_BURST.
	var rps float64
	var burst int
	for _, key := range []string{"ANNOTATE_RPS", "GEMINI_RPS"} {
		if rps != 0 {
			break
		}
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				rps = f
			}
		}
	}
	for _, key := range []string{"ANNOTATE_BURST", "GEMINI_BURST"} {
		if burst != 0 {
			break
		}
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				burst = n
			}
		}
	}
	return &GeminiClient{cli: cli, model: model, rl: newRPSLimiter(rps, burst)}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error {
	g.rl.Stop()
	return nil
}

// GenerateJSON sends the concatenated prompt/input and requests application/json.
func (g *GeminiClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	task := TaskFrom(ctx)
	if hook := HookFrom(ctx); hook != nil {
		hook.Before(ctx, task, prompt, input)
	}

	in, _ := json.MarshalIndent(input, "", "  ")
	full := prompt + "\n\n[INPUT JSON]\n" + string(in)
	log.Printf("annotate request (%s): %d bytes", task, len(full))

	if err := g.rl.Acquire(ctx); err != nil {
		return nil, err
	}
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err == nil && (len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0) {
		err = ErrInvalidJSON
	}
	if err != nil {
		if hook := HookFrom(ctx); hook != nil {
			hook.After(ctx, task, nil, err)
		}
		return nil, err
	}
	raw := json.RawMessage(resp.Candidates[0].Content.Parts[0].Text)
	if hook := HookFrom(ctx); hook != nil {
		hook.After(ctx, task, raw, nil)
	}
	return raw, nil
}
