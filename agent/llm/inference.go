// Package llm adapts the chat model behind the Inference contract and maps
// stage names onto model/temperature overrides.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/albayt/ordering-agent/agent/contract"
)

type client struct {
	base einomodel.ToolCallingChatModel
}

// NewClient wraps a tool-calling chat model as an Inference collaborator.
func NewClient(base einomodel.ToolCallingChatModel) contractx.Inference {
	return &client{base: base}
}

// NewForStage builds one Inference client per stage from the shared config.
func NewForStage(ctx context.Context, cfg Config, stage contractx.Stage) (contractx.Inference, error) {
	rc := cfg.OpenRouterFor(stage)
	base, err := rc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: build model for stage=%s: %v", contractx.ErrInferenceUnavailable, stage, err)
	}
	return NewClient(base), nil
}

func (c *client) Complete(ctx context.Context, req contractx.InferenceRequest) (contractx.InferenceResponse, error) {
	m := c.base
	if len(req.Tools) > 0 {
		bound, err := c.base.WithTools(req.Tools)
		if err != nil {
			return contractx.InferenceResponse{}, fmt.Errorf("%w: bind tools: %v", contractx.ErrInferenceUnavailable, err)
		}
		m = bound
	}

	msgs := make([]*schema.Message, 0, len(req.Input)+1)
	if strings.TrimSpace(req.Instructions) != "" {
		msgs = append(msgs, schema.SystemMessage(req.Instructions))
	}
	msgs = append(msgs, req.Input...)

	out, err := m.Generate(ctx, msgs)
	if err != nil {
		return contractx.InferenceResponse{}, fmt.Errorf("%w: %v", contractx.ErrInferenceUnavailable, err)
	}

	resp := contractx.InferenceResponse{Text: strings.TrimSpace(out.Content)}
	for _, tc := range out.ToolCalls {
		name := strings.TrimSpace(tc.Function.Name)
		if name == "" {
			continue
		}
		args := map[string]any{}
		if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return contractx.InferenceResponse{}, fmt.Errorf("%w: tool=%s arguments: %v", contractx.ErrSchemaViolation, name, err)
			}
		}
		resp.ToolCalls = append(resp.ToolCalls, contractx.ToolRequest{Tool: name, Args: args})
	}
	return resp, nil
}
