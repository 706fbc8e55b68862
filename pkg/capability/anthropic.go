package capability

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/zen-systems/routegate/pkg/schema"
	"github.com/zen-systems/routegate/pkg/signal"
)

// AnthropicProfiler is an LLM-backed Layer-3 profiler.
type AnthropicProfiler struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProfiler creates a profiler backed by a Claude model.
func NewAnthropicProfiler(apiKey, model string) (*AnthropicProfiler, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	client := anthropic.NewClient()
	return &AnthropicProfiler{client: client, model: model}, nil
}

func (p *AnthropicProfiler) Name() string                { return "anthropic" }
func (p *AnthropicProfiler) Layer() schema.AnalysisLayer { return schema.Layer3 }
func (p *AnthropicProfiler) CanResume() bool             { return true }

// Enrich asks the model for the profiler payload and attaches it.
func (p *AnthropicProfiler) Enrich(ctx context.Context, in Input) (*signal.Bundle, error) {
	if in.Prior == nil {
		return nil, fmt.Errorf("profiler requires a prior bundle")
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildProfilerPrompt(in))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	payload, err := parseProfilerPayload(schema.Layer3, content)
	if err != nil {
		return nil, err
	}

	b := in.Prior.Clone()
	b.Layer = schema.Layer3
	b.Profiler = payload.toSignals(in.Prior)
	return b, nil
}
