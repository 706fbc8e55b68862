package capability

import (
	"context"
	"fmt"

	"github.com/zen-systems/routegate/pkg/schema"
	"github.com/zen-systems/routegate/pkg/signal"
	"google.golang.org/genai"
)

// GoogleCapability is a Gemini-backed capability usable as either the
// Layer-2 classifier or the Layer-3 profiler, selected at construction.
type GoogleCapability struct {
	client *genai.Client
	model  string
	layer  schema.AnalysisLayer
}

// NewGoogleCapability creates a Gemini-backed capability for the given layer.
func NewGoogleCapability(apiKey, model string, layer schema.AnalysisLayer) (*GoogleCapability, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}
	if model == "" {
		model = "gemini-2.0-pro"
	}
	if layer != schema.Layer2 && layer != schema.Layer3 {
		return nil, fmt.Errorf("google capability serves layer 2 or 3, got %s", layer)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	return &GoogleCapability{client: client, model: model, layer: layer}, nil
}

func (g *GoogleCapability) Name() string                { return "google" }
func (g *GoogleCapability) Layer() schema.AnalysisLayer { return g.layer }
func (g *GoogleCapability) CanResume() bool             { return false }

// Enrich asks Gemini for the layer payload and attaches it.
func (g *GoogleCapability) Enrich(ctx context.Context, in Input) (*signal.Bundle, error) {
	if in.Prior == nil {
		return nil, fmt.Errorf("capability requires a prior bundle")
	}

	prompt := buildClassifierPrompt(in)
	if g.layer == schema.Layer3 {
		prompt = buildProfilerPrompt(in)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("google API error: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &Error{Layer: g.layer, Kind: FailureInvalid, Err: fmt.Errorf("google returned no candidates")}
	}

	var content string
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
		}
	}

	b := in.Prior.Clone()
	b.Layer = g.layer
	if g.layer == schema.Layer2 {
		payload, err := parseClassifierPayload(schema.Layer2, content)
		if err != nil {
			return nil, err
		}
		b.Classifier = payload.toSignals()
	} else {
		payload, err := parseProfilerPayload(schema.Layer3, content)
		if err != nil {
			return nil, err
		}
		b.Profiler = payload.toSignals(in.Prior)
	}
	return b, nil
}
