package capability

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/zen-systems/routegate/pkg/schema"
	"github.com/zen-systems/routegate/pkg/signal"
)

// OpenAIClassifier is an LLM-backed Layer-2 classifier.
type OpenAIClassifier struct {
	client openai.Client
	model  string
}

// NewOpenAIClassifier creates a classifier backed by an OpenAI model.
func NewOpenAIClassifier(apiKey, model string) (*OpenAIClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if model == "" {
		model = "gpt-5.2-instant"
	}

	client := openai.NewClient()
	return &OpenAIClassifier{client: client, model: model}, nil
}

func (c *OpenAIClassifier) Name() string                { return "openai" }
func (c *OpenAIClassifier) Layer() schema.AnalysisLayer { return schema.Layer2 }
func (c *OpenAIClassifier) CanResume() bool             { return true }

// Enrich asks the model for the classifier payload and attaches it.
func (c *OpenAIClassifier) Enrich(ctx context.Context, in Input) (*signal.Bundle, error) {
	if in.Prior == nil {
		return nil, fmt.Errorf("classifier requires a prior bundle")
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(buildClassifierPrompt(in)),
		},
		MaxCompletionTokens: openai.Int(512),
	})
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{Layer: schema.Layer2, Kind: FailureInvalid, Err: fmt.Errorf("openai returned no choices")}
	}

	payload, err := parseClassifierPayload(schema.Layer2, resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	b := in.Prior.Clone()
	b.Layer = schema.Layer2
	b.Classifier = payload.toSignals()
	return b, nil
}
