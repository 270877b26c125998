package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// Base URLs of the OpenAI-compatible endpoints we use.
const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
)

// OpenAIClient implements Client against any OpenAI-compatible chat API
// (Groq, Gemini). It asks for a JSON object response and decodes it.
type OpenAIClient struct {
	client   *openai.Client
	provider string
	model    string
}

// NewOpenAIClient creates a client for the endpoint at baseURL. provider
// names it in logs and call tracking. httpClient may be nil.
func NewOpenAIClient(provider, apiKey, baseURL, model string, httpClient *http.Client) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIClient{
		client:   openai.NewClientWithConfig(cfg),
		provider: provider,
		model:    model,
	}
}

func (o *OpenAIClient) ProviderName() string { return o.provider }
func (o *OpenAIClient) ModelName() string    { return o.model }

func (o *OpenAIClient) Advise(ctx context.Context, req AdviceRequest) (*Advice, error) {
	schema, err := json.Marshal(adviceSchema())
	if err != nil {
		return nil, fmt.Errorf("encoding schema: %w", err)
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt + "\nReply with one JSON object matching this schema:\n" + string(schema),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(req),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("%s API call: %w", o.provider, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices: %w", o.provider, ErrNoAdvice)
	}

	var advice Advice
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &advice); err != nil {
		return nil, fmt.Errorf("%s: parsing advice: %w", o.provider, err)
	}
	return finish(&advice, o.provider, o.model)
}
