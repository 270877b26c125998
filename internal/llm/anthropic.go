package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// AnthropicClient implements Client using Claude. The submit_advice tool is
// forced through tool_choice, so the answer always arrives as tool input
// instead of free-form text.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a Claude-backed advisor. baseURL and
// httpClient are optional.
func NewAnthropicClient(apiKey, model, baseURL string, httpClient *http.Client) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicClient{
		client: &client,
		model:  model,
	}
}

func (a *AnthropicClient) ProviderName() string { return "anthropic" }
func (a *AnthropicClient) ModelName() string    { return a.model }

func (a *AnthropicClient) Advise(ctx context.Context, req AdviceRequest) (*Advice, error) {
	schema := adviceSchema()
	submitTool := anthropic.ToolParam{
		Name:        submitAdviceTool,
		Description: param.NewOpt("Submit your design advice."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: schema["properties"],
			Required:   schema["required"].([]string),
		},
	}

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1024,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(req))),
		},
		Tools: []anthropic.ToolUnionParam{{OfTool: &submitTool}},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: submitAdviceTool},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	for _, block := range message.Content {
		toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok || toolUse.Name != submitAdviceTool {
			continue
		}
		inputBytes, err := json.Marshal(toolUse.Input)
		if err != nil {
			return nil, fmt.Errorf("anthropic: marshaling tool input: %w", err)
		}
		var advice Advice
		if err := json.Unmarshal(inputBytes, &advice); err != nil {
			return nil, fmt.Errorf("anthropic: parsing tool input: %w", err)
		}
		return finish(&advice, a.ProviderName(), a.model)
	}
	return nil, fmt.Errorf("anthropic ended without submitting advice: %w", ErrNoAdvice)
}
