// Package llm provides a provider-agnostic interface for asking LLMs for
// interior design advice. Every client returns the same structured Advice,
// so the advice service can fall back from one provider to the next.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoAdvice is returned when a model answered without usable advice.
var ErrNoAdvice = errors.New("model returned no usable advice")

// AdviceRequest describes the room the user wants help with. Only RoomType
// or Description is required.
type AdviceRequest struct {
	RoomType    string   `json:"room_type"`
	Style       string   `json:"style,omitempty"`
	Description string   `json:"description,omitempty"`
	Colors      []string `json:"colors,omitempty"`
	Materials   []string `json:"materials,omitempty"`
	Budget      string   `json:"budget,omitempty"`
}

// Subject is a short label for call tracking, e.g. "living room/japandi".
func (r AdviceRequest) Subject() string {
	parts := []string{strings.TrimSpace(r.RoomType), strings.TrimSpace(r.Style)}
	label := strings.Trim(strings.Join(parts, "/"), "/")
	if label == "" {
		label = "general"
	}
	return strings.ToLower(label)
}

// Advice is the structured answer every client produces.
type Advice struct {
	Summary       string   `json:"summary"`
	Palette       []string `json:"palette"`
	Materials     []string `json:"materials"`
	LayoutTips    []string `json:"layout_tips"`
	BudgetNotes   string   `json:"budget_notes,omitempty"`
	SearchQueries []string `json:"search_queries"`
	Provider      string   `json:"provider"`
	Model         string   `json:"model"`
}

// Client is the interface for LLM providers that can give design advice.
// Keep it small: one call plus the two names used for tracking.
type Client interface {
	Advise(ctx context.Context, req AdviceRequest) (*Advice, error)
	ProviderName() string
	ModelName() string
}

// submitAdviceTool is the name of the structured-output tool.
const submitAdviceTool = "submit_advice"

// adviceSchema is the JSON schema of Advice minus provider/model, shared by
// the tool definitions of both SDKs.
func adviceSchema() map[string]any {
	list := func(desc string) map[string]any {
		return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": desc}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary":        map[string]any{"type": "string", "description": "Two or three sentences describing the recommended direction."},
			"palette":        list("Colour names or hex codes, main colour first."),
			"materials":      list("Materials and finishes that suit the room."),
			"layout_tips":    list("Concrete furniture placement and layout suggestions."),
			"budget_notes":   map[string]any{"type": "string", "description": "Where to spend and where to save."},
			"search_queries": list("Short image search queries (2-4 words) for inspiration photos."),
		},
		"required": []string{"summary", "palette", "materials", "layout_tips", "search_queries"},
	}
}

// finish validates a decoded answer and stamps who produced it.
func finish(a *Advice, provider, model string) (*Advice, error) {
	if a == nil || strings.TrimSpace(a.Summary) == "" {
		return nil, fmt.Errorf("%s: %w", provider, ErrNoAdvice)
	}
	a.Provider = provider
	a.Model = model
	if len(a.SearchQueries) > 6 {
		a.SearchQueries = a.SearchQueries[:6]
	}
	return a, nil
}

const systemPrompt = `You are an experienced interior designer. Give practical, specific advice
that a homeowner can act on. Answer only through the structured format you are given.`

// buildPrompt creates the user prompt for the LLM.
func buildPrompt(req AdviceRequest) string {
	var b strings.Builder
	b.WriteString("Suggest a design direction for this space.\n\n")
	field := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, v)
		}
	}
	field("Room", req.RoomType)
	field("Preferred style", req.Style)
	field("Description", req.Description)
	field("Colours to include", strings.Join(req.Colors, ", "))
	field("Materials to include", strings.Join(req.Materials, ", "))
	field("Budget", req.Budget)
	b.WriteString(`
Requirements:
- palette: 3 to 6 colours that work together
- layout_tips: 3 to 6 concrete suggestions
- search_queries: 3 to 6 short queries for finding inspiration photos`)
	return b.String()
}
