package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultSystemPrompt is used when the flag variation has no prompt template.
const DefaultSystemPrompt = "You translate analytics questions into a single DuckDB SQL query. Reply with the query only."

// OpenAIAdapter asks an OpenAI-compatible chat completion API to translate
// the question.
type OpenAIAdapter struct {
	client *openai.Client
}

// NewOpenAI creates an adapter. An empty baseURL targets api.openai.com.
func NewOpenAI(apiKey, baseURL string) *OpenAIAdapter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIAdapter{client: openai.NewClientWithConfig(cfg)}
}

// SystemPrompt renders the prompt template. "{{tables}}" is replaced with
// the comma-separated table names.
func SystemPrompt(p Params) string {
	tmpl := p.PromptTemplate
	if tmpl == "" {
		tmpl = DefaultSystemPrompt
		if len(p.TableNames) > 0 {
			tmpl += " Available tables: {{tables}}."
		}
	}
	return strings.ReplaceAll(tmpl, "{{tables}}", strings.Join(p.TableNames, ", "))
}

// Execute implements Adapter.
func (o *OpenAIAdapter) Execute(ctx context.Context, query string, p Params) (*Response, error) {
	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: modelOr(p, OpenAI),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(p)},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
		MaxTokens:   p.MaxTokens,
		Temperature: float32(p.Temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	tokens := resp.Usage.TotalTokens
	return &Response{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		LatencyMs:  float64(time.Since(start).Microseconds()) / 1000,
		TokensUsed: &tokens,
	}, nil
}
