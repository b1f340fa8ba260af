// Package provider holds the closed set of query providers and the adapters
// that call them.
package provider

import (
	"context"
	"errors"

	"github.com/datagata/gata/pkg/models"
)

// Kind identifies a provider.
type Kind string

const (
	// MotherDuck is the remote LLM-backed query service. Token-metered.
	MotherDuck Kind = "motherduck-ai"
	// WebLLM is a browser-local model reached through a proxy. Free.
	WebLLM Kind = "webllm"
	// OpenAI is any OpenAI-compatible chat completion API. Token-metered.
	OpenAI Kind = "openai"
)

// Kinds lists every supported provider.
var Kinds = []Kind{MotherDuck, WebLLM, OpenAI}

// ParseKind maps a configured provider id onto a Kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Metered reports whether calls are billed per token.
func (k Kind) Metered() bool {
	return k == MotherDuck || k == OpenAI
}

// Mode is the cache query mode results from this provider are stored under.
func (k Kind) Mode() models.QueryMode {
	if k == WebLLM {
		return models.ModeBrowser
	}
	return models.ModeRemote
}

// DefaultModel is used when configuration names no model id.
func (k Kind) DefaultModel() string {
	switch k {
	case WebLLM:
		return "Llama-3.2-3B-Instruct-q4f16_1-MLC"
	case OpenAI:
		return "gpt-4o-mini"
	default:
		return "gpt-4-turbo"
	}
}

// Params carries the resolved model parameters into an adapter.
type Params struct {
	Model          string
	MaxTokens      int
	Temperature    float64
	PromptTemplate string
	TableNames     []string
}

// Response is what an adapter hands back.
type Response struct {
	Text       string
	LatencyMs  float64
	TokensUsed *int
}

// ErrMalformedResponse is returned when a provider answers without a result.
var ErrMalformedResponse = errors.New("malformed provider response")

// Adapter executes a query against one provider.
type Adapter interface {
	Execute(ctx context.Context, query string, p Params) (*Response, error)
}

// AdapterFunc adapts a function to Adapter.
type AdapterFunc func(ctx context.Context, query string, p Params) (*Response, error)

// Execute implements Adapter.
func (f AdapterFunc) Execute(ctx context.Context, query string, p Params) (*Response, error) {
	return f(ctx, query, p)
}
