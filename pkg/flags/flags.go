// Package flags resolves which AI provider and model parameters apply to a
// request. Resolution is targeted on the caller's context, the way a feature
// flag service serves a variation.
package flags

import (
	"context"
	"net/http"
)

// FlagKey is the flag a remote resolver is asked to evaluate.
const FlagKey = "ai-config"

// Context identifies who a request is for.
type Context struct {
	UserKey    string `json:"key"`
	Email      string `json:"email,omitempty"`
	Tier       string `json:"tier,omitempty"`
	Role       string `json:"role,omitempty"`
	OrgKey     string `json:"org,omitempty"`
	SessionKey string `json:"session,omitempty"`
}

// Anonymous reports whether no user was identified.
func (c Context) Anonymous() bool {
	return c.UserKey == "" || c.UserKey == "anonymous"
}

// Request headers read by ContextFromHeaders.
const (
	HeaderUserID  = "X-User-Id"
	HeaderEmail   = "X-User-Email"
	HeaderTier    = "X-User-Tier"
	HeaderRole    = "X-User-Role"
	HeaderOrg     = "X-Org-Id"
	HeaderSession = "X-Session-Id"
)

// ContextFromHeaders builds a Context from request headers. A missing user
// id becomes "anonymous" and a missing tier "free".
func ContextFromHeaders(h http.Header) Context {
	c := Context{
		UserKey:    h.Get(HeaderUserID),
		Email:      h.Get(HeaderEmail),
		Tier:       h.Get(HeaderTier),
		Role:       h.Get(HeaderRole),
		OrgKey:     h.Get(HeaderOrg),
		SessionKey: h.Get(HeaderSession),
	}
	if c.UserKey == "" {
		c.UserKey = "anonymous"
	}
	if c.Tier == "" {
		c.Tier = "free"
	}
	return c
}

// Model selects and parameterizes the model behind a provider.
type Model struct {
	Enabled    bool           `json:"enabled" yaml:"enabled"`
	Name       string         `json:"name,omitempty" yaml:"name"`
	ModelID    string         `json:"modelId,omitempty" yaml:"model_id"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters"`
}

// AIConfig is one variation of the ai-config flag.
type AIConfig struct {
	Provider       string  `json:"provider" yaml:"provider"`
	Model          Model   `json:"model" yaml:"model"`
	PromptTemplate string  `json:"promptTemplate,omitempty" yaml:"prompt_template"`
	MaxTokens      int     `json:"maxTokens,omitempty" yaml:"max_tokens"`
	Temperature    float64 `json:"temperature,omitempty" yaml:"temperature"`
}

// DefaultAIConfig is served when nothing more specific applies.
func DefaultAIConfig() AIConfig {
	return AIConfig{
		Provider: "motherduck-ai",
		Model: Model{
			Enabled: true,
			Name:    "gpt-4",
			ModelID: "gpt-4-turbo",
		},
		MaxTokens:   1000,
		Temperature: 0.7,
	}
}

// Resolver picks the AIConfig for a request context.
type Resolver interface {
	Resolve(ctx context.Context, c Context) (AIConfig, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, c Context) (AIConfig, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, c Context) (AIConfig, error) {
	return f(ctx, c)
}

// Overlay returns base with every non-zero field of over applied on top.
func Overlay(base, over AIConfig) AIConfig {
	out := base
	if over.Provider != "" {
		out.Provider = over.Provider
	}
	if over.Model.Name != "" || over.Model.ModelID != "" || over.Model.Enabled {
		out.Model.Enabled = over.Model.Enabled
	}
	if over.Model.Name != "" {
		out.Model.Name = over.Model.Name
	}
	if over.Model.ModelID != "" {
		out.Model.ModelID = over.Model.ModelID
	}
	if len(over.Model.Parameters) > 0 {
		out.Model.Parameters = over.Model.Parameters
	}
	if over.PromptTemplate != "" {
		out.PromptTemplate = over.PromptTemplate
	}
	if over.MaxTokens != 0 {
		out.MaxTokens = over.MaxTokens
	}
	if over.Temperature != 0 {
		out.Temperature = over.Temperature
	}
	return out
}
