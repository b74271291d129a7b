// Package ai talks to the external text-generation collaborator.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nuwa-agi/nuwa/internal/ports"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Request is one completion call.
type Request struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int64
}

type Completion struct {
	Text   string
	Tokens int64
}

// Generator produces text for a prompt. Errors are wrapped with ports.ErrUpstreamFailure.
type Generator interface {
	Generate(ctx context.Context, req Request) (Completion, error)
}

// Engine is one selectable AI engine exposed to clients.
type Engine struct {
	Name    string
	Model   string `json:",optional"`
	System  string `json:",optional"`
	Premium bool   `json:",optional"`
}

type Config struct {
	APIKey    string        `json:",optional,env=OPENAI_API_KEY"`
	BaseURL   string        `json:",optional"`
	Model     string        `json:",default=gpt-4o-mini"`
	Timeout   time.Duration `json:",default=30s"`
	MaxTokens int64         `json:",default=512"`
	Engines   []Engine      `json:",optional"`
}

// DefaultEngines is used when the configuration lists none.
var DefaultEngines = []Engine{
	{Name: "standard", System: "You are an assistant for a collaborative simulation platform. Answer concisely."},
	{Name: "advanced", System: "You are an expert analyst for multi-domain simulations. Give quantitative reasoning.", Premium: true},
	{Name: "quantum", System: "You are a research-grade simulation advisor. Explore scenarios and trade-offs.", Premium: true},
}

// Catalog resolves engine names to their settings.
type Catalog struct {
	engines map[string]Engine
	names   []string
}

func NewCatalog(model string, engines []Engine) *Catalog {
	if len(engines) == 0 {
		engines = DefaultEngines
	}
	c := &Catalog{engines: make(map[string]Engine, len(engines))}
	for _, e := range engines {
		if e.Model == "" {
			e.Model = model
		}
		key := strings.ToLower(e.Name)
		if _, dup := c.engines[key]; !dup {
			c.names = append(c.names, e.Name)
		}
		c.engines[key] = e
	}
	return c
}

func (c *Catalog) Lookup(name string) (Engine, bool) {
	e, ok := c.engines[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}

func (c *Catalog) Names() []string { return append([]string(nil), c.names...) }

// OpenAI is a Generator backed by the chat completions API.
type OpenAI struct {
	client    openai.Client
	maxTokens int64
}

func NewOpenAI(c Config) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(c.APIKey),
		option.WithMaxRetries(0),
	}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	if c.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(c.Timeout))
	}
	return &OpenAI{client: openai.NewClient(opts...), maxTokens: c.MaxTokens}
}

func (g *OpenAI) Generate(ctx context.Context, req Request) (Completion, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: msgs,
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(maxTokens)
	}
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return Completion{}, fmt.Errorf("%w: completion status %d", ports.ErrUpstreamFailure, apiErr.StatusCode)
		}
		return Completion{}, fmt.Errorf("%w: completion: %v", ports.ErrUpstreamFailure, err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("%w: completion returned no choices", ports.ErrUpstreamFailure)
	}
	return Completion{Text: resp.Choices[0].Message.Content, Tokens: resp.Usage.TotalTokens}, nil
}
