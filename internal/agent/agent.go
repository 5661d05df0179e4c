package agent

import (
	"context"
	"fmt"
	"os"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
)

const (
	defaultModel        = "claude-haiku-4-5"
	defaultSystemPrompt = "You are a helpful data analyst. You have access to tools that can list the tables loaded into a DuckDB database, show their schemas, and run SQL queries. Use these tools to answer questions about the data with accurate, query-backed numbers. Prefer running a query over guessing."
)

// Store is the subset of the data store the chat tools need.
type Store interface {
	SchemaForLLM(names ...string) (string, error)
	ExecuteQuery(query string) ([]map[string]any, error)
	TableNames() []string
}

// InitStoreFunc opens the store for one tool invocation. The returned
// cleanup must always be called.
type InitStoreFunc func(dataDir string) (Store, func(), error)

// Config holds the configuration for creating a chat agent
type Config struct {
	apiKey       string
	model        string
	systemPrompt string
	dataDir      string
	initStore    InitStoreFunc
}

// Option is a functional option for configuring the agent
type Option func(*Config) error

// WithAPIKey sets the Anthropic API key
func WithAPIKey(apiKey string) Option {
	return func(c *Config) error {
		if apiKey == "" {
			return fmt.Errorf("API key cannot be empty")
		}
		c.apiKey = apiKey
		return nil
	}
}

// WithAPIKeyFromEnv sets the API key from the ANTHROPIC_API_KEY environment variable
func WithAPIKeyFromEnv() Option {
	return func(c *Config) error {
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
		c.apiKey = apiKey
		return nil
	}
}

// WithModel sets the Claude model to use (default: claude-haiku-4-5)
func WithModel(model string) Option {
	return func(c *Config) error {
		if model == "" {
			return fmt.Errorf("model cannot be empty")
		}
		c.model = model
		return nil
	}
}

// WithSystemPrompt sets a custom system prompt
func WithSystemPrompt(prompt string) Option {
	return func(c *Config) error {
		c.systemPrompt = prompt
		return nil
	}
}

// WithDataDir sets the data directory for database operations
func WithDataDir(dataDir string) Option {
	return func(c *Config) error {
		c.dataDir = dataDir
		return nil
	}
}

// WithStoreInitializer sets the store initialization function
func WithStoreInitializer(initStore InitStoreFunc) Option {
	return func(c *Config) error {
		c.initStore = initStore
		return nil
	}
}

// NewChatAgent creates a Fantasy agent configured for answering questions
// about the loaded data. It uses the Options pattern for flexible
// configuration.
func NewChatAgent(opts ...Option) (fantasy.Agent, error) {
	config := &Config{
		model:        defaultModel,
		systemPrompt: defaultSystemPrompt,
	}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if config.apiKey == "" {
		return nil, fmt.Errorf("API key is required (use WithAPIKey or WithAPIKeyFromEnv)")
	}
	if config.initStore == nil {
		return nil, fmt.Errorf("store initializer is required (use WithStoreInitializer)")
	}

	provider, err := anthropic.New(anthropic.WithAPIKey(config.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Anthropic provider: %w", err)
	}

	ctx := context.Background()

	model, err := provider.LanguageModel(ctx, config.model)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Claude model: %w", err)
	}

	tools := CreateTools(config.dataDir, config.initStore)

	agent := fantasy.NewAgent(
		model,
		fantasy.WithSystemPrompt(config.systemPrompt),
		fantasy.WithTools(tools...),
	)

	return agent, nil
}

// GenerateResponse is a convenience function that creates an agent and generates a response in one call
func GenerateResponse(ctx context.Context, question string, opts ...Option) (string, error) {
	agent, err := NewChatAgent(opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create agent: %w", err)
	}

	result, err := agent.Generate(ctx, fantasy.AgentCall{Prompt: question})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	return result.Response.Content.Text(), nil
}
