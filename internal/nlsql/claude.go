package nlsql

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const claudeMaxTokens = 1024

// ClaudeGenerator implements TextGenerator with the Anthropic Messages API.
type ClaudeGenerator struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewClaudeGenerator creates a Claude-backed generator using the default
// model. The API key must be non-empty; NewEngine validates that before
// calling here.
func NewClaudeGenerator(apiKey string) *ClaudeGenerator {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ClaudeGenerator{
		client: &client,
		model:  anthropic.ModelClaudeHaiku4_5_20251001,
	}
}

// Generate sends a single user message and concatenates the text blocks of
// the response. A response with no text content is an error, the engine
// has nothing to sanitize.
func (g *ClaudeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: claudeMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	message, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API error: %w", err)
	}

	if len(message.Content) == 0 {
		return "", fmt.Errorf("empty response from Claude")
	}

	responseText := ""
	for _, block := range message.Content {
		if textBlock, ok := block.AsAny().(anthropic.TextBlock); ok {
			responseText += textBlock.Text
		}
	}

	if responseText == "" {
		return "", fmt.Errorf("no text response from Claude")
	}

	return responseText, nil
}
