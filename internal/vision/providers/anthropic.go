package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const describePrompt = "Describe this image in one or two sentences for someone who cannot see it. " +
	"Focus on what it shows, including any visible text. Respond with the description only."

// AnthropicDescriber produces image descriptions using Anthropic's Claude API.
type AnthropicDescriber struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicDescriber creates a new Anthropic describer
func NewAnthropicDescriber(apiKey, model string) *AnthropicDescriber {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &AnthropicDescriber{
		client: &client,
		model:  model,
	}
}

// Describe sends the image URL to Claude and returns the description text.
func (d *AnthropicDescriber) Describe(ctx context.Context, url string) (string, error) {
	message, err := d.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(d.model),
		MaxTokens: 300,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: url}),
				anthropic.NewTextBlock(describePrompt),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to call Claude API: %w", err)
	}

	// Extract text from response
	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}

	responseText = strings.TrimSpace(responseText)
	if responseText == "" {
		return "", fmt.Errorf("Claude returned empty response")
	}

	return responseText, nil
}
