package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const analysisPrompt = `You analyze one chat message. Respond with a JSON object only, no prose:
{"sentiment": "positive|neutral|negative", "topics": ["..."], "action_items": ["..."]}
Topics and action items may be empty arrays. Keep topics to at most three short phrases.`

// OpenAIGenerator generates analyses through an OpenAI-compatible chat
// completion API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a generator. baseURL may be empty for the
// default API endpoint; model must be set.
func NewOpenAIGenerator(apiKey, baseURL, model string) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Analyze asks the model for a structured analysis of content and validates
// that the reply is a JSON object before returning it.
func (g *OpenAIGenerator) Analyze(ctx context.Context, content string) (json.RawMessage, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analysisPrompt},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
		Temperature: 0.2,
		MaxTokens:   300,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	// Some models wrap JSON in a markdown fence despite instructions.
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")
	reply = strings.TrimSpace(reply)

	if !json.Valid([]byte(reply)) {
		return nil, fmt.Errorf("model reply is not valid JSON")
	}
	return json.RawMessage(reply), nil
}
