package narrative

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// chatClient abstracts the OpenAI SDK for testing.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI generates narrative text via the OpenAI chat completions API.
type OpenAI struct {
	client  chatClient
	model   string
	timeout time.Duration
}

// NewOpenAI creates a generator for the given credential. Returns a Disabled
// generator when the key is empty so callers always get a usable Generator.
func NewOpenAI(apiKey, model string, timeout time.Duration) Generator {
	if apiKey == "" {
		return Disabled{}
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAI{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
	}
}

// chat sends one system+user exchange and returns the trimmed response.
// Every failure path wraps ErrUnavailable so the pipeline can degrade.
func (o *OpenAI) chat(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Briefing implements Generator.
func (o *OpenAI) Briefing(ctx context.Context, facts RunFacts) (string, error) {
	return o.chat(ctx, briefingSystem, briefingPrompt(facts))
}

// Actions implements Generator.
func (o *OpenAI) Actions(ctx context.Context, facts RunFacts, briefing string) (string, error) {
	return o.chat(ctx, actionsSystem, actionsPrompt(facts, briefing))
}

// ExplainAnomaly implements Generator.
func (o *OpenAI) ExplainAnomaly(ctx context.Context, packet PacketFacts, facts RunFacts) (string, error) {
	return o.chat(ctx, explainSystem, explainPrompt(packet, facts))
}

// Answer implements Generator.
func (o *OpenAI) Answer(ctx context.Context, question, runContext string) (string, error) {
	return o.chat(ctx, answerSystem, answerPrompt(question, runContext))
}
