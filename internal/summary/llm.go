package summary

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// LLM is the model capability the engine needs.
type LLM interface {
	// CallTool forces a single call of tool and returns its raw arguments.
	CallTool(ctx context.Context, prompt string, tool Tool) (string, Usage, error)
	// StreamText streams a free-text completion, calling onChunk per delta.
	StreamText(ctx context.Context, prompt string, onChunk func(string) error) (Usage, error)
	// Model names the model used, for bookkeeping.
	Model() string
}

// ErrNoToolCall is returned when the model answers without calling the tool.
var ErrNoToolCall = errors.New("model returned no tool call")

// OpenAIConfig holds model parameters.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

const frequencyPenalty = 0.2

// OpenAI implements LLM on the chat completions API.
type OpenAI struct {
	client *openai.Client
	cfg    OpenAIConfig
}

// NewOpenAI builds a client. BaseURL may point at any compatible endpoint.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(c), cfg: cfg}
}

// Model implements LLM.
func (o *OpenAI) Model() string { return o.cfg.Model }

func (o *OpenAI) request(prompt string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:            o.cfg.Model,
		MaxTokens:        o.cfg.MaxTokens,
		Temperature:      o.cfg.Temperature,
		FrequencyPenalty: frequencyPenalty,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
}

// CallTool implements LLM.
func (o *OpenAI) CallTool(ctx context.Context, prompt string, tool Tool) (string, Usage, error) {
	req := o.request(prompt)
	req.Tools = []openai.Tool{{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		},
	}}
	req.ToolChoice = openai.ToolChoice{
		Type:     openai.ToolTypeFunction,
		Function: openai.ToolFunction{Name: tool.Name},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("create chat completion: %w", err)
	}
	usage := fromOpenAIUsage(resp.Usage)
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return "", usage, ErrNoToolCall
	}
	return resp.Choices[0].Message.ToolCalls[0].Function.Arguments, usage, nil
}

// StreamText implements LLM.
func (o *OpenAI) StreamText(ctx context.Context, prompt string, onChunk func(string) error) (Usage, error) {
	req := o.request(prompt)
	req.Stream = true
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return Usage{}, fmt.Errorf("create chat completion stream: %w", err)
	}
	defer stream.Close()

	var usage Usage
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return usage, nil
		}
		if err != nil {
			return usage, fmt.Errorf("receive stream: %w", err)
		}
		if resp.Usage != nil {
			usage = fromOpenAIUsage(*resp.Usage)
		}
		for _, ch := range resp.Choices {
			if ch.Delta.Content == "" {
				continue
			}
			if err := onChunk(ch.Delta.Content); err != nil {
				return usage, err
			}
		}
	}
}

func fromOpenAIUsage(u openai.Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}
