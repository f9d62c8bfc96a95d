// Package providers implements LLM provider integrations for the kestrel agent runtime.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/kestrel-agent/kestrel/internal/agent"
	"github.com/kestrel-agent/kestrel/pkg/models"
)

// maxEmptyStreamEvents bounds how many consecutive no-op SSE events a
// stream may produce before it is treated as malformed.
const maxEmptyStreamEvents = 50

// AnthropicProvider implements agent.Provider against Claude's Messages API.
type AnthropicProvider struct {
	BaseProvider
	client       anthropic.Client
	defaultModel string
}

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		BaseProvider: NewBaseProvider("anthropic", config.MaxRetries, config.RetryDelay),
		client:       anthropic.NewClient(opts...),
		defaultModel: config.DefaultModel,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// SupportsNativeTools is always true: the Messages API accepts a tools
// array and returns structured tool_use content blocks.
func (p *AnthropicProvider) SupportsNativeTools() bool { return true }

// Complete sends a single non-streaming request and returns the
// accumulated response, retrying transient failures via BaseProvider.
func (p *AnthropicProvider) Complete(ctx context.Context, req agent.CompletionRequest) (*models.ProviderResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	var msg *anthropic.Message
	retryErr := p.Retry(ctx, p.isRetryableError, func() error {
		m, err := p.client.Messages.New(ctx, params)
		if err != nil {
			return p.wrapError(err, p.getModel(req.Model))
		}
		msg = m
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	resp := &models.ProviderResponse{
		Model: string(msg.Model),
		Usage: &models.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content += variant.Text
		case anthropic.ToolUseBlock:
			resp.ToolCalls = append(resp.ToolCalls, models.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: string(variant.Input),
			})
		}
	}
	return resp, nil
}

// Stream sends a streaming request and translates Anthropic's SSE
// events into models.StreamChunk values on the returned channel.
func (p *AnthropicProvider) Stream(ctx context.Context, req agent.CompletionRequest) (<-chan models.StreamChunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	chunks := make(chan models.StreamChunk)
	go func() {
		defer close(chunks)

		var stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
		retryErr := p.Retry(ctx, p.isRetryableError, func() error {
			stream = p.client.Messages.NewStreaming(ctx, params)
			return stream.Err()
		})
		if retryErr != nil {
			chunks <- models.StreamChunk{Type: models.ChunkError, Error: retryErr.Error()}
			return
		}

		p.processStream(stream, chunks, p.getModel(req.Model))
	}()
	return chunks, nil
}

func (p *AnthropicProvider) buildParams(req agent.CompletionRequest) (anthropic.MessageNewParams, error) {
	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: failed to convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.getModel(req.Model)),
		Messages:  messages,
		MaxTokens: int64(p.getMaxTokens(req.MaxTokens)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := p.convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: failed to convert tools: %w", err)
		}
		params.Tools = tools
	}
	return params, nil
}

func (p *AnthropicProvider) processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], chunks chan<- models.StreamChunk, model string) {
	var currentToolCall *models.ToolCall
	var currentToolInput []byte
	emptyEventCount := 0
	var inputTokens, outputTokens int

	for stream.Next() {
		event := stream.Current()
		processed := false

		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			if ms.Message.Usage.InputTokens > 0 {
				inputTokens = int(ms.Message.Usage.InputTokens)
			}
			processed = true

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolUse := block.AsToolUse()
				currentToolCall = &models.ToolCall{ID: toolUse.ID, Name: toolUse.Name}
				currentToolInput = currentToolInput[:0]
				chunks <- models.StreamChunk{Type: models.ChunkToolStart, ToolCallID: toolUse.ID, ToolName: toolUse.Name}
				processed = true
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					chunks <- models.StreamChunk{Type: models.ChunkText, Text: delta.Text}
					processed = true
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					currentToolInput = append(currentToolInput, delta.PartialJSON...)
					chunks <- models.StreamChunk{Type: models.ChunkToolDelta, ToolArgDelta: delta.PartialJSON}
					processed = true
				}
			}

		case "content_block_stop":
			if currentToolCall != nil {
				currentToolCall.Arguments = string(currentToolInput)
				currentToolCall = nil
				processed = true
			}

		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				outputTokens = int(md.Usage.OutputTokens)
			}
			processed = true

		case "message_stop":
			chunks <- models.StreamChunk{
				Type: models.ChunkDone,
				Response: &models.ProviderResponse{
					Model: model,
					Usage: &models.Usage{InputTokens: inputTokens, OutputTokens: outputTokens},
				},
			}
			return

		case "error":
			chunks <- models.StreamChunk{Type: models.ChunkError, Error: "anthropic: stream error"}
			return
		}

		if processed {
			emptyEventCount = 0
		} else {
			emptyEventCount++
			if emptyEventCount >= maxEmptyStreamEvents {
				chunks <- models.StreamChunk{Type: models.ChunkError, Error: fmt.Sprintf("anthropic: stream appears malformed after %d empty events", emptyEventCount)}
				return
			}
		}
	}

	if err := stream.Err(); err != nil {
		chunks <- models.StreamChunk{Type: models.ChunkError, Error: p.wrapError(err, model).Error()}
	}
}

func (p *AnthropicProvider) convertMessages(messages []agent.Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		for _, tr := range msg.ToolResults {
			content = append(content, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
		}
		for _, tc := range msg.ToolCalls {
			var input map[string]interface{}
			if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
				return nil, fmt.Errorf("invalid tool call arguments: %w", err)
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}

		if len(content) == 0 {
			continue
		}
		if msg.Role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func (p *AnthropicProvider) convertTools(tools []models.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam
	for _, tool := range tools {
		raw, err := json.Marshal(tool.Parameters)
		if err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name, err)
		}

		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", tool.Name)
		}
		toolParam.OfTool.Description = anthropic.String(tool.Description)
		result = append(result, toolParam)
	}
	return result, nil
}

func (p *AnthropicProvider) getModel(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

func (p *AnthropicProvider) getMaxTokens(maxTokens int) int {
	if maxTokens <= 0 {
		return 4096
	}
	return maxTokens
}

func (p *AnthropicProvider) isRetryableError(err error) bool {
	return IsRetryable(err)
}

func (p *AnthropicProvider) wrapError(err error, model string) error {
	return NewProviderError(p.Name(), model, err)
}
